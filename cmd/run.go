package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dryRun bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single transfer pass",
	Long: `Run one transfer pass from the configured source client to the target
client and exit. Use --dry-run to see what would happen without changing
either client or the history.`,
	PreRunE: initializeApp,
	RunE:    runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "decide and log scenarios without making changes")
}

func runOnce(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("dry-run") {
		cfg.Transfer.DryRun = dryRun
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	syncer, err := newSynchronizer(store)
	if err != nil {
		return err
	}

	summary, err := syncer.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	if summary.DryRun {
		fmt.Println("Dry run, no changes were made.")
	}
	fmt.Printf("Transferred: %d | Merged: %d | Skipped: %d | Failed: %d | Filtered: %d | Already processed: %d\n",
		summary.Transferred, summary.Merged, summary.Skipped, summary.Failed, summary.Filtered, summary.Known)
	if summary.Bytes > 0 {
		fmt.Printf("Moved %s in %s\n", humanize.Bytes(uint64(summary.Bytes)), summary.Duration().Round(time.Millisecond))
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d torrent(s) failed to transfer", summary.Failed)
	}
	return nil
}
