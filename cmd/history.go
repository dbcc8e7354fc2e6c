package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/s0up4200/seedshift/history"
)

var (
	historyLimit int
	clearConfirm bool
)

// historyCmd groups the history subcommands
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and edit the transfer history",
	Long: `Every torrent moved or merged is recorded in the history so it is only
processed once. These commands list records, forget a single torrent so it
is processed again, or clear the whole history.`,
	PersistentPreRunE: initializeApp,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transfer records, newest first",
	RunE:  runHistoryList,
}

var historyForgetCmd = &cobra.Command{
	Use:   "forget <hash>",
	Short: "Remove one torrent from the history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryForget,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every transfer record",
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyForgetCmd, historyClearCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of records to show (0 for all)")
	historyClearCmd.Flags().BoolVarP(&clearConfirm, "yes", "y", false, "skip confirmation prompt")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	records, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("History is empty.")
		return nil
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Println(renderHistory(records))
	fmt.Printf("Showing %d of %d records\n", len(records), total)
	return nil
}

func renderHistory(records []history.Record) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Hash", "Name", "Scenario", "Route", "Processed"})
	for _, r := range records {
		tw.AppendRow(table.Row{
			shortHash(r.Hash),
			truncate(r.Name, 60),
			r.Scenario,
			r.Source + " -> " + r.Target,
			humanize.Time(r.CreatedAt),
		})
	}
	return tw.Render()
}

func runHistoryForget(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no history record for %s", args[0])
		}
		return err
	}

	fmt.Printf("✓ Forgot %s, it will be processed on the next run\n", args[0])
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if !clearConfirm {
		fmt.Print("This removes every transfer record. Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(strings.TrimSpace(response)) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Removed %d records\n", n)
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
