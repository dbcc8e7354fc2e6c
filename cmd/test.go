package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:     "test",
	Short:   "Test connections to the source and target clients",
	Long:    `Connect to the configured source and target clients concurrently and report whether they are reachable.`,
	PreRunE: initializeApp,
	RunE:    runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

type pingResult struct {
	role string
	name string
	err  error
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	roles := []struct{ role, name string }{
		{"source", cfg.Transfer.Source},
		{"target", cfg.Transfer.Target},
	}

	results := make([]pingResult, len(roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range roles {
		g.Go(func() error {
			err := pingClient(gctx, r.name)
			results[i] = pingResult{role: r.role, name: r.name, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		d := cfg.Downloaders[r.name]
		if r.err != nil {
			failed++
			fmt.Printf("✗ %s %s (%s at %s): %v\n", r.role, r.name, d.Type, d.URL, r.err)
			continue
		}
		fmt.Printf("✓ %s %s (%s at %s) is reachable\n", r.role, r.name, d.Type, d.URL)
	}

	if failed > 0 {
		return fmt.Errorf("%d connection test(s) failed", failed)
	}
	return nil
}

func pingClient(ctx context.Context, name string) error {
	client, err := registry.Get(ctx, name)
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}
