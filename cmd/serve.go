package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s0up4200/seedshift/scheduler"
	"github.com/s0up4200/seedshift/server"
	"github.com/s0up4200/seedshift/transfer"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run transfer passes on the configured cron schedule",
	Long: `Run as a daemon that triggers a transfer pass on the cron schedule from
schedule.cron. With server.enabled a small HTTP API is exposed to trigger a
pass manually and read the transfer history.`,
	PreRunE: initializeApp,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	syncer, err := newSynchronizer(store)
	if err != nil {
		return err
	}
	// Passes started over the API must finish before the store closes.
	defer syncer.Wait()

	job := func(ctx context.Context) error {
		_, err := syncer.Run(ctx)
		if errors.Is(err, transfer.ErrAlreadyRunning) {
			logger.Warn().Msg("Previous transfer pass still running, skipping")
			return nil
		}
		return err
	}

	sched, err := scheduler.New(job, scheduler.Options{
		Spec:       cfg.Schedule.Cron,
		RunOnStart: cfg.Schedule.RunOnStart,
		StartDelay: cfg.Schedule.StartDelay,
	}, logger)
	if err != nil {
		return err
	}

	sched.Start(ctx)
	defer sched.Stop()

	if cfg.Server.Enabled {
		handler := server.NewHandler(ctx, syncer, store, cfg.Server.APIKey, logger)
		return server.Serve(ctx, cfg.Server.Listen, handler.Routes(), logger)
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return nil
}
