package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/seedshift/config"
	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/filter"
	"github.com/s0up4200/seedshift/history"
	"github.com/s0up4200/seedshift/notifier"
	"github.com/s0up4200/seedshift/pathmap"
	"github.com/s0up4200/seedshift/qbittorrent"
	"github.com/s0up4200/seedshift/transfer"
	"github.com/s0up4200/seedshift/transmission"
)

var (
	cfgFile  string
	cfg      *config.Config
	logger   zerolog.Logger
	registry *downloader.Registry

	// Command flags
	debug bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "seedshift",
	Short: "Move completed torrents between qBittorrent and Transmission",
	Long: `seedshift moves completed torrents from a source torrent client to a
target client. Torrents missing on the target are added with their trackers
and file selection, torrents already present get any missing trackers merged
in, and every processed torrent is remembered so it is handled only once.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// initializeApp loads the configuration, sets up logging and the client registry
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}

	// Setup logger
	logger = setupLogger(cfg.Logging, cfg.Debug)
	registry = newRegistry(cfg)

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig, debug bool) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format, colored only when writing to a terminal
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !tty,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// newRegistry wires the client factories for every supported kind
func newRegistry(cfg *config.Config) *downloader.Registry {
	reg := downloader.NewRegistry(cfg.DownloaderSettings())

	reg.Register(downloader.KindQBittorrent, func(ctx context.Context, s downloader.Settings) (downloader.Client, error) {
		opts := []qbittorrent.Option{qbittorrent.WithTimeout(s.Timeout)}
		if s.InsecureSkipVerify {
			opts = append(opts, qbittorrent.WithInsecureSkipVerify())
		}
		return qbittorrent.NewClient(ctx, s.Name, s.URL, s.Username, s.Password, logger, opts...)
	})

	reg.Register(downloader.KindTransmission, func(ctx context.Context, s downloader.Settings) (downloader.Client, error) {
		opts := []transmission.Option{transmission.WithTimeout(s.Timeout)}
		if s.InsecureSkipVerify {
			opts = append(opts, transmission.WithInsecureSkipVerify())
		}
		return transmission.NewClient(s.Name, s.URL, s.Username, s.Password, logger, opts...)
	})

	return reg
}

// openHistory opens the history database from the config
func openHistory() (*history.Store, error) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// newSynchronizer builds the transfer synchronizer from the config
func newSynchronizer(store *history.Store) (*transfer.Synchronizer, error) {
	eligible, err := filter.NewCompiler().NewEligibility(cfg.Transfer.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	rules := make([]pathmap.Rule, 0, len(cfg.Transfer.PathMappings))
	for _, m := range cfg.Transfer.PathMappings {
		rules = append(rules, pathmap.Rule{From: m.From, To: m.To})
	}
	paths, err := pathmap.New(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid path mappings: %w", err)
	}

	n, err := notifier.New(cfg.Notify.Type, cfg.Notify.WebhookURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	opts := transfer.Options{
		Source:        cfg.Transfer.Source,
		Target:        cfg.Transfer.Target,
		PauseSource:   cfg.Transfer.PauseSource,
		AddPaused:     cfg.Transfer.AddPaused,
		DryRun:        cfg.Transfer.DryRun,
		Notify:        cfg.Notify.Enabled,
		SettleTimeout: cfg.Transfer.SettleTimeout,
		VerifyPaths:   cfg.Transfer.VerifyPaths,
		LockFile:      cfg.Transfer.LockFile,
		Eligible:      eligible,
		Paths:         paths,
	}

	return transfer.New(registry, store, n, opts, logger), nil
}
