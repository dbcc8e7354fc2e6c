package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/s0up4200/seedshift/downloader"
	"github.com/s0up4200/seedshift/filter"
	"github.com/s0up4200/seedshift/notifier"
	"github.com/s0up4200/seedshift/scheduler"
)

// EnvPrefix is prepended to environment variable overrides, e.g.
// SEEDSHIFT_TRANSFER_SOURCE.
const EnvPrefix = "SEEDSHIFT"

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".seedshift"))
		}

		// Check /etc
		v.AddConfigPath("/etc/seedshift/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	normalize(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Transfer defaults
	v.SetDefault("transfer.source", "")
	v.SetDefault("transfer.target", "")
	v.SetDefault("transfer.pause_source", true)
	v.SetDefault("transfer.add_paused", false)
	v.SetDefault("transfer.dry_run", false)
	v.SetDefault("transfer.filter", "")
	v.SetDefault("transfer.settle_timeout", "10s")
	v.SetDefault("transfer.verify_paths", false)
	v.SetDefault("transfer.lock_file", "")

	// Schedule defaults
	v.SetDefault("schedule.cron", "0 4 * * *")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("schedule.start_delay", "3s")

	v.SetDefault("history.path", "seedshift.db")

	// Notification defaults
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.type", notifier.KindLog)
	v.SetDefault("notify.webhook_url", "")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen", ":8787")
	v.SetDefault("server.api_key", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// normalize lowercases client names so they match viper's map keys.
func normalize(cfg *Config) {
	cfg.Transfer.Source = strings.ToLower(strings.TrimSpace(cfg.Transfer.Source))
	cfg.Transfer.Target = strings.ToLower(strings.TrimSpace(cfg.Transfer.Target))
	for name, d := range cfg.Downloaders {
		d.Type = strings.ToLower(strings.TrimSpace(d.Type))
		cfg.Downloaders[name] = d
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Notify.Type = strings.ToLower(cfg.Notify.Type)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if len(cfg.Downloaders) == 0 {
		return fmt.Errorf("at least one entry under downloaders is required")
	}
	for name, d := range cfg.Downloaders {
		switch downloader.Kind(d.Type) {
		case downloader.KindQBittorrent, downloader.KindTransmission:
		default:
			return fmt.Errorf("downloaders.%s.type: unknown client type %q", name, d.Type)
		}
		if d.URL == "" {
			return fmt.Errorf("downloaders.%s.url is required", name)
		}
	}

	if err := validateTransfer(cfg); err != nil {
		return err
	}

	if err := scheduler.ValidateSpec(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}

	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is required")
	}

	switch cfg.Notify.Type {
	case notifier.KindNone, notifier.KindLog:
	case notifier.KindDiscord:
		if cfg.Notify.Enabled && cfg.Notify.WebhookURL == "" {
			return fmt.Errorf("notify.webhook_url is required for discord notifications")
		}
	default:
		return fmt.Errorf("invalid notify.type: %s", cfg.Notify.Type)
	}

	if cfg.Server.Enabled && cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required when the server is enabled")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

func validateTransfer(cfg *Config) error {
	t := cfg.Transfer
	if t.Source == "" || t.Target == "" {
		return fmt.Errorf("transfer.source and transfer.target are required")
	}
	if t.Source == t.Target {
		return fmt.Errorf("transfer.source and transfer.target must be different clients")
	}
	for _, name := range []string{t.Source, t.Target} {
		if _, ok := cfg.Downloaders[name]; !ok {
			return fmt.Errorf("transfer references unknown downloader %q (configured: %s)", name, strings.Join(cfg.DownloaderNames(), ", "))
		}
	}

	for i, m := range t.PathMappings {
		if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
			return fmt.Errorf("transfer.path_mappings[%d]: from and to are required", i)
		}
	}

	if strings.TrimSpace(t.Filter) != "" {
		if _, err := filter.CompileExprFilter(t.Filter); err != nil {
			return fmt.Errorf("transfer.filter: %w", err)
		}
	}
	return nil
}

// DownloaderNames returns the configured client names in sorted order.
func (c *Config) DownloaderNames() []string {
	names := make([]string, 0, len(c.Downloaders))
	for name := range c.Downloaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DownloaderSettings converts the downloaders section for the registry.
func (c *Config) DownloaderSettings() []downloader.Settings {
	out := make([]downloader.Settings, 0, len(c.Downloaders))
	for _, name := range c.DownloaderNames() {
		d := c.Downloaders[name]
		out = append(out, downloader.Settings{
			Name:               name,
			Kind:               downloader.Kind(d.Type),
			URL:                d.URL,
			Username:           d.Username,
			Password:           d.Password,
			InsecureSkipVerify: d.InsecureSkipVerify,
			Timeout:            d.Timeout,
		})
	}
	return out
}
