package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Debug       bool                        `mapstructure:"debug"`
	Downloaders map[string]DownloaderConfig `mapstructure:"downloaders"`
	Transfer    TransferConfig              `mapstructure:"transfer"`
	Schedule    ScheduleConfig              `mapstructure:"schedule"`
	History     HistoryConfig               `mapstructure:"history"`
	Notify      NotifyConfig                `mapstructure:"notify"`
	Server      ServerConfig                `mapstructure:"server"`
	Logging     LoggingConfig               `mapstructure:"logging"`
}

// DownloaderConfig holds torrent client connection details
type DownloaderConfig struct {
	Type               string        `mapstructure:"type"`
	URL                string        `mapstructure:"url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// TransferConfig controls how torrents move between clients
type TransferConfig struct {
	Source        string        `mapstructure:"source"`
	Target        string        `mapstructure:"target"`
	PauseSource   bool          `mapstructure:"pause_source"`
	AddPaused     bool          `mapstructure:"add_paused"`
	DryRun        bool          `mapstructure:"dry_run"`
	Filter        string        `mapstructure:"filter"`
	PathMappings  []PathMapping `mapstructure:"path_mappings"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
	VerifyPaths   bool          `mapstructure:"verify_paths"`
	LockFile      string        `mapstructure:"lock_file"`
}

// PathMapping rewrites a source save path prefix for the target client
type PathMapping struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// ScheduleConfig contains cron settings for the serve command
type ScheduleConfig struct {
	Cron       string        `mapstructure:"cron"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	StartDelay time.Duration `mapstructure:"start_delay"`
}

// HistoryConfig locates the transfer history database
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// NotifyConfig selects the notification sink
type NotifyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Type       string `mapstructure:"type"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// ServerConfig controls the optional HTTP API
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
