package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/nocsi/drip-api-sub008/pkg/models"
	"github.com/spf13/viper"
)

// Config represents the mdguard configuration
type Config struct {
	// Pipeline settings
	Mode         string         `mapstructure:"mode"`          // sanitize, detect, analyze
	Options      models.Options `mapstructure:"options"`       // per-scan options
	MaxSize      string         `mapstructure:"max_size"`      // maximum content size for a single scan
	PatternsPath string         `mapstructure:"patterns_path"` // YAML file with custom signatures
	PolicyPath   string         `mapstructure:"policy_path"`   // TOML sanitize policy override

	Stream StreamConfig `mapstructure:"stream"`
	Jobs   JobsConfig   `mapstructure:"jobs"`
	Report ReportConfig `mapstructure:"report"`
	Server ServerConfig `mapstructure:"server"`
	Walk   WalkConfig   `mapstructure:"walk"`

	// AI settings
	AI AIConfig `mapstructure:"ai"` // AI triage configuration
}

// StreamConfig bounds streaming sessions
type StreamConfig struct {
	MaxChunkSize  string `mapstructure:"max_chunk_size"` // per chunk limit
	MaxTotalSize  string `mapstructure:"max_total_size"` // per session limit
	IdleTimeout   int    `mapstructure:"idle_timeout"`   // seconds without a chunk before the session expires
	Alerts        bool   `mapstructure:"alerts"`         // emit real_time_alert messages
	AlertSeverity string `mapstructure:"alert_severity"` // minimum severity for alerts
	ChunkSize     string `mapstructure:"chunk_size"`     // chunk size used by the stream command
}

// JobsConfig configures the async job queue
type JobsConfig struct {
	Workers        int    `mapstructure:"workers"`
	QueueSize      int    `mapstructure:"queue_size"`
	Timeout        int    `mapstructure:"timeout"`         // seconds per job
	Retention      int    `mapstructure:"retention"`       // seconds a finished job stays queryable
	WebhookURL     string `mapstructure:"webhook_url"`     // default completion webhook
	WebhookTimeout int    `mapstructure:"webhook_timeout"` // seconds per webhook request
	WebhookRetries int    `mapstructure:"webhook_retries"`
}

// ReportConfig selects the report output
type ReportConfig struct {
	Format      string `mapstructure:"format"`       // json, html, sarif, md, txt; empty prints to console
	OutputFile  string `mapstructure:"output_file"`  // output file path
	MinSeverity string `mapstructure:"min_severity"` // hide threats below this severity
}

// ServerConfig configures the MCP server
type ServerConfig struct {
	Transport string `mapstructure:"transport"` // stdio or http
	Addr      string `mapstructure:"addr"`      // listen address for http
	Path      string `mapstructure:"path"`      // endpoint path for http
}

// WalkConfig controls batch directory scans
type WalkConfig struct {
	Extensions  []string `mapstructure:"extensions"`    // file extensions to scan
	Exclude     []string `mapstructure:"exclude"`       // directories to exclude
	MaxFileSize string   `mapstructure:"max_file_size"` // larger files are skipped
	Workers     int      `mapstructure:"workers"`       // number of worker goroutines
	ScanHidden  bool     `mapstructure:"scan_hidden"`   // include dot files
}

// AIConfig holds AI triage configuration
type AIConfig struct {
	Enabled    bool   `mapstructure:"ai_enabled"`     // Enable AI triage in analyze mode
	Model      string `mapstructure:"ai_model"`       // Model: haiku, sonnet, opus
	APIToken   string `mapstructure:"ai_token"`       // Anthropic API token
	MaxThreats int    `mapstructure:"ai_max_threats"` // Cost control limit
	Timeout    int    `mapstructure:"ai_timeout"`     // Seconds per request
	Language   string `mapstructure:"ai_language"`    // Explanation language: en, ru, es
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("mode", string(models.ModeDetect))
	v.SetDefault("options.strict_mode", false)
	v.SetDefault("options.include_polyglot", false)
	v.SetDefault("options.threat_level", string(models.SeverityMedium))
	v.SetDefault("options.ai_optimization", true)
	v.SetDefault("max_size", "10M")
	v.SetDefault("patterns_path", "")
	v.SetDefault("policy_path", "")

	v.SetDefault("stream.max_chunk_size", "64K")
	v.SetDefault("stream.max_total_size", "100M")
	v.SetDefault("stream.idle_timeout", 30)
	v.SetDefault("stream.alerts", true)
	v.SetDefault("stream.alert_severity", string(models.SeverityHigh))
	v.SetDefault("stream.chunk_size", "4K")

	v.SetDefault("jobs.workers", runtime.NumCPU())
	v.SetDefault("jobs.queue_size", 128)
	v.SetDefault("jobs.timeout", 60)
	v.SetDefault("jobs.retention", 3600)
	v.SetDefault("jobs.webhook_url", "")
	v.SetDefault("jobs.webhook_timeout", 10)
	v.SetDefault("jobs.webhook_retries", 3)

	v.SetDefault("report.format", "")
	v.SetDefault("report.output_file", "")
	v.SetDefault("report.min_severity", "")

	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.path", "/mcp")

	v.SetDefault("walk.extensions", []string{"md", "markdown", "mdx", "mdown", "mkd"})
	v.SetDefault("walk.exclude", []string{".git", "node_modules", "vendor", ".svn", ".hg"})
	v.SetDefault("walk.max_file_size", "10M")
	v.SetDefault("walk.workers", runtime.NumCPU()*2)
	v.SetDefault("walk.scan_hidden", false)

	// AI defaults
	v.SetDefault("ai.ai_enabled", false)
	v.SetDefault("ai.ai_model", "sonnet")
	v.SetDefault("ai.ai_token", "")
	v.SetDefault("ai.ai_max_threats", 50)
	v.SetDefault("ai.ai_timeout", 30)
	v.SetDefault("ai.ai_language", "en")

	// Read environment variables, e.g. MDGUARD_STREAM_IDLE_TIMEOUT
	v.SetEnvPrefix("MDGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PipelineMode returns the validated pipeline mode
func (c *Config) PipelineMode() (models.Mode, error) {
	return models.ParseMode(c.Mode)
}

// Validate checks values that would otherwise fail deep inside a scan
func (c *Config) Validate() error {
	if _, err := c.PipelineMode(); err != nil {
		return err
	}
	if _, ok := models.ParseSeverity(string(c.Options.ThreatLevel)); !ok {
		return fmt.Errorf("invalid threat level: %q", c.Options.ThreatLevel)
	}
	if _, ok := models.ParseSeverity(c.Stream.AlertSeverity); !ok {
		return fmt.Errorf("invalid alert severity: %q", c.Stream.AlertSeverity)
	}
	if c.Report.MinSeverity != "" {
		if _, ok := models.ParseSeverity(c.Report.MinSeverity); !ok {
			return fmt.Errorf("invalid report min severity: %q", c.Report.MinSeverity)
		}
	}
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid server transport: %q (must be stdio or http)", c.Server.Transport)
	}
	if c.Jobs.Workers < 1 || c.Walk.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// ShouldScanFile determines if a file should be scanned based on extension
func (c *Config) ShouldScanFile(extension string) bool {
	extension = strings.ToLower(extension)
	if len(c.Walk.Extensions) > 0 {
		for _, ext := range c.Walk.Extensions {
			if strings.ToLower(ext) == extension {
				return true
			}
		}
		return false
	}
	return isMarkdownExtension(extension)
}

// isMarkdownExtension checks the built-in markdown extensions
func isMarkdownExtension(ext string) bool {
	markdown := []string{"md", "markdown", "mdx", "mdown", "mkd", "mkdn"}
	for _, e := range markdown {
		if e == ext {
			return true
		}
	}
	return false
}
