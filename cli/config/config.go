package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Config represents a canlog.yaml configuration file.
// All values are optional and act as defaults for canlog convert flags.
// CLI flags always override config values.
type Config struct {
	Source  string `yaml:"source"`
	Format  string `yaml:"format"`
	Catalog string `yaml:"catalog"`
	// IDMask is an identifier mask such as "0x1FFFFFFF".
	IDMask        string   `yaml:"id_mask"`
	DecodeChoices *bool    `yaml:"decode_choices,omitempty"`
	Resample      Duration `yaml:"resample"`
	StaleTimeout  Duration `yaml:"stale_timeout"`
	RowLimit      int      `yaml:"row_limit"`
	Merge         *bool    `yaml:"merge,omitempty"`
	UnitRow       *bool    `yaml:"unit_row,omitempty"`
	IDColumn      *bool    `yaml:"id_column,omitempty"`
	OutputDir     string   `yaml:"output_dir"`
	Workers       int      `yaml:"workers"`

	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy"`
	Adapter AdapterConfig `yaml:"adapter"`
	Report  ReportConfig  `yaml:"report"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds policy defaults from the config file.
type PolicyConfig struct {
	Name          string `yaml:"name"`
	MaxBufferRows int    `yaml:"max_buffer_rows"`
	BestEffort    bool   `yaml:"best_effort"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel,omitempty"`
	// LatestTTL keeps the last redis event per source for this long.
	LatestTTL Duration          `yaml:"latest_ttl,omitempty"`
	Topic     string            `yaml:"topic,omitempty"`
	QoS       byte              `yaml:"qos,omitempty"`
	ClientID  string            `yaml:"client_id,omitempty"`
	Username  string            `yaml:"username,omitempty"`
	Password  string            `yaml:"password,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
}

// ReportConfig holds report output paths.
type ReportConfig struct {
	JSON string `yaml:"json"`
	PDF  string `yaml:"pdf"`
}

// LogConfig configures rotated file logging. Empty Dir logs to stderr only.
type LogConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ParseIDMask parses an identifier mask in decimal, 0x hex or 0o octal.
// Empty returns 0, meaning the default mask.
func ParseIDMask(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id_mask %q: %w", s, err)
	}
	if v == 0 {
		return 0, errors.New("id_mask must be non-zero")
	}
	return uint32(v), nil
}

// Validate checks enumerated values. Empty values are left to flag defaults.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("storage.backend %q: want fs or s3", c.Storage.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis", "mqtt":
	default:
		return fmt.Errorf("adapter.type %q: want webhook, redis or mqtt", c.Adapter.Type)
	}
	if c.Adapter.QoS > 1 {
		return fmt.Errorf("adapter.qos %d: want 0 or 1", c.Adapter.QoS)
	}
	if c.RowLimit < 0 {
		return fmt.Errorf("row_limit %d must not be negative", c.RowLimit)
	}
	if _, err := ParseIDMask(c.IDMask); err != nil {
		return err
	}
	return nil
}
