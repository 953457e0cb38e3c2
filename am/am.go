// Package am loads omekalink configuration.
//
// Values cascade from built-in defaults through system, user and project
// am.toml files to OMEKALINK_* environment variables. Command flags are
// applied on top by the cmd layer.
package am

// Config represents the omekalink configuration
type Config struct {
	Omeka     OmekaConfig            `mapstructure:"omeka" json:"omeka" toml:"omeka" yaml:"omeka"`
	Instances map[string]OmekaConfig `mapstructure:"instances" json:"instances,omitempty" toml:"instances,omitempty" yaml:"instances,omitempty"`
	Link      LinkConfig             `mapstructure:"link" json:"link" toml:"link" yaml:"link"`
	Media     MediaConfig            `mapstructure:"media" json:"media" toml:"media" yaml:"media"`
	Log       LogConfig              `mapstructure:"log" json:"log" toml:"log" yaml:"log"`
	Metrics   MetricsConfig          `mapstructure:"metrics" json:"metrics" toml:"metrics" yaml:"metrics"`
}

// OmekaConfig describes one Omeka S instance and how to talk to it
type OmekaConfig struct {
	APIURL            string  `mapstructure:"api_url" json:"api_url" toml:"api_url" yaml:"api_url"` // e.g. "https://example.org/api"
	KeyIdentity       string  `mapstructure:"key_identity" json:"key_identity" toml:"key_identity" yaml:"key_identity"`
	KeyCredential     string  `mapstructure:"key_credential" json:"key_credential" toml:"key_credential" yaml:"key_credential"`
	PerPage           int     `mapstructure:"per_page" json:"per_page" toml:"per_page" yaml:"per_page"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second" toml:"requests_per_second" yaml:"requests_per_second"` // 0 = unlimited
	BlockPrivateIP    bool    `mapstructure:"block_private_ip" json:"block_private_ip" toml:"block_private_ip" yaml:"block_private_ip"`
}

// LinkConfig configures the relation linking run
type LinkConfig struct {
	// Concurrent writers per page (1 = sequential)
	Workers int `mapstructure:"workers" json:"workers" toml:"workers" yaml:"workers"`
	// 0 = whole repository
	SourceItemSet int64 `mapstructure:"source_item_set" json:"source_item_set,omitempty" toml:"source_item_set,omitempty" yaml:"source_item_set,omitempty"`
	// Preset name = property term
	Properties map[string]string `mapstructure:"properties" json:"properties" toml:"properties" yaml:"properties"`
	// Preset name or property term = item set id
	Targets map[string]int64 `mapstructure:"targets" json:"targets,omitempty" toml:"targets,omitempty" yaml:"targets,omitempty"`
}

// MediaConfig configures the media dereference pipeline
type MediaConfig struct {
	ImageProperty string `mapstructure:"image_property" json:"image_property" toml:"image_property" yaml:"image_property"`
}

// LogConfig configures the run log file
type LogConfig struct {
	JSON       bool   `mapstructure:"json" json:"json" toml:"json" yaml:"json"`
	File       string `mapstructure:"file" json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"` // empty = no run log
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" toml:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig configures the Prometheus endpoint served during a run
type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr,omitempty" toml:"addr,omitempty" yaml:"addr,omitempty"` // empty = disabled
}

// Default values
const (
	DefaultPerPage           = 100
	DefaultTimeoutSeconds    = 30
	DefaultRequestsPerSecond = 0
	DefaultWorkers           = 1
	DefaultImageProperty     = "rcl:image"
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 5
	DefaultLogMaxAgeDays     = 30
)

// File permission constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0600 // Config files may hold API credentials
)

// DefaultProperties maps contributor presets to their property terms
func DefaultProperties() map[string]string {
	return map[string]string{
		"artists":       "rcl:artist",
		"authors":       "rcl:author",
		"composers":     "rcl:composer",
		"editors":       "rcl:editor",
		"essay_authors": "rcl:essayAuthor",
		"photographers": "rcl:photographer",
		"translators":   "rcl:translator",
	}
}

// Instance returns the named Omeka instance. The empty name and "default"
// refer to the primary [omeka] section.
func (c *Config) Instance(name string) (OmekaConfig, bool) {
	if name == "" || name == "default" {
		return c.Omeka, true
	}
	inst, ok := c.Instances[name]
	if !ok {
		return OmekaConfig{}, false
	}
	// Unset transport knobs inherit from the primary instance
	if inst.PerPage == 0 {
		inst.PerPage = c.Omeka.PerPage
	}
	if inst.TimeoutSeconds == 0 {
		inst.TimeoutSeconds = c.Omeka.TimeoutSeconds
	}
	if inst.RequestsPerSecond == 0 {
		inst.RequestsPerSecond = c.Omeka.RequestsPerSecond
	}
	return inst, true
}

// Redacted returns a copy with credentials masked, for display
func (c *Config) Redacted() Config {
	out := *c
	out.Omeka = redactOmeka(c.Omeka)
	if c.Instances != nil {
		out.Instances = make(map[string]OmekaConfig, len(c.Instances))
		for name, inst := range c.Instances {
			out.Instances[name] = redactOmeka(inst)
		}
	}
	return out
}

const redactedValue = "********"

func redactOmeka(o OmekaConfig) OmekaConfig {
	if o.KeyIdentity != "" {
		o.KeyIdentity = redactedValue
	}
	if o.KeyCredential != "" {
		o.KeyCredential = redactedValue
	}
	return o
}
