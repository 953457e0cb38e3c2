package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all omekalink settings
func SetDefaults(v *viper.Viper) {
	// Omeka S transport
	v.SetDefault("omeka.per_page", DefaultPerPage)
	v.SetDefault("omeka.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("omeka.requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("omeka.block_private_ip", false)

	// Link run
	v.SetDefault("link.workers", DefaultWorkers)
	v.SetDefault("link.source_item_set", 0)
	v.SetDefault("link.properties", DefaultProperties())

	// Media dereference
	v.SetDefault("media.image_property", DefaultImageProperty)

	// Run log
	v.SetDefault("log.json", false)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAgeDays)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// The unprefixed OMEKA_* names match what the importer scripts have always read.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("omeka.api_url", "OMEKALINK_OMEKA_API_URL", "OMEKA_API_URL")
	v.BindEnv("omeka.key_identity", "OMEKALINK_OMEKA_KEY_IDENTITY", "OMEKA_KEY_IDENTITY")
	v.BindEnv("omeka.key_credential", "OMEKALINK_OMEKA_KEY_CREDENTIAL", "OMEKA_KEY_CREDENTIAL")
}

// GetPerPage returns the page size, falling back to DefaultPerPage
func (o OmekaConfig) GetPerPage() int {
	if o.PerPage <= 0 {
		return DefaultPerPage
	}
	return o.PerPage
}

// GetTimeoutSeconds returns the request timeout, falling back to DefaultTimeoutSeconds
func (o OmekaConfig) GetTimeoutSeconds() int {
	if o.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return o.TimeoutSeconds
}

// GetWorkers returns the writer concurrency, at least 1
func (l LinkConfig) GetWorkers() int {
	if l.Workers < 1 {
		return DefaultWorkers
	}
	return l.Workers
}

// GetProperties returns the preset table with defaults filled in for missing presets
func (l LinkConfig) GetProperties() map[string]string {
	props := DefaultProperties()
	for name, term := range l.Properties {
		if term != "" {
			props[name] = term
		}
	}
	return props
}

// GetImageProperty returns the property holding the referenced image item
func (m MediaConfig) GetImageProperty() string {
	if m.ImageProperty == "" {
		return DefaultImageProperty
	}
	return m.ImageProperty
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Omeka: %s, Instances: %d, Link: {Workers: %d, Targets: %d}}",
		c.Omeka.APIURL, len(c.Instances), c.Link.GetWorkers(), len(c.Link.Targets))
}
