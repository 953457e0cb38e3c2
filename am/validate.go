package am

import (
	"net/url"
	"sort"
	"strings"

	"github.com/teranos/omekalink/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Omeka.validate("omeka", false); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Instances))
	for name := range c.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "default" {
			return errors.New("instances.default is reserved for the [omeka] section")
		}
		if err := c.Instances[name].validate("instances."+name, true); err != nil {
			return err
		}
	}

	// Link workers: 0 = default (sequential), negative = invalid
	if c.Link.Workers < 0 {
		return errors.Newf("link.workers must be >= 0, got %d", c.Link.Workers)
	}
	if c.Link.SourceItemSet < 0 {
		return errors.Newf("link.source_item_set must be >= 0, got %d", c.Link.SourceItemSet)
	}
	for name, term := range c.Link.Properties {
		if !strings.Contains(term, ":") {
			return errors.Newf("link.properties.%s must be a prefixed property term like rcl:artist, got %q", name, term)
		}
	}
	for name, id := range c.Link.Targets {
		if id <= 0 {
			return errors.Newf("link.targets.%s must be a positive item set id, got %d", name, id)
		}
	}

	if c.Media.ImageProperty != "" && !strings.Contains(c.Media.ImageProperty, ":") {
		return errors.Newf("media.image_property must be a prefixed property term, got %q", c.Media.ImageProperty)
	}

	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation settings must be >= 0")
	}

	return nil
}

func (o OmekaConfig) validate(section string, requireURL bool) error {
	if o.APIURL == "" {
		if requireURL {
			return errors.Newf("%s.api_url is required", section)
		}
	} else {
		u, err := url.Parse(o.APIURL)
		if err != nil {
			return errors.Wrapf(err, "%s.api_url is not a valid URL", section)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf("%s.api_url must use http or https, got %q", section, u.Scheme)
		}
		if u.Host == "" {
			return errors.Newf("%s.api_url has no host", section)
		}
	}

	// Page size: 0 = default, negative = invalid
	if o.PerPage < 0 {
		return errors.Newf("%s.per_page must be >= 0, got %d", section, o.PerPage)
	}
	if o.TimeoutSeconds < 0 {
		return errors.Newf("%s.timeout_seconds must be >= 0, got %d", section, o.TimeoutSeconds)
	}
	// Rate limit: 0 = unlimited, negative = invalid
	if o.RequestsPerSecond < 0 {
		return errors.Newf("%s.requests_per_second must be >= 0, got %g", section, o.RequestsPerSecond)
	}
	return nil
}

// RequireAPI checks that the instance can be contacted
func (o OmekaConfig) RequireAPI() error {
	if o.APIURL == "" {
		return errors.WithHint(
			errors.New("omeka api_url is not configured"),
			"set omeka.api_url in am.toml or export OMEKA_API_URL",
		)
	}
	return nil
}
