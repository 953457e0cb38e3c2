package am

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/omekalink/am.toml
	SourceUser        ConfigSource = "user"        // ~/.omekalink/am.toml
	SourceProject     ConfigSource = "project"     // project am.toml
	SourceEnvironment ConfigSource = "environment" // OMEKALINK_* / OMEKA_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// ConfigIntrospection provides metadata about the active configuration
type ConfigIntrospection struct {
	Files    []string      `json:"files"`
	Settings []SettingInfo `json:"settings"`
}

// sensitiveEnv lists the unprefixed env names bound by BindSensitiveEnvVars
var sensitiveEnv = map[string]string{
	"omeka.api_url":        "OMEKA_API_URL",
	"omeka.key_identity":   "OMEKA_KEY_IDENTITY",
	"omeka.key_credential": "OMEKA_KEY_CREDENTIAL",
}

// GetConfigIntrospection returns every effective setting with the source that set it.
// Credential values are redacted.
func GetConfigIntrospection() *ConfigIntrospection {
	return introspect(GetViper(), ConfigSources, LoadedFiles)
}

func introspect(v *viper.Viper, sources map[string]SourceInfo, files []string) *ConfigIntrospection {
	result := &ConfigIntrospection{
		Files:    append([]string(nil), files...),
		Settings: make([]SettingInfo, 0),
	}
	flattenSettingsWithSources(v.AllSettings(), "", result, sources)
	return result
}

// flattenSettingsWithSources flattens settings and assigns sources from sourceMap
func flattenSettingsWithSources(settings map[string]interface{}, prefix string, result *ConfigIntrospection, sourceMap map[string]SourceInfo) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nested, fullKey, result, sourceMap)
			continue
		}

		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			info = si
		}
		if envKey, ok := envOverride(fullKey); ok {
			info = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		if isSecretKey(fullKey) && value != "" {
			value = redactedValue
		}

		result.Settings = append(result.Settings, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
}

// envOverride reports the environment variable overriding key, if any is set
func envOverride(key string) (string, bool) {
	envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if os.Getenv(envKey) != "" {
		return envKey, true
	}
	if alt, ok := sensitiveEnv[key]; ok && os.Getenv(alt) != "" {
		return alt, true
	}
	return "", false
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "key_identity") || strings.HasSuffix(key, "key_credential")
}
