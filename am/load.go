package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/omekalink/errors"
)

// EnvPrefix is the prefix for environment overrides (OMEKALINK_LINK_WORKERS=4)
const EnvPrefix = "OMEKALINK"

var globalConfig *Config
var viperInstance *viper.Viper

// ConfigSources records which file last set each flattened key during loading
var ConfigSources = map[string]SourceInfo{}

// LoadedFiles lists the config files merged during loading, lowest precedence first
var LoadedFiles []string

// Load reads the omekalink configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
// Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
	LoadedFiles = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := newEnvViper()

	// Merge configs in precedence order: system -> user -> project -> env vars
	homeDir, _ := os.UserHomeDir()
	mergeConfigFiles(v, configSearchPaths(homeDir, findProjectConfig()))

	viperInstance = v
	return v
}

// newEnvViper returns a Viper with defaults and environment overrides but no files
func newEnvViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer())
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)

	SetDefaults(v)
	return v
}

// LoadExplicit loads the file at path in place of the system, user and
// project search. Environment variables still override it. The result
// becomes the cached configuration seen by Load and GetConfigIntrospection.
func LoadExplicit(path string) (*Config, error) {
	Reset()
	v := newEnvViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", path)
	}

	LoadedFiles = []string{path}
	for _, key := range v.AllKeys() {
		if v.InConfig(key) {
			ConfigSources[key] = SourceInfo{Source: SourceProject, Path: path}
		}
	}
	viperInstance = v
	globalConfig = config
	return config, nil
}

// envKeyReplacer maps "link.workers" to OMEKALINK_LINK_WORKERS
func envKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// configSearchPath pairs a candidate config file with its source kind
type configSearchPath struct {
	path   string
	source ConfigSource
}

// configSearchPaths returns candidate config files, lowest precedence first
func configSearchPaths(homeDir, projectConfig string) []configSearchPath {
	paths := []configSearchPath{
		{path: "/etc/omekalink/am.toml", source: SourceSystem},
	}
	if homeDir != "" {
		paths = append(paths, configSearchPath{
			path:   filepath.Join(homeDir, ".omekalink", "am.toml"),
			source: SourceUser,
		})
	}
	if projectConfig != "" {
		paths = append(paths, configSearchPath{path: projectConfig, source: SourceProject})
	}
	return paths
}

// findProjectConfig searches for am.toml by walking up the directory tree.
// Returns the path to the first file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles merges the existing files among paths into v.
// Later paths take precedence; environment variables still win over all files.
func mergeConfigFiles(v *viper.Viper, paths []configSearchPath) {
	for _, candidate := range paths {
		if _, err := os.Stat(candidate.path); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(candidate.path)
		tempViper.SetConfigType("toml")
		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}

		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
		LoadedFiles = append(LoadedFiles, candidate.path)
		for _, key := range tempViper.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: candidate.source, Path: candidate.path}
		}
	}
}
