package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/omekalink/am"
	"github.com/teranos/omekalink/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Inspect omekalink configuration",
	Long: `am: inspect omekalink configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (OMEKALINK_* prefix; OMEKA_API_URL, OMEKA_KEY_IDENTITY
   and OMEKA_KEY_CREDENTIAL are also read)
3. Project config (./am.toml, searched up the directory tree)
4. User config (~/.omekalink/am.toml)
5. System config (/etc/omekalink/am.toml)
6. Default values

--config FILE replaces 3-5 with FILE.

Examples:
  omekalink am show                    # Show current configuration
  omekalink am show --format json      # Show configuration in JSON format
  omekalink am validate                # Validate current configuration
  omekalink am where                   # Show where each setting comes from`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration with credentials masked",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long: `Validate the effective configuration and report keys in loaded files that
omekalink does not recognise.`,
	RunE: runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade, the files that were merged and the source
of every effective setting.`,
	RunE: runAmWhere,
}

func init() {
	amShowCmd.Flags().String("format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	redacted := cfg.Redacted()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(redacted)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# omekalink configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(redacted)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# omekalink configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var unknownTotal int
	for _, path := range am.LoadedFiles {
		unknown, err := am.CheckFile(path)
		if err != nil {
			return err
		}
		for _, key := range unknown {
			fmt.Fprintf(out, "%s: unknown key %s\n", path, key)
		}
		unknownTotal += len(unknown)
	}
	if unknownTotal > 0 {
		return errors.WithHint(errors.Newf("%d unknown configuration keys", unknownTotal),
			"unknown keys are ignored; check them for typos")
	}

	fmt.Fprintln(out, "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	intro := am.GetConfigIntrospection()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(out, "  2. [SYSTEM]   /etc/omekalink/am.toml")
	fmt.Fprintln(out, "  3. [USER]     ~/.omekalink/am.toml")
	fmt.Fprintln(out, "  4. [PROJECT]  ./am.toml (searches up directories) or --config")
	fmt.Fprintln(out, "  5. [ENV]      OMEKALINK_* and OMEKA_* environment variables")
	fmt.Fprintln(out)

	if len(intro.Files) == 0 {
		fmt.Fprintln(out, "No configuration files found")
	} else {
		fmt.Fprintln(out, "Files merged:")
		for _, f := range intro.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}

	sourceOrder := []am.ConfigSource{
		am.SourceDefault,
		am.SourceSystem,
		am.SourceUser,
		am.SourceProject,
		am.SourceEnvironment,
	}

	bySource := make(map[am.ConfigSource][]am.SettingInfo)
	for _, setting := range intro.Settings {
		bySource[setting.Source] = append(bySource[setting.Source], setting)
	}

	for _, source := range sourceOrder {
		settings := bySource[source]
		if len(settings) == 0 {
			continue
		}
		sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })

		fmt.Fprintf(out, "\n%s: %d settings\n", source, len(settings))
		for _, setting := range settings {
			valueStr := fmt.Sprintf("%v", setting.Value)
			if len(valueStr) > 50 {
				valueStr = valueStr[:47] + "..."
			}
			if setting.SourcePath != "" {
				fmt.Fprintf(out, "  %s = %s  (%s)\n", setting.Key, valueStr, setting.SourcePath)
			} else {
				fmt.Fprintf(out, "  %s = %s\n", setting.Key, valueStr)
			}
		}
	}
	return nil
}
