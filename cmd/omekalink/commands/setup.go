package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/omekalink/am"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/internal/util"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/omeka"
)

// Root persistent flag names
const (
	FlagConfig  = "config"
	FlagJSON    = "json"
	FlagVerbose = "verbose"
	FlagNoColor = "no-color"
)

// AddGlobalFlags registers the persistent flags every command reads
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().CountP(FlagVerbose, "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	root.PersistentFlags().Bool(FlagJSON, false, "Print results as JSON")
	root.PersistentFlags().String(FlagConfig, "", "Read configuration from this file instead of the am.toml search path")
	root.PersistentFlags().Bool(FlagNoColor, false, "Disable colored output")
}

// loadConfig returns the validated configuration for cmd
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString(FlagConfig)

	var (
		cfg *am.Config
		err error
	)
	if path != "" {
		cfg, err = am.LoadExplicit(path)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// InitLogging configures the global logger from flags and the [log] section.
// A configuration that cannot be loaded still yields a console logger so the
// command can report why.
func InitLogging(cmd *cobra.Command) error {
	verbosity, _ := cmd.Root().PersistentFlags().GetCount(FlagVerbose)
	jsonOut, _ := cmd.Root().PersistentFlags().GetBool(FlagJSON)
	noColor, _ := cmd.Root().PersistentFlags().GetBool(FlagNoColor)

	opts := logger.Options{
		Verbosity: verbosity,
		NoColor:   noColor,
		Console:   cmd.ErrOrStderr(),
	}

	if cfg, err := loadConfig(cmd); err == nil {
		opts.JSON = cfg.Log.JSON
		opts.File = cfg.Log.File
		opts.MaxSizeMB = cfg.Log.MaxSizeMB
		opts.MaxBackups = cfg.Log.MaxBackups
		opts.MaxAgeDays = cfg.Log.MaxAgeDays
	}
	// JSON results on stdout pair with JSON logs on stderr
	if jsonOut {
		opts.JSON = true
	}
	if os.Getenv("NO_COLOR") != "" {
		opts.NoColor = true
	}

	if err := logger.Initialize(opts); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// newRemote builds a client for the named instance ("" = primary)
func newRemote(cfg *am.Config, instance string, log *zap.SugaredLogger) (*omeka.Client, error) {
	inst, ok := cfg.Instance(instance)
	if !ok {
		return nil, errors.WithHintf(
			errors.Newf("unknown instance %q", instance),
			"define [instances.%s] in am.toml", instance,
		)
	}
	client, err := omeka.NewClientFromConfig(inst, log)
	if err != nil {
		if instance != "" {
			return nil, errors.Wrapf(err, "instance %s", instance)
		}
		return nil, err
	}
	return client, nil
}

// sourceItemSet returns the --source flag, falling back to the configured
// default. 0 means the whole repository.
func sourceItemSet(cmd *cobra.Command, configured int64) *int64 {
	id := configured
	if cmd.Flags().Changed("source") {
		id, _ = cmd.Flags().GetInt64("source")
	}
	return util.OptionalID(id)
}
