package logger

import "go.uber.org/zap/zapcore"

// -v flag counts
const (
	VerbosityUser  = 0 // summary, warnings and errors
	VerbosityInfo  = 1 // + one line per page and per write
	VerbosityDebug = 2 // + request URLs and skipped relation entries
)

type verbosityLevel struct {
	level zapcore.Level
	name  string
}

// Indexed by clamped verbosity
var verbosityLevels = [...]verbosityLevel{
	VerbosityUser:  {zapcore.WarnLevel, "warn"},
	VerbosityInfo:  {zapcore.InfoLevel, "info (-v)"},
	VerbosityDebug: {zapcore.DebugLevel, "debug (-vv)"},
}

func lookupVerbosity(verbosity int) verbosityLevel {
	switch {
	case verbosity < VerbosityUser:
		verbosity = VerbosityUser
	case verbosity > VerbosityDebug:
		verbosity = VerbosityDebug
	}
	return verbosityLevels[verbosity]
}

// VerbosityToLevel maps a -v count to the console log level.
// Counts past -vv stay at debug.
func VerbosityToLevel(verbosity int) zapcore.Level {
	return lookupVerbosity(verbosity).level
}

// LevelName names the console level for a -v count
func LevelName(verbosity int) string {
	return lookupVerbosity(verbosity).name
}
