package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool

	// fileSink is the rotating run log, closed by Cleanup
	fileSink *lumberjack.Logger
)

func init() {
	// Safe no-op logger until Initialize is called
	Logger = zap.NewNop().Sugar()
}

// Options controls how Initialize builds the global logger.
type Options struct {
	JSON      bool // JSON structured console output instead of the minimal encoder
	Verbosity int  // -v count, see VerbosityToLevel
	NoColor   bool // Disable ANSI colors in console output

	// Run log file. Empty File disables the file sink.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console destination, defaults to stderr
	Console io.Writer
}

// Initialize sets up the global logger.
//
// Console output honours the verbosity level. The run log file, when
// configured, always records at info level or below so a quiet terminal
// still leaves a complete record of every write the run performed.
func Initialize(opts Options) error {
	JSONOutput = opts.JSON

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleLevel := VerbosityToLevel(opts.Verbosity)

	var consoleEncoder zapcore.Encoder
	if opts.JSON {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		consoleEncoder = newMinimalEncoder(!opts.NoColor)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(console), consoleLevel),
	}

	if opts.File != "" {
		closeFileSink()
		fileSink = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		fileLevel := zapcore.InfoLevel
		if consoleLevel < fileLevel {
			fileLevel = consoleLevel
		}
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileConfig),
			zapcore.AddSync(fileSink),
			fileLevel,
		))
	}

	Logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	Logger.Debugw("Logger initialized", "console_level", LevelName(opts.Verbosity), "run_log", opts.File)
	return nil
}

// Cleanup flushes any buffered log entries and closes the run log file
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	closeFileSink()
}

func closeFileSink() {
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
