package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rs/zerolog"
	"io"
	"os"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// memDBLogger implements the ILogger interface on top of a zerolog logger.
// The dragonboat level decides what is logged, zerolog only formats.
type memDBLogger struct {
	level  logger.LogLevel
	logger zerolog.Logger
}

func (l *memDBLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *memDBLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.logger.Debug().Msgf(format, args...)
	}
}

func (l *memDBLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.logger.Info().Msgf(format, args...)
	}
}

func (l *memDBLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.logger.Warn().Msgf(format, args...)
	}
}

func (l *memDBLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.logger.Error().Msgf(format, args...)
	}
}

func (l *memDBLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Error().Msg(msg)
	panic(msg)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput is the writer used by all loggers created by CreateLogger
var logOutput io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}

// CreateLogger implements the dragonboat logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return newLogger(pkgName, logOutput)
}

func newLogger(pkgName string, out io.Writer) *memDBLogger {
	return &memDBLogger{
		level: logger.INFO,
		logger: zerolog.New(out).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Str("component", pkgName).
			Logger(),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// loggerNames lists all loggers of the application
var loggerNames = []string{
	"lstore",
	"rpc",
	"server",
	"client",
	"transport",
	"transport/http",
	"transport/grpc",
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the zerolog backed logger factory and sets the level of all loggers
func InitLoggers(logLevel string) error {
	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
