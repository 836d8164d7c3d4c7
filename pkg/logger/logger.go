package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp written at the start of every line.
const TimeFormat = "2006-01-02 15:04:05.000 -07:00"

var (
	log     zerolog.Logger
	logFile *os.File
)

func init() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	log = New(os.Stdout, zerolog.InfoLevel)
}

// New builds a line-oriented logger: timestamp, [LEVEL], message, then key=value fields.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:         w,
		NoColor:     true,
		TimeFormat:  TimeFormat,
		FormatLevel: formatLevel,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func formatLevel(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return "[CRITICAL]"
	case "":
		return "[INFO]"
	default:
		return "[" + strings.ToUpper(s) + "]"
	}
}

// ParseLevel maps a flag value onto a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// InitLogger writes to stdout and, when filename is set, appends to that file as well.
func InitLogger(filename string, level zerolog.Level) error {
	var w io.Writer = os.Stdout
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", filename, err)
		}
		logFile = f
		w = io.MultiWriter(os.Stdout, zerolog.SyncWriter(f))
	}
	log = New(w, level)
	return nil
}

// SetOutput replaces the log destination, keeping info level.
func SetOutput(w io.Writer) {
	log = New(w, zerolog.InfoLevel)
}

// WithRun tags every subsequent line with the run identifier.
func WithRun(id string) {
	log = log.With().Str("run", id).Logger()
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Debugf(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

func Infof(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

// Criticalf logs at CRITICAL without exiting; the caller owns the exit code.
func Criticalf(format string, v ...interface{}) {
	log.WithLevel(zerolog.FatalLevel).Msgf(format, v...)
}
