package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a wrapper around logrus.Logger
type Logger struct {
	*logrus.Logger
}

// FileOptions configures optional rotating log file output
type FileOptions struct {
	Path       string // Path to the log file
	MaxSizeMB  int    // Maximum size in megabytes before rotation
	MaxBackups int    // Maximum number of rotated files to keep
	MaxAgeDays int    // Maximum age in days before a rotated file is deleted
}

// New creates a new logger writing to stdout
func New() *Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	log.SetLevel(logrus.InfoLevel)

	return &Logger{Logger: log}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level string) {
	switch level {
	case "debug":
		l.Logger.SetLevel(logrus.DebugLevel)
	case "info":
		l.Logger.SetLevel(logrus.InfoLevel)
	case "warn":
		l.Logger.SetLevel(logrus.WarnLevel)
	case "error":
		l.Logger.SetLevel(logrus.ErrorLevel)
	default:
		l.Logger.SetLevel(logrus.InfoLevel)
	}
}

// EnableFile mirrors log output to a rotating file in addition to stdout
func (l *Logger) EnableFile(opts FileOptions) {
	if opts.Path == "" {
		return
	}

	// Apply rotation defaults
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}

	rotated := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	l.Logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
}

// WithField returns an entry carrying a single structured field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns an entry carrying structured fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}
