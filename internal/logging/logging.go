// Package logging builds the application logger and bridges gorm onto it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"github.com/suzukibelltree/SampleToDoApp/internal/config"
)

// New creates a logrus logger from cfg. The returned closer releases the
// rotated log file, if any.
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotated))
		closer = rotated
	}
	return log, closer, nil
}

// Component returns an entry tagged with the component name.
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	if log == nil {
		return Discard().WithField("component", name)
	}
	return log.WithField("component", name)
}

// Discard returns a logger that drops everything. Tests and optional
// dependencies use it in place of a nil logger.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Gorm adapts log to gorm's SQL logger at the given level name.
func Gorm(log *logrus.Logger, level string) gormlogger.Interface {
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  GormLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// GormLevel maps a level name onto gorm's log levels; unknown names are silent.
func GormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return gormlogger.Info
	case "warn", "warning":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
