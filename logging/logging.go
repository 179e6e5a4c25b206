// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/rtpbridge/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup applies cfg to the standard logrus logger. Output always goes to
// stderr and, when enabled, to a rotated file. The returned Closer flushes
// and closes the file output.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	return setup(logrus.StandardLogger(), cfg, os.Stderr)
}

func setup(logger *logrus.Logger, cfg config.LogConfig, stderr io.Writer) (io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var formatter logrus.Formatter
	switch cfg.Format {
	case "json":
		formatter = &logrus.JSONFormatter{}
	case "text", "":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	writers := []io.Writer{stderr}
	var closer io.Closer = nopCloser{}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file output requires 'path' field")
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	logger.SetLevel(level)
	logger.SetFormatter(formatter)
	logger.SetOutput(io.MultiWriter(writers...))

	return closer, nil
}
