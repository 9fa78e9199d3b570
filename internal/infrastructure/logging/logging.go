package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level     string
	Format    string // text or json
	File      string // rotated with lumberjack when set
	MaxSizeMB int
}

// New builds the process logger. The returned closer flushes the log file,
// if any.
func New(o Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(o.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	logger.SetLevel(level)

	switch o.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if o.File == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}
	lj := &lumberjack.Logger{
		Filename:  o.File,
		MaxSize:   o.MaxSizeMB,
		LocalTime: true,
	}
	logger.SetOutput(lj)
	return logger, lj, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
