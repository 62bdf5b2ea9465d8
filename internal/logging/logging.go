package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and an optional rotated log file.
type Options struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	// Quiet drops console output when a file is configured.
	Quiet bool `yaml:"quiet"`
}

func DefaultOptions() Options {
	return Options{
		Level:      "info",
		MaxSizeMB:  64,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// New builds a logger writing to stderr and, when File is set, to a lumberjack-rotated file.
// The returned closer flushes and closes the file writer.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	var out io.Writer = os.Stderr
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		closer = lj
		if opts.Quiet {
			out = lj
		} else {
			out = io.MultiWriter(os.Stderr, lj)
		}
	}
	l.SetOutput(out)
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var (
	defaultMu  sync.RWMutex
	defaultLog = logrus.NewEntry(logrus.StandardLogger())
)

// Component returns an entry tagged with the component name, derived from the default logger.
func Component(name string) *logrus.Entry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLog.WithField("component", name)
}

// SetDefault replaces the logger Component derives from.
func SetDefault(l *logrus.Logger) {
	defaultMu.Lock()
	defaultLog = logrus.NewEntry(l)
	defaultMu.Unlock()
}
