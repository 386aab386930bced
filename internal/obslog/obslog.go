// Package obslog wraps logrus construction so call sites never import
// logrus directly: a formatter, optional color, and optional file rotation
// via lumberjack, matching the teacher's logging generation built on
// logrus and gopkg.in/natefinch/lumberjack.v2.
package obslog

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger constructed by New.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// New builds a *logrus.Logger from cfg. An empty cfg.File logs to stdout
// (colorized when the stream is a terminal); a non-empty cfg.File logs to
// a lumberjack-rotated file, in addition to stdout.
func New(cfg Config) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		ForceFormatting: true,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var out io.Writer
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = colorable.NewColorableStdout()
	} else {
		out = os.Stdout
	}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(out, rotated)
	}
	l.SetOutput(out)

	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ForNode returns a field-scoped entry carrying a node's Uri and the
// owning task's id, matching §7's "log with URI" policy.
func ForNode(l *logrus.Logger, taskID, uri string) *logrus.Entry {
	return l.WithFields(logrus.Fields{"task_id": taskID, "uri": uri})
}
