// Package logger configures the process-wide logrus logger: level, format,
// and output (stdout, a rotated file, or both).
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors the log settings from config.Config.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
	Output string // stdout, file, both
	Path   string // log file path when Output is file or both
}

// New builds a configured logger. Unknown settings fall back to sane
// defaults rather than erroring; logging must never block startup.
func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch opts.Output {
	case "file":
		log.SetOutput(rotatedFile(opts.Path))
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, rotatedFile(opts.Path)))
	default:
		log.SetOutput(os.Stdout)
	}
	return log
}

func rotatedFile(path string) io.Writer {
	if path == "" {
		path = "./logs/engine.log"
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}
}
