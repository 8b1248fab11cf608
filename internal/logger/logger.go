// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the service logs.
type Options struct {
	Env   string // "development" switches to the human-readable console writer
	Level string
	File  string // optional rotating log file
}

// Init installs the global logger. It is called once from main before any
// other package logs.
func Init(opts Options) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if opts.Env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if opts.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// Named returns a child logger tagged with a component name.
func Named(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
