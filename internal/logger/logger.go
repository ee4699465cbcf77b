// Package logger builds the process-wide zerolog logger shared by the router
// and the agent workers.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger together with the sinks it owns.
type Logger struct {
	logger   zerolog.Logger
	closer   io.Closer
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string `mapstructure:"level" json:"level"`         // debug, info, warn, error
	File      string `mapstructure:"file" json:"file"`           // optional diagnostic log file
	Console   bool   `mapstructure:"console" json:"console"`     // write to stderr
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`       // human readable console output
	Redaction bool   `mapstructure:"redaction" json:"redaction"` // scrub credentials
	MaxSize   int    `mapstructure:"max_size" json:"max_size"`   // MB before rotation, 0 disables rotation
	MaxAge    int    `mapstructure:"max_age" json:"max_age"`     // days to keep rotated files
	Compress  bool   `mapstructure:"compress" json:"compress"`   // gzip rotated files
}

// Option customizes New.
type Option func(*options)

type options struct {
	console io.Writer
	secrets []string
}

// WithConsole replaces stderr as the console sink.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithSecrets registers literal values, typically API keys, that must never
// reach a log sink.
func WithSecrets(secrets ...string) Option {
	return func(o *options) { o.secrets = append(o.secrets, secrets...) }
}

// New creates a new logger
func New(cfg Config, opts ...Option) (*Logger, error) {
	o := options{console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Console {
		var consoleWriter io.Writer = o.console
		if cfg.Pretty {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        o.console,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, consoleWriter)
	}

	var closer io.Closer
	if cfg.File != "" {
		if cfg.MaxSize > 0 {
			rw, err := NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
			if err != nil {
				return nil, err
			}
			writers = append(writers, rw)
			closer = rw
		} else {
			if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			writers = append(writers, file)
			closer = file
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		for _, secret := range o.secrets {
			redactor.AddLiteral(secret)
		}
		writer = redactor.Wrap(writer)
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger

	return &Logger{
		logger:   logger,
		closer:   closer,
		redactor: redactor,
	}, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.logger.With().Str("component", name).Logger()
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   100,
		MaxAge:    7,
		Compress:  true,
	}
}
