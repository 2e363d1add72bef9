// Package feedback carries progress, warnings and cooperative
// cancellation between the conversion engine and its caller.
package feedback

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Feedback is polled by the import and export loops between records.
// Warnings are non-fatal; fatal conditions are returned as errors by
// the operation itself.
type Feedback interface {
	SetProgress(pct float64)
	IsCanceled() bool
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type logFeedback struct {
	canceled func() bool
}

// New returns a Feedback that logs through zerolog and reports
// cancellation via the supplied poll function (nil means never).
func New(canceled func() bool) Feedback {
	return &logFeedback{canceled: canceled}
}

func (f *logFeedback) SetProgress(pct float64) {
	log.Debug().Float64("pct", pct).Msg("progress")
}

func (f *logFeedback) IsCanceled() bool {
	return f.canceled != nil && f.canceled()
}

func (f *logFeedback) Info(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func (f *logFeedback) Warn(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

// Discard is a no-op Feedback for tests and embedding callers.
type Discard struct{}

func (Discard) SetProgress(float64)    {}
func (Discard) IsCanceled() bool       { return false }
func (Discard) Info(string, ...any)    {}
func (Discard) Warn(string, ...any)    {}

// Logger is the CLI logging options block, embedded into go-flags
// option structs.
type Logger struct {
	Level  string `long:"log-level" env:"LOG_LEVEL" description:"Logging level" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Logging format" default:"text" choice:"text" choice:"json"`
}

// Setup configures the global zerolog logger.
func (l *Logger) Setup() {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if l.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
