// Package logging builds the structured logger used by the latencytracker
// command, writing either JSON lines (via stumpy), or logrus text.
package logging

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/ilogrus"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/sirupsen/logrus"
)

const (
	FormatJSON = `json`
	FormatText = `text`
)

// Config models the logging configuration, see also internal/cli.
type Config struct {
	// Format is one of FormatJSON or FormatText. Defaults to FormatJSON.
	Format string `mapstructure:"format"`
	// Level is a logiface level name (e.g. info, debug, err), or one of the
	// common aliases, warn and error. Defaults to info.
	Level string `mapstructure:"level"`
}

var ErrUnknownFormat = errors.New(`logging: unknown format`)

// New initializes a logger writing to w, per cfg.
func New(cfg Config, w io.Writer) (*logiface.Logger[logiface.Event], error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Format) {
	case ``, FormatJSON:
		return stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		).Logger(), nil

	case FormatText:
		logger := logrus.New()
		logger.Out = w
		logger.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
		logger.Level = logrus.TraceLevel
		return ilogrus.L.New(
			ilogrus.L.WithLogrus(logger),
			ilogrus.L.WithLevel(level),
		).Logger(), nil

	default:
		return nil, fmt.Errorf(`%w: %q`, ErrUnknownFormat, cfg.Format)
	}
}

// ParseLevel parses the name of a logiface.Level. The empty string is
// treated as info.
func ParseLevel(s string) (logiface.Level, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case ``:
		return logiface.LevelInformational, nil
	case `warn`:
		return logiface.LevelWarning, nil
	case `error`:
		return logiface.LevelError, nil
	}
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf(`logging: unknown level: %q`, s)
}
