// Package logging builds the logrus logger used by the trickle CLI.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name. Default: info
	Level string

	// Format is "text" or "json". Default: text
	Format string

	// Output receives log lines. Default: os.Stderr
	Output io.Writer
}

// New creates a logger from opts.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	log.Out = opts.Output
	if log.Out == nil {
		log.Out = os.Stderr
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
	}
	log.SetLevel(level)

	switch opts.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	return log, nil
}
