// Package xlog wraps zerolog with the module's conventions: component-
// scoped loggers writing structured events, used for non-fatal warnings
// where returning an error would be too disruptive for a caller that
// opted into the lenient path. Its one user is package nn, which warns
// about entries skipped by a non-strict LoadStateDict.
package xlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

func root() zerolog.Logger {
	once.Do(func() {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger()
	})
	return base
}

// For returns a logger scoped to component, e.g. xlog.For("nn").
func For(component string) zerolog.Logger {
	return root().With().Str("component", component).Logger()
}
