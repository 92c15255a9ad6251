// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the zerolog logger and carries it through contexts.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a console logger writing to stderr. Unknown levels mean info.
func New(level string) zerolog.Logger {
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, level)
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type loggerKey struct{}

func NewContextWithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetFromContext returns the logger stored in ctx, or the global logger.
func GetFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return log.Logger
}
