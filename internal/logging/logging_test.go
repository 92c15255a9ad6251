// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestUnknownLevelMeansInfo(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "chatty")

	l.Debug().Msg("hidden")
	l.Info().Str("device", "T825 #1").Msg("shown")

	is.Equal(l.GetLevel(), zerolog.InfoLevel)
	is.True(!strings.Contains(buf.String(), "hidden"))
	is.True(strings.Contains(buf.String(), `"device":"T825 #1"`))
}

func TestContextCarriesLogger(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	ctx := NewContextWithLogger(context.Background(), l)
	fromCtx := GetFromContext(ctx)
	fromCtx.Debug().Msg("from context")

	is.True(strings.Contains(buf.String(), "from context"))
}
