// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"testing"

	"github.com/matryer/is"
)

func TestCurrentLimitCodeRoundTrip(t *testing.T) {
	for _, p := range []Product{ProductT825, ProductT834, ProductT500, ProductT249, Product36v4} {
		t.Run(p.ShortName(), func(t *testing.T) {
			is := is.New(t)
			for mA := uint32(0); mA <= p.MaxCurrentLimit(); mA += 97 {
				q := p.QuantizeCurrentLimit(mA)
				is.Equal(p.CurrentLimitFromCode(p.CurrentLimitCode(mA)), q)
			}
		})
	}
}

func TestCurrentLimitFromCode(t *testing.T) {
	is := is.New(t)

	is.Equal(ProductT825.CurrentLimitFromCode(6), uint32(192))
	is.Equal(ProductT249.CurrentLimitFromCode(5), uint32(200))
	is.Equal(ProductT500.CurrentLimitFromCode(2), uint32(174))
	is.Equal(Product36v4.CurrentLimitFromCode(127), uint32(9095))
	is.Equal(Product36v4.CurrentLimitFromCode(5), uint32(358))
}
