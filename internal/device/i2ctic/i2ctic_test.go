// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package i2ctic

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	periphtic "periph.io/x/devices/v3/tic"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

func TestNewTransportRejectsUnknownProduct(t *testing.T) {
	is := is.New(t)

	_, err := NewTransport(zerolog.Nop(), Options{})

	is.True(err != nil)
}

func TestNewTransportDefaultsToTicAddress(t *testing.T) {
	is := is.New(t)

	tr, err := NewTransport(zerolog.Nop(), Options{Bus: "1", Product: tic.ProductT825})

	is.NoErr(err)
	is.Equal(tr.opts.Addresses, []uint16{periphtic.I2CAddr})
	is.Equal(tr.ref(0x0E), device.DeviceRef{SerialNumber: "0x0E", Product: tic.ProductT825, Path: "i2c:1:0x0E"})
}

func TestEveryProductHasAVariant(t *testing.T) {
	is := is.New(t)
	for _, p := range []tic.Product{tic.ProductT825, tic.ProductT834, tic.ProductT500, tic.ProductT249, tic.Product36v4} {
		_, ok := variants[p]
		is.True(ok)
	}
}

func TestReaderKeepsFirstError(t *testing.T) {
	is := is.New(t)
	r := &reader{}
	boom := errors.New("nack")
	calls := 0

	a := get(r, func() (int32, error) { calls++; return 7, nil })
	b := get(r, func() (bool, error) { calls++; return false, boom })
	c := get(r, func() (uint16, error) { calls++; return 9, nil })

	is.Equal(a, int32(7))
	is.Equal(b, false)
	is.Equal(c, uint16(0))
	is.Equal(calls, 2)
	is.Equal(r.err, boom)
}

func TestClosedHandle(t *testing.T) {
	is := is.New(t)
	h := &handle{ref: device.DeviceRef{Product: tic.ProductT825}}

	is.NoErr(h.Close())

	is.True(errors.Is(h.Energize(), device.ErrClosed))
	_, err := h.GetVariables(false)
	is.True(errors.Is(err, device.ErrClosed))
	is.True(errors.Is(h.RestoreDefaults(), device.ErrUnsupported))
}
