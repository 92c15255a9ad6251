// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product identifies a member of the Tic family.
type Product uint8

const (
	ProductUnknown Product = iota
	ProductT825
	ProductT834
	ProductT500
	ProductT249
	Product36v4
)

var productNames = map[Product]string{
	ProductT825: "T825",
	ProductT834: "T834",
	ProductT500: "T500",
	ProductT249: "T249",
	Product36v4: "36v4",
}

func (p Product) String() string {
	if name, ok := productNames[p]; ok {
		return "Tic " + name
	}
	return "Tic (unknown)"
}

// ShortName returns the model name without the family prefix, e.g. "T825".
func (p Product) ShortName() string {
	return productNames[p]
}

// ParseProduct accepts "T825", "Tic T825", "tic_t825" and similar spellings.
func ParseProduct(s string) (Product, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "tic")
	norm = strings.TrimLeft(norm, " _-")
	if norm == "" {
		return ProductUnknown, nil
	}
	for p, name := range productNames {
		if strings.ToLower(name) == norm {
			return p, nil
		}
	}
	return ProductUnknown, fmt.Errorf("unknown Tic product %q", s)
}

func (p Product) MarshalYAML() (interface{}, error) {
	return p.ShortName(), nil
}

func (p *Product) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseProduct(node.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MaxCurrentLimit is the highest coil current the product supports, in mA.
func (p Product) MaxCurrentLimit() uint32 {
	switch p {
	case ProductT825:
		return 3968
	case ProductT834:
		return 3456
	case ProductT500:
		return t500CurrentTable[len(t500CurrentTable)-1]
	case ProductT249:
		return 4480
	case Product36v4:
		return 9095
	}
	return 0
}

// DefaultCurrentLimit is the factory current limit, in mA.
func (p Product) DefaultCurrentLimit() uint32 {
	switch p {
	case ProductT500:
		return 174
	case ProductT249:
		return 200
	case Product36v4:
		return 358
	}
	return 192
}

// t500CurrentTable lists the discrete current limits of the Tic T500, in mA,
// indexed by current limit code.
var t500CurrentTable = []uint32{
	0, 1, 174, 343, 495, 634, 762, 880, 990, 1092, 1189, 1281, 1368, 1452,
	1532, 1611, 1687, 1762, 1835, 1909, 1982, 2056, 2131, 2207, 2285, 2366,
	2451, 2540, 2634, 2734, 2843, 2962, 3093,
}

// QuantizeCurrentLimit returns the closest current limit the product can
// actually produce that is not above the requested value.
func (p Product) QuantizeCurrentLimit(mA uint32) uint32 {
	if limit := p.MaxCurrentLimit(); limit > 0 && mA > limit {
		mA = limit
	}
	switch p {
	case ProductT500:
		out := uint32(0)
		for _, v := range t500CurrentTable {
			if v > mA {
				break
			}
			out = v
		}
		return out
	case ProductT249:
		return mA / 40 * 40
	case Product36v4:
		code := CurrentLimitCode36v4(mA)
		return (55000*uint32(code) + 384) / 768
	case ProductUnknown:
		return mA
	}
	return mA / 32 * 32
}

// CurrentLimitCode36v4 converts mA into the 0-127 code used by the Tic 36v4.
func CurrentLimitCode36v4(mA uint32) uint8 {
	switch {
	case mA < 72:
		return 0
	case mA >= 9095:
		return 127
	}
	code := (mA*768 - 55000/2) / 55000
	if code < 127 && (55000*(code+1)+384)/768 <= mA {
		code++
	}
	return uint8(code)
}

// CurrentLimitCode converts a current limit in mA into the code the device
// stores and reports.
func (p Product) CurrentLimitCode(mA uint32) uint8 {
	mA = p.QuantizeCurrentLimit(mA)
	switch p {
	case ProductT500:
		for i, v := range t500CurrentTable {
			if v == mA {
				return uint8(i)
			}
		}
		return 0
	case ProductT249:
		return uint8(mA / 40)
	case Product36v4:
		return CurrentLimitCode36v4(mA)
	}
	return uint8(mA / 32)
}

// CurrentLimitFromCode converts a device current limit code into mA.
func (p Product) CurrentLimitFromCode(code uint8) uint32 {
	switch p {
	case ProductT500:
		if int(code) < len(t500CurrentTable) {
			return t500CurrentTable[code]
		}
		return p.MaxCurrentLimit()
	case ProductT249:
		return uint32(code) * 40
	case Product36v4:
		return (55000*uint32(code) + 384) / 768
	}
	return uint32(code) * 32
}

// StepModeAllowed reports whether the product supports the step mode.
func (p Product) StepModeAllowed(m StepMode) bool {
	switch p {
	case ProductT500:
		return m <= StepMode8
	case ProductT249:
		return m <= StepMode8 || m == StepMode2At100
	case Product36v4:
		return m <= StepMode32 || (m >= StepMode64 && m <= StepMode256)
	}
	return m <= StepMode32
}

// DecayModeAllowed reports whether the product supports the decay mode.
func (p Product) DecayModeAllowed(m DecayMode) bool {
	switch p {
	case ProductT834:
		return m <= DecayMixed75
	case ProductT825, Product36v4:
		return m <= DecayFast
	}
	return m == DecayMixed
}

// HasDecayMode reports whether the decay mode setting does anything.
func (p Product) HasDecayMode() bool {
	switch p {
	case ProductT825, ProductT834, Product36v4:
		return true
	}
	return false
}

// HasAGC reports whether the product has active gain control.
func (p Product) HasAGC() bool { return p == ProductT249 }
