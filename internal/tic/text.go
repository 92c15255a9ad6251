// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// String renders the settings as a YAML document.
func (s Settings) String() string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Sprintf("# error encoding settings: %v\n", err)
	}
	enc.Close()
	return buf.String()
}

// ParseSettings reads a YAML settings document. Keys that are missing take
// the product's default value; unknown keys are an error.
func ParseSettings(text string) (Settings, error) {
	var head struct {
		Product Product `yaml:"product"`
	}
	if err := yaml.Unmarshal([]byte(text), &head); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	s := DefaultSettings(head.Product)
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// ReadSettingsFile reads a settings document from path, or from stdin when
// path is "-".
func ReadSettingsFile(path string) (Settings, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParseSettings(string(data))
}

// WriteSettingsFile writes s to path, or to stdout when path is "-".
func WriteSettingsFile(path string, s Settings) error {
	text := s.String()
	if path == "-" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
