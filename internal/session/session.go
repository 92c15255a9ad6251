// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session keeps track of the Tic the controller is talking to: the
// connection, the settings believed to be on the device, the locally edited
// settings, and the latest variables. Every state change ends with a
// recomputed View.
//
// A Session is not safe for concurrent use. Callers serialize access, which
// the app layer does with a single mutex around the poll tick and user
// actions.
package session

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// UI is the confirmation and notification surface. Confirm and
// WarnAndConfirm block until the user answers; a dismissed dialog counts
// as false.
type UI interface {
	Confirm(question string) bool
	WarnAndConfirm(question string) bool
	ShowError(message string)
	ShowInfo(message string)
	ShowWarning(message string)
}

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectionError:
		return "connection_error"
	}
	return "disconnected"
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	defaultRefreshTicks = 20
	// Tic 36v4 current limits above this need an explicit warning.
	highCurrentLimit = 4000
)

// Option configures a Session.
type Option func(*Session)

// WithDeviceListRefreshTicks sets how many poll ticks pass between device
// list refreshes.
func WithDeviceListRefreshTicks(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.refreshTicks = n
		}
	}
}

type Session struct {
	transport    device.Transport
	ui           UI
	log          zerolog.Logger
	refreshTicks int

	state              ConnectionState
	connectionError    string
	disconnectedByUser bool
	handle             device.Handle
	current            device.DeviceRef
	devices            []device.DeviceRef
	ticks              int

	working       tic.Settings
	cached        tic.Settings
	modified      bool
	variables     tic.Variables
	haveVariables bool
	variablesSeq  uint64
	errorCounts   map[tic.ErrorKind]uint32

	view View
}

func New(transport device.Transport, ui UI, log zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		transport:    transport,
		ui:           ui,
		log:          log.With().Str("component", "session").Logger(),
		refreshTicks: defaultRefreshTicks,
		working:      tic.DefaultSettings(tic.ProductUnknown),
		cached:       tic.DefaultSettings(tic.ProductUnknown),
		errorCounts:  map[tic.ErrorKind]uint32{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recomputeView()
	return s
}

func (s *Session) State() ConnectionState { return s.state }

func (s *Session) Connected() bool { return s.state == Connected && s.handle != nil }

func (s *Session) SettingsModified() bool { return s.modified }

func (s *Session) WorkingSettings() tic.Settings { return s.working }

func (s *Session) CachedSettings() tic.Settings { return s.cached }

func (s *Session) Variables() tic.Variables { return s.variables }

func (s *Session) Device() device.DeviceRef { return s.current }

func (s *Session) Devices() []device.DeviceRef {
	return append([]device.DeviceRef(nil), s.devices...)
}

// ControlMode is the control mode in effect on the device.
func (s *Session) ControlMode() tic.ControlMode { return s.cached.ControlMode }

// InputReading is the latest averaged input reading, or tic.InputNull when
// there is none.
func (s *Session) InputReading() uint16 {
	if !s.Connected() || !s.haveVariables {
		return tic.InputNull
	}
	return s.variables.InputAfterAveraging
}

// VariablesSeq counts successful variable reads. It does not change on a
// tick whose read failed.
func (s *Session) VariablesSeq() uint64 { return s.variablesSeq }

// Connect opens ref and loads its settings and variables. Failing to open
// leaves the session in ConnectionError; failing to load is reported but
// keeps the connection.
func (s *Session) Connect(ref device.DeviceRef) {
	defer s.recomputeView()

	if s.handle != nil {
		s.closeHandle()
	}

	h, err := s.transport.Open(ref)
	if err != nil {
		s.log.Warn().Err(err).Str("device", ref.String()).Msg("failed to open device")
		s.state = ConnectionError
		s.connectionError = fmt.Sprintf("Failed to connect to device: %v", err)
		return
	}

	s.handle = h
	s.current = ref
	s.state = Connected
	s.connectionError = ""
	s.disconnectedByUser = false
	s.modified = false
	s.haveVariables = false
	s.errorCounts = map[tic.ErrorKind]uint32{}
	s.log.Info().Str("device", ref.String()).Str("path", ref.Path).Msg("connected")

	if err := s.loadSettings(); err != nil {
		s.showError("There was an error loading settings from the device.", err)
	}
	if err := s.loadVariables(true); err != nil {
		s.showError("There was an error getting the status of the device.", err)
	}
}

// Disconnect closes the connection. When ask is true and there are
// unapplied changes the user is asked first; it returns false if the user
// declined. Disconnecting also acknowledges a connection error.
func (s *Session) Disconnect(ask bool) bool {
	if s.state == Disconnected {
		return true
	}
	if s.state == Connected && ask && s.modified {
		if !s.ui.Confirm("The settings you changed have not been applied to the device. " +
			"If you disconnect from the device now, those changes will be lost. " +
			"Are you sure you want to disconnect?") {
			return false
		}
	}
	s.closeHandle()
	s.state = Disconnected
	s.connectionError = ""
	s.disconnectedByUser = true
	s.modified = false
	s.log.Info().Str("device", s.current.String()).Msg("disconnected by user")
	s.recomputeView()
	return true
}

// MutateSetting applies fn to a copy of the working settings and stores the
// result. It is the only way settings are edited.
func (s *Session) MutateSetting(fn func(*tic.Settings)) {
	if !s.Connected() {
		return
	}
	next := s.working
	fn(&next)
	s.working = next
	s.modified = true
	s.recomputeSettingsView()
}

// ReloadFromDevice replaces the working settings with the device's.
func (s *Session) ReloadFromDevice(ask bool) {
	if !s.Connected() {
		return
	}
	if ask && s.modified {
		if !s.ui.Confirm("This will reload the settings from the device and discard your changes. " +
			"Are you sure you want to continue?") {
			return
		}
	}
	if err := s.loadSettings(); err != nil {
		s.modified = true
		s.showError("There was an error loading settings from the device.", err)
	}
	s.recomputeView()
}

// Apply fixes the working settings, confirms any corrections with the user,
// and writes them to the device.
func (s *Session) Apply() {
	if !s.Connected() {
		return
	}

	fixed, warnings := s.working.Fix(s.current.Product)
	if warnings != "" {
		if !s.ui.Confirm(warnings + "\n\nAccept these changes and apply settings?") {
			return
		}
	}
	if fixed.Product == tic.Product36v4 && fixed.CurrentLimit > highCurrentLimit &&
		fixed.CurrentLimit != s.cached.CurrentLimit {
		if !s.ui.WarnAndConfirm(fmt.Sprintf(
			"The current limit of %d mA is higher than %d mA. Without additional cooling the "+
				"Tic 36v4 can overheat at this current. Are you sure you want to apply it?",
			fixed.CurrentLimit, highCurrentLimit)) {
			return
		}
	}

	s.working = fixed
	if err := s.writeSettings(fixed); err != nil {
		s.modified = true
		s.showError("There was an error applying settings.", err)
		s.recomputeSettingsView()
		return
	}

	// The transport may accept only part of the settings, so the cache
	// follows what the device reports back.
	applied, err := s.handle.GetSettings()
	if err != nil {
		s.modified = true
		s.showError("There was an error reading back the applied settings.", err)
		s.recomputeSettingsView()
		return
	}
	s.cached = applied
	if lost := tic.ChangedFields(fixed, applied); len(lost) > 0 {
		s.modified = true
		s.log.Warn().Strs("fields", lost).Str("device", s.current.String()).Msg("settings not accepted")
		s.ui.ShowWarning(fmt.Sprintf("The device did not accept these settings: %s. "+
			"They are kept as unapplied changes.", strings.Join(lost, ", ")))
		s.recomputeView()
		return
	}
	s.modified = false
	s.log.Info().Str("device", s.current.String()).Msg("settings applied")
	s.recomputeView()
}

func (s *Session) writeSettings(fixed tic.Settings) error {
	if err := s.handle.SetSettings(fixed); err != nil {
		return err
	}
	return s.handle.Reinitialize()
}

// RestoreDefaults resets the device to factory settings after asking the
// user, then reloads whatever the device ends up with.
func (s *Session) RestoreDefaults() {
	if !s.Connected() {
		return
	}
	if !s.ui.Confirm("This will reset all of your device's settings back to their default values. " +
		"You will lose your custom settings. Are you sure you want to continue?") {
		return
	}
	if err := s.handle.RestoreDefaults(); err != nil {
		s.showError("There was an error resetting to the default settings.", err)
	} else {
		s.log.Info().Str("device", s.current.String()).Msg("default settings restored")
	}
	s.ReloadFromDevice(false)
}

// Poll is called on every tick. It refreshes the device list every
// refreshTicks calls, detects lost connections and auto-connects when a
// refresh finds exactly one device, and reloads variables while connected.
func (s *Session) Poll() {
	refreshed := false
	if s.ticks%s.refreshTicks == 0 {
		refreshed = s.refreshDeviceList()
	}
	s.ticks++

	if s.Connected() {
		if refreshed && !device.Contains(s.devices, s.current) {
			s.connectionLost()
			s.recomputeView()
			return
		}
		if err := s.loadVariables(true); err != nil {
			s.log.Debug().Err(err).Msg("variable refresh failed")
		}
		s.recomputeView()
		return
	}

	if refreshed && s.state == Disconnected && !s.disconnectedByUser && len(s.devices) == 1 {
		s.log.Info().Str("device", s.devices[0].String()).Msg("auto-connecting to the only device")
		s.Connect(s.devices[0])
		return
	}
	s.recomputeView()
}

// refreshDeviceList reports whether the list was read. A failed read keeps
// the previous list.
func (s *Session) refreshDeviceList() bool {
	refs, err := s.transport.ListConnectedDevices()
	if err != nil {
		s.log.Debug().Err(err).Msg("device list refresh failed")
		return false
	}
	s.devices = refs
	return true
}

func (s *Session) connectionLost() {
	s.log.Warn().Str("device", s.current.String()).Msg("connection lost")
	s.closeHandle()
	s.state = ConnectionError
	s.connectionError = "The connection to the device was lost."
}

func (s *Session) closeHandle() {
	if s.handle == nil {
		return
	}
	if err := s.handle.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close failed")
	}
	s.handle = nil
}

func (s *Session) loadSettings() error {
	settings, err := s.handle.GetSettings()
	if err != nil {
		return err
	}
	s.working = settings
	s.cached = settings
	s.modified = false
	return nil
}

func (s *Session) loadVariables(clearErrorsOccurred bool) error {
	vars, err := s.handle.GetVariables(clearErrorsOccurred)
	if err != nil {
		return err
	}
	s.variables = vars
	s.haveVariables = true
	s.variablesSeq++
	if clearErrorsOccurred {
		for _, k := range tic.ActiveErrors(vars.ErrorsOccurred) {
			s.errorCounts[k]++
		}
	}
	return nil
}

// ResetErrorCounts zeroes the per-error occurrence counters.
func (s *Session) ResetErrorCounts() {
	s.errorCounts = map[tic.ErrorKind]uint32{}
	s.recomputeView()
}

// LoadSettingsFile replaces the working settings with the contents of path.
// The device is not touched until Apply.
func (s *Session) LoadSettingsFile(path string) {
	if !s.Connected() {
		return
	}
	loaded, err := tic.ReadSettingsFile(path)
	if err != nil {
		s.showError("There was an error loading the settings file.", err)
		return
	}
	s.LoadSettings(loaded)
}

// LoadSettings replaces the working settings with loaded, warning when they
// were made for another product.
func (s *Session) LoadSettings(loaded tic.Settings) {
	if !s.Connected() {
		return
	}
	if loaded.Product != tic.ProductUnknown && loaded.Product != s.current.Product {
		s.ui.ShowWarning(fmt.Sprintf("The settings file is for a %s, but the connected device is a %s. "+
			"The settings will be converted when they are applied.", loaded.Product, s.current.Product))
	}
	s.MutateSetting(func(st *tic.Settings) { *st = loaded })
}

// SaveSettingsFile writes the working settings to path.
func (s *Session) SaveSettingsFile(path string) {
	if err := tic.WriteSettingsFile(path, s.working); err != nil {
		s.showError("There was an error saving the settings file.", err)
	}
}

func (s *Session) showError(context string, err error) {
	s.log.Warn().Err(err).Msg(context)
	s.ui.ShowError(context + "\n\n" + err.Error())
}
