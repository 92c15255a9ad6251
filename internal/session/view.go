// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

// View is everything a front end needs to render the session. It is
// rebuilt from scratch after every state change, so two recomputations with
// no change in between give equal views.
type View struct {
	State            ConnectionState    `json:"state"`
	ConnectionStatus string             `json:"connection_status"`
	Device           device.DeviceRef   `json:"device"`
	Devices          []device.DeviceRef `json:"devices"`

	Settings         tic.Settings    `json:"settings"`
	SettingsModified bool            `json:"settings_modified"`
	ApplyEnabled     bool            `json:"apply_enabled"`
	FieldEnabled     map[string]bool `json:"field_enabled"`

	HaveVariables bool          `json:"have_variables"`
	Variables     tic.Variables `json:"variables"`
	MotorStatus   string        `json:"motor_status"`
	MotorStopped  bool          `json:"motor_stopped"`
	ResumeEnabled bool          `json:"resume_enabled"`
	Errors        []ErrorRow    `json:"errors"`
}

// ErrorRow is one line of the error table.
type ErrorRow struct {
	Kind     tic.ErrorKind `json:"kind"`
	Name     string        `json:"name"`
	Active   bool          `json:"active"`
	Stopping bool          `json:"stopping"`
	Count    uint32        `json:"count"`
}

// View returns the most recently computed view.
func (s *Session) View() View {
	return s.view
}

func (s *Session) recomputeView() {
	connected := s.Connected()
	v := View{
		State:            s.state,
		ConnectionStatus: s.connectionStatus(),
		Devices:          append([]device.DeviceRef{}, s.devices...),
	}
	if connected {
		v.Device = s.current
	}

	v.HaveVariables = connected && s.haveVariables
	if v.HaveVariables {
		v.Variables = s.variables
		v.MotorStatus, v.MotorStopped = MotorStatus(s.variables)
	}
	v.ResumeEnabled = connected && v.HaveVariables && ResumeEnabled(s.cached.ControlMode, s.variables.ErrorStatus)

	v.Errors = make([]ErrorRow, 0, len(tic.ErrorKinds()))
	for _, k := range tic.ErrorKinds() {
		info := k.Info()
		v.Errors = append(v.Errors, ErrorRow{
			Kind:     k,
			Name:     info.Name,
			Active:   v.HaveVariables && s.variables.HasError(k),
			Stopping: info.Stopping,
			Count:    s.errorCounts[k],
		})
	}

	s.view = v
	s.fillSettingsView(&s.view)
}

// recomputeSettingsView refreshes only the settings-facing part of the view.
func (s *Session) recomputeSettingsView() {
	s.fillSettingsView(&s.view)
}

func (s *Session) fillSettingsView(v *View) {
	connected := s.Connected()
	v.Settings = s.working
	v.SettingsModified = s.modified
	v.ApplyEnabled = connected
	v.FieldEnabled = fieldEnabled(s.working, connected)
}

func (s *Session) connectionStatus() string {
	switch s.state {
	case Connected:
		return "Connected to " + s.current.String() + "."
	case ConnectionError:
		return s.connectionError
	}
	if len(s.devices) == 0 {
		return "No device connected."
	}
	return "Not connected."
}

// MotorStatus summarizes the variables in one line and tells whether the
// motor should be shown as stopped.
func MotorStatus(v tic.Variables) (string, bool) {
	if v.ErrorStatus == 0 {
		switch {
		case v.ForwardLimitActive && v.ReverseLimitActive:
			return "Forward and reverse limit switches active.", true
		case v.ForwardLimitActive:
			return "Forward limit switch active.", true
		case v.ReverseLimitActive:
			return "Reverse limit switch active.", true
		case !v.Energized:
			return "Motor de-energized.", true
		case v.HomingActive:
			return "Homing...", false
		}
		return "Motor driving.", false
	}

	switch {
	case v.HasError(tic.ErrorLowVin):
		return "Motor de-energized because VIN is too low.", true
	case v.HasError(tic.ErrorMotorDriverError):
		return "Motor de-energized because of a motor driver error.", true
	case v.HasError(tic.ErrorIntentionallyDeenergized):
		return "Motor intentionally de-energized.", true
	}

	var msg string
	switch {
	case !v.Energized:
		msg = "Motor de-energized"
	case v.CurrentVelocity != 0 && v.PlanningMode != tic.PlanningOff:
		msg = "Motor decelerating"
	default:
		msg = "Motor holding"
	}
	for _, c := range stopCauses {
		if v.HasError(c.kind) {
			return msg + " because of " + c.text + ".", true
		}
	}
	return msg + ".", true
}

// stopCauses is the order in which the composite motor status picks its
// reason.
var stopCauses = []struct {
	kind tic.ErrorKind
	text string
}{
	{tic.ErrorKillSwitch, "kill switch"},
	{tic.ErrorRequiredInputInvalid, "required input invalid"},
	{tic.ErrorSerialError, "serial error"},
	{tic.ErrorCommandTimeout, "command timeout"},
	{tic.ErrorSafeStartViolation, "safe start violation"},
	{tic.ErrorErrLineHigh, "ERR line high"},
}

var resumableSerialErrors = tic.ErrorMask(
	tic.ErrorIntentionallyDeenergized,
	tic.ErrorSerialError,
	tic.ErrorCommandTimeout,
	tic.ErrorSafeStartViolation,
)

// ResumeEnabled reports whether a resume (energize and exit safe start)
// makes sense for the device's control mode and error status.
//
// In serial mode every active error must be one a resume clears. In the
// other modes only the intentionally de-energized bit is considered, even
// though resuming may not clear every error there.
func ResumeEnabled(mode tic.ControlMode, errorStatus uint16) bool {
	status := uint32(errorStatus)
	if mode.IsSerial() {
		return status != 0 && status&^resumableSerialErrors == 0
	}
	return status&tic.ErrorIntentionallyDeenergized.Mask() != 0
}
