// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/calibration"
	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/session"
)

// Message is a notification produced by the session or the calibration
// engine.
type Message struct {
	Kind string `json:"kind"` // error, warning, info, question
	Text string `json:"text"`
}

// bufferedUI queues messages instead of showing dialogs. Confirmations are
// answered with the flag of the request being served.
type bufferedUI struct {
	answer  bool
	pending []Message
}

// maxPending bounds the queue when nobody drains it.
const maxPending = 32

func (u *bufferedUI) ask(q string) bool {
	u.add("question", q)
	return u.answer
}

func (u *bufferedUI) Confirm(q string) bool        { return u.ask(q) }
func (u *bufferedUI) WarnAndConfirm(q string) bool { return u.ask(q) }
func (u *bufferedUI) ShowError(m string)           { u.add("error", m) }
func (u *bufferedUI) ShowInfo(m string)            { u.add("info", m) }
func (u *bufferedUI) ShowWarning(m string)         { u.add("warning", m) }

func (u *bufferedUI) add(kind, text string) {
	if len(u.pending) == maxPending {
		u.pending = u.pending[1:]
	}
	u.pending = append(u.pending, Message{Kind: kind, Text: text})
}

type tickHook struct {
	name  string
	every int
	fn    func(Snapshot) error
}

// Snapshot is the state handed to periodic hooks.
type Snapshot struct {
	View        session.View
	Calibration calibration.State
}

// Controller owns the session and the calibration engine. Every access goes
// through its mutex, so the poll loop and the request handlers never run at
// the same time.
type Controller struct {
	mu      sync.Mutex
	log     zerolog.Logger
	ui      *bufferedUI
	session *session.Session
	engine  *calibration.Engine
	ticks   int
	hooks   []tickHook
}

type ControllerOptions struct {
	RefreshTicks int
	SampleCount  int
}

func NewController(transport device.Transport, log zerolog.Logger, opts ControllerOptions) *Controller {
	ui := &bufferedUI{}
	s := session.New(transport, ui, log, session.WithDeviceListRefreshTicks(opts.RefreshTicks))
	return &Controller{
		log:     log.With().Str("component", "controller").Logger(),
		ui:      ui,
		session: s,
		engine:  calibration.NewEngine(s, ui, log, calibration.WithSampleCount(opts.SampleCount)),
	}
}

// Every registers fn to run after every n-th tick, outside the lock.
func (c *Controller) Every(n int, name string, fn func(Snapshot) error) {
	if n <= 0 {
		n = 1
	}
	c.mu.Lock()
	c.hooks = append(c.hooks, tickHook{name: name, every: n, fn: fn})
	c.mu.Unlock()
}

// Tick polls the device, feeds the calibration engine, then runs the hooks
// that are due.
func (c *Controller) Tick() {
	c.mu.Lock()
	c.session.Poll()
	c.engine.Tick()
	c.ticks++
	var due []tickHook
	for _, h := range c.hooks {
		if c.ticks%h.every == 0 {
			due = append(due, h)
		}
	}
	var snap Snapshot
	if len(due) > 0 {
		snap = c.snapshot()
	}
	c.mu.Unlock()

	for _, h := range due {
		if err := h.fn(snap); err != nil {
			c.log.Warn().Err(err).Str("hook", h.name).Msg("tick hook failed")
		}
	}
}

// Run ticks every period until ctx is done.
func (c *Controller) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.log.Info().Dur("period", period).Msg("starting poll loop")
	c.Tick()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.session.Disconnect(false)
			c.mu.Unlock()
			c.log.Info().Msg("poll loop stopped")
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Do runs fn under the lock. Confirmations raised by fn are answered with
// confirm. It returns the messages fn produced.
func (c *Controller) Do(confirm bool, fn func(s *session.Session, e *calibration.Engine)) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued := c.ui.pending
	c.ui.pending = nil
	c.ui.answer = confirm
	defer func() {
		c.ui.answer = false
		c.ui.pending = queued
	}()

	fn(c.session, c.engine)
	return c.ui.pending
}

// DrainMessages returns and clears the messages produced outside requests,
// such as poll errors and calibration rejections.
func (c *Controller) DrainMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.ui.pending
	c.ui.pending = nil
	return msgs
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{View: c.session.View(), Calibration: c.engine.State()}
}
