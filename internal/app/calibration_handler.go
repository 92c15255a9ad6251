// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/calibration"
	"github.com/relabs-tech/tic_controller/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // start, next, back, cancel, finish
}

type WSResponse struct {
	Type    string              `json:"type"` // state, error, warning, info, question, complete
	State   *calibration.State  `json:"state,omitempty"`
	Result  *calibration.Result `json:"result,omitempty"`
	Message string              `json:"message,omitempty"`
}

// calibrationConn serializes writes; the read loop and the pusher share
// the connection.
type calibrationConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

func (c *calibrationConn) send(r WSResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(r); err != nil {
		c.log.Debug().Err(err).Str("type", r.Type).Msg("websocket write failed")
	}
}

func (c *calibrationConn) sendMessages(msgs []Message) {
	for _, m := range msgs {
		c.send(WSResponse{Type: m.Kind, Message: m.Text})
	}
}

func (c *calibrationConn) sendState(st calibration.State) {
	c.send(WSResponse{Type: "state", State: &st})
}

// calibrationWS drives the calibration wizard over a websocket.
func (w *webServer) calibrationWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("calibration: websocket upgrade error")
		return
	}
	defer conn.Close()

	c := &calibrationConn{conn: conn, log: w.log.With().Str("remote", r.RemoteAddr).Logger()}
	c.sendState(w.ctl.Snapshot().Calibration)

	done := make(chan struct{})
	defer close(done)
	go w.pushCalibration(c, done)

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.log.Debug().Err(err).Msg("calibration: websocket closed")
			return
		}
		w.calibrationAction(c, msg.Action)
	}
}

func (w *webServer) calibrationAction(c *calibrationConn, action string) {
	var (
		err    error
		result *calibration.Result
		state  calibration.State
	)
	msgs := w.ctl.Do(false, func(_ *session.Session, e *calibration.Engine) {
		switch action {
		case "start":
			err = e.Start()
		case "next":
			err = e.Next()
		case "back":
			e.Back()
		case "cancel":
			e.Cancel()
		case "finish":
			res, ok := e.Result()
			if err = e.Finish(); err == nil && ok {
				result = &res
			}
		default:
			err = fmt.Errorf("unknown calibration action %q", action)
		}
		state = e.State()
	})

	c.sendMessages(msgs)
	if err != nil && !hasError(msgs) {
		c.send(WSResponse{Type: "error", Message: err.Error()})
	}
	c.sendState(state)
	if result != nil {
		c.send(WSResponse{Type: "complete", Result: result})
	}
}

// pushCalibration forwards queued messages and pushes the state while the
// engine samples, until done is closed.
func (w *webServer) pushCalibration(c *calibrationConn, done <-chan struct{}) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var last calibration.State
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		c.sendMessages(w.ctl.DrainMessages())
		st := w.ctl.Snapshot().Calibration
		if st.Sampling || st.Phase != last.Phase || st.Sampling != last.Sampling || st.Error != last.Error {
			c.sendState(st)
		}
		last = st
	}
}

func hasError(msgs []Message) bool {
	for _, m := range msgs {
		if m.Kind == "error" {
			return true
		}
	}
	return false
}
