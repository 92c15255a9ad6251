// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/calibration"
	"github.com/relabs-tech/tic_controller/internal/device"
	"github.com/relabs-tech/tic_controller/internal/session"
	"github.com/relabs-tech/tic_controller/internal/tic"
)

const maxSettingsBody = 64 << 10

// Response is the body of every mutating endpoint.
type Response struct {
	Messages []Message    `json:"messages"`
	View     session.View `json:"view"`
}

// WebOptions configures the HTTP API.
type WebOptions struct {
	// Poll is how often the calibration websocket pushes state while
	// sampling.
	Poll time.Duration
	// SettingsDir holds the settings files named by the file endpoints.
	SettingsDir string
}

type webServer struct {
	ctl         *Controller
	log         zerolog.Logger
	poll        time.Duration
	settingsDir string
	route       chi.Router
}

// NewRouter builds the HTTP API.
func NewRouter(ctl *Controller, log zerolog.Logger, opts WebOptions) chi.Router {
	if opts.Poll <= 0 {
		opts.Poll = 50 * time.Millisecond
	}
	if opts.SettingsDir == "" {
		opts.SettingsDir = "."
	}
	w := &webServer{
		ctl:         ctl,
		log:         log.With().Str("component", "web").Logger(),
		poll:        opts.Poll,
		settingsDir: opts.SettingsDir,
		route:       chi.NewRouter(),
	}
	r := w.route
	r.Use(middleware.Logger)
	r.Get("/health", w.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", w.view)
		r.Get("/devices", w.devices)
		r.Post("/connect", w.connect)
		r.Post("/disconnect", w.action(func(s *session.Session) { s.Disconnect(true) }))
		r.Post("/reload", w.action(func(s *session.Session) { s.ReloadFromDevice(true) }))
		r.Post("/apply", w.action((*session.Session).Apply))
		r.Post("/restore-defaults", w.action((*session.Session).RestoreDefaults))
		r.Post("/resume", w.command("resume"))
		r.Post("/command/{name}", w.command(""))
		r.Get("/settings", w.getSettings)
		r.Put("/settings", w.putSettings)
		r.Post("/settings/load", w.settingsFile(func(s *session.Session, path string) { s.LoadSettingsFile(path) }))
		r.Post("/settings/save", w.settingsFile(func(s *session.Session, path string) { s.SaveSettingsFile(path) }))
	})
	r.Get("/ws/calibration", w.calibrationWS)
	return r
}

func (w *webServer) health(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusNoContent)
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func (w *webServer) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		w.log.Error().Err(err).Msg("json encode failed")
	}
}

func (w *webServer) respond(rw http.ResponseWriter, status int, msgs []Message) {
	if msgs == nil {
		msgs = []Message{}
	}
	w.writeJSON(rw, status, Response{Messages: msgs, View: w.ctl.Snapshot().View})
}

func (w *webServer) view(rw http.ResponseWriter, r *http.Request) {
	w.writeJSON(rw, http.StatusOK, w.ctl.Snapshot().View)
}

func (w *webServer) devices(rw http.ResponseWriter, r *http.Request) {
	devices := w.ctl.Snapshot().View.Devices
	if devices == nil {
		devices = []device.DeviceRef{}
	}
	w.writeJSON(rw, http.StatusOK, devices)
}

// action wraps a session operation that reports through the UI.
func (w *webServer) action(fn func(s *session.Session)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		msgs := w.ctl.Do(confirmed(r), func(s *session.Session, _ *calibration.Engine) { fn(s) })
		w.respond(rw, http.StatusOK, msgs)
	}
}

func (w *webServer) connect(rw http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("serial")
	found := false
	msgs := w.ctl.Do(confirmed(r), func(s *session.Session, _ *calibration.Engine) {
		ref, ok := device.Find(s.Devices(), serial)
		if !ok {
			return
		}
		found = true
		if s.Connected() && s.Device().Same(ref) {
			return
		}
		if s.Connected() && !s.Disconnect(true) {
			return
		}
		s.Connect(ref)
	})
	if !found {
		http.Error(rw, fmt.Sprintf("%s: %q", device.ErrDeviceNotFound, serial), http.StatusNotFound)
		return
	}
	w.respond(rw, http.StatusOK, msgs)
}

// command runs a named motion command. An empty name is taken from the URL.
func (w *webServer) command(name string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		cmd := Command{Action: name}
		if cmd.Action == "" {
			cmd.Action = chi.URLParam(r, "name")
		}
		if r.ContentLength != 0 {
			var body struct {
				Value *int32 `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				http.Error(rw, "invalid command body: "+err.Error(), http.StatusBadRequest)
				return
			}
			cmd.Value = body.Value
		}

		var err error
		msgs := w.ctl.Do(confirmed(r), func(s *session.Session, _ *calibration.Engine) {
			err = runCommand(s, cmd)
		})
		switch {
		case errors.Is(err, ErrUnknownCommand):
			http.Error(rw, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrMissingValue):
			http.Error(rw, err.Error(), http.StatusBadRequest)
		case errors.Is(err, device.ErrNotConnected):
			http.Error(rw, err.Error(), http.StatusConflict)
		default:
			w.respond(rw, http.StatusOK, msgs)
		}
	}
}

func (w *webServer) getSettings(rw http.ResponseWriter, r *http.Request) {
	text := w.ctl.Snapshot().View.Settings.String()
	rw.Header().Set("Content-Type", "application/yaml")
	io.WriteString(rw, text)
}

func (w *webServer) putSettings(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	settings, err := tic.ParseSettings(string(body))
	if err != nil {
		http.Error(rw, "invalid settings: "+err.Error(), http.StatusBadRequest)
		return
	}

	connected := true
	msgs := w.ctl.Do(confirmed(r), func(s *session.Session, _ *calibration.Engine) {
		connected = s.Connected()
		s.LoadSettings(settings)
	})
	if !connected {
		http.Error(rw, device.ErrNotConnected.Error(), http.StatusConflict)
		return
	}
	w.respond(rw, http.StatusOK, msgs)
}

// settingsFile runs fn with the file named by ?name= inside the settings
// directory. Names with a directory part are rejected.
func (w *webServer) settingsFile(fn func(s *session.Session, path string)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
			http.Error(rw, fmt.Sprintf("invalid settings file name %q", name), http.StatusBadRequest)
			return
		}
		path := filepath.Join(w.settingsDir, name)

		connected := true
		msgs := w.ctl.Do(confirmed(r), func(s *session.Session, _ *calibration.Engine) {
			connected = s.Connected()
			if connected {
				fn(s, path)
			}
		})
		if !connected {
			http.Error(rw, device.ErrNotConnected.Error(), http.StatusConflict)
			return
		}
		w.respond(rw, http.StatusOK, msgs)
	}
}
