// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relabs-tech/tic_controller/internal/config"
	"github.com/relabs-tech/tic_controller/internal/logging"
)

// RunController wires the transport, the optional MQTT bridge, display and
// web server around a controller and polls until ctx is done.
func RunController(ctx context.Context, cfg *config.Config) error {
	log := logging.GetFromContext(ctx)

	tr, err := NewTransport(cfg, log)
	if err != nil {
		return err
	}
	if c, ok := tr.(io.Closer); ok {
		defer c.Close()
	}

	ctl := NewController(tr, log, ControllerOptions{
		RefreshTicks: cfg.DeviceListRefreshTicks,
		SampleCount:  cfg.CalibrationSampleCount,
	})

	if cfg.MQTTBroker != "" {
		client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		log.Info().Str("broker", cfg.MQTTBroker).Msg("connected to MQTT broker")

		bridge := NewMQTTBridge(client, ctl, log, MQTTTopics{
			Status:    cfg.TopicStatus,
			Variables: cfg.TopicVariables,
			Command:   cfg.TopicCommand,
		})
		if err := bridge.SubscribeCommands(); err != nil {
			return fmt.Errorf("subscribing to %s: %w", cfg.TopicCommand, err)
		}
		ctl.Every(cfg.MQTTPublishEveryTicks, "mqtt", bridge.Publish)
	}

	if cfg.DisplayEnabled {
		d, err := OpenDisplay(cfg.DisplayI2CBus, log)
		if err != nil {
			log.Warn().Err(err).Msg("display disabled")
		} else {
			defer d.Close()
			ctl.Every(cfg.DisplayUpdateTicks, "display", d.Update)
		}
	}

	if cfg.WebServerPort != 0 {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
			Handler: NewRouter(ctl, log, WebOptions{Poll: cfg.PollPeriod(), SettingsDir: cfg.SettingsDir}),
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("web server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("web server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return ctl.Run(ctx, cfg.PollPeriod())
}
