// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// RunConsoleMQTT prints every status frame published on topic until
// interrupted.
func RunConsoleMQTT(broker, clientID, topic string, log zerolog.Logger) error {
	client, err := ConnectMQTT(broker, clientID)
	if err != nil {
		return err
	}
	log.Info().Str("broker", broker).Msg("console: connected to MQTT broker")

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Warn().Err(err).Msg("console: status unmarshal error")
			return
		}
		fmt.Println(formatStatus(st))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Info().Str("topic", topic).Msg("console: subscribed")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatStatus(st Status) string {
	if st.Device == "" {
		return "[TIC ] " + st.Connection
	}
	line := fmt.Sprintf("[TIC ] %s  pos=%11d vel=%11d in=%5d  %s",
		st.Device, st.Position, st.Velocity, st.Input, st.MotorStatus)
	if len(st.Errors) > 0 {
		line += "  errors: " + strings.Join(st.Errors, ", ")
	}
	if st.Modified {
		line += "  (unsaved settings)"
	}
	return line
}
