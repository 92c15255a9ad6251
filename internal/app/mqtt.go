// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/relabs-tech/tic_controller/internal/calibration"
	"github.com/relabs-tech/tic_controller/internal/session"
)

// Status is the summary published on the status topic.
type Status struct {
	State       session.ConnectionState `json:"state"`
	Connection  string                  `json:"connection"`
	Device      string                  `json:"device,omitempty"`
	MotorStatus string                  `json:"motor_status"`
	Stopped     bool                    `json:"stopped"`
	Position    int32                   `json:"position"`
	Velocity    int32                   `json:"velocity"`
	Input       uint16                  `json:"input"`
	Errors      []string                `json:"errors"`
	Modified    bool                    `json:"modified"`
	Calibration calibration.Phase       `json:"calibration"`
}

func statusFrom(snap Snapshot) Status {
	v := snap.View
	st := Status{
		State:       v.State,
		Connection:  v.ConnectionStatus,
		MotorStatus: v.MotorStatus,
		Stopped:     v.MotorStopped,
		Errors:      []string{},
		Modified:    v.SettingsModified,
		Calibration: snap.Calibration.Phase,
	}
	if v.State == session.Connected {
		st.Device = v.Device.String()
	}
	if v.HaveVariables {
		st.Position = v.Variables.CurrentPosition
		st.Velocity = v.Variables.CurrentVelocity
		st.Input = v.Variables.InputAfterAveraging
	}
	for _, row := range v.Errors {
		if row.Active {
			st.Errors = append(st.Errors, row.Name)
		}
	}
	return st
}

type MQTTTopics struct {
	Status    string
	Variables string
	Command   string
}

// mqttClient is the part of mqtt.Client the bridge uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTTBridge publishes the controller state and accepts motion commands.
type MQTTBridge struct {
	client mqttClient
	ctl    *Controller
	log    zerolog.Logger
	topics MQTTTopics
}

// ConnectMQTT connects to broker and waits for the result.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", broker, token.Error())
	}
	return client, nil
}

func NewMQTTBridge(client mqttClient, ctl *Controller, log zerolog.Logger, topics MQTTTopics) *MQTTBridge {
	return &MQTTBridge{
		client: client,
		ctl:    ctl,
		log:    log.With().Str("component", "mqtt").Logger(),
		topics: topics,
	}
}

func (b *MQTTBridge) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := b.client.Publish(topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

// Publish sends the status and, when there are any, the raw variables.
func (b *MQTTBridge) Publish(snap Snapshot) error {
	if err := b.publish(b.topics.Status, statusFrom(snap)); err != nil {
		return fmt.Errorf("publishing status: %w", err)
	}
	if b.topics.Variables == "" || !snap.View.HaveVariables {
		return nil
	}
	if err := b.publish(b.topics.Variables, snap.View.Variables); err != nil {
		return fmt.Errorf("publishing variables: %w", err)
	}
	return nil
}

// SubscribeCommands runs every command received on the command topic.
func (b *MQTTBridge) SubscribeCommands() error {
	if b.topics.Command == "" {
		return nil
	}
	token := b.client.Subscribe(b.topics.Command, 0, func(_ mqtt.Client, msg mqtt.Message) {
		b.handleCommand(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	b.log.Info().Str("topic", b.topics.Command).Msg("subscribed to commands")
	return nil
}

func (b *MQTTBridge) handleCommand(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.log.Warn().Err(err).Msg("command unmarshal error")
		return
	}
	var err error
	msgs := b.ctl.Do(false, func(s *session.Session, _ *calibration.Engine) {
		err = runCommand(s, cmd)
	})
	if err != nil {
		b.log.Warn().Err(err).Str("action", cmd.Action).Msg("command rejected")
		return
	}
	for _, m := range msgs {
		b.log.Warn().Str("action", cmd.Action).Str("kind", m.Kind).Msg(m.Text)
	}
}
