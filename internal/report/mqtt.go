// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/orientation"
)

const publishTimeout = 250 * time.Millisecond

// MQTTConfig names the broker and topics.
type MQTTConfig struct {
	Broker   string
	ClientID string

	TopicOrientation        string
	TopicCalibration        string
	TopicCalibrationRequest string
	// TopicInspection empty disables the inspection stream.
	TopicInspection string
}

// mqttClient is the part of mqtt.Client the reporter uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes events as JSON on the configured topics.
type MQTT struct {
	client mqttClient
	cfg    MQTTConfig
	logger *log.Entry

	// pending tracks publishes whose delivery is still being awaited.
	pending sync.WaitGroup
}

// DialMQTT connects to the broker. The client reconnects on its own after
// the first successful connection.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("Warning: MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect (%s): %w", cfg.Broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.Broker)
	return newMQTT(client, cfg), nil
}

func newMQTT(client mqttClient, cfg MQTTConfig) *MQTT {
	return &MQTT{client: client, cfg: cfg, logger: log.WithField("component", "mqtt")}
}

// SubscribeRequests forwards calibration requests received on the request
// topic to requests. defaultSensor fills in requests that name no sensor.
func (m *MQTT) SubscribeRequests(requests chan<- CalibrationRequest, defaultSensor int) error {
	if m.cfg.TopicCalibrationRequest == "" {
		return nil
	}
	token := m.client.Subscribe(m.cfg.TopicCalibrationRequest, 1, func(_ mqtt.Client, msg mqtt.Message) {
		req, err := ParseCalibrationRequest(msg.Payload(), defaultSensor)
		if err != nil {
			m.logger.Warnf("Warning: ignoring calibration request on %s: %v", msg.Topic(), err)
			return
		}
		deliver(requests, req, "mqtt")
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", m.cfg.TopicCalibrationRequest, token.Error())
	}
	m.logger.Infof("subscribed to MQTT topic %s", m.cfg.TopicCalibrationRequest)
	return nil
}

func (m *MQTT) publish(topic string, retained bool, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Errorf("json marshal error (%s): %v", topic, err)
		return
	}
	token := m.client.Publish(topic, 0, retained, payload)
	// The node loop must not wait on the broker; delivery is checked aside.
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if !token.WaitTimeout(publishTimeout) {
			m.logger.Warnf("Warning: MQTT publish to %s timed out", topic)
			return
		}
		if token.Error() != nil {
			m.logger.Errorf("MQTT publish error (%s): %v", topic, token.Error())
		}
	}()
}

func (m *MQTT) Orientation(sensorID int, s orientation.Sample) {
	m.publish(m.cfg.TopicOrientation, true, NewOrientationMessage(sensorID, s))
}

func (m *MQTT) CalibrationFinished(sensorID int, target calibration.Target, status int) {
	m.publish(m.cfg.TopicCalibration, false, CalibrationMessage{Sensor: sensorID, Target: target.String(), Status: status})
}

func (m *MQTT) Inspection(s imu.Sample) {
	if m.cfg.TopicInspection == "" {
		return
	}
	m.publish(m.cfg.TopicInspection, false, s)
}

// Close waits for pending publishes and disconnects, letting in-flight
// messages drain for 250ms.
func (m *MQTT) Close() {
	m.pending.Wait()
	m.client.Disconnect(250)
}
