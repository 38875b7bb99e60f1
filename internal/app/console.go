// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/config"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/orientation"
	"github.com/relabs-tech/motion_node/internal/report"
)

// RunConsole subscribes to the node topics and prints every event until
// interrupted. With Mock set it prints synthetic poses without a broker.
func RunConsole(opts NodeOptions, out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}
	if opts.Mock {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMockConsole(ctx, orientation.NewMockSource(time.Now), out, 100*time.Millisecond)
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	topics := map[string]func([]byte) (string, error){
		cfg.TopicOrientation: formatOrientation,
		cfg.TopicCalibration: formatCalibration,
	}
	if cfg.TopicInspection != "" {
		topics[cfg.TopicInspection] = formatInspection
	}
	for topic, format := range topics {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Warnf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			client.Disconnect(250)
			return token.Error()
		}
		log.Infof("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

func runMockConsole(ctx context.Context, src *orientation.MockSource, out io.Writer, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			q := src.Next()
			msg := report.NewOrientationMessage(0, orientation.Sample{W: q.W, X: q.X, Y: q.Y, Z: q.Z, Time: t})
			fmt.Fprintln(out, orientationLine(msg))
		}
	}
}

func formatOrientation(payload []byte) (string, error) {
	var m report.OrientationMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return orientationLine(m), nil
}

func orientationLine(m report.OrientationMessage) string {
	return fmt.Sprintf("[POSE %d] ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  q=(%.4f %.4f %.4f %.4f)",
		m.Sensor, m.Pose.Roll, m.Pose.Pitch, m.Pose.Yaw, m.W, m.X, m.Y, m.Z)
}

func formatCalibration(payload []byte) (string, error) {
	var m report.CalibrationMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	result := "ok"
	if m.Status == report.StatusSaveFailed {
		result = "applied, not saved"
	}
	return fmt.Sprintf("[CAL  %d] %s %s (status %d)", m.Sensor, m.Target, result, m.Status), nil
}

func formatInspection(payload []byte) (string, error) {
	var s imu.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf("[IMU  %d] ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d",
		s.Sensor, s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz), nil
}
