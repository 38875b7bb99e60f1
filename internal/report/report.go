// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report sends node events to the outside world and collects
// calibration requests coming back.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/orientation"
)

// Calibration finished status codes.
const (
	StatusOK         = 0
	StatusSaveFailed = 1
)

// Reporter receives node events. Implementations must not block the caller
// for long; the node loop calls them inline.
type Reporter interface {
	Orientation(sensorID int, s orientation.Sample)
	CalibrationFinished(sensorID int, target calibration.Target, status int)
	Inspection(s imu.Sample)
}

// OrientationMessage is the wire form of an orientation event.
type OrientationMessage struct {
	Sensor int              `json:"sensor"`
	W      float64          `json:"w"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Z      float64          `json:"z"`
	Pose   orientation.Pose `json:"pose"`
	Time   time.Time        `json:"time"`
}

// NewOrientationMessage builds the wire form of s.
func NewOrientationMessage(sensorID int, s orientation.Sample) OrientationMessage {
	return OrientationMessage{
		Sensor: sensorID,
		W:      s.W,
		X:      s.X,
		Y:      s.Y,
		Z:      s.Z,
		Pose:   s.Pose(),
		Time:   s.Time,
	}
}

// CalibrationMessage reports the end of a calibration run.
type CalibrationMessage struct {
	Sensor int    `json:"sensor"`
	Target string `json:"target"`
	Status int    `json:"status"`
}

// CalibrationRequest asks the node loop to calibrate one target.
type CalibrationRequest struct {
	Sensor int                `json:"sensor"`
	Target calibration.Target `json:"-"`
}

// ParseCalibrationRequest accepts either a bare target name ("gyro") or a
// JSON object {"sensor": 1, "target": "accel"}. Missing sensor means
// defaultSensor.
func ParseCalibrationRequest(payload []byte, defaultSensor int) (CalibrationRequest, error) {
	text := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(text, "{") {
		t, err := calibration.ParseTarget(text)
		if err != nil {
			return CalibrationRequest{}, err
		}
		return CalibrationRequest{Sensor: defaultSensor, Target: t}, nil
	}

	var msg struct {
		Sensor *int   `json:"sensor"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return CalibrationRequest{}, fmt.Errorf("calibration request: %w", err)
	}
	t, err := calibration.ParseTarget(msg.Target)
	if err != nil {
		return CalibrationRequest{}, err
	}
	req := CalibrationRequest{Sensor: defaultSensor, Target: t}
	if msg.Sensor != nil {
		req.Sensor = *msg.Sensor
	}
	return req, nil
}

// deliver hands req to the node loop without blocking the network callback.
func deliver(requests chan<- CalibrationRequest, req CalibrationRequest, from string) {
	if requests == nil {
		return
	}
	select {
	case requests <- req:
		log.Infof("%s: calibration request for sensor %d (%s) queued", from, req.Sensor, req.Target)
	default:
		log.Warnf("Warning: %s: calibration already pending, request for %s dropped", from, req.Target)
	}
}

// Multi fans events out to several reporters.
type Multi []Reporter

func (m Multi) Orientation(sensorID int, s orientation.Sample) {
	for _, r := range m {
		r.Orientation(sensorID, s)
	}
}

func (m Multi) CalibrationFinished(sensorID int, target calibration.Target, status int) {
	for _, r := range m {
		r.CalibrationFinished(sensorID, target, status)
	}
}

func (m Multi) Inspection(s imu.Sample) {
	for _, r := range m {
		r.Inspection(s)
	}
}

// Log writes events to the logger; orientation at debug level.
type Log struct{}

func (Log) Orientation(sensorID int, s orientation.Sample) {
	p := s.Pose()
	log.WithField("sensor", sensorID).Debugf("orientation: ROLL=%6.2f PITCH=%6.2f YAW=%6.2f", p.Roll, p.Pitch, p.Yaw)
}

func (Log) CalibrationFinished(sensorID int, target calibration.Target, status int) {
	log.WithField("sensor", sensorID).Infof("calibration: %s finished with status %d", target, status)
}

func (Log) Inspection(s imu.Sample) {
	log.WithField("sensor", s.Sensor).Debugf("inspection: accel %d %d %d gyro %d %d %d", s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz)
}
