// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/config"
	"github.com/relabs-tech/motion_node/internal/lifecycle"
	"github.com/relabs-tech/motion_node/internal/metrics"
	"github.com/relabs-tech/motion_node/internal/orientation"
	"github.com/relabs-tech/motion_node/internal/power"
	"github.com/relabs-tech/motion_node/internal/report"
	"github.com/relabs-tech/motion_node/internal/sensors"
	"github.com/relabs-tech/motion_node/internal/status"
	"github.com/relabs-tech/motion_node/internal/stillness"
)

// NodeOptions select how RunNode reaches the hardware.
type NodeOptions struct {
	// Mock replaces the I²C sensor with synthetic motion and disables the
	// LED and deep sleep.
	Mock bool
}

// RunNode brings the sensor up and runs the node loop until a signal
// arrives or the node goes to sleep.
func RunNode(opts NodeOptions) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}
	log.Infof("starting motion-node for sensor %d (strategy %s)", cfg.SensorID, cfg.CalibrationStrategy)

	dev, err := openTransport(cfg, opts.Mock)
	if err != nil {
		return err
	}

	collector := metrics.New()
	requests := make(chan report.CalibrationRequest, 1)
	hub := report.NewHub(requests, cfg.SensorID)
	reporters := report.Multi{report.Log{}, hub}

	mq, err := report.DialMQTT(mqttConfig(cfg, cfg.MQTTClientID))
	if err != nil {
		log.Warnf("Warning: MQTT unavailable, events stay local: %v", err)
	} else {
		defer mq.Close()
		if err := mq.SubscribeRequests(requests, cfg.SensorID); err != nil {
			log.Warnf("Warning: calibration requests over MQTT disabled: %v", err)
		}
		reporters = append(reporters, mq)
	}

	srv := startWebServer(cfg.WebServerPort, hub, collector)

	lc, err := lifecycle.New(lifecycle.Deps{
		Transport: dev,
		Store:     calibration.NewFileStore(cfg.CalibrationFileDir),
		Reporter:  reporters,
		Sleeper:   openSleeper(cfg, opts.Mock),
		Indicator: openIndicator(cfg, opts.Mock),
		Metrics:   collector,
	}, lifecycleOptions(cfg))
	if err != nil {
		return multierr.Combine(err, dev.Close(), stopWebServer(srv))
	}

	handle := lifecycle.Handle{Address: cfg.IMUI2CAddr, SensorID: cfg.SensorID}
	if err := lc.Setup(handle); err != nil {
		return multierr.Combine(fmt.Errorf("sensor setup: %w", err), lc.Close(), stopWebServer(srv))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	log.Infof("node loop running every %v", cfg.Tick())
	loopErr := runLoop(ctx, lc, ticker.C, requests)
	log.Info("node: shutting down")
	return multierr.Combine(loopErr, lc.Close(), stopWebServer(srv))
}

// runLoop owns the lifecycle: ticks and calibration requests are served on
// this goroutine only, so a calibration run suspends ticking.
func runLoop(ctx context.Context, lc *lifecycle.Lifecycle, ticks <-chan time.Time, requests <-chan report.CalibrationRequest) error {
	sensorID := lc.Handle().SensorID
	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-requests:
			if req.Sensor != sensorID {
				log.Warnf("Warning: calibration request for sensor %d ignored (this is sensor %d)", req.Sensor, sensorID)
				continue
			}
			out, err := lc.StartCalibration(req.Target)
			if err != nil {
				log.Errorf("calibration: %s: %v", req.Target, err)
				if lc.State() == lifecycle.Faulted {
					return err
				}
				continue
			}
			log.Infof("calibration: %s %s", req.Target, out.Kind)

		case <-ticks:
			out, err := lc.Tick()
			if err != nil {
				return err
			}
			if out.Kind == lifecycle.SleepEntered || lc.Asleep() {
				log.Info("node: deep sleep ended, loop stopped for restart")
				return nil
			}
		}
	}
}

func openTransport(cfg *config.Config, mock bool) (sensors.Transport, error) {
	if mock {
		log.Info("using mock sensor")
		src := orientation.NewMockSource(time.Now)
		f := sensors.NewFake()
		f.Trace = false
		f.Source = src.Next
		f.RateSource = src.Rates
		return f, nil
	}

	fw, err := sensors.LoadFirmware(cfg.DMPFirmwarePath)
	if err != nil {
		// InitDMP reports the missing image as a memory load failure.
		log.Warnf("Warning: %v", err)
	}
	dev, err := sensors.OpenMPU6050(cfg.IMUI2CBus, sensors.Opts{Firmware: fw})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func openSleeper(cfg *config.Config, mock bool) power.Sleeper {
	if !cfg.SleepEnabled || mock {
		return power.Disabled{}
	}
	return power.NewSysfs()
}

func openIndicator(cfg *config.Config, mock bool) status.Indicator {
	if cfg.StatusLEDPin == "" || mock {
		return status.Nop{}
	}
	led, err := status.OpenLED(cfg.StatusLEDPin)
	if err != nil {
		log.Warnf("Warning: status LED disabled: %v", err)
		return status.Nop{}
	}
	return led
}

func mqttConfig(cfg *config.Config, clientID string) report.MQTTConfig {
	return report.MQTTConfig{
		Broker:                  cfg.MQTTBroker,
		ClientID:                clientID,
		TopicOrientation:        cfg.TopicOrientation,
		TopicCalibration:        cfg.TopicCalibration,
		TopicCalibrationRequest: cfg.TopicCalibrationRequest,
		TopicInspection:         cfg.TopicInspection,
	}
}

func lifecycleOptions(cfg *config.Config) lifecycle.Options {
	return lifecycle.Options{
		Strategy: cfg.CalibrationStrategy,
		Filter: orientation.FilterConfig{
			MountingDeg:     cfg.IMURotationDeg,
			OptimizeUpdates: cfg.OptimizeUpdates,
			Epsilon:         cfg.QuatEpsilon,
		},
		Stillness: stillness.Config{
			Window:         time.Duration(cfg.StillnessWindow) * time.Millisecond,
			Interval:       cfg.Tick(),
			Jitter:         time.Duration(cfg.StillnessJitter) * time.Millisecond,
			NoiseThreshold: cfg.StillnessNoiseThreshold,
		},
		SleepDuration:     time.Duration(cfg.SleepDuration) * time.Second,
		Inspection:        cfg.EnableInspection,
		StartupSettle:     lifecycle.DefaultStartupSettle,
		CalibrationSettle: calibrationSettle(cfg),
	}
}

func calibrationSettle(cfg *config.Config) time.Duration {
	return time.Duration(cfg.CalibrationSettle) * time.Millisecond
}
