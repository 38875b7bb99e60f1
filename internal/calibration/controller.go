// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/sensors"
)

const (
	// DefaultSettle lets the user put the device down before measuring.
	DefaultSettle = 2 * time.Second

	coarseLoops = 6
	fineLoops   = 10
)

// Opts tunes a Controller.
type Opts struct {
	// Settle is waited before a manual run; zero disables it.
	Settle time.Duration
	Clock  clockwork.Clock
}

// Controller executes calibration requests for one sensor.
type Controller struct {
	strategy Strategy
	dev      sensors.Transport
	store    Store
	sensorID int
	opts     Opts
	logger   *log.Entry

	record Record
}

// New builds a controller. The record starts empty; the owner seeds it with
// SetBaseline after loading it from the store.
func New(strategy Strategy, dev sensors.Transport, store Store, sensorID int, opts Opts) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Controller{
		strategy: strategy,
		dev:      dev,
		store:    store,
		sensorID: sensorID,
		opts:     opts,
		logger:   log.WithFields(log.Fields{"component": "calibration", "sensor": sensorID}),
		record:   Record{Kind: KindNone},
	}
}

// Strategy returns the configured strategy.
func (c *Controller) Strategy() Strategy { return c.strategy }

// SetBaseline sets the in-memory record that manual runs build upon.
func (c *Controller) SetBaseline(r Record) { c.record = r }

// Record returns the in-memory record, including measurements whose save
// failed.
func (c *Controller) Record() Record { return c.record }

// Persist saves the in-memory record. Callers use it to retry a save that
// failed after a completed run.
func (c *Controller) Persist() error {
	if c.record.Kind == KindNone {
		return nil
	}
	if err := c.store.Save(c.sensorID, c.record); err != nil {
		if !errors.Is(err, ErrIO) {
			err = fmt.Errorf("%w: %v", ErrIO, err)
		}
		return err
	}
	return nil
}

// Start runs a calibration of target according to the strategy.
//
// A manual run that measured new offsets but failed to persist them still
// returns a Completed outcome alongside an error wrapping ErrIO. The offsets
// stay in the in-memory record; Persist retries the save.
func (c *Controller) Start(target Target) (Outcome, error) {
	if c.strategy == Automatic {
		c.logger.Infof("calibration: %s request acknowledged, DMP calibrates automatically", target)
		return Outcome{Kind: Acknowledged, Target: target}, nil
	}

	if target != Accel && target != Gyro {
		return Outcome{}, fmt.Errorf("calibration: unknown target %v", target)
	}
	c.logger.Infof("calibration: %s run starting, keep the device still", target)
	if c.opts.Settle > 0 {
		c.opts.Clock.Sleep(c.opts.Settle)
	}

	if err := c.dev.SetDMPEnabled(false); err != nil {
		return Outcome{}, fmt.Errorf("calibration: disable DMP: %w", err)
	}
	if err := c.dev.CalibrateGyro(coarseLoops); err != nil {
		return Outcome{}, fmt.Errorf("calibration: coarse gyro: %w", err)
	}
	if err := c.dev.CalibrateAccel(coarseLoops); err != nil {
		return Outcome{}, fmt.Errorf("calibration: coarse accel: %w", err)
	}
	if err := c.dev.SetDMPEnabled(true); err != nil {
		return Outcome{}, fmt.Errorf("%w: re-enable after calibration: %v", ErrDmpInitFailed, err)
	}

	offsets, err := c.refine(target)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Kind: Completed, Target: target, Offsets: offsets}
	c.logger.Infof("calibration: %s offsets %d %d %d", target, offsets.X, offsets.Y, offsets.Z)

	c.record = c.record.withTarget(target, offsets)
	if err := c.Persist(); err != nil {
		c.logger.Warnf("Warning: %s offsets applied but not saved: %v", target, err)
		return out, err
	}
	return out, nil
}

func (c *Controller) refine(target Target) (imu.Axes, error) {
	if target == Accel {
		if err := c.dev.CalibrateAccel(fineLoops); err != nil {
			return imu.Axes{}, fmt.Errorf("calibration: fine accel: %w", err)
		}
		return c.dev.AccelOffsets()
	}
	if err := c.dev.CalibrateGyro(fineLoops); err != nil {
		return imu.Axes{}, fmt.Errorf("calibration: fine gyro: %w", err)
	}
	return c.dev.GyroOffsets()
}

// Apply writes the offsets of r to the device. Empty records are a no-op.
func Apply(dev sensors.Transport, r Record) error {
	off, ok := r.Offsets()
	if !ok {
		return nil
	}
	if err := dev.SetAccelOffsets(off.Accel); err != nil {
		return fmt.Errorf("apply accel offsets: %w", err)
	}
	if err := dev.SetGyroOffsets(off.Gyro); err != nil {
		return fmt.Errorf("apply gyro offsets: %w", err)
	}
	return nil
}
