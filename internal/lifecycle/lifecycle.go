// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lifecycle sequences sensor bring-up and runs the per-tick work of
// a streaming node: orientation output and the stillness sleep decision.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/metrics"
	"github.com/relabs-tech/motion_node/internal/orientation"
	"github.com/relabs-tech/motion_node/internal/power"
	"github.com/relabs-tech/motion_node/internal/report"
	"github.com/relabs-tech/motion_node/internal/sensors"
	"github.com/relabs-tech/motion_node/internal/status"
	"github.com/relabs-tech/motion_node/internal/stillness"
)

var (
	// ErrNoConnection: the sensor did not answer on the bus.
	ErrNoConnection = errors.New("no connection to sensor")
	// ErrDmpInitFailed: the DMP could not be loaded or started.
	ErrDmpInitFailed = calibration.ErrDmpInitFailed
	// ErrNotStreaming: the request needs a streaming sensor.
	ErrNotStreaming = errors.New("sensor is not streaming")
)

// DefaultStartupSettle is waited before the startup calibration of the
// manual strategy.
const DefaultStartupSettle = time.Second

const startupLoops = 6

// State is the lifecycle position of the sensor.
type State int

const (
	Uninitialized State = iota
	Connecting
	CalibratingStartup
	DmpReady
	Streaming
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case CalibratingStartup:
		return "calibrating"
	case DmpReady:
		return "dmp-ready"
	case Streaming:
		return "streaming"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle identifies the sensor to bring up.
type Handle struct {
	Address  uint16
	SensorID int
}

// TickKind summarises what a Tick did.
type TickKind int

const (
	// Idle: nothing was done, the sensor is not streaming or already asleep.
	Idle TickKind = iota
	// Active: the sensor was serviced.
	Active
	// SleepEntered: a full still window was seen and deep sleep requested.
	SleepEntered
)

func (k TickKind) String() string {
	switch k {
	case Active:
		return "active"
	case SleepEntered:
		return "sleep"
	default:
		return "idle"
	}
}

// TickOutcome reports one Tick.
type TickOutcome struct {
	Kind TickKind
	// Packet is set when a DMP packet was fetched.
	Packet bool
	// Emitted is set when the packet produced an orientation sample.
	Emitted bool
	// Stillness is the guard verdict; Continuing when no rate was read.
	Stillness stillness.Verdict
}

// Deps are the collaborators of a Lifecycle. Store, Reporter, Sleeper,
// Indicator and Clock have usable defaults when nil; Metrics may be nil.
type Deps struct {
	Transport sensors.Transport
	Store     calibration.Store
	Reporter  report.Reporter
	Sleeper   power.Sleeper
	Indicator status.Indicator
	Clock     clockwork.Clock
	Metrics   *metrics.Collector
}

// Options configure the lifecycle.
type Options struct {
	Strategy  calibration.Strategy
	Filter    orientation.FilterConfig
	Stillness stillness.Config
	// SleepDuration is passed to the sleeper; zero sleeps until woken.
	SleepDuration time.Duration
	// Inspection streams raw accel and gyro readings every tick.
	Inspection bool
	// StartupSettle precedes the manual startup calibration.
	StartupSettle time.Duration
	// CalibrationSettle precedes each manual calibration request.
	CalibrationSettle time.Duration
}

// Lifecycle owns the transport, the calibration controller, the filter and
// the stillness guard of one sensor. It is not safe for concurrent use.
type Lifecycle struct {
	dev       sensors.Transport
	store     calibration.Store
	reporter  report.Reporter
	sleeper   power.Sleeper
	indicator status.Indicator
	clock     clockwork.Clock
	metrics   *metrics.Collector
	opts      Options

	handle  Handle
	state   State
	fault   error
	asleep  bool
	closed  bool
	filter  *orientation.Filter
	guard   *stillness.Guard
	control *calibration.Controller
	logger  *log.Entry
}

// New validates the options and returns an Uninitialized lifecycle.
func New(deps Deps, opts Options) (*Lifecycle, error) {
	if deps.Transport == nil {
		return nil, errors.New("lifecycle: no transport")
	}
	guard, err := stillness.NewGuard(opts.Stillness)
	if err != nil {
		return nil, err
	}
	if deps.Store == nil {
		deps.Store = calibration.NewMemoryStore()
	}
	if deps.Reporter == nil {
		deps.Reporter = report.Log{}
	}
	if deps.Sleeper == nil {
		deps.Sleeper = power.Disabled{}
	}
	if deps.Indicator == nil {
		deps.Indicator = status.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Lifecycle{
		dev:       deps.Transport,
		store:     deps.Store,
		reporter:  deps.Reporter,
		sleeper:   deps.Sleeper,
		indicator: deps.Indicator,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		opts:      opts,
		filter:    orientation.NewFilter(opts.Filter),
		guard:     guard,
		logger:    log.WithField("component", "lifecycle"),
	}, nil
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State { return l.state }

// Fault returns the reason of a Faulted state, nil otherwise.
func (l *Lifecycle) Fault() error { return l.fault }

// Asleep reports whether deep sleep has been requested.
func (l *Lifecycle) Asleep() bool { return l.asleep }

// Handle returns the handle passed to Setup.
func (l *Lifecycle) Handle() Handle { return l.handle }

// Record returns the calibration record currently in effect.
func (l *Lifecycle) Record() calibration.Record {
	if l.control == nil {
		return calibration.Record{Kind: calibration.KindNone}
	}
	return l.control.Record()
}

func (l *Lifecycle) setState(s State) {
	l.state = s
	l.metrics.State(int(s))
	l.logger.Debugf("state %s", s)
}

func (l *Lifecycle) setFault(reason error) error {
	l.fault = reason
	l.setState(Faulted)
	l.logger.Errorf("sensor faulted: %v", reason)
	l.indicator.Pattern(status.FaultOn, status.FaultOff, status.FaultCount)
	return reason
}

// Setup brings the sensor from Uninitialized to Streaming. Failures leave
// it Faulted; there is no retry.
func (l *Lifecycle) Setup(h Handle) error {
	if l.state != Uninitialized {
		return fmt.Errorf("lifecycle: setup called in state %s", l.state)
	}
	l.handle = h
	l.logger = l.logger.WithField("sensor", h.SensorID)
	l.control = calibration.New(l.opts.Strategy, l.dev, l.store, h.SensorID, calibration.Opts{
		Settle: l.opts.CalibrationSettle,
		Clock:  l.clock,
	})

	l.setState(Connecting)
	if err := l.dev.Connect(h.Address); err != nil {
		return l.setFault(fmt.Errorf("%w: %v", ErrNoConnection, err))
	}

	rec := l.loadRecord(h.SensorID)
	l.control.SetBaseline(rec)

	if code := l.dev.InitDMP(); code != imu.StatusOK {
		return l.setFault(fmt.Errorf("%w: status %d (%s)", ErrDmpInitFailed, code, code))
	}
	l.logger.Info("IMU: DMP firmware loaded")

	// InitDMP resets the device, so stored offsets go in afterwards.
	if err := calibration.Apply(l.dev, rec); err != nil {
		l.logger.Warnf("Warning: stored offsets not applied: %v", err)
	}

	if l.opts.Strategy == calibration.Manual {
		l.setState(CalibratingStartup)
		l.startupCalibration()
	}

	l.setState(DmpReady)
	if err := l.dev.SetDMPEnabled(true); err != nil {
		return l.setFault(fmt.Errorf("%w: enable: %v", ErrDmpInitFailed, err))
	}
	l.setState(Streaming)
	l.logger.Infof("IMU: streaming at address 0x%02x", h.Address)
	l.indicator.Pattern(status.ReadyOn, status.ReadyOff, status.ReadyCount)
	return nil
}

// loadRecord returns the stored record, or an empty one when it is missing,
// unreadable or for another sensor type.
func (l *Lifecycle) loadRecord(sensorID int) calibration.Record {
	rec, err := l.store.Load(sensorID)
	if err != nil {
		l.logger.Warnf("Warning: calibration record unreadable, using zero offsets: %v", err)
		return calibration.Record{Kind: calibration.KindNone}
	}
	switch rec.Kind {
	case calibration.KindMPU6050:
		if _, ok := rec.Offsets(); ok {
			l.logger.Info("calibration: stored offsets loaded")
			return rec
		}
		l.logger.Warn("Warning: calibration record has no offsets, using zero offsets")
	case calibration.KindNone:
		l.logger.Warn("Warning: no calibration record, using zero offsets")
	default:
		l.logger.Warnf("Warning: calibration record for %q is incompatible, using zero offsets", rec.Kind)
	}
	return calibration.Record{Kind: calibration.KindNone}
}

func (l *Lifecycle) startupCalibration() {
	if l.opts.StartupSettle > 0 {
		l.clock.Sleep(l.opts.StartupSettle)
	}
	if err := l.dev.CalibrateGyro(startupLoops); err != nil {
		l.logger.Warnf("Warning: startup gyro calibration: %v", err)
	}
	if err := l.dev.CalibrateAccel(startupLoops); err != nil {
		l.logger.Warnf("Warning: startup accel calibration: %v", err)
	}
}

// Tick services a streaming sensor once. It returns an error only when the
// deep-sleep request itself failed.
func (l *Lifecycle) Tick() (TickOutcome, error) {
	if l.state != Streaming || l.asleep {
		return TickOutcome{Kind: Idle}, nil
	}
	l.metrics.Tick()
	now := l.clock.Now()
	out := TickOutcome{Kind: Active}

	q, ok, err := l.dev.FetchPacket()
	switch {
	case err != nil:
		l.metrics.Skipped("error")
		l.logger.Debugf("packet skipped: %v", err)
	case !ok:
		l.metrics.Skipped("empty")
	default:
		out.Packet = true
		l.metrics.Packet()
		if s, emit := l.filter.Update(q, now); emit {
			out.Emitted = true
			l.metrics.Emitted()
			l.reporter.Orientation(l.handle.SensorID, s)
		}
	}

	rates, err := l.dev.ReadRawRates()
	if err != nil {
		l.logger.Debugf("rate read failed, stillness window restarted: %v", err)
		l.guard.Invalidate()
		l.metrics.StillnessReset()
		return out, nil
	}
	l.inspect(rates)

	out.Stillness = l.guard.Sample(r3.Vector{X: float64(rates.X), Y: float64(rates.Y), Z: float64(rates.Z)}, now)
	switch out.Stillness {
	case stillness.Reset:
		l.metrics.StillnessReset()
	case stillness.Motionless:
		if !l.sleeper.Enabled() {
			l.logger.Debugf("device still for %v, sleep disabled, streaming on", l.opts.Stillness.Window)
			return out, nil
		}
		out.Kind = SleepEntered
		return out, l.enterSleep()
	}
	return out, nil
}

func (l *Lifecycle) inspect(rates imu.Axes) {
	if !l.opts.Inspection {
		return
	}
	accel, err := l.dev.ReadRawAccel()
	if err != nil {
		l.logger.Debugf("inspection accel read: %v", err)
		return
	}
	l.reporter.Inspection(imu.Sample{
		Sensor: l.handle.SensorID,
		Ax:     accel.X,
		Ay:     accel.Y,
		Az:     accel.Z,
		Gx:     rates.X,
		Gy:     rates.Y,
		Gz:     rates.Z,
	})
}

// enterSleep is the only call site of the sleeper and runs at most once.
// The transport is released first so the DMP is off while suspended.
func (l *Lifecycle) enterSleep() error {
	l.asleep = true
	l.logger.Infof("device still for %v, entering deep sleep", l.opts.Stillness.Window)
	l.indicator.Off()
	if err := l.Close(); err != nil {
		l.logger.Warnf("Warning: releasing sensor before sleep: %v", err)
	}
	if err := l.sleeper.EnterDeepSleep(l.opts.SleepDuration); err != nil {
		return fmt.Errorf("deep sleep: %w", err)
	}
	return nil
}

// StartCalibration runs a calibration request inline. Ticks are suspended
// for its duration, so the stillness window restarts afterwards.
func (l *Lifecycle) StartCalibration(target calibration.Target) (calibration.Outcome, error) {
	if l.state != Streaming || l.asleep {
		return calibration.Outcome{}, fmt.Errorf("%w (state %s)", ErrNotStreaming, l.state)
	}
	l.indicator.On()
	defer l.indicator.Off()
	defer l.guard.Invalidate()

	out, err := l.control.Start(target)
	switch {
	case err == nil:
		l.metrics.Calibration(target.String(), out.Kind.String())
		l.reporter.CalibrationFinished(l.handle.SensorID, target, report.StatusOK)
		return out, nil

	case errors.Is(err, calibration.ErrIO) && out.Kind == calibration.Completed:
		l.metrics.Calibration(target.String(), "save-failed")
		l.reporter.CalibrationFinished(l.handle.SensorID, target, report.StatusSaveFailed)
		return out, err

	case errors.Is(err, ErrDmpInitFailed):
		l.metrics.Calibration(target.String(), "failed")
		return out, l.setFault(err)
	}

	// The run stopped part way, possibly with the DMP off.
	l.metrics.Calibration(target.String(), "failed")
	l.logger.Errorf("calibration: %s run failed: %v", target, err)
	if enErr := l.dev.SetDMPEnabled(true); enErr != nil {
		return out, l.setFault(fmt.Errorf("%w: resume after calibration: %v", ErrDmpInitFailed, enErr))
	}
	return out, err
}

// Close releases the transport. Only the first call reaches it.
func (l *Lifecycle) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.dev.Close()
}
