// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package status drives the node's status LED.
package status

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Indicator shows node state to the user.
type Indicator interface {
	On()
	Off()
	// Pattern blinks count times and leaves the indicator off.
	Pattern(on, off time.Duration, count int)
}

// Blink timings used by the node.
const (
	ReadyOn    = 100 * time.Millisecond
	ReadyOff   = 100 * time.Millisecond
	ReadyCount = 3

	FaultOn    = 500 * time.Millisecond
	FaultOff   = 500 * time.Millisecond
	FaultCount = 5
)

// LED is an Indicator on a GPIO output, active high.
type LED struct {
	pin   gpio.PinOut
	sleep func(time.Duration)
}

// NewLED wraps an already resolved pin. sleep nil means time.Sleep.
func NewLED(pin gpio.PinOut, sleep func(time.Duration)) *LED {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &LED{pin: pin, sleep: sleep}
}

// OpenLED initializes the periph host and resolves the named pin.
func OpenLED(name string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("status LED pin %q not found", name)
	}
	l := NewLED(p, nil)
	l.Off()
	return l, nil
}

func (l *LED) set(level gpio.Level) {
	if err := l.pin.Out(level); err != nil {
		log.Warnf("Warning: status LED %s: %v", l.pin, err)
	}
}

func (l *LED) On()  { l.set(gpio.High) }
func (l *LED) Off() { l.set(gpio.Low) }

func (l *LED) Pattern(on, off time.Duration, count int) {
	for i := 0; i < count; i++ {
		l.On()
		l.sleep(on)
		l.Off()
		l.sleep(off)
	}
}

// Nop is used when no LED pin is configured.
type Nop struct{}

func (Nop) On()                                      {}
func (Nop) Off()                                     {}
func (Nop) Pattern(on, off time.Duration, count int) {}
