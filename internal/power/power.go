// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package power puts the node into deep sleep.
package power

import (
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sleeper enters the platform deep-sleep state. A zero duration sleeps until
// an external wake-up (the longest sleep the platform offers).
//
// Enabled reports whether EnterDeepSleep actually suspends; callers keep
// running when it does not.
type Sleeper interface {
	Enabled() bool
	EnterDeepSleep(d time.Duration) error
}

const (
	DefaultStatePath     = "/sys/power/state"
	DefaultWakeAlarmPath = "/sys/class/rtc/rtc0/wakealarm"
)

// Sysfs suspends to RAM through the kernel power interface. The write to the
// state file returns once the system resumes.
type Sysfs struct {
	StatePath     string
	WakeAlarmPath string
	Now           func() time.Time
}

// NewSysfs returns a sleeper using the default kernel paths.
func NewSysfs() *Sysfs {
	return &Sysfs{StatePath: DefaultStatePath, WakeAlarmPath: DefaultWakeAlarmPath}
}

func (s *Sysfs) Enabled() bool { return true }

func (s *Sysfs) EnterDeepSleep(d time.Duration) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}

	if d > 0 {
		// Clear any previous alarm first; the RTC refuses to overwrite one.
		if err := os.WriteFile(s.WakeAlarmPath, []byte("0"), 0o644); err != nil {
			return fmt.Errorf("clear RTC wake alarm: %w", err)
		}
		at := strconv.FormatInt(now().Add(d).Unix(), 10)
		if err := os.WriteFile(s.WakeAlarmPath, []byte(at), 0o644); err != nil {
			return fmt.Errorf("arm RTC wake alarm: %w", err)
		}
	}

	log.Infof("power: entering deep sleep (wake after %v)", describe(d))
	if err := os.WriteFile(s.StatePath, []byte("mem"), 0o644); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	log.Info("power: resumed from deep sleep")
	return nil
}

// Disabled never sleeps; used when SLEEP_ENABLED is off and in mock runs.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) EnterDeepSleep(d time.Duration) error {
	log.Infof("power: deep sleep (wake after %v) skipped, sleep is disabled", describe(d))
	return nil
}

func describe(d time.Duration) string {
	if d <= 0 {
		return "external wake-up"
	}
	return d.String()
}
