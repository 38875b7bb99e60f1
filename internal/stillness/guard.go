// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stillness decides when the node has been motionless long enough to
// power down.
package stillness

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// Verdict is the result of feeding one sample to the Guard.
type Verdict int

const (
	// Continuing means the window is still filling.
	Continuing Verdict = iota
	// Motionless means a full window of still samples was seen.
	Motionless
	// Reset means the window was restarted because of a timing gap.
	Reset
)

func (v Verdict) String() string {
	switch v {
	case Continuing:
		return "continuing"
	case Motionless:
		return "motionless"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Config sets the window geometry.
type Config struct {
	// Window is how long the device must stay still.
	Window time.Duration
	// Interval is the expected spacing between samples.
	Interval time.Duration
	// Jitter is how late a sample may arrive before the window restarts.
	Jitter time.Duration
	// NoiseThreshold bounds max−min of every axis over the window, in raw
	// rate counts.
	NoiseThreshold float64
}

// Capacity is the number of samples that make up a full window.
func (c Config) Capacity() int {
	if c.Interval <= 0 {
		return 0
	}
	return int(c.Window / c.Interval)
}

// Guard tracks a sliding window of angular-rate samples.
type Guard struct {
	cfg  Config
	size int
	win  *ring

	prev    time.Time
	hasPrev bool
}

// NewGuard validates cfg and returns an empty guard.
func NewGuard(cfg Config) (*Guard, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("stillness: interval must be positive, got %v", cfg.Interval)
	}
	if cfg.Jitter < 0 {
		return nil, fmt.Errorf("stillness: jitter must not be negative, got %v", cfg.Jitter)
	}
	if cfg.NoiseThreshold < 0 {
		return nil, fmt.Errorf("stillness: noise threshold must not be negative, got %v", cfg.NoiseThreshold)
	}
	n := cfg.Capacity()
	if n < 1 {
		return nil, fmt.Errorf("stillness: window %v is shorter than one interval %v", cfg.Window, cfg.Interval)
	}
	return &Guard{cfg: cfg, size: n, win: newRing(n)}, nil
}

// Capacity returns the full-window sample count.
func (g *Guard) Capacity() int { return g.size }

// Len returns how many samples the window currently holds.
func (g *Guard) Len() int { return g.win.len() }

// Sample feeds one rate reading taken at t.
func (g *Guard) Sample(rate r3.Vector, t time.Time) Verdict {
	if g.hasPrev {
		gap := t.Sub(g.prev)
		if gap <= 0 || gap > g.cfg.Interval+g.cfg.Jitter {
			g.win.reset()
			g.win.push(rate)
			g.prev = t
			return Reset
		}
	}
	g.prev, g.hasPrev = t, true

	g.win.push(rate)
	g.trim()

	if g.win.len() >= g.size {
		g.win.reset()
		return Motionless
	}
	return Continuing
}

// Invalidate discards the window after a missed or failed read. The next
// sample starts a fresh window without a gap check.
func (g *Guard) Invalidate() {
	g.win.reset()
	g.hasPrev = false
}

// trim keeps the longest run of newest samples whose per-axis spread is
// within the noise threshold.
func (g *Guard) trim() {
	n := g.win.len()
	newest := g.win.at(n - 1)
	lo, hi := newest, newest
	keep := 1
	for i := n - 2; i >= 0; i-- {
		v := g.win.at(i)
		nlo := r3.Vector{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		nhi := r3.Vector{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
		if spread := nhi.Sub(nlo); spread.X > g.cfg.NoiseThreshold ||
			spread.Y > g.cfg.NoiseThreshold || spread.Z > g.cfg.NoiseThreshold {
			break
		}
		lo, hi = nlo, nhi
		keep++
	}
	g.win.dropOldest(n - keep)
}
