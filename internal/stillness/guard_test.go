// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stillness

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
)

var t0 = time.Unix(1700000000, 0)

func secondGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := NewGuard(Config{
		Window:         10 * time.Second,
		Interval:       time.Second,
		Jitter:         100 * time.Millisecond,
		NoiseThreshold: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// jiggle returns a small rate that alternates sign around zero.
func jiggle(i int) r3.Vector {
	if i%2 == 0 {
		return r3.Vector{X: 0.5, Y: -0.5, Z: 0.5}
	}
	return r3.Vector{X: -0.5, Y: 0.5, Z: -0.5}
}

func TestCapacity(t *testing.T) {
	tests := []struct {
		window, interval time.Duration
		want             int
	}{
		{10 * time.Second, time.Second, 10},
		{10 * time.Second, 10 * time.Millisecond, 1000},
		{time.Second, 300 * time.Millisecond, 3},
	}
	for _, tt := range tests {
		g, err := NewGuard(Config{Window: tt.window, Interval: tt.interval})
		if err != nil {
			t.Fatal(err)
		}
		if got := g.Capacity(); got != tt.want {
			t.Errorf("Capacity(%v/%v) = %d, want %d", tt.window, tt.interval, got, tt.want)
		}
	}
}

func TestNewGuardRejectsBadConfig(t *testing.T) {
	bad := []Config{
		{Window: time.Second},
		{Window: time.Second, Interval: 2 * time.Second},
		{Window: time.Second, Interval: time.Second, Jitter: -1},
		{Window: time.Second, Interval: time.Second, NoiseThreshold: -1},
	}
	for _, cfg := range bad {
		if _, err := NewGuard(cfg); err == nil {
			t.Errorf("NewGuard(%+v) accepted", cfg)
		}
	}
}

func TestMotionlessOnTenthSample(t *testing.T) {
	g := secondGuard(t)
	for i := 0; i < 9; i++ {
		if v := g.Sample(jiggle(i), t0.Add(time.Duration(i)*time.Second)); v != Continuing {
			t.Fatalf("sample %d: %v, want continuing", i, v)
		}
	}
	if v := g.Sample(jiggle(9), t0.Add(9*time.Second)); v != Motionless {
		t.Fatalf("sample 9: %v, want motionless", v)
	}
	if g.Len() != 0 {
		t.Errorf("window holds %d samples after motionless", g.Len())
	}
}

func TestMotionlessOncePerWindow(t *testing.T) {
	g := secondGuard(t)
	count := 0
	for i := 0; i < 25; i++ {
		if g.Sample(jiggle(i), t0.Add(time.Duration(i)*time.Second)) == Motionless {
			count++
		}
	}
	// Two full windows out of 25 samples; the last 5 are a partial window.
	if count != 2 {
		t.Errorf("motionless %d times, want 2", count)
	}
}

func TestLateSampleResets(t *testing.T) {
	g := secondGuard(t)
	for i := 0; i < 5; i++ {
		g.Sample(jiggle(i), t0.Add(time.Duration(i)*time.Second))
	}
	late := t0.Add(4*time.Second + 1200*time.Millisecond)
	if v := g.Sample(jiggle(5), late); v != Reset {
		t.Fatalf("late sample: %v, want reset", v)
	}
	if g.Len() != 1 {
		t.Errorf("window holds %d samples, want the late sample only", g.Len())
	}
	// Nine more on cadence complete the fresh window.
	var v Verdict
	for i := 1; i <= 9; i++ {
		v = g.Sample(jiggle(i), late.Add(time.Duration(i)*time.Second))
	}
	if v != Motionless {
		t.Errorf("after reset: %v, want motionless", v)
	}
}

func TestJitterWithinBound(t *testing.T) {
	g := secondGuard(t)
	g.Sample(jiggle(0), t0)
	if v := g.Sample(jiggle(1), t0.Add(1100*time.Millisecond)); v != Continuing {
		t.Errorf("sample at interval+jitter: %v, want continuing", v)
	}
}

func TestNonMonotonicResets(t *testing.T) {
	g := secondGuard(t)
	g.Sample(jiggle(0), t0)
	g.Sample(jiggle(1), t0.Add(time.Second))
	for _, ts := range []time.Time{t0.Add(time.Second), t0} {
		if v := g.Sample(jiggle(2), ts); v != Reset {
			t.Errorf("sample at %v: %v, want reset", ts.Sub(t0), v)
		}
	}
}

func TestMovementSlidesWindow(t *testing.T) {
	g := secondGuard(t)
	var i int
	for ; i < 6; i++ {
		g.Sample(jiggle(i), t0.Add(time.Duration(i)*time.Second))
	}
	// A jolt on Y keeps only itself.
	g.Sample(r3.Vector{Y: 40}, t0.Add(time.Duration(i)*time.Second))
	i++
	if g.Len() != 1 {
		t.Fatalf("window holds %d samples after a jolt, want 1", g.Len())
	}
	// Quiet again: the jolt is dropped by the first quiet sample.
	for n := 0; n < 10; n++ {
		v := g.Sample(jiggle(n), t0.Add(time.Duration(i)*time.Second))
		i++
		if n < 9 && v != Continuing {
			t.Fatalf("quiet sample %d: %v", n, v)
		}
		if n == 9 && v != Motionless {
			t.Fatalf("quiet sample %d: %v, want motionless", n, v)
		}
	}
}

func TestSlowDriftKeepsRecentSuffix(t *testing.T) {
	g := secondGuard(t)
	for i := 0; i < 6; i++ {
		g.Sample(r3.Vector{Z: float64(i)}, t0.Add(time.Duration(i)*time.Second))
	}
	// Z spans 3..5 at most within a threshold of 2.
	if g.Len() != 3 {
		t.Errorf("window holds %d samples, want 3", g.Len())
	}
}

func TestInvalidateRestartsWithoutGapCheck(t *testing.T) {
	g := secondGuard(t)
	for i := 0; i < 5; i++ {
		g.Sample(jiggle(i), t0.Add(time.Duration(i)*time.Second))
	}
	g.Invalidate()
	if g.Len() != 0 {
		t.Fatalf("window holds %d samples after invalidate", g.Len())
	}
	if v := g.Sample(jiggle(0), t0.Add(time.Minute)); v != Continuing {
		t.Errorf("first sample after invalidate: %v, want continuing", v)
	}
}
