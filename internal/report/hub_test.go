// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/orientation"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHubBroadcastsOrientation(t *testing.T) {
	h := NewHub(nil, 0)
	conn := dialHub(t, h)

	h.Orientation(4, orientation.Sample{W: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev WSEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "orientation" || ev.Orientation == nil || ev.Orientation.Sensor != 4 {
		t.Errorf("event = %+v", ev)
	}
}

func TestHubTakesCalibrationRequests(t *testing.T) {
	ch := make(chan CalibrationRequest, 1)
	h := NewHub(ch, 9)
	conn := dialHub(t, h)

	if err := conn.WriteJSON(WSMessage{Action: "calibrate", Target: "accel"}); err != nil {
		t.Fatal(err)
	}
	select {
	case req := <-ch:
		if req != (CalibrationRequest{Sensor: 9, Target: calibration.Accel}) {
			t.Errorf("request = %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request not delivered")
	}
}

func TestHubRejectsUnknownAction(t *testing.T) {
	h := NewHub(nil, 0)
	conn := dialHub(t, h)

	if err := conn.WriteJSON(WSMessage{Action: "reboot"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev WSEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "error" {
		t.Errorf("event = %+v, want an error", ev)
	}
}

func TestServeOrientation(t *testing.T) {
	h := NewHub(nil, 0)

	rec := httptest.NewRecorder()
	h.ServeOrientation(rec, httptest.NewRequest("GET", "/api/orientation", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before data = %d", rec.Code)
	}

	h.Orientation(2, orientation.Sample{W: 1})
	h.Orientation(1, orientation.Sample{Z: 1})
	rec = httptest.NewRecorder()
	h.ServeOrientation(rec, httptest.NewRequest("GET", "/api/orientation", nil))
	var out []OrientationMessage
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Sensor != 1 || out[1].Sensor != 2 {
		t.Errorf("orientation list = %+v", out)
	}
}
