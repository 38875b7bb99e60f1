// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/imu"
	"github.com/relabs-tech/motion_node/internal/orientation"
)

const clientQueue = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other hosts on the LAN
	},
}

// WSMessage is what browsers send on the websocket.
type WSMessage struct {
	Action string `json:"action"` // calibrate
	Target string `json:"target,omitempty"`
	Sensor *int   `json:"sensor,omitempty"`
}

// WSEvent is what the hub pushes to browsers.
type WSEvent struct {
	Type        string              `json:"type"` // orientation, calibration, inspection, error
	Orientation *OrientationMessage `json:"orientation,omitempty"`
	Calibration *CalibrationMessage `json:"calibration,omitempty"`
	Inspection  *imu.Sample         `json:"inspection,omitempty"`
	Message     string              `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams events to websocket clients and takes calibration requests
// from them. It also remembers the latest orientation per sensor for the
// JSON API.
type Hub struct {
	requests      chan<- CalibrationRequest
	defaultSensor int
	logger        *log.Entry

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	latest  map[int]OrientationMessage
}

// NewHub returns an empty hub. requests may be nil to refuse calibration.
func NewHub(requests chan<- CalibrationRequest, defaultSensor int) *Hub {
	return &Hub{
		requests:      requests,
		defaultSensor: defaultSensor,
		logger:        log.WithField("component", "ws"),
		clients:       map[*wsClient]struct{}{},
		latest:        map[int]OrientationMessage{},
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Infof("client %s connected", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debugf("write to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}()

	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	<-done
	conn.Close()
	h.logger.Infof("client %s disconnected", r.RemoteAddr)
}

func (h *Hub) readLoop(c *wsClient) {
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("Warning: websocket read error: %v", err)
			}
			return
		}
		switch msg.Action {
		case "calibrate":
			t, err := calibration.ParseTarget(msg.Target)
			if err != nil {
				h.sendTo(c, WSEvent{Type: "error", Message: err.Error()})
				continue
			}
			if h.requests == nil {
				h.sendTo(c, WSEvent{Type: "error", Message: "calibration is not available"})
				continue
			}
			req := CalibrationRequest{Sensor: h.defaultSensor, Target: t}
			if msg.Sensor != nil {
				req.Sensor = *msg.Sensor
			}
			deliver(h.requests, req, "ws")
		default:
			h.sendTo(c, WSEvent{Type: "error", Message: "unknown action " + msg.Action})
		}
	}
}

func (h *Hub) sendTo(c *wsClient, ev WSEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("json marshal error: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// broadcast queues ev for every client, dropping it for clients that are
// too slow to keep up.
func (h *Hub) broadcast(ev WSEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("json marshal error: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
		}
	}
}

func (h *Hub) Orientation(sensorID int, s orientation.Sample) {
	msg := NewOrientationMessage(sensorID, s)
	h.mu.Lock()
	h.latest[sensorID] = msg
	h.mu.Unlock()
	h.broadcast(WSEvent{Type: "orientation", Orientation: &msg})
}

func (h *Hub) CalibrationFinished(sensorID int, target calibration.Target, status int) {
	h.broadcast(WSEvent{Type: "calibration", Calibration: &CalibrationMessage{
		Sensor: sensorID,
		Target: target.String(),
		Status: status,
	}})
}

func (h *Hub) Inspection(s imu.Sample) {
	h.broadcast(WSEvent{Type: "inspection", Inspection: &s})
}

// ServeOrientation answers with the latest orientation of every sensor.
func (h *Hub) ServeOrientation(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.latest) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	out := make([]OrientationMessage, 0, len(h.latest))
	for _, m := range h.latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sensor < out[j].Sensor })
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Errorf("json encode error: %v", err)
	}
}
