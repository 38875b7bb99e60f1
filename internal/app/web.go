// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_node/internal/metrics"
	"github.com/relabs-tech/motion_node/internal/report"
)

const shutdownTimeout = 2 * time.Second

// newWebMux routes the node's HTTP surface:
//
//	/ws               websocket event stream and calibration requests
//	/api/orientation  latest orientation per sensor
//	/metrics          Prometheus metrics
func newWebMux(hub *report.Hub, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/orientation", hub.ServeOrientation)
	mux.Handle("/metrics", collector.Handler())
	return mux
}

// startWebServer serves the mux in the background. Port 0 disables it.
func startWebServer(port int, hub *report.Hub, collector *metrics.Collector) *http.Server {
	if port == 0 {
		log.Info("web server disabled")
		return nil
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newWebMux(hub, collector),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("web server: %v", err)
		}
	}()
	return srv
}

func stopWebServer(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
