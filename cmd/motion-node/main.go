// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/motion_node/internal/app"
	"github.com/relabs-tech/motion_node/internal/calibration"
	"github.com/relabs-tech/motion_node/internal/config"
)

var (
	configPath string
	mock       bool
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "motion-node",
		Short: "MPU-6050 body-tracking sensor node",
		Long: `motion-node streams the DMP orientation of one MPU-6050 over MQTT and
websocket, calibrates its offsets on request and suspends the host once
the sensor has been still for the configured window.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./motion_config.txt", "path to configuration file (empty for defaults and environment only)")
	root.PersistentFlags().BoolVar(&mock, "mock", false, "use a synthetic sensor instead of the I2C device")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Bring the sensor up and stream orientation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.RunNode(app.NodeOptions{Mock: mock})
			},
		},
		&cobra.Command{
			Use:       "calibrate accel|gyro",
			Short:     "Run one manual calibration and store the offsets",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"accel", "gyro"},
			RunE: func(cmd *cobra.Command, args []string) error {
				target, err := calibration.ParseTarget(args[0])
				if err != nil {
					return err
				}
				return app.RunCalibrate(target, app.NodeOptions{Mock: mock}, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "regdump",
			Short: "Print the MPU-6050 registers with their live values",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.RunRegDump(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "console",
			Short: "Print the events published by a node",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.RunConsole(app.NodeOptions{Mock: mock}, cmd.OutOrStdout())
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and sets the log level from it.
func setup() error {
	if err := config.InitGlobal(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, err := log.ParseLevel(config.Get().LogLevel)
	if err != nil {
		log.Warnf("Warning: %v, logging at info", err)
		level = log.InfoLevel
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
