// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"go.uber.org/multierr"

	"github.com/relabs-tech/motion_node/internal/config"
	"github.com/relabs-tech/motion_node/internal/sensors"
)

// registerReader is the part of the driver regdump needs.
type registerReader interface {
	ReadRegister(reg byte) (byte, error)
}

// RunRegDump connects to the configured sensor and prints every known
// register with its live value.
func RunRegDump(out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialized")
	}
	dev, err := sensors.OpenMPU6050(cfg.IMUI2CBus, sensors.Opts{})
	if err != nil {
		return err
	}
	if err := dev.Connect(cfg.IMUI2CAddr); err != nil {
		return multierr.Append(err, dev.Close())
	}
	fmt.Fprintf(out, "MPU-6050 at 0x%02x on bus %q\n\n", cfg.IMUI2CAddr, cfg.IMUI2CBus)
	return multierr.Append(dumpRegisters(dev, sensors.RegisterMap(), out), dev.Close())
}

func dumpRegisters(r registerReader, regs []sensors.RegisterInfo, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADDR\tNAME\tACCESS\tVALUE\tBINARY")

	var errs error
	for _, info := range regs {
		if info.Access == "W" {
			fmt.Fprintf(w, "0x%02X\t%s\t%s\t-\t-\n", info.Address, info.Name, info.Access)
			continue
		}
		v, err := r.ReadRegister(info.Address)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("register %s (0x%02X): %w", info.Name, info.Address, err))
			fmt.Fprintf(w, "0x%02X\t%s\t%s\tERR\t-\n", info.Address, info.Name, info.Access)
			continue
		}
		fmt.Fprintf(w, "0x%02X\t%s\t%s\t0x%02X\t%08b\n", info.Address, info.Name, info.Access, v, v)
		for _, bf := range info.BitFields {
			fmt.Fprintf(w, "\t  [%s] %s\t\t\t%s\n", bf.Bits, bf.Name, bf.Description)
		}
	}
	return multierr.Append(errs, w.Flush())
}
