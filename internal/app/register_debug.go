// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/gy801/internal/config"
	"github.com/relabs-tech/gy801/internal/sensors"
)

// RegisterConfigFile is the YAML export of a register dump.
type RegisterConfigFile struct {
	Version   int               `yaml:"version"`
	Device    string            `yaml:"device"`
	Addr      string            `yaml:"addr"`
	Timestamp string            `yaml:"timestamp"`
	Registers map[string]string `yaml:"registers"` // hex address -> hex value
}

// RegisterDumpOpts selects devices and the output format.
type RegisterDumpOpts struct {
	Devices []string // empty means all three
	Export  bool     // YAML instead of the decoded table
	Out     io.Writer
}

// RunRegisterDump opens the bus and dumps the selected devices. It only
// reads; the devices are not reconfigured.
func RunRegisterDump(cfg *config.Config, opts RegisterDumpOpts) error {
	bus, closer, err := sensors.OpenI2C(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer closer.Close()
	return dumpRegisters(bus, opts)
}

func dumpRegisters(bus sensors.RegisterBus, opts RegisterDumpOpts) error {
	devices := sensors.Devices()
	if len(opts.Devices) > 0 {
		devices = devices[:0]
		for _, name := range opts.Devices {
			d, err := sensors.DeviceByName(name)
			if err != nil {
				return err
			}
			devices = append(devices, d)
		}
	}

	for _, dev := range devices {
		values, err := sensors.DumpRegisters(bus, dev)
		if err != nil {
			return err
		}
		log.Debugf("register_debug: read %d registers from %s", len(values), dev.Name)

		if opts.Export {
			if err := exportRegisters(opts.Out, dev, values); err != nil {
				return err
			}
			continue
		}
		if err := printRegisters(opts.Out, dev, values); err != nil {
			return err
		}
	}
	return nil
}

func exportRegisters(w io.Writer, dev sensors.Device, values map[byte]byte) error {
	file := RegisterConfigFile{
		Version:   1,
		Device:    dev.Name,
		Addr:      fmt.Sprintf("0x%02X", dev.Addr),
		Timestamp: time.Now().Format(time.RFC3339),
		Registers: make(map[string]string, len(values)),
	}
	for addr, v := range values {
		file.Registers[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", v)
	}
	b, err := yaml.Marshal([]RegisterConfigFile{file})
	if err != nil {
		return fmt.Errorf("register_debug: encode %s: %w", dev.Name, err)
	}
	_, err = w.Write(b)
	return err
}

func printRegisters(w io.Writer, dev sensors.Device, values map[byte]byte) error {
	regs := append([]sensors.RegisterInfo(nil), dev.Registers...)
	sort.Slice(regs, func(i, j int) bool { return regs[i].Address < regs[j].Address })

	fmt.Fprintf(w, "== %s @ 0x%02X\n", dev.Name, dev.Addr)
	for _, r := range regs {
		v := values[r.Address]
		fmt.Fprintf(w, "0x%02X %-11s %-2s 0x%02X %08b  %s\n", r.Address, r.Name, r.Access, v, v, r.Description)
		for _, f := range r.BitFields {
			fv, err := sensors.FieldValue(v, f.Bits)
			if err != nil {
				return fmt.Errorf("%s %s: %w", dev.Name, r.Name, err)
			}
			fmt.Fprintf(w, "       [%3s] %-10s = %d  (%s)\n", f.Bits, f.Name, fv, f.Values)
		}
	}
	return nil
}
