// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/relabs-tech/gy801/internal/env"
)

// BMP180Addr is the fixed address of the barometer on the GY-801.
const BMP180Addr = 0x77

// Barometer is the BMP180 of the board, driven by the periph bmxx80 driver.
type Barometer struct {
	dev        *bmxx80.Dev
	seaLevelPa float64
}

// NewBarometer opens the BMP180 on bus. seaLevelPa is the reference for
// the altitude estimate; 0 selects the standard atmosphere.
func NewBarometer(bus i2c.Bus, addr uint16, seaLevelPa float64) (*Barometer, error) {
	if addr == 0 {
		addr = BMP180Addr
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bmp180: init: %w", err)
	}
	log.WithFields(log.Fields{"dev": "bmp180", "addr": fmt.Sprintf("0x%02X", addr)}).Debug("barometer initialized")
	return &Barometer{dev: dev, seaLevelPa: seaLevelPa}, nil
}

// Read reads temperature and pressure.
func (b *Barometer) Read() (env.Sample, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("bmp180: sense: %w", err)
	}
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.NewSample(e.Temperature.Celsius(), pressurePa, b.seaLevelPa), nil
}

// Halt stops the device.
func (b *Barometer) Halt() error {
	return b.dev.Halt()
}
