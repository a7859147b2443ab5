// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"

	"github.com/relabs-tech/gy801/internal/config"
)

// OpenGY801 opens the configured I2C bus and brings up the board with the
// configured calibration. Close the returned closer when done.
func OpenGY801() (*GY801, *I2CBus, io.Closer, error) {
	cfg := config.Get()
	if cfg == nil {
		return nil, nil, nil, fmt.Errorf("gy801: configuration not initialized")
	}

	bus, closer, err := OpenI2C(cfg.I2CBus)
	if err != nil {
		return nil, nil, nil, err
	}

	board, err := NewGY801(bus, CalibrationFromConfig(cfg))
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return board, bus, closer, nil
}

// CalibrationFromConfig maps configuration keys to board calibration.
func CalibrationFromConfig(cfg *config.Config) Calibration {
	return Calibration{
		AccelOffset: cfg.Accel.Offset.Vector(),
		MagOffset:   cfg.Mag.Offset.Vector(),
		Declination: DeclinationAngle(cfg.Mag.DeclinationDeg, cfg.Mag.DeclinationMin),
	}
}
