// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gy801/internal/imu"
)

// Calibration holds the fixed per-board constants supplied at construction.
// The gyroscope gain is not part of it: it is read from the device.
type Calibration struct {
	AccelOffset r3.Vector // g
	MagOffset   r3.Vector // counts
	Declination float64   // degrees
}

// GY801 groups the three sensors of the GY-801 breakout sharing one bus.
type GY801 struct {
	Accel   *ADXL345
	Gyro    *L3G4200D
	Compass *HMC5883L
}

// NewGY801 configures all three devices. It fails on the first device
// that cannot be configured; there is no partially initialized board.
func NewGY801(bus RegisterBus, cal Calibration) (*GY801, error) {
	compass, err := NewHMC5883L(bus, HMC5883LOpts{Offset: cal.MagOffset, Declination: cal.Declination})
	if err != nil {
		return nil, fmt.Errorf("gy801: %w", err)
	}
	accel, err := NewADXL345(bus, ADXL345Opts{Offset: cal.AccelOffset})
	if err != nil {
		return nil, fmt.Errorf("gy801: %w", err)
	}
	gyro, err := NewL3G4200D(bus, L3G4200DOpts{})
	if err != nil {
		return nil, fmt.Errorf("gy801: %w", err)
	}

	log.Infof("gy801: accelerometer 0x%02X, gyroscope 0x%02X (gain %.5f dps/LSB), magnetometer 0x%02X",
		accel.addr, gyro.addr, gyro.Gain(), compass.addr)
	return &GY801{Accel: accel, Gyro: gyro, Compass: compass}, nil
}

var _ imu.IMURawSource = (*GY801)(nil)

// ReadRaw reads accelerometer, gyroscope and magnetometer counts.
func (b *GY801) ReadRaw() (imu.IMURaw, error) {
	var raw imu.IMURaw
	var acc, gyr, mag [3]int16
	for _, a := range imu.Axes {
		v, err := b.Accel.RawAxis(a)
		if err != nil {
			return imu.IMURaw{}, err
		}
		acc[a] = v
	}
	for _, a := range imu.Axes {
		v, err := b.Gyro.RawAxis(a)
		if err != nil {
			return imu.IMURaw{}, err
		}
		gyr[a] = v
	}
	for _, a := range imu.Axes {
		v, err := b.Compass.RawAxis(a)
		if err != nil {
			return imu.IMURaw{}, err
		}
		mag[a] = v
	}
	raw.Ax, raw.Ay, raw.Az = acc[0], acc[1], acc[2]
	raw.Gx, raw.Gy, raw.Gz = gyr[0], gyr[1], gyr[2]
	raw.Mx, raw.My, raw.Mz = mag[0], mag[1], mag[2]
	return raw, nil
}
