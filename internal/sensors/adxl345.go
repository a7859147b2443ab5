// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gy801/internal/imu"
	"github.com/relabs-tech/gy801/internal/orientation"
)

// ADXL345 register map and configuration values.
const (
	ADXL345Addr = 0x53

	adxlRegBWRate     = 0x2C
	adxlRegPowerCtl   = 0x2D
	adxlRegDataFormat = 0x31
	adxlRegDataX0     = 0x32
	adxlRegDataY0     = 0x34
	adxlRegDataZ0     = 0x36

	adxlBWRate100Hz = 0x0A // 100 Hz output data rate
	adxlMeasure     = 0x08 // POWER_CTL D3: measurement mode
	adxlFullRes2g   = 0x08 // DATA_FORMAT D3: full resolution, D1:D0 = 00 (±2g)

	// ADXL345ScaleMultiplier is g per LSB in full resolution (1/256).
	ADXL345ScaleMultiplier = 0.00390625

	// EarthGravityMS2 converts g to m/s².
	EarthGravityMS2 = 9.80665
)

var adxlDataRegs = [3]byte{adxlRegDataX0, adxlRegDataY0, adxlRegDataZ0}

// ADXL345Opts holds per-device calibration. A zero Scale axis falls back
// to ADXL345ScaleMultiplier.
type ADXL345Opts struct {
	Addr   uint16
	Offset r3.Vector // g, subtracted after scaling
	Scale  r3.Vector // g per LSB
}

// ADXL345 is the GY-801 accelerometer.
type ADXL345 struct {
	bus    RegisterBus
	addr   uint16
	offset [3]float64
	scale  [3]float64

	raw [3]int16
	g   [3]float64 // last (filtered) g value per axis
	ms2 [3]float64
}

// NewADXL345 writes BW_RATE, POWER_CTL and DATA_FORMAT. Any bus failure
// aborts construction.
func NewADXL345(bus RegisterBus, opts ADXL345Opts) (*ADXL345, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = ADXL345Addr
	}
	d := &ADXL345{
		bus:    bus,
		addr:   addr,
		offset: [3]float64{opts.Offset.X, opts.Offset.Y, opts.Offset.Z},
		scale:  [3]float64{opts.Scale.X, opts.Scale.Y, opts.Scale.Z},
	}
	for i := range d.scale {
		if d.scale[i] == 0 {
			d.scale[i] = ADXL345ScaleMultiplier
		}
	}

	for _, w := range []struct {
		reg, val byte
		name     string
	}{
		{adxlRegBWRate, adxlBWRate100Hz, "BW_RATE"},
		{adxlRegPowerCtl, adxlMeasure, "POWER_CTL"},
		{adxlRegDataFormat, adxlFullRes2g, "DATA_FORMAT"},
	} {
		if err := bus.WriteReg(addr, w.reg, w.val); err != nil {
			return nil, fmt.Errorf("adxl345: write %s: %w", w.name, err)
		}
	}

	log.WithFields(log.Fields{"dev": "adxl345", "addr": fmt.Sprintf("0x%02X", addr)}).
		Debugf("configured (offset g: %.3f %.3f %.3f)", d.offset[0], d.offset[1], d.offset[2])
	return d, nil
}

// RawAxis reads one axis in counts.
func (d *ADXL345) RawAxis(axis imu.Axis) (int16, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("adxl345: invalid axis %v", axis)
	}
	v, err := ReadSignedWord(d.bus, d.addr, adxlDataRegs[axis], LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("adxl345: read %v: %w", axis, err)
	}
	d.raw[axis] = v
	return v, nil
}

// AxisG reads one axis in g: raw*scale - offset, blended with the previous
// value of that axis using plf (1 = no smoothing, 0 = hold).
func (d *ADXL345) AxisG(axis imu.Axis, plf float64) (float64, error) {
	raw, err := d.RawAxis(axis)
	if err != nil {
		return 0, err
	}
	d.g[axis] = smooth(d.g[axis], float64(raw)*d.scale[axis]-d.offset[axis], plf)
	return d.g[axis], nil
}

// AxisMS2 is AxisG in m/s².
func (d *ADXL345) AxisMS2(axis imu.Axis, plf float64) (float64, error) {
	g, err := d.AxisG(axis, plf)
	if err != nil {
		return 0, err
	}
	d.ms2[axis] = g * EarthGravityMS2
	return d.ms2[axis], nil
}

// ReadG reads X, Y and Z in g.
func (d *ADXL345) ReadG(plf float64) (r3.Vector, error) {
	var v [3]float64
	for _, a := range imu.Axes {
		g, err := d.AxisG(a, plf)
		if err != nil {
			return r3.Vector{}, err
		}
		v[a] = g
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// ReadMS2 reads X, Y and Z in m/s².
func (d *ADXL345) ReadMS2(plf float64) (r3.Vector, error) {
	g, err := d.ReadG(plf)
	if err != nil {
		return r3.Vector{}, err
	}
	ms2 := g.Mul(EarthGravityMS2)
	d.ms2 = [3]float64{ms2.X, ms2.Y, ms2.Z}
	return ms2, nil
}

// Pitch takes a fresh unfiltered reading and runs one complementary
// filter step from prev using the gyro X angle increment (degrees).
// The result is invalid when the gravity vector is degenerate.
func (d *ADXL345) Pitch(prev orientation.Angle, gyroIncrementX float64) (orientation.Angle, error) {
	g, err := d.ReadG(1.0)
	if err != nil {
		return orientation.Invalid, err
	}
	return orientation.Complementary(prev, gyroIncrementX, orientation.PitchFromAccel(g)), nil
}

// Roll is Pitch for the roll axis, using the gyro Y angle increment.
func (d *ADXL345) Roll(prev orientation.Angle, gyroIncrementY float64) (orientation.Angle, error) {
	g, err := d.ReadG(1.0)
	if err != nil {
		return orientation.Invalid, err
	}
	return orientation.Complementary(prev, gyroIncrementY, orientation.RollFromAccel(g)), nil
}

// Tilt takes a fresh unfiltered reading and returns the angle from
// vertical, invalid when the reading is degenerate.
func (d *ADXL345) Tilt() (orientation.Angle, error) {
	g, err := d.ReadG(1.0)
	if err != nil {
		return orientation.Invalid, err
	}
	return orientation.TiltFromAccel(g), nil
}

// Norm takes a fresh unfiltered reading and returns |g| in g.
func (d *ADXL345) Norm() (float64, error) {
	g, err := d.ReadG(1.0)
	if err != nil {
		return 0, err
	}
	return g.Norm(), nil
}

// Raw returns the last raw counts read per axis.
func (d *ADXL345) Raw() [3]int16 { return d.raw }

// smooth is a single-pole low-pass: plf*next + (1-plf)*prev.
// plf is expected in [0, 1] and is not checked.
func smooth(prev, next, plf float64) float64 {
	return next*plf + (1.0-plf)*prev
}
