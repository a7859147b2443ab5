// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gy801/internal/imu"
	"github.com/relabs-tech/gy801/internal/orientation"
)

// HMC5883L register map and configuration values.
//
// NOTE: the output registers are ordered X, Z, Y.
const (
	HMC5883LAddr = 0x1E

	hmcRegCRA  = 0x00
	hmcRegCRB  = 0x01
	hmcRegMode = 0x02
	hmcRegXH   = 0x03
	hmcRegZH   = 0x05
	hmcRegYH   = 0x07

	hmcCRA        = 0b01110000 // 8-sample average, 15 Hz, normal bias
	hmcCRB        = 0b00100000 // gain 1090 LSB/Gauss
	hmcContinuous = 0b00000000

	// HMC5883LScale converts offset-corrected counts to the reported unit.
	HMC5883LScale = 0.92
)

var hmcDataRegs = [3]byte{hmcRegXH, hmcRegYH, hmcRegZH}

// HMC5883LOpts holds the hard-iron offsets (counts) and the site
// declination in degrees (see DeclinationAngle).
type HMC5883LOpts struct {
	Addr        uint16
	Offset      r3.Vector
	Declination float64
}

// HMC5883L is the GY-801 magnetometer.
type HMC5883L struct {
	bus         RegisterBus
	addr        uint16
	offset      [3]float64
	declination float64

	raw   [3]int16
	gauss [3]float64
}

// NewHMC5883L writes CRA, CRB and the mode register (continuous).
func NewHMC5883L(bus RegisterBus, opts HMC5883LOpts) (*HMC5883L, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = HMC5883LAddr
	}
	d := &HMC5883L{
		bus:         bus,
		addr:        addr,
		offset:      [3]float64{opts.Offset.X, opts.Offset.Y, opts.Offset.Z},
		declination: opts.Declination,
	}

	if err := bus.WriteReg(addr, hmcRegCRA, hmcCRA); err != nil {
		return nil, fmt.Errorf("hmc5883l: write CRA: %w", err)
	}
	if err := bus.WriteReg(addr, hmcRegCRB, hmcCRB); err != nil {
		return nil, fmt.Errorf("hmc5883l: write CRB: %w", err)
	}
	if err := bus.WriteReg(addr, hmcRegMode, hmcContinuous); err != nil {
		return nil, fmt.Errorf("hmc5883l: write MR: %w", err)
	}

	log.WithFields(log.Fields{"dev": "hmc5883l", "addr": fmt.Sprintf("0x%02X", addr)}).
		Debugf("configured (declination %.3f°)", d.declination)
	return d, nil
}

// DeclinationAngle converts a declination given as degrees and minutes
// into signed decimal degrees. The sign comes from degrees, or from
// minutes when degrees is zero: (-4, 32) is -4.5333°.
func DeclinationAngle(degrees, minutes float64) float64 {
	sign := 1.0
	if degrees < 0 || (degrees == 0 && minutes < 0) {
		sign = -1.0
	}
	return sign * (math.Abs(degrees) + math.Abs(minutes)/60.0)
}

// Declination returns the declination applied to headings, in degrees.
func (d *HMC5883L) Declination() float64 { return d.declination }

// RawAxis reads one axis in counts (high byte first).
func (d *HMC5883L) RawAxis(axis imu.Axis) (int16, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("hmc5883l: invalid axis %v", axis)
	}
	v, err := ReadSignedWord(d.bus, d.addr, hmcDataRegs[axis], BigEndian)
	if err != nil {
		return 0, fmt.Errorf("hmc5883l: read %v: %w", axis, err)
	}
	d.raw[axis] = v
	return v, nil
}

// AxisGauss reads one axis: (raw - offset) * 0.92.
func (d *HMC5883L) AxisGauss(axis imu.Axis) (float64, error) {
	raw, err := d.RawAxis(axis)
	if err != nil {
		return 0, err
	}
	d.gauss[axis] = (float64(raw) - d.offset[axis]) * HMC5883LScale
	return d.gauss[axis], nil
}

// ReadGauss reads X, Y and Z.
func (d *HMC5883L) ReadGauss() (r3.Vector, error) {
	var v [3]float64
	for _, a := range imu.Axes {
		g, err := d.AxisGauss(a)
		if err != nil {
			return r3.Vector{}, err
		}
		v[a] = g
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Heading reads Y and X and returns the declination corrected bearing in
// [0, 360). The sensor is assumed level; see
// orientation.TiltCompensatedHeading otherwise.
func (d *HMC5883L) Heading() (float64, error) {
	y, err := d.AxisGauss(imu.Y)
	if err != nil {
		return 0, err
	}
	x, err := d.AxisGauss(imu.X)
	if err != nil {
		return 0, err
	}
	return orientation.Heading(r3.Vector{X: x, Y: y}, d.declination), nil
}

// Raw returns the last raw counts read per axis.
func (d *HMC5883L) Raw() [3]int16 { return d.raw }
