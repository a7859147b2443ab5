// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gy801/internal/imu"
)

// L3G4200D register map and configuration values.
const (
	L3G4200DAddr = 0x69

	l3gRegCtrl1 = 0x20
	l3gRegCtrl4 = 0x23
	l3gRegOutXL = 0x28
	l3gRegOutYL = 0x2A
	l3gRegOutZL = 0x2C

	l3gCtrl1Enable = 0x0F // normal mode, X/Y/Z enabled
	l3gCtrl4Config = 0x80 // BDU set, FS = 00

	l3gFSMask  = 0x30
	l3gFSShift = 4

	// L3G4200DGainStd is deg/s per LSB at FS = 00.
	L3G4200DGainStd = 0.00875
)

var l3gDataRegs = [3]byte{l3gRegOutXL, l3gRegOutYL, l3gRegOutZL}

// L3G4200DOpts configures the gyroscope.
type L3G4200DOpts struct {
	Addr uint16
}

// L3G4200D is the GY-801 gyroscope.
type L3G4200D struct {
	bus  RegisterBus
	addr uint16
	gain float64 // deg/s per LSB, derived from CTRL_REG4

	raw   [3]int16
	rate  [3]float64 // last (filtered) rate per axis, deg/s
	angle [3]float64 // last angle increment per axis, deg
	last  [3]time.Time

	now func() time.Time
}

// NewL3G4200D enables the gyroscope, selects full scale and derives the
// gain by reading CTRL_REG4 back.
func NewL3G4200D(bus RegisterBus, opts L3G4200DOpts) (*L3G4200D, error) {
	addr := opts.Addr
	if addr == 0 {
		addr = L3G4200DAddr
	}
	d := &L3G4200D{bus: bus, addr: addr, now: time.Now}

	if err := bus.WriteReg(addr, l3gRegCtrl1, l3gCtrl1Enable); err != nil {
		return nil, fmt.Errorf("l3g4200d: write CTRL_REG1: %w", err)
	}
	if err := bus.WriteReg(addr, l3gRegCtrl4, l3gCtrl4Config); err != nil {
		return nil, fmt.Errorf("l3g4200d: write CTRL_REG4: %w", err)
	}
	if err := d.calibrate(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"dev": "l3g4200d", "addr": fmt.Sprintf("0x%02X", addr)}).
		Debugf("configured (gain %.5f dps/LSB)", d.gain)
	return d, nil
}

func (d *L3G4200D) calibrate() error {
	reg, err := d.bus.ReadReg(d.addr, l3gRegCtrl4)
	if err != nil {
		return fmt.Errorf("l3g4200d: read CTRL_REG4: %w", err)
	}
	d.gain = GainFromCtrl4(reg)
	return nil
}

// GainFromCtrl4 derives deg/s per LSB from the full-scale field (bits 5:4)
// of CTRL_REG4: 2^FS * 0.00875.
func GainFromCtrl4(reg byte) float64 {
	fs := (reg & l3gFSMask) >> l3gFSShift
	return math.Pow(2, float64(fs)) * L3G4200DGainStd
}

// Gain returns deg/s per LSB.
func (d *L3G4200D) Gain() float64 { return d.gain }

// RawAxis reads one axis in counts.
func (d *L3G4200D) RawAxis(axis imu.Axis) (int16, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("l3g4200d: invalid axis %v", axis)
	}
	v, err := ReadSignedWord(d.bus, d.addr, l3gDataRegs[axis], LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("l3g4200d: read %v: %w", axis, err)
	}
	d.raw[axis] = v
	return v, nil
}

// AxisRate reads one axis in deg/s, blended with the previous rate using plf.
func (d *L3G4200D) AxisRate(axis imu.Axis, plf float64) (float64, error) {
	raw, err := d.RawAxis(axis)
	if err != nil {
		return 0, err
	}
	d.rate[axis] = smooth(d.rate[axis], float64(raw)*d.gain, plf)
	return d.rate[axis], nil
}

// ReadRate reads X, Y and Z in deg/s.
func (d *L3G4200D) ReadRate(plf float64) (r3.Vector, error) {
	var v [3]float64
	for _, a := range imu.Axes {
		r, err := d.AxisRate(a, plf)
		if err != nil {
			return r3.Vector{}, err
		}
		v[a] = r
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// AngleIncrement returns rate * elapsed seconds since the previous call
// for the same axis. The first call per axis only starts the clock and
// returns 0. Each call restarts the interval.
func (d *L3G4200D) AngleIncrement(axis imu.Axis, plf float64) (float64, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("l3g4200d: invalid axis %v", axis)
	}
	t := d.now()
	rate, err := d.AxisRate(axis, plf)
	if err != nil {
		return 0, err
	}
	return d.advance(axis, t, rate), nil
}

// AngleIncrements is AngleIncrement for X, Y and Z. All three rates are
// read before any clock moves, so a failed read loses no rotation.
func (d *L3G4200D) AngleIncrements(plf float64) (r3.Vector, error) {
	t := d.now()
	rate, err := d.ReadRate(plf)
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{
		X: d.advance(imu.X, t, rate.X),
		Y: d.advance(imu.Y, t, rate.Y),
		Z: d.advance(imu.Z, t, rate.Z),
	}, nil
}

func (d *L3G4200D) advance(axis imu.Axis, t time.Time, rate float64) float64 {
	var dt float64
	if !d.last[axis].IsZero() {
		dt = t.Sub(d.last[axis]).Seconds()
	}
	d.last[axis] = t
	d.angle[axis] = rate * dt
	return d.angle[axis]
}

// Raw returns the last raw counts read per axis.
func (d *L3G4200D) Raw() [3]int16 { return d.raw }
