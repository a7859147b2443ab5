// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// Axis selects one of the three sensor axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Axes lists the axes in register order.
var Axes = [3]Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Valid reports whether a names one of X, Y or Z.
func (a Axis) Valid() bool {
	return a >= X && a <= Z
}

// IMURaw represents a single raw sample of all nine GY-801 channels, in counts.
type IMURaw struct {
	Ax int16 `json:"ax" yaml:"ax"` // accel (ADXL345)
	Ay int16 `json:"ay" yaml:"ay"`
	Az int16 `json:"az" yaml:"az"`

	Gx int16 `json:"gx" yaml:"gx"` // gyro (L3G4200D)
	Gy int16 `json:"gy" yaml:"gy"`
	Gz int16 `json:"gz" yaml:"gz"`

	Mx int16 `json:"mx" yaml:"mx"` // magnetometer (HMC5883L)
	My int16 `json:"my" yaml:"my"`
	Mz int16 `json:"mz" yaml:"mz"`
}

type IMURawSource interface {
	ReadRaw() (IMURaw, error)
}
