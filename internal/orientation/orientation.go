// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r3"
)

// Complementary filter weights. Tuned empirically on the GY-801; changing
// them breaks compatibility with existing setups.
const (
	GyroWeight  = 0.98
	AccelWeight = 0.02
)

// Angle is an angle estimate in degrees. Valid is false when the input
// geometry was degenerate and no angle could be computed; Degrees is then 0.
type Angle struct {
	Degrees float64
	Valid   bool
}

// Deg returns a valid Angle.
func Deg(d float64) Angle {
	return Angle{Degrees: d, Valid: true}
}

// Invalid is the "no estimate" value.
var Invalid = Angle{}

// MarshalJSON encodes an invalid angle as null.
func (a Angle) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Degrees)
}

// UnmarshalJSON accepts a number or null.
func (a *Angle) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Invalid
		return nil
	}
	var d float64
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*a = Deg(d)
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func toDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// PitchFromAccel is the gravity-vector pitch:
//
//	pitch = atan(-gx / sqrt(gy² + gz²))
//
// It is invalid when gy and gz are both zero.
func PitchFromAccel(g r3.Vector) Angle {
	den := math.Sqrt(g.Y*g.Y + g.Z*g.Z)
	if den == 0 || !finite(den) || !finite(g.X) {
		return Invalid
	}
	return Deg(toDeg(math.Atan(-g.X / den)))
}

// RollFromAccel is the gravity-vector roll:
//
//	roll = atan(gy / gz)
//
// It is invalid when gz is zero.
func RollFromAccel(g r3.Vector) Angle {
	if g.Z == 0 || !finite(g.Z) || !finite(g.Y) {
		return Invalid
	}
	return Deg(toDeg(math.Atan(g.Y / g.Z)))
}

// TiltFromAccel is the angle between the measured gravity vector and the
// sensor Z axis, acos(gz / |g|). 0 is flat, 90 is on edge. Any unit works.
// It is invalid for a zero or non-finite vector.
func TiltFromAccel(g r3.Vector) Angle {
	n := g.Norm()
	if n == 0 || !finite(n) {
		return Invalid
	}
	c := g.Z / n
	if !finite(c) || c < -1 || c > 1 {
		return Invalid
	}
	return Deg(toDeg(math.Acos(c)))
}

// Complementary blends the previous estimate advanced by the gyro angle
// increment with a fresh accelerometer tilt angle:
//
//	0.98*(prev + gyroIncrement) + 0.02*fresh
//
// Without a valid previous estimate the fresh angle is returned unblended.
// An invalid fresh angle yields an invalid result.
func Complementary(prev Angle, gyroIncrement float64, fresh Angle) Angle {
	if !fresh.Valid {
		return Invalid
	}
	if !prev.Valid {
		return fresh
	}
	return Deg((prev.Degrees+gyroIncrement)*GyroWeight + fresh.Degrees*AccelWeight)
}

// NormalizeBearing wraps a bearing into [0, 360) with a single correction
// step. Inputs outside (-360, 720) are not fully normalized; atan2 based
// bearings plus a declination never get there.
func NormalizeBearing(deg float64) float64 {
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// Heading is the magnetic bearing of the horizontal field components,
// corrected by declination (degrees) and wrapped into [0, 360).
func Heading(mag r3.Vector, declination float64) float64 {
	return NormalizeBearing(toDeg(math.Atan2(mag.Y, mag.X)) + declination)
}

// TiltCompensatedHeading projects the magnetic field onto the horizontal
// plane using pitch and roll (degrees, sensor frame, accelerometer and
// magnetometer axes co-aligned) before computing the bearing.
func TiltCompensatedHeading(mag r3.Vector, pitchDeg, rollDeg, declination float64) float64 {
	compX, compY := CompensatedField(mag, pitchDeg, rollDeg)
	return NormalizeBearing(toDeg(math.Atan2(compY, compX)) + declination)
}

// CompensatedField returns the horizontal components of mag for a sensor
// at the given pitch and roll (degrees).
func CompensatedField(mag r3.Vector, pitchDeg, rollDeg float64) (compX, compY float64) {
	p := toRad(pitchDeg)
	r := toRad(rollDeg)

	compX = mag.X*math.Cos(p) + mag.Z*math.Sin(p)
	compY = mag.X*math.Sin(r)*math.Sin(p) +
		mag.Y*math.Cos(r) -
		mag.Z*math.Sin(r)*math.Cos(p)
	return compX, compY
}

// Pose is one orientation estimate: filtered pitch and roll, the plain
// magnetic heading and the tilt-compensated heading, all in degrees.
type Pose struct {
	Roll        Angle   `json:"roll"`
	Pitch       Angle   `json:"pitch"`
	Heading     float64 `json:"heading"`
	TiltHeading Angle   `json:"tilt_heading"`

	// horizontal field after tilt compensation, zero unless TiltHeading is valid
	CompX float64 `json:"comp_x"`
	CompY float64 `json:"comp_y"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}
