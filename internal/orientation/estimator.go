// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Accelerometer reads the gravity vector; the estimator takes fresh,
// unfiltered readings (plf = 1).
type Accelerometer interface {
	ReadG(plf float64) (r3.Vector, error)
}

// RateIntegrator returns the gyro angle increments in degrees of all axes
// since the previous call. The interval clocks must only move when the
// whole reading succeeded.
type RateIntegrator interface {
	AngleIncrements(plf float64) (r3.Vector, error)
}

// Compass reads the magnetic field and knows the site declination.
type Compass interface {
	ReadGauss() (r3.Vector, error)
	Declination() float64
}

// Estimator fuses accelerometer, gyroscope and magnetometer readings into
// a Pose. It keeps only the previous pitch and roll between calls and is
// not safe for concurrent use.
type Estimator struct {
	accel   Accelerometer
	gyro    RateIntegrator
	compass Compass

	// GyroFilter is the low-pass coefficient used for gyro rates (1 = off).
	GyroFilter float64

	pitch Angle
	roll  Angle
}

// NewEstimator returns an Estimator with no previous pitch/roll; the first
// Next reports the plain accelerometer tilt.
func NewEstimator(accel Accelerometer, gyro RateIntegrator, compass Compass) *Estimator {
	return &Estimator{accel: accel, gyro: gyro, compass: compass, GyroFilter: 1.0}
}

// Next runs one fusion cycle. The gyroscope is read last so that a failed
// accelerometer or compass read leaves the integration intervals running:
// the next successful cycle gets the whole rotation since the last one.
// Any error leaves the previous pitch/roll untouched.
func (e *Estimator) Next() (Pose, error) {
	g, err := e.accel.ReadG(1.0)
	if err != nil {
		return Pose{}, fmt.Errorf("accel: %w", err)
	}
	mag, err := e.compass.ReadGauss()
	if err != nil {
		return Pose{}, fmt.Errorf("compass: %w", err)
	}
	inc, err := e.gyro.AngleIncrements(e.GyroFilter)
	if err != nil {
		return Pose{}, fmt.Errorf("gyro: %w", err)
	}

	e.roll = Complementary(e.roll, inc.Y, RollFromAccel(g))
	e.pitch = Complementary(e.pitch, inc.X, PitchFromAccel(g))
	return Fuse(e.pitch, e.roll, mag, e.compass.Declination()), nil
}

// Fuse builds a Pose from filtered pitch/roll and a magnetometer reading.
// TiltHeading is only valid when both pitch and roll are.
func Fuse(pitch, roll Angle, mag r3.Vector, declination float64) Pose {
	pose := Pose{
		Roll:    roll,
		Pitch:   pitch,
		Heading: Heading(mag, declination),
	}
	if pitch.Valid && roll.Valid {
		pose.CompX, pose.CompY = CompensatedField(mag, pitch.Degrees, roll.Degrees)
		pose.TiltHeading = Deg(TiltCompensatedHeading(mag, pitch.Degrees, roll.Degrees, declination))
	}
	return pose
}

// Previous returns the pitch and roll the next cycle will blend from.
func (e *Estimator) Previous() (pitch, roll Angle) {
	return e.pitch, e.roll
}

// Reset forgets the previous pitch and roll.
func (e *Estimator) Reset() {
	e.pitch, e.roll = Invalid, Invalid
}
