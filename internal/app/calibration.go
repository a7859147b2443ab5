// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/gy801/internal/config"
	"github.com/relabs-tech/gy801/internal/imu"
	"github.com/relabs-tech/gy801/internal/sensors"
)

// CalibrationOpts controls the capture phases.
type CalibrationOpts struct {
	StillSamples int           // accelerometer/gyro samples taken flat and still
	MagDuration  time.Duration // how long to rotate for the magnetometer
	SampleEvery  time.Duration
	In           io.Reader
	Out          io.Writer
}

// CalibrationResult is printed as YAML; the accel and mag sections can be
// pasted into the config file as-is.
type CalibrationResult struct {
	CalibrationAt string               `yaml:"calibration_at"`
	Accel         calibrationSection   `yaml:"accel"`
	Mag           calibrationSection   `yaml:"mag"`
	Stats         calibrationStatsDump `yaml:"stats"`
}

type calibrationSection struct {
	Offset config.Axes `yaml:"offset"`
}

type calibrationStatsDump struct {
	AccelStdDev   config.Axes `yaml:"accel_stddev_g"`
	GyroBias      config.Axes `yaml:"gyro_bias_dps"`
	MagRange      config.Axes `yaml:"mag_range_counts"`
	MagConfidence float64     `yaml:"mag_confidence"`
	Samples       int         `yaml:"samples"`
}

func axes(v r3.Vector) config.Axes {
	return config.Axes{X: v.X, Y: v.Y, Z: v.Z}
}

// RunCalibration guides the user through a still capture (accelerometer
// offsets, gyro bias) and a rotation capture (magnetometer hard-iron
// offsets), then prints the result as YAML. Offsets are measured with all
// configured offsets zeroed.
func RunCalibration(ctx context.Context, cfg *config.Config, opts CalibrationOpts) error {
	bus, closer, err := sensors.OpenI2C(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer closer.Close()

	board, err := sensors.NewGY801(bus, sensors.Calibration{})
	if err != nil {
		return err
	}
	res, err := calibrate(ctx, board, opts)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(res)
	if err != nil {
		return fmt.Errorf("calibration: encode result: %w", err)
	}
	_, err = opts.Out.Write(out)
	return err
}

func calibrate(ctx context.Context, board *sensors.GY801, opts CalibrationOpts) (*CalibrationResult, error) {
	in := bufio.NewReader(opts.In)
	res := &CalibrationResult{CalibrationAt: time.Now().Format(time.RFC3339)}

	fmt.Fprintln(opts.Out, "# Step 1/2: place the board flat (Z up) and do not touch it.")
	if err := waitEnter(in, opts.Out); err != nil {
		return nil, err
	}
	var accel, gyro []r3.Vector
	for i := 0; i < opts.StillSamples; i++ {
		g, err := board.Accel.ReadG(1.0)
		if err != nil {
			return nil, err
		}
		r, err := board.Gyro.ReadRate(1.0)
		if err != nil {
			return nil, err
		}
		accel = append(accel, g)
		gyro = append(gyro, r)
		if err := sleepCtx(ctx, opts.SampleEvery); err != nil {
			return nil, err
		}
	}
	res.Accel.Offset = axes(AccelOffsets(accel))
	res.Stats.AccelStdDev = axes(stddevVec(accel))
	res.Stats.GyroBias = axes(meanVec(gyro))
	log.Infof("calibration: accel offsets %.4f %.4f %.4f g", res.Accel.Offset.X, res.Accel.Offset.Y, res.Accel.Offset.Z)

	fmt.Fprintf(opts.Out, "# Step 2/2: rotate the board slowly through all orientations for %s.\n", opts.MagDuration)
	if err := waitEnter(in, opts.Out); err != nil {
		return nil, err
	}
	var mag []r3.Vector
	deadline := time.Now().Add(opts.MagDuration)
	for time.Now().Before(deadline) {
		var v [3]float64
		for _, a := range imu.Axes {
			c, err := board.Compass.RawAxis(a)
			if err != nil {
				return nil, err
			}
			v[a] = float64(c)
		}
		mag = append(mag, r3.Vector{X: v[0], Y: v[1], Z: v[2]})
		if err := sleepCtx(ctx, opts.SampleEvery); err != nil {
			return nil, err
		}
	}
	offset, span, err := HardIronOffsets(mag)
	if err != nil {
		return nil, err
	}
	res.Mag.Offset = axes(offset)
	res.Stats.MagRange = axes(span)
	res.Stats.MagConfidence = rangeConfidence(span)
	res.Stats.Samples = len(accel) + len(mag)
	log.Infof("calibration: mag offsets %.1f %.1f %.1f counts (confidence %.0f%%)",
		offset.X, offset.Y, offset.Z, res.Stats.MagConfidence)
	return res, nil
}

// AccelOffsets is the mean still reading minus the expected 1 g on Z.
func AccelOffsets(samples []r3.Vector) r3.Vector {
	return meanVec(samples).Sub(r3.Vector{Z: 1})
}

// HardIronOffsets is the centre of the min/max box of the samples; span is
// the box size per axis.
func HardIronOffsets(samples []r3.Vector) (offset, span r3.Vector, err error) {
	if len(samples) == 0 {
		return r3.Vector{}, r3.Vector{}, errors.New("calibration: no magnetometer samples")
	}
	lo, hi := samples[0], samples[0]
	for _, s := range samples[1:] {
		lo = r3.Vector{X: math.Min(lo.X, s.X), Y: math.Min(lo.Y, s.Y), Z: math.Min(lo.Z, s.Z)}
		hi = r3.Vector{X: math.Max(hi.X, s.X), Y: math.Max(hi.Y, s.Y), Z: math.Max(hi.Z, s.Z)}
	}
	return hi.Add(lo).Mul(0.5), hi.Sub(lo), nil
}

// rangeConfidence is min/max span ratio in percent: 100 for a sphere-like
// coverage, near 0 when one axis was never rotated through.
func rangeConfidence(span r3.Vector) float64 {
	maxR := math.Max(span.X, math.Max(span.Y, span.Z))
	if maxR == 0 {
		return 0
	}
	minR := math.Min(span.X, math.Min(span.Y, span.Z))
	return minR / maxR * 100.0
}

func meanVec(data []r3.Vector) r3.Vector {
	if len(data) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, v := range data {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(len(data)))
}

func stddevVec(data []r3.Vector) r3.Vector {
	if len(data) == 0 {
		return r3.Vector{}
	}
	m := meanVec(data)
	var variance r3.Vector
	for _, v := range data {
		d := v.Sub(m)
		variance = variance.Add(r3.Vector{X: d.X * d.X, Y: d.Y * d.Y, Z: d.Z * d.Z})
	}
	variance = variance.Mul(1 / float64(len(data)))
	return r3.Vector{X: math.Sqrt(variance.X), Y: math.Sqrt(variance.Y), Z: math.Sqrt(variance.Z)}
}

func waitEnter(in *bufio.Reader, out io.Writer) error {
	fmt.Fprint(out, "# Press ENTER to start... ")
	if _, err := in.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
