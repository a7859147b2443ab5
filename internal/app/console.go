// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gy801/internal/config"
	"github.com/relabs-tech/gy801/internal/env"
	"github.com/relabs-tech/gy801/internal/imu"
	"github.com/relabs-tech/gy801/internal/orientation"
	"github.com/relabs-tech/gy801/internal/sensors"
)

// Frame is one console line worth of data.
type Frame struct {
	Time  time.Time          `json:"time"`
	Pose  orientation.Pose   `json:"pose"`
	Accel *r3.Vector         `json:"accel_ms2,omitempty"`
	Norm  float64            `json:"norm_ms2,omitempty"` // |Accel|
	Tilt  *orientation.Angle `json:"tilt,omitempty"`     // Accel angle from vertical
	Env   *env.Sample        `json:"env,omitempty"`
	Raw   *imu.IMURaw        `json:"raw,omitempty"`
}

// FrameSource produces frames at the caller's cadence.
type FrameSource interface {
	Next() (Frame, error)
}

// ConsoleOpts selects the source and output format of RunConsole.
type ConsoleOpts struct {
	Mock bool
	JSON bool
	Raw  bool // add raw counts of all nine channels
	Out  io.Writer
}

// barometer is the optional environment reading of a frame.
type barometer interface {
	Read() (env.Sample, error)
}

// boardSource runs the estimator on the board and adds an accelerometer
// reading in m/s² and, when a barometer is attached, an env sample.
type boardSource struct {
	board       *sensors.GY801
	est         *orientation.Estimator
	baro        barometer
	raw         imu.IMURawSource
	accelFilter float64
	now         func() time.Time
}

func newBoardSource(board *sensors.GY801, cfg *config.Config) *boardSource {
	est := orientation.NewEstimator(board.Accel, board.Gyro, board.Compass)
	est.GyroFilter = cfg.Gyro.Filter
	return &boardSource{board: board, est: est, accelFilter: cfg.Accel.Filter, now: time.Now}
}

func (s *boardSource) Next() (Frame, error) {
	pose, err := s.est.Next()
	if err != nil {
		return Frame{}, err
	}
	acc, err := s.board.Accel.ReadMS2(s.accelFilter)
	if err != nil {
		return Frame{}, fmt.Errorf("accel: %w", err)
	}
	tilt := orientation.TiltFromAccel(acc)
	f := Frame{Time: s.now(), Pose: pose, Accel: &acc, Norm: acc.Norm(), Tilt: &tilt}
	if s.raw != nil {
		r, err := s.raw.ReadRaw()
		if err != nil {
			return Frame{}, fmt.Errorf("raw: %w", err)
		}
		f.Raw = &r
	}
	if s.baro != nil {
		e, err := s.baro.Read()
		if err != nil {
			// orientation is still good, drop only the env part
			log.Warnf("barometer: %v", err)
		} else {
			f.Env = &e
		}
	}
	return f, nil
}

// poseSource adapts an orientation.Source (the mock) to frames.
type poseSource struct {
	src orientation.Source
	now func() time.Time
}

func (s *poseSource) Next() (Frame, error) {
	pose, err := s.src.Next()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Time: s.now(), Pose: pose}, nil
}

// RunConsole polls the board (or the mock source) every
// sample_interval_ms and prints one line per sample until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, opts ConsoleOpts) error {
	var src FrameSource
	if opts.Mock {
		log.Info("console: using mock orientation source")
		src = &poseSource{src: orientation.NewMockSource(), now: time.Now}
	} else {
		board, bus, closer, err := sensors.OpenGY801()
		if err != nil {
			return err
		}
		defer closer.Close()
		bs := newBoardSource(board, cfg)
		if opts.Raw {
			bs.raw = board
		}
		if cfg.Baro.Enabled {
			baro, err := sensors.NewBarometer(bus.Bus(), cfg.Baro.I2CAddr, cfg.Baro.SeaLevelPa)
			if err != nil {
				return err
			}
			defer baro.Halt()
			bs.baro = baro
		}
		src = bs
	}

	interval := time.Duration(cfg.SampleIntervalMS) * time.Millisecond
	log.Infof("console: sampling every %s", interval)
	return runLoop(ctx, src, interval, func(f Frame) {
		writeFrame(opts.Out, f, opts.JSON)
	})
}

// runLoop samples src immediately and then on every tick. Read errors are
// logged and the loop carries on; the caller decides when to stop.
func runLoop(ctx context.Context, src FrameSource, interval time.Duration, emit func(Frame)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f, err := src.Next()
		if err != nil {
			log.Warnf("read error: %v", err)
		} else {
			emit(f)
		}

		select {
		case <-ctx.Done():
			log.Debug("loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func writeFrame(w io.Writer, f Frame, asJSON bool) {
	if asJSON {
		b, err := json.Marshal(f)
		if err != nil {
			log.Warnf("json marshal error: %v", err)
			return
		}
		fmt.Fprintln(w, string(b))
		return
	}
	fmt.Fprintln(w, FormatFrame(f))
}

func formatAngle(a orientation.Angle) string {
	if !a.Valid {
		return "   n/a"
	}
	return fmt.Sprintf("%6.2f", a.Degrees)
}

// FormatFrame renders a frame as one human readable line.
func FormatFrame(f Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PITCH=%s  ROLL=%s  HEADING=%6.2f  TILT_HEADING=%s",
		formatAngle(f.Pose.Pitch),
		formatAngle(f.Pose.Roll),
		f.Pose.Heading,
		formatAngle(f.Pose.TiltHeading),
	)
	if f.Accel != nil {
		fmt.Fprintf(&b, "  ACC=%.3f,%.3f,%.3f m/s²  NORM=%.3f", f.Accel.X, f.Accel.Y, f.Accel.Z, f.Norm)
	}
	if f.Tilt != nil {
		fmt.Fprintf(&b, "  TILT=%s", formatAngle(*f.Tilt))
	}
	if f.Pose.TiltHeading.Valid {
		fmt.Fprintf(&b, "  COMP=%.3f,%.3f", f.Pose.CompX, f.Pose.CompY)
	}
	if f.Env != nil {
		fmt.Fprintf(&b, "  T=%.1f°C  P=%.2fhPa  ALT=%.1fm", f.Env.Temperature, f.Env.PressureHPa, f.Env.AltitudeM)
	}
	if r := f.Raw; r != nil {
		fmt.Fprintf(&b, "  RAW A=%d,%d,%d G=%d,%d,%d M=%d,%d,%d", r.Ax, r.Ay, r.Az, r.Gx, r.Gy, r.Gz, r.Mx, r.My, r.Mz)
	}
	return b.String()
}
