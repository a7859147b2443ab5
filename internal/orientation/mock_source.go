// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source for running without a
// board. The device sways gently while turning at 30°/s; the headings are
// derived from a synthetic horizontal field so they go through the same
// math as real readings.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	yaw := toRad(math.Mod(elapsed*30, 360))
	mag := r3.Vector{X: 0.4 * math.Cos(yaw), Y: 0.4 * math.Sin(yaw), Z: 0}

	return Fuse(Deg(15*math.Cos(elapsed*0.7)), Deg(20*math.Sin(elapsed)), mag, 0), nil
}
