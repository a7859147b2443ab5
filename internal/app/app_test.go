// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/gy801/internal/config"
	"github.com/relabs-tech/gy801/internal/env"
	"github.com/relabs-tech/gy801/internal/orientation"
	"github.com/relabs-tech/gy801/internal/sensors"
)

type regBus struct {
	regs   map[[2]int]byte
	writes int
}

func newRegBus() *regBus { return &regBus{regs: map[[2]int]byte{}} }

func (b *regBus) WriteReg(addr uint16, reg, value byte) error {
	b.writes++
	b.regs[[2]int{int(addr), int(reg)}] = value
	return nil
}

func (b *regBus) ReadReg(addr uint16, reg byte) (byte, error) {
	return b.regs[[2]int{int(addr), int(reg)}], nil
}

// setLE stores a little endian word (ADXL345, L3G4200D).
func (b *regBus) setLE(addr uint16, reg byte, v int16) {
	b.regs[[2]int{int(addr), int(reg)}] = byte(uint16(v))
	b.regs[[2]int{int(addr), int(reg) + 1}] = byte(uint16(v) >> 8)
}

// setBE stores a big endian word (HMC5883L).
func (b *regBus) setBE(addr uint16, reg byte, v int16) {
	b.regs[[2]int{int(addr), int(reg)}] = byte(uint16(v) >> 8)
	b.regs[[2]int{int(addr), int(reg) + 1}] = byte(uint16(v))
}

func TestFormatFrame(t *testing.T) {
	f := Frame{
		Pose: orientation.Pose{
			Pitch:       orientation.Deg(1.234),
			Roll:        orientation.Invalid,
			Heading:     359.5,
			TiltHeading: orientation.Invalid,
		},
	}
	want := "PITCH=  1.23  ROLL=   n/a  HEADING=359.50  TILT_HEADING=   n/a"
	if got := FormatFrame(f); got != want {
		t.Errorf("FormatFrame = %q\nwant          %q", got, want)
	}

	f.Accel = &r3.Vector{X: 0, Y: 0, Z: 9.80665}
	f.Norm = 9.80665
	tilt := orientation.Deg(0)
	f.Tilt = &tilt
	f.Env = &env.Sample{Temperature: 21.25, PressureHPa: 1013.25, AltitudeM: 0}
	got := FormatFrame(f)
	if !strings.Contains(got, "ACC=0.000,0.000,9.807 m/s²  NORM=9.807  TILT=  0.00") {
		t.Errorf("missing accel in %q", got)
	}
	if strings.Contains(got, "COMP=") {
		t.Errorf("compensated field shown without tilt heading: %q", got)
	}
	if !strings.Contains(got, "T=21.2°C  P=1013.25hPa  ALT=0.0m") && !strings.Contains(got, "T=21.3°C  P=1013.25hPa  ALT=0.0m") {
		t.Errorf("missing env in %q", got)
	}
}

func TestWriteFrameJSON(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{
		Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Pose: orientation.Pose{Pitch: orientation.Deg(2), Roll: orientation.Invalid, Heading: 10},
	}
	writeFrame(&buf, f, true)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	pose := decoded["pose"].(map[string]any)
	if pose["pitch"] != 2.0 || pose["roll"] != nil {
		t.Errorf("pose = %v", pose)
	}
	if _, ok := decoded["accel_ms2"]; ok {
		t.Error("accel_ms2 present without a reading")
	}
	for _, k := range []string{"norm_ms2", "tilt"} {
		if _, ok := decoded[k]; ok {
			t.Errorf("%s present without a reading", k)
		}
	}

	buf.Reset()
	tilt := orientation.Deg(90)
	f.Accel, f.Norm, f.Tilt = &r3.Vector{X: 9.80665}, 9.80665, &tilt
	writeFrame(&buf, f, true)
	decoded = nil
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if decoded["norm_ms2"] != 9.80665 || decoded["tilt"] != 90.0 {
		t.Errorf("norm/tilt = %v / %v", decoded["norm_ms2"], decoded["tilt"])
	}
}

type countingSource struct {
	n   int
	err error
}

func (s *countingSource) Next() (Frame, error) {
	s.n++
	if s.err != nil {
		return Frame{}, s.err
	}
	return Frame{Pose: orientation.Pose{Heading: float64(s.n)}}, nil
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &countingSource{}
	var got []Frame
	err := runLoop(ctx, src, time.Hour, func(f Frame) { got = append(got, f) })
	if err != nil {
		t.Fatal(err)
	}
	// one immediate sample, then the cancelled context wins
	if src.n != 1 || len(got) != 1 || got[0].Pose.Heading != 1 {
		t.Errorf("samples = %d, emitted = %v", src.n, got)
	}
}

func TestRunLoopKeepsGoingOnErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := &countingSource{err: errors.New("bus down")}
	emitted := 0
	if err := runLoop(ctx, src, time.Millisecond, func(Frame) { emitted++ }); err != nil {
		t.Fatal(err)
	}
	if src.n < 2 {
		t.Errorf("loop gave up after %d attempts", src.n)
	}
	if emitted != 0 {
		t.Errorf("emitted %d frames from a failing source", emitted)
	}
}

func TestPoseSourceMock(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &poseSource{src: orientation.NewMockSource(), now: func() time.Time { return now }}
	f, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !f.Time.Equal(now) || !f.Pose.Pitch.Valid || f.Accel != nil {
		t.Errorf("frame = %+v", f)
	}
}

type fakeBaro struct {
	sample env.Sample
	err    error
}

func (b *fakeBaro) Read() (env.Sample, error) { return b.sample, b.err }

func TestBoardSource(t *testing.T) {
	bus := newRegBus()
	board, err := sensors.NewGY801(bus, sensors.Calibration{})
	if err != nil {
		t.Fatal(err)
	}
	bus.setLE(sensors.ADXL345Addr, 0x36, 256)   // 1 g on Z
	bus.setBE(sensors.HMC5883LAddr, 0x07, 100)  // field along +Y

	cfg := config.Default()
	src := newBoardSource(board, &cfg)

	f, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !f.Pose.Pitch.Valid || math.Abs(f.Pose.Pitch.Degrees) > 1e-9 || math.Abs(f.Pose.Roll.Degrees) > 1e-9 {
		t.Errorf("level pose = %+v", f.Pose)
	}
	if math.Abs(f.Pose.Heading-90) > 1e-9 {
		t.Errorf("heading = %f, want 90", f.Pose.Heading)
	}
	if f.Accel == nil || math.Abs(f.Accel.Z-sensors.EarthGravityMS2) > 1e-9 {
		t.Errorf("accel = %v", f.Accel)
	}
	if math.Abs(f.Norm-sensors.EarthGravityMS2) > 1e-9 {
		t.Errorf("norm = %f, want %f", f.Norm, sensors.EarthGravityMS2)
	}
	if f.Tilt == nil || !f.Tilt.Valid || math.Abs(f.Tilt.Degrees) > 1e-9 {
		t.Errorf("tilt = %+v, want 0", f.Tilt)
	}
	if s := FormatFrame(f); !strings.Contains(s, "TILT=  0.00") || !strings.Contains(s, "COMP=") {
		t.Errorf("tilt/comp missing in %q", s)
	}
	if f.Env != nil {
		t.Errorf("env without barometer: %+v", f.Env)
	}

	src.raw = board
	if f, err = src.Next(); err != nil || f.Raw == nil || f.Raw.Az != 256 || f.Raw.My != 100 {
		t.Errorf("with raw: %+v, %v", f.Raw, err)
	}
	if s := FormatFrame(f); !strings.Contains(s, "RAW A=0,0,256 G=0,0,0 M=0,100,0") {
		t.Errorf("raw missing in %q", s)
	}
	src.raw = nil

	src.baro = &fakeBaro{sample: env.NewSample(20, 101325, 0)}
	if f, err = src.Next(); err != nil || f.Env == nil || f.Env.PressureHPa != 1013.25 {
		t.Errorf("with barometer: %+v, %v", f.Env, err)
	}

	// a failing barometer does not cost the orientation
	src.baro = &fakeBaro{err: errors.New("bmp180: sense: nack")}
	if f, err = src.Next(); err != nil || f.Env != nil {
		t.Errorf("with failing barometer: %+v, %v", f.Env, err)
	}
}

func TestAccelOffsets(t *testing.T) {
	samples := []r3.Vector{
		{X: 0.01, Y: 0.03, Z: 1.05},
		{X: 0.014, Y: 0.034, Z: 1.054},
	}
	got := AccelOffsets(samples)
	want := r3.Vector{X: 0.012, Y: 0.032, Z: 0.052}
	if got.Sub(want).Norm() > 1e-9 {
		t.Errorf("AccelOffsets = %v, want %v", got, want)
	}
}

func TestHardIronOffsets(t *testing.T) {
	samples := []r3.Vector{
		{X: -200, Y: 100, Z: -50},
		{X: 150, Y: -60, Z: -134},
		{X: 0, Y: 0, Z: 0},
	}
	offset, span, err := HardIronOffsets(samples)
	if err != nil {
		t.Fatal(err)
	}
	if offset != (r3.Vector{X: -25, Y: 20, Z: -67}) {
		t.Errorf("offset = %v", offset)
	}
	if span != (r3.Vector{X: 350, Y: 160, Z: 134}) {
		t.Errorf("span = %v", span)
	}
	if c := rangeConfidence(span); math.Abs(c-134.0/350*100) > 1e-9 {
		t.Errorf("confidence = %f", c)
	}

	if _, _, err := HardIronOffsets(nil); err == nil {
		t.Error("expected error without samples")
	}
}

func TestCalibrate(t *testing.T) {
	bus := newRegBus()
	board, err := sensors.NewGY801(bus, sensors.Calibration{})
	if err != nil {
		t.Fatal(err)
	}
	bus.setLE(sensors.ADXL345Addr, 0x32, 64)  // 0.25 g
	bus.setLE(sensors.ADXL345Addr, 0x36, 256) // 1 g
	bus.setLE(sensors.L3G4200DAddr, 0x2A, 80) // 0.7 deg/s
	bus.setBE(sensors.HMC5883LAddr, 0x03, -25)
	bus.setBE(sensors.HMC5883LAddr, 0x07, 24)
	bus.setBE(sensors.HMC5883LAddr, 0x05, -92)

	var out bytes.Buffer
	res, err := calibrate(context.Background(), board, CalibrationOpts{
		StillSamples: 5,
		MagDuration:  20 * time.Millisecond,
		SampleEvery:  time.Millisecond,
		In:           strings.NewReader("\n\n"),
		Out:          &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Accel.Offset.Vector().Sub(r3.Vector{X: 0.25}).Norm() > 1e-9 {
		t.Errorf("accel offset = %+v", res.Accel.Offset)
	}
	if math.Abs(res.Stats.GyroBias.Y-0.7) > 1e-9 {
		t.Errorf("gyro bias = %+v", res.Stats.GyroBias)
	}
	if res.Mag.Offset != (config.Axes{X: -25, Y: 24, Z: -92}) {
		t.Errorf("mag offset = %+v", res.Mag.Offset)
	}
	if res.Stats.MagConfidence != 0 {
		t.Errorf("confidence without rotation = %f", res.Stats.MagConfidence)
	}
	if !strings.Contains(out.String(), "Step 2/2") {
		t.Errorf("prompts missing: %q", out.String())
	}

	// the result pastes into a config file
	b, err := yaml.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Mag.Offset != res.Mag.Offset || cfg.Accel.Offset != res.Accel.Offset {
		t.Errorf("decoded as config: %+v / %+v", cfg.Accel, cfg.Mag)
	}
}

func TestCalibrateCancelled(t *testing.T) {
	board, err := sensors.NewGY801(newRegBus(), sensors.Calibration{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = calibrate(ctx, board, CalibrationOpts{
		StillSamples: 10,
		SampleEvery:  time.Second,
		In:           strings.NewReader(""),
		Out:          &bytes.Buffer{},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDumpRegistersTable(t *testing.T) {
	bus := newRegBus()
	bus.regs[[2]int{sensors.L3G4200DAddr, 0x23}] = 0x90

	var out bytes.Buffer
	if err := dumpRegisters(bus, RegisterDumpOpts{Devices: []string{"l3g4200d"}, Out: &out}); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.HasPrefix(s, "== l3g4200d @ 0x69\n") {
		t.Errorf("header missing: %q", s)
	}
	if !strings.Contains(s, "0x23 CTRL_REG4") || !strings.Contains(s, "0x90 10010000") {
		t.Errorf("CTRL_REG4 line missing: %q", s)
	}
	if !strings.Contains(s, "[5:4] FS") || !strings.Contains(s, "= 1") {
		t.Errorf("FS field not decoded: %q", s)
	}
	if strings.Contains(s, "adxl345") {
		t.Error("unselected device dumped")
	}
	if bus.writes != 0 {
		t.Errorf("dump wrote %d registers", bus.writes)
	}
}

func TestDumpRegistersExport(t *testing.T) {
	bus := newRegBus()
	bus.regs[[2]int{sensors.HMC5883LAddr, 0x0A}] = 0x48

	var out bytes.Buffer
	if err := dumpRegisters(bus, RegisterDumpOpts{Devices: []string{"hmc5883l"}, Export: true, Out: &out}); err != nil {
		t.Fatal(err)
	}
	var files []RegisterConfigFile
	if err := yaml.Unmarshal(out.Bytes(), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Device != "hmc5883l" || files[0].Addr != "0x1E" {
		t.Fatalf("export = %+v", files)
	}
	if files[0].Registers["0x0A"] != "0x48" {
		t.Errorf("IRA = %q", files[0].Registers["0x0A"])
	}
}

func TestDumpRegistersUnknownDevice(t *testing.T) {
	err := dumpRegisters(newRegBus(), RegisterDumpOpts{Devices: []string{"mpu9250"}, Out: &bytes.Buffer{}})
	if err == nil {
		t.Error("expected error")
	}
}

func countOn(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderPose(t *testing.T) {
	img := renderPose(orientation.Pose{Pitch: orientation.Deg(12.5), Roll: orientation.Invalid, Heading: 270})
	if b := img.Bounds(); b.Dx() != displayWidth || b.Dy() != displayHeight {
		t.Fatalf("bounds = %v", b)
	}
	if countOn(img) == 0 {
		t.Error("nothing drawn")
	}
	if angleText(orientation.Invalid) != "  ---" || angleText(orientation.Deg(-3.25)) != "  -3.2" && angleText(orientation.Deg(-3.25)) != "  -3.3" {
		t.Errorf("angleText = %q / %q", angleText(orientation.Invalid), angleText(orientation.Deg(-3.25)))
	}
	if countOn(renderSplash()) == 0 {
		t.Error("empty splash")
	}
}

func TestRemapAddr(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x3D, W: []byte{0x00, 0xAE}},
		{Addr: 0x1E, W: []byte{0x0A}, R: []byte{0x48}},
	}}
	bus := remapAddr(pb, 0x3C, 0x3D)
	if err := bus.Tx(0x3C, []byte{0x00, 0xAE}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 1)
	if err := bus.Tx(0x1E, []byte{0x0A}, r); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
	if remapAddr(pb, 0x3C, 0x3C) != pb {
		t.Error("identity remap should return the bus itself")
	}
}
