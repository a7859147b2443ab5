// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// isolate keeps the developer's own config files and environment out of
// the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(EnvConfigFile, "")
	old := SearchPaths
	SearchPaths = []string{t.TempDir()}
	t.Cleanup(func() { SearchPaths = old })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gy801.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != Default() {
		t.Errorf("Load without file = %+v\nwant %+v", *cfg, Default())
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	p := writeConfig(t, `
i2c_bus: "/dev/i2c-3"
sample_interval_ms: 100
accel:
  offset: {x: 0.1, y: 0.2, z: 0.3}
  filter: 0.5
mag:
  declination_deg: 2
  declination_min: 15
display:
  i2c_addr: 0x3D
`)
	cfg, err := Load(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.I2CBus != "/dev/i2c-3" || cfg.SampleIntervalMS != 100 {
		t.Errorf("bus/interval = %q/%d", cfg.I2CBus, cfg.SampleIntervalMS)
	}
	if cfg.Accel.Offset != (Axes{X: 0.1, Y: 0.2, Z: 0.3}) || cfg.Accel.Filter != 0.5 {
		t.Errorf("accel = %+v", cfg.Accel)
	}
	if cfg.Mag.DeclinationDeg != 2 || cfg.Mag.DeclinationMin != 15 {
		t.Errorf("mag = %+v", cfg.Mag)
	}
	// keys not in the file keep their defaults
	if cfg.Mag.Offset != Default().Mag.Offset || cfg.Gyro.Filter != 1.0 {
		t.Errorf("defaults lost: mag %+v gyro %+v", cfg.Mag.Offset, cfg.Gyro)
	}
	if cfg.Display.I2CAddr != 0x3D || cfg.Display.UpdateIntervalMS != DefaultDisplayInterval {
		t.Errorf("display = %+v", cfg.Display)
	}
}

func TestLoadFromEnvConfigPath(t *testing.T) {
	isolate(t)
	p := writeConfig(t, "sample_interval_ms: 42\n")
	t.Setenv(EnvConfigFile, p)
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleIntervalMS != 42 {
		t.Errorf("interval = %d, want 42", cfg.SampleIntervalMS)
	}
}

func TestLoadPriority(t *testing.T) {
	isolate(t)
	p := writeConfig(t, "sample_interval_ms: 100\ni2c_bus: \"2\"\n")
	t.Setenv("GY801_SAMPLE_INTERVAL_MS", "200")
	t.Setenv("GY801_MAG_DECLINATION_DEG", "-1")

	cfg, err := Load(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleIntervalMS != 200 {
		t.Errorf("env did not override file: %d", cfg.SampleIntervalMS)
	}
	if cfg.Mag.DeclinationDeg != -1 {
		t.Errorf("nested env key: declination_deg = %g", cfg.Mag.DeclinationDeg)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("bus", DefaultI2CBus, "")
	flags.Int("interval", DefaultSampleIntervalMS, "")
	flags.Bool("debug", false, "")
	if err := flags.Parse([]string{"--interval", "300", "--debug"}); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(p, flags)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleIntervalMS != 300 || !cfg.Debug {
		t.Errorf("flags did not override: interval %d debug %v", cfg.SampleIntervalMS, cfg.Debug)
	}
	// unchanged flag leaves the file value
	if cfg.I2CBus != "2" {
		t.Errorf("bus = %q, want file value 2", cfg.I2CBus)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"sample_interval_ms":  "sample_interval_ms: 0\n",
		"accel.filter":        "accel:\n  filter: 1.5\n",
		"gyro.filter":         "gyro:\n  filter: -0.1\n",
		"mag.declination_min": "mag:\n  declination_min: 60\n",
		"display.i2c_addr":    "display:\n  i2c_addr: 0x80\n",
		"i2c_bus":             "i2c_bus: \"\"\n",
		"baro.sea_level_pa":   "baro:\n  sea_level_pa: -1\n",
	}
	for key, content := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, content), nil)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q does not name %s", err, key)
			}
		})
	}
}

func TestLoadDeclinationMinutesSign(t *testing.T) {
	isolate(t)
	cfg, err := Load(writeConfig(t, "mag:\n  declination_deg: 0\n  declination_min: -30\n"), nil)
	if err != nil {
		t.Fatalf("negative minutes with zero degrees rejected: %v", err)
	}
	if cfg.Mag.DeclinationDeg != 0 || cfg.Mag.DeclinationMin != -30 {
		t.Errorf("mag = %+v", cfg.Mag)
	}

	for name, content := range map[string]string{
		"minutes out of range":          "mag:\n  declination_deg: 0\n  declination_min: -60\n",
		"negative minutes with degrees": "mag:\n  declination_deg: -4\n  declination_min: -30\n",
	} {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			_, err := Load(writeConfig(t, content), nil)
			if err == nil || !strings.Contains(err.Error(), "mag.declination_min") {
				t.Errorf("error = %v, want mag.declination_min validation error", err)
			}
		})
	}
}

func TestInitGlobalKeepsError(t *testing.T) {
	isolate(t)
	configOnce = sync.Once{}
	t.Cleanup(func() {
		configOnce = sync.Once{}
		globalConfig, globalErr = nil, nil
	})

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := InitGlobal(missing, nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
	// the second call does not reload, but must still report the failure
	if err := InitGlobal("", nil); err == nil {
		t.Fatal("second InitGlobal returned nil after a failed first load")
	}
	if Get() != nil {
		t.Errorf("Get() = %+v after failed load, want nil", Get())
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	isolate(t)
	b, err := Template()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Config
	if err := yaml.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != Default() {
		t.Errorf("template decodes to %+v", decoded)
	}

	// the template is a valid config file
	p := writeConfig(t, string(b))
	cfg, err := Load(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != Default() {
		t.Errorf("Load(template) = %+v", *cfg)
	}
}

func TestAxesVector(t *testing.T) {
	v := Axes{X: 1, Y: -2, Z: 3}.Vector()
	if v.X != 1 || v.Y != -2 || v.Z != 3 {
		t.Errorf("Vector = %v", v)
	}
}
