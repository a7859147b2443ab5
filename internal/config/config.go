// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName           = "gy801"
	DefaultConfigName = "gy801"
	EnvPrefix         = "GY801"
	EnvConfigFile     = "GY801_CONFIG"

	DefaultI2CBus           = "1"
	DefaultSampleIntervalMS = 1000
	DefaultDisplayAddr      = 0x3C
	DefaultDisplayInterval  = 500
	DefaultBaroAddr         = 0x77
)

var userHomeDir, _ = os.UserHomeDir()

// Config search path, in order, when no file is given explicitly.
var SearchPaths = []string{
	path.Join(userHomeDir, ".config", AppName),
	"/etc/" + AppName,
	"./",
}

// Axes is a per-axis constant.
type Axes struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

func (a Axes) Vector() r3.Vector {
	return r3.Vector{X: a.X, Y: a.Y, Z: a.Z}
}

type AccelConfig struct {
	Offset Axes    `mapstructure:"offset" yaml:"offset"` // g
	Filter float64 `mapstructure:"filter" yaml:"filter"` // low-pass coefficient, 1 = off
}

type GyroConfig struct {
	Filter float64 `mapstructure:"filter" yaml:"filter"`
}

type MagConfig struct {
	Offset         Axes    `mapstructure:"offset" yaml:"offset"` // counts
	DeclinationDeg float64 `mapstructure:"declination_deg" yaml:"declination_deg"`
	DeclinationMin float64 `mapstructure:"declination_min" yaml:"declination_min"`
}

type DisplayConfig struct {
	I2CAddr          uint16 `mapstructure:"i2c_addr" yaml:"i2c_addr"`
	UpdateIntervalMS int    `mapstructure:"update_interval_ms" yaml:"update_interval_ms"`
}

// BaroConfig enables the BMP180 barometer of the board.
type BaroConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	I2CAddr    uint16  `mapstructure:"i2c_addr" yaml:"i2c_addr"`
	SeaLevelPa float64 `mapstructure:"sea_level_pa" yaml:"sea_level_pa"` // 0 = standard atmosphere
}

// Config holds all application configuration values.
type Config struct {
	I2CBus           string        `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	SampleIntervalMS int           `mapstructure:"sample_interval_ms" yaml:"sample_interval_ms"`
	Debug            bool          `mapstructure:"debug" yaml:"debug"`
	Accel            AccelConfig   `mapstructure:"accel" yaml:"accel"`
	Gyro             GyroConfig    `mapstructure:"gyro" yaml:"gyro"`
	Mag              MagConfig     `mapstructure:"mag" yaml:"mag"`
	Display          DisplayConfig `mapstructure:"display" yaml:"display"`
	Baro             BaroConfig    `mapstructure:"baro" yaml:"baro"`
}

// Default returns the configuration used when no file is present. The
// offsets and declination are the values measured on the reference board
// (Hsinchu: -4°32').
func Default() Config {
	return Config{
		I2CBus:           DefaultI2CBus,
		SampleIntervalMS: DefaultSampleIntervalMS,
		Accel: AccelConfig{
			Offset: Axes{X: 0.012, Y: 0.032, Z: 0.052},
			Filter: 1.0,
		},
		Gyro: GyroConfig{Filter: 1.0},
		Mag: MagConfig{
			Offset:         Axes{X: -25, Y: 24, Z: -92},
			DeclinationDeg: -4,
			DeclinationMin: 32,
		},
		Display: DisplayConfig{
			I2CAddr:          DefaultDisplayAddr,
			UpdateIntervalMS: DefaultDisplayInterval,
		},
		Baro: BaroConfig{I2CAddr: DefaultBaroAddr},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("i2c_bus", d.I2CBus)
	v.SetDefault("sample_interval_ms", d.SampleIntervalMS)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("accel.offset.x", d.Accel.Offset.X)
	v.SetDefault("accel.offset.y", d.Accel.Offset.Y)
	v.SetDefault("accel.offset.z", d.Accel.Offset.Z)
	v.SetDefault("accel.filter", d.Accel.Filter)
	v.SetDefault("gyro.filter", d.Gyro.Filter)
	v.SetDefault("mag.offset.x", d.Mag.Offset.X)
	v.SetDefault("mag.offset.y", d.Mag.Offset.Y)
	v.SetDefault("mag.offset.z", d.Mag.Offset.Z)
	v.SetDefault("mag.declination_deg", d.Mag.DeclinationDeg)
	v.SetDefault("mag.declination_min", d.Mag.DeclinationMin)
	v.SetDefault("display.i2c_addr", d.Display.I2CAddr)
	v.SetDefault("display.update_interval_ms", d.Display.UpdateIntervalMS)
	v.SetDefault("baro.enabled", d.Baro.Enabled)
	v.SetDefault("baro.i2c_addr", d.Baro.I2CAddr)
	v.SetDefault("baro.sea_level_pa", d.Baro.SeaLevelPa)
}

// flag name -> config key
var flagKeys = map[string]string{
	"bus":      "i2c_bus",
	"interval": "sample_interval_ms",
	"debug":    "debug",
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	globalErr    error
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load resolves the configuration, by priority: flags, GY801_* environment
// variables, the config file, defaults. The file is configPath if set,
// else $GY801_CONFIG, else gy801.yaml in SearchPaths. A missing file is
// only an error when it was named explicitly. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := true
	if configPath == "" {
		configPath = os.Getenv(EnvConfigFile)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		explicit = false
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		for _, p := range SearchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debugf("no config file found, using defaults: %v", err)
	} else {
		log.Debugf("using config file: %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks ranges the loops and drivers rely on.
func (c *Config) validate() error {
	if c.I2CBus == "" {
		return fmt.Errorf("i2c_bus is required")
	}
	if c.SampleIntervalMS <= 0 {
		return fmt.Errorf("sample_interval_ms must be > 0, got %d", c.SampleIntervalMS)
	}
	if c.Accel.Filter < 0 || c.Accel.Filter > 1 {
		return fmt.Errorf("accel.filter must be 0-1, got %g", c.Accel.Filter)
	}
	if c.Gyro.Filter < 0 || c.Gyro.Filter > 1 {
		return fmt.Errorf("gyro.filter must be 0-1, got %g", c.Gyro.Filter)
	}
	// minutes carry the sign only when degrees is zero, e.g. -0°30'
	if c.Mag.DeclinationDeg == 0 {
		if c.Mag.DeclinationMin <= -60 || c.Mag.DeclinationMin >= 60 {
			return fmt.Errorf("mag.declination_min must be between -60 and 60 when declination_deg is 0, got %g", c.Mag.DeclinationMin)
		}
	} else if c.Mag.DeclinationMin < 0 || c.Mag.DeclinationMin >= 60 {
		return fmt.Errorf("mag.declination_min must be 0-59, got %g", c.Mag.DeclinationMin)
	}
	if c.Display.I2CAddr > 0x7F {
		return fmt.Errorf("display.i2c_addr must be a 7-bit address, got 0x%X", c.Display.I2CAddr)
	}
	if c.Display.UpdateIntervalMS <= 0 {
		return fmt.Errorf("display.update_interval_ms must be > 0, got %d", c.Display.UpdateIntervalMS)
	}
	if c.Baro.I2CAddr > 0x7F {
		return fmt.Errorf("baro.i2c_addr must be a 7-bit address, got 0x%X", c.Baro.I2CAddr)
	}
	if c.Baro.SeaLevelPa < 0 {
		return fmt.Errorf("baro.sea_level_pa must be >= 0, got %g", c.Baro.SeaLevelPa)
	}
	return nil
}

// ApplyLogLevel sets the logrus level from Debug.
func (c *Config) ApplyLogLevel() {
	if c.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Template renders the default configuration as YAML.
func Template() ([]byte, error) {
	return yaml.Marshal(Default())
}

// InitGlobal loads the configuration once; later calls return the first
// result's error and do not reload.
func InitGlobal(configPath string, flags *pflag.FlagSet) error {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, globalErr = Load(configPath, flags)
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return globalErr
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
