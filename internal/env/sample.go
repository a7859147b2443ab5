// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "math"

// StandardSeaLevelPa is the ISA sea level pressure.
const StandardSeaLevelPa = 101325.0

// Sample represents a single environmental measurement (BMP180).
type Sample struct {
	Temperature  float64 `json:"temp_c"`        // °C
	Pressure     float64 `json:"pressure_pa"`   // Pa
	PressureHPa  float64 `json:"pressure_hpa"`  // hPa (= mbar)
	AltitudeM    float64 `json:"altitude_m"`    // barometric, relative to SeaLevelPa
	SeaLevelPaAt float64 `json:"sea_level_pa"`
}

// NewSample fills the derived fields from temperature and pressure.
// seaLevelPa <= 0 selects StandardSeaLevelPa.
func NewSample(tempC, pressurePa, seaLevelPa float64) Sample {
	if seaLevelPa <= 0 {
		seaLevelPa = StandardSeaLevelPa
	}
	return Sample{
		Temperature:  tempC,
		Pressure:     pressurePa,
		PressureHPa:  pressurePa / 100.0,
		AltitudeM:    Altitude(pressurePa, seaLevelPa),
		SeaLevelPaAt: seaLevelPa,
	}
}

// Altitude is the international barometric formula, in metres.
func Altitude(pressurePa, seaLevelPa float64) float64 {
	if pressurePa <= 0 || seaLevelPa <= 0 {
		return math.NaN()
	}
	return 44330.0 * (1 - math.Pow(pressurePa/seaLevelPa, 1/5.255))
}
