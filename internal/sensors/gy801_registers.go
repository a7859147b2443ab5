// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `yaml:"bits"` // "7", "5:4"
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Values      string `yaml:"values,omitempty"`
}

// RegisterInfo is register metadata from the datasheets.
type RegisterInfo struct {
	Address     byte       `yaml:"address"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Access      string     `yaml:"access"` // "R", "RW"
	Default     string     `yaml:"default,omitempty"`
	BitFields   []BitField `yaml:"bit_fields,omitempty"`
}

// Device describes one chip of the board for register dumps.
type Device struct {
	Name      string
	Addr      uint16
	Registers []RegisterInfo
}

// Devices returns the register maps of the three GY-801 sensors.
func Devices() []Device {
	return []Device{
		{Name: "adxl345", Addr: ADXL345Addr, Registers: adxl345RegisterMap()},
		{Name: "l3g4200d", Addr: L3G4200DAddr, Registers: l3g4200dRegisterMap()},
		{Name: "hmc5883l", Addr: HMC5883LAddr, Registers: hmc5883lRegisterMap()},
	}
}

// DeviceByName looks a device up by name.
func DeviceByName(name string) (Device, error) {
	for _, d := range Devices() {
		if d.Name == strings.ToLower(name) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("unknown device %q", name)
}

// FieldValue extracts a field given as "n" or "hi:lo" from a register value.
func FieldValue(value byte, bits string) (byte, error) {
	hi, lo, err := parseBits(bits)
	if err != nil {
		return 0, err
	}
	width := hi - lo + 1
	mask := byte((1 << width) - 1)
	return (value >> lo) & mask, nil
}

func parseBits(bits string) (hi, lo uint, err error) {
	parts := strings.SplitN(bits, ":", 2)
	h, err := strconv.ParseUint(parts[0], 10, 3)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid bit range %q", bits)
	}
	l := h
	if len(parts) == 2 {
		if l, err = strconv.ParseUint(parts[1], 10, 3); err != nil {
			return 0, 0, fmt.Errorf("invalid bit range %q", bits)
		}
	}
	if l > h {
		return 0, 0, fmt.Errorf("invalid bit range %q", bits)
	}
	return uint(h), uint(l), nil
}

// DumpRegisters reads every register of dev in address order.
func DumpRegisters(bus RegisterBus, dev Device) (map[byte]byte, error) {
	regs := append([]RegisterInfo(nil), dev.Registers...)
	sort.Slice(regs, func(i, j int) bool { return regs[i].Address < regs[j].Address })

	out := make(map[byte]byte, len(regs))
	for _, r := range regs {
		v, err := bus.ReadReg(dev.Addr, r.Address)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", dev.Name, r.Name, err)
		}
		out[r.Address] = v
	}
	return out, nil
}

func adxl345RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x00, Name: "DEVID", Description: "Device ID", Access: "R", Default: "0xE5"},
		{Address: 0x2C, Name: "BW_RATE", Description: "Data rate and power mode control", Access: "RW", Default: "0x0A",
			BitFields: []BitField{
				{Bits: "4", Name: "LOW_POWER", Description: "Reduced power operation", Values: "0=Normal, 1=Low power"},
				{Bits: "3:0", Name: "RATE", Description: "Output data rate", Values: "0x0A=100Hz, 0x0B=200Hz, 0x0C=400Hz, 0x0F=3200Hz"},
			}},
		{Address: 0x2D, Name: "POWER_CTL", Description: "Power-saving features control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "LINK", Description: "Link activity and inactivity", Values: "0=Concurrent, 1=Linked"},
				{Bits: "4", Name: "AUTO_SLEEP", Description: "Auto sleep", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "MEASURE", Description: "Measurement mode", Values: "0=Standby, 1=Measure"},
				{Bits: "2", Name: "SLEEP", Description: "Sleep mode", Values: "0=Normal, 1=Sleep"},
				{Bits: "1:0", Name: "WAKEUP", Description: "Reading frequency in sleep", Values: "0=8Hz, 1=4Hz, 2=2Hz, 3=1Hz"},
			}},
		{Address: 0x31, Name: "DATA_FORMAT", Description: "Data format control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SELF_TEST", Description: "Self-test force", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "SPI", Description: "SPI mode", Values: "0=4-wire, 1=3-wire"},
				{Bits: "5", Name: "INT_INVERT", Description: "Interrupt polarity", Values: "0=Active high, 1=Active low"},
				{Bits: "3", Name: "FULL_RES", Description: "Full resolution (4 mg/LSB)", Values: "0=10-bit, 1=Full resolution"},
				{Bits: "2", Name: "JUSTIFY", Description: "Justify", Values: "0=Right, 1=Left (MSB)"},
				{Bits: "1:0", Name: "RANGE", Description: "g range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: 0x32, Name: "DATAX0", Description: "X-Axis Data 0 (low byte)", Access: "R"},
		{Address: 0x33, Name: "DATAX1", Description: "X-Axis Data 1 (high byte)", Access: "R"},
		{Address: 0x34, Name: "DATAY0", Description: "Y-Axis Data 0 (low byte)", Access: "R"},
		{Address: 0x35, Name: "DATAY1", Description: "Y-Axis Data 1 (high byte)", Access: "R"},
		{Address: 0x36, Name: "DATAZ0", Description: "Z-Axis Data 0 (low byte)", Access: "R"},
		{Address: 0x37, Name: "DATAZ1", Description: "Z-Axis Data 1 (high byte)", Access: "R"},
	}
}

func l3g4200dRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x0F, Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0xD3"},
		{Address: 0x20, Name: "CTRL_REG1", Description: "Data rate, bandwidth, power and axis enable", Access: "RW", Default: "0x07",
			BitFields: []BitField{
				{Bits: "7:6", Name: "DR", Description: "Output data rate", Values: "0=100Hz, 1=200Hz, 2=400Hz, 3=800Hz"},
				{Bits: "5:4", Name: "BW", Description: "Bandwidth selection", Values: "0-3"},
				{Bits: "3", Name: "PD", Description: "Power down", Values: "0=Power down, 1=Normal"},
				{Bits: "2", Name: "Zen", Description: "Z axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "Yen", Description: "Y axis enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "Xen", Description: "X axis enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: 0x23, Name: "CTRL_REG4", Description: "Block data update, endianness, full scale", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Not updated until MSB and LSB read"},
				{Bits: "6", Name: "BLE", Description: "Big/little endian data", Values: "0=LSB at lower address, 1=MSB at lower address"},
				{Bits: "5:4", Name: "FS", Description: "Full scale selection", Values: "0=250dps, 1=500dps, 2=2000dps, 3=2000dps"},
				{Bits: "2:1", Name: "ST", Description: "Self-test enable", Values: "0=Normal"},
				{Bits: "0", Name: "SIM", Description: "SPI serial interface mode", Values: "0=4-wire, 1=3-wire"},
			}},
		{Address: 0x26, Name: "OUT_TEMP", Description: "Temperature data", Access: "R"},
		{Address: 0x27, Name: "STATUS_REG", Description: "Data status", Access: "R",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOR", Description: "X, Y, Z axis data overrun", Values: ""},
				{Bits: "3", Name: "ZYXDA", Description: "X, Y, Z axis new data available", Values: ""},
			}},
		{Address: 0x28, Name: "OUT_X_L", Description: "X-axis angular rate low byte", Access: "R"},
		{Address: 0x29, Name: "OUT_X_H", Description: "X-axis angular rate high byte", Access: "R"},
		{Address: 0x2A, Name: "OUT_Y_L", Description: "Y-axis angular rate low byte", Access: "R"},
		{Address: 0x2B, Name: "OUT_Y_H", Description: "Y-axis angular rate high byte", Access: "R"},
		{Address: 0x2C, Name: "OUT_Z_L", Description: "Z-axis angular rate low byte", Access: "R"},
		{Address: 0x2D, Name: "OUT_Z_H", Description: "Z-axis angular rate high byte", Access: "R"},
	}
}

func hmc5883lRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x00, Name: "CRA", Description: "Configuration Register A", Access: "RW", Default: "0x10",
			BitFields: []BitField{
				{Bits: "6:5", Name: "MA", Description: "Samples averaged per output", Values: "0=1, 1=2, 2=4, 3=8"},
				{Bits: "4:2", Name: "DO", Description: "Output data rate", Values: "0=0.75Hz, 1=1.5Hz, 2=3Hz, 3=7.5Hz, 4=15Hz, 5=30Hz, 6=75Hz"},
				{Bits: "1:0", Name: "MS", Description: "Measurement configuration", Values: "0=Normal, 1=Positive bias, 2=Negative bias"},
			}},
		{Address: 0x01, Name: "CRB", Description: "Configuration Register B", Access: "RW", Default: "0x20",
			BitFields: []BitField{
				{Bits: "7:5", Name: "GN", Description: "Gain", Values: "0=1370, 1=1090, 2=820, 3=660, 4=440, 5=390, 6=330, 7=230 LSB/Gauss"},
			}},
		{Address: 0x02, Name: "MR", Description: "Mode Register", Access: "RW", Default: "0x01",
			BitFields: []BitField{
				{Bits: "7", Name: "HS", Description: "High speed I2C (3400kHz)", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1:0", Name: "MD", Description: "Operating mode", Values: "0=Continuous, 1=Single, 2=Idle, 3=Idle"},
			}},
		{Address: 0x03, Name: "DO_X_H", Description: "Data Output X MSB", Access: "R"},
		{Address: 0x04, Name: "DO_X_L", Description: "Data Output X LSB", Access: "R"},
		{Address: 0x05, Name: "DO_Z_H", Description: "Data Output Z MSB", Access: "R"},
		{Address: 0x06, Name: "DO_Z_L", Description: "Data Output Z LSB", Access: "R"},
		{Address: 0x07, Name: "DO_Y_H", Description: "Data Output Y MSB", Access: "R"},
		{Address: 0x08, Name: "DO_Y_L", Description: "Data Output Y LSB", Access: "R"},
		{Address: 0x09, Name: "SR", Description: "Status Register", Access: "R",
			BitFields: []BitField{
				{Bits: "1", Name: "LOCK", Description: "Data output register lock", Values: ""},
				{Bits: "0", Name: "RDY", Description: "Ready bit", Values: ""},
			}},
		{Address: 0x0A, Name: "IRA", Description: "Identification Register A", Access: "R", Default: "0x48"},
		{Address: 0x0B, Name: "IRB", Description: "Identification Register B", Access: "R", Default: "0x34"},
		{Address: 0x0C, Name: "IRC", Description: "Identification Register C", Access: "R", Default: "0x33"},
	}
}
