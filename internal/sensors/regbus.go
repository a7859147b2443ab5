// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// RegisterBus is byte-level register access to devices on a shared bus.
// Devices are identified by their 7-bit bus address.
type RegisterBus interface {
	WriteReg(addr uint16, reg, value byte) error
	ReadReg(addr uint16, reg byte) (byte, error)
}

// BusError is returned for every failed register transaction.
type BusError struct {
	Op   string // "read" or "write"
	Addr uint16
	Reg  byte
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s dev 0x%02X reg 0x%02X: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// I2CBus implements RegisterBus on top of a periph I2C bus.
type I2CBus struct {
	bus i2c.Bus
}

// NewI2CBus wraps an already opened periph I2C bus.
func NewI2CBus(bus i2c.Bus) *I2CBus {
	return &I2CBus{bus: bus}
}

// OpenI2C initializes the periph host drivers and opens the named I2C bus
// ("" selects the first one available, "1" is the Raspberry Pi header bus).
// The returned closer releases the bus.
func OpenI2C(name string) (*I2CBus, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	log.WithField("bus", bc.String()).Debug("i2c bus opened")
	return NewI2CBus(bc), bc, nil
}

// WriteReg writes a single register.
func (b *I2CBus) WriteReg(addr uint16, reg, value byte) error {
	if err := b.bus.Tx(addr, []byte{reg, value}, nil); err != nil {
		return &BusError{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

// ReadReg reads a single register.
func (b *I2CBus) ReadReg(addr uint16, reg byte) (byte, error) {
	var r [1]byte
	if err := b.bus.Tx(addr, []byte{reg}, r[:]); err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	return r[0], nil
}

// ByteOrder tells which of two consecutive registers holds the high byte.
type ByteOrder int

const (
	// LittleEndian: low byte at the base register (ADXL345, L3G4200D).
	LittleEndian ByteOrder = iota
	// BigEndian: high byte at the base register (HMC5883L).
	BigEndian
)

// DecodeWord combines the bytes read from reg and reg+1 into a signed
// two's-complement word.
func DecodeWord(first, second byte, order ByteOrder) int16 {
	hi, lo := second, first
	if order == BigEndian {
		hi, lo = first, second
	}
	v := int32(hi)<<8 | int32(lo)
	if v&0x8000 != 0 {
		v -= 1 << 16
	}
	return int16(v)
}

// ReadSignedWord reads reg and reg+1 from the device at addr and decodes them.
func ReadSignedWord(bus RegisterBus, addr uint16, reg byte, order ByteOrder) (int16, error) {
	first, err := bus.ReadReg(addr, reg)
	if err != nil {
		return 0, err
	}
	second, err := bus.ReadReg(addr, reg+1)
	if err != nil {
		return 0, err
	}
	return DecodeWord(first, second, order), nil
}

// Bus returns the underlying periph bus, for other devices sharing it.
func (b *I2CBus) Bus() i2c.Bus { return b.bus }
