// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
)

var errInjected = errors.New("injected bus failure")

type regKey struct {
	addr uint16
	reg  byte
}

type write struct {
	addr       uint16
	reg, value byte
}

// fakeBus is an in-memory register file. Reads of unset registers return 0.
type fakeBus struct {
	regs   map[regKey]byte
	writes []write
	reads  []regKey

	failRead  map[regKey]bool
	failWrite map[regKey]bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		regs:      map[regKey]byte{},
		failRead:  map[regKey]bool{},
		failWrite: map[regKey]bool{},
	}
}

func (b *fakeBus) WriteReg(addr uint16, reg, value byte) error {
	k := regKey{addr, reg}
	if b.failWrite[k] {
		return &BusError{Op: "write", Addr: addr, Reg: reg, Err: errInjected}
	}
	b.writes = append(b.writes, write{addr, reg, value})
	b.regs[k] = value
	return nil
}

func (b *fakeBus) ReadReg(addr uint16, reg byte) (byte, error) {
	k := regKey{addr, reg}
	if b.failRead[k] {
		return 0, &BusError{Op: "read", Addr: addr, Reg: reg, Err: errInjected}
	}
	b.reads = append(b.reads, k)
	return b.regs[k], nil
}

// setWord stores v at reg/reg+1 in the given byte order.
func (b *fakeBus) setWord(addr uint16, reg byte, v int16, order ByteOrder) {
	hi, lo := byte(uint16(v)>>8), byte(uint16(v))
	if order == BigEndian {
		b.regs[regKey{addr, reg}], b.regs[regKey{addr, reg + 1}] = hi, lo
		return
	}
	b.regs[regKey{addr, reg}], b.regs[regKey{addr, reg + 1}] = lo, hi
}

func (w write) String() string {
	return fmt.Sprintf("0x%02X[0x%02X]=0x%02X", w.addr, w.reg, w.value)
}
