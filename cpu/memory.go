// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "fmt"

// MemSize is the number of addressable bytes in the emulated machine's
// address space.
const MemSize = 64 * 1024

// A MemoryError reports an attempt to access an address outside the
// range [0, MemSize). It is returned only by the externally facing
// Peek/Poke surface; the CPU itself addresses memory with 16-bit values
// and cannot stray out of range.
type MemoryError struct {
	Addr int // the offending address
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory access out of range: address %d", e.Addr)
}

// The Memory interface is the window through which the CPU performs all
// loads and stores while executing instructions.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) byte

	// LoadBytes loads len(b) bytes starting at the address into 'b'.
	LoadBytes(addr uint16, b []byte)

	// LoadAddress loads a 16-bit little-endian address stored at 'addr'.
	// The high byte is read from addr+1 modulo the address-space size.
	LoadAddress(addr uint16) uint16

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint16, v byte)

	// StoreBytes stores the bytes in 'b' starting at the address.
	StoreBytes(addr uint16, b []byte)

	// StoreAddress stores a 16-bit address 'v' little-endian at 'addr'.
	StoreAddress(addr uint16, v uint16)
}

// RAM is the entire 16-bit address space held as a single flat 64K
// image. Every cell starts at zero, and the image is never resized. It
// satisfies the Memory interface for the CPU and additionally exposes a
// bounds-checked Peek/Poke surface for loaders and debugging tools.
type RAM struct {
	cells [MemSize]byte
}

// NewRAM creates a zero-filled 64K memory image.
func NewRAM() *RAM {
	return &RAM{}
}

// Peek reads the byte at 'addr', which may be any integer. It returns a
// MemoryError if the address lies outside the addressable range.
func (m *RAM) Peek(addr int) (byte, error) {
	if addr < 0 || addr >= MemSize {
		return 0, &MemoryError{Addr: addr}
	}
	return m.cells[addr], nil
}

// Poke writes the byte 'v' at 'addr'. It returns a MemoryError if the
// address lies outside the addressable range. Values are masked to 8
// bits by the parameter type, so a write can never deposit more than
// one byte.
func (m *RAM) Poke(addr int, v byte) error {
	if addr < 0 || addr >= MemSize {
		return &MemoryError{Addr: addr}
	}
	m.cells[addr] = v
	return nil
}

// PokeBytes writes the block 'b' starting at 'addr'. If any part of the
// block would fall outside the addressable range, nothing is written
// and a MemoryError identifying the first out-of-range address is
// returned.
func (m *RAM) PokeBytes(addr int, b []byte) error {
	if addr < 0 {
		return &MemoryError{Addr: addr}
	}
	if addr+len(b) > MemSize {
		return &MemoryError{Addr: max(addr, MemSize)}
	}
	copy(m.cells[addr:], b)
	return nil
}

// Clear resets every memory cell to zero.
func (m *RAM) Clear() {
	m.cells = [MemSize]byte{}
}

// LoadByte loads a single byte from the address and returns it.
func (m *RAM) LoadByte(addr uint16) byte {
	return m.cells[addr]
}

// LoadBytes loads len(b) bytes starting at the address into 'b'. Reads
// that run past the top of the address space wrap to address zero.
func (m *RAM) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = m.cells[addr+uint16(i)]
	}
}

// LoadAddress loads a 16-bit little-endian address stored at 'addr'.
// The high byte comes from addr+1, wrapping at the top of the address
// space.
func (m *RAM) LoadAddress(addr uint16) uint16 {
	lo := m.cells[addr]
	hi := m.cells[addr+1]
	return uint16(lo) | uint16(hi)<<8
}

// StoreByte stores a byte at the requested address.
func (m *RAM) StoreByte(addr uint16, v byte) {
	m.cells[addr] = v
}

// StoreBytes stores the bytes in 'b' starting at the address, wrapping
// at the top of the address space.
func (m *RAM) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		m.cells[addr+uint16(i)] = v
	}
}

// StoreAddress stores a 16-bit address 'v' little-endian at 'addr',
// with the high byte at addr+1 wrapping at the top of the address
// space.
func (m *RAM) StoreAddress(addr uint16, v uint16) {
	m.cells[addr] = byte(v)
	m.cells[addr+1] = byte(v >> 8)
}

// operandToAddress converts a 1- or 2-byte instruction operand into a
// 16-bit address.
func operandToAddress(operand []byte) uint16 {
	switch len(operand) {
	case 1:
		return uint16(operand[0])
	case 2:
		return uint16(operand[0]) | uint16(operand[1])<<8
	}
	return 0
}

// offsetAddress returns 'addr' offset by an index register value using
// full 16-bit arithmetic. The result may cross a page boundary.
func offsetAddress(addr uint16, offset byte) uint16 {
	return addr + uint16(offset)
}

// offsetZeroPage offsets a zero-page address by an index register
// value, wrapping within page zero. The carry never escapes into page
// one.
func offsetZeroPage(addr uint16, offset byte) uint16 {
	return uint16(byte(addr) + offset)
}

// relativeAddress converts a branch offset byte into an absolute
// target. The offset is two's complement: values of $80 and above reach
// backward. 'pc' is the address of the instruction following the
// branch.
func relativeAddress(pc uint16, offset byte) uint16 {
	if offset < 0x80 {
		return pc + uint16(offset)
	}
	return pc - (0x100 - uint16(offset))
}

// stackAddress converts the 1-byte stack pointer register into the
// corresponding address within the fixed stack page.
func stackAddress(offset byte) uint16 {
	return 0x100 + uint16(offset)
}
