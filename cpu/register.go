// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Registers contains the state of the CPU register file. The 8-bit
// registers are stored as bytes and the program counter as a uint16, so
// every value stays within its declared width after any mutation. The
// processor status is kept as named boolean flags; SavePS and RestorePS
// convert to and from the packed status byte used on the stack.
type Registers struct {
	A                byte   // accumulator
	X                byte   // X index register
	Y                byte   // Y index register
	SP               byte   // stack pointer ($100 + SP = stack memory address)
	PC               uint16 // program counter
	Carry            bool   // PS: carry bit
	Zero             bool   // PS: zero bit
	InterruptDisable bool   // PS: interrupt disable bit
	Decimal          bool   // PS: decimal bit (tracked, arithmetic stays binary)
	Overflow         bool   // PS: overflow bit
	Sign             bool   // PS: sign (negative) bit
}

// Bit positions within the packed processor status byte.
const (
	CarryBit            = 1 << 0
	ZeroBit             = 1 << 1
	InterruptDisableBit = 1 << 2
	DecimalBit          = 1 << 3
	BreakBit            = 1 << 4
	ReservedBit         = 1 << 5
	OverflowBit         = 1 << 6
	SignBit             = 1 << 7
)

// SavePS packs the processor status into a byte. The break bit is set
// if requested; the reserved bit always reads as one.
func (r *Registers) SavePS(brk bool) byte {
	var ps byte = ReservedBit
	if r.Carry {
		ps |= CarryBit
	}
	if r.Zero {
		ps |= ZeroBit
	}
	if r.InterruptDisable {
		ps |= InterruptDisableBit
	}
	if r.Decimal {
		ps |= DecimalBit
	}
	if brk {
		ps |= BreakBit
	}
	if r.Overflow {
		ps |= OverflowBit
	}
	if r.Sign {
		ps |= SignBit
	}
	return ps
}

// RestorePS unpacks a status byte into the boolean flags. The break and
// reserved bits have no stored counterpart and are ignored.
func (r *Registers) RestorePS(ps byte) {
	r.Carry = (ps & CarryBit) != 0
	r.Zero = (ps & ZeroBit) != 0
	r.InterruptDisable = (ps & InterruptDisableBit) != 0
	r.Decimal = (ps & DecimalBit) != 0
	r.Overflow = (ps & OverflowBit) != 0
	r.Sign = (ps & SignBit) != 0
}

// Init restores the register file to its power-on defaults: A, X and Y
// zero, SP at $FD, PC zero, all flags cleared.
func (r *Registers) Init() {
	r.A = 0
	r.X = 0
	r.Y = 0
	r.SP = 0xfd
	r.PC = 0
	r.RestorePS(0)
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func boolToByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
