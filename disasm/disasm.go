// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a disassembler for the emulated CPU's
// instruction set.
package disasm

import (
	"fmt"

	"github.com/retrozone/sim6502/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = []string{
	"#$%s",    // IMM
	"%s",      // IMP
	"$%s",     // REL
	"$%s",     // ZPG
	"$%s,X",   // ZPX
	"$%s,Y",   // ZPY
	"$%s",     // ABS
	"$%s,X",   // ABX
	"$%s,Y",   // ABY
	"($%s)",   // IND
	"($%s,X)", // IDX
	"($%s),Y", // IDY
	"%s",      // ACC
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice,
// ordered most significant byte first.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return
// a 'line' string representing the disassembled instruction and a
// 'next' address that starts the following line of machine code. A
// byte that is not a valid opcode disassembles to a raw data
// directive.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	opcode := m.LoadByte(addr)
	inst := cpu.GetInstructionSet().Lookup(opcode)
	if inst == nil {
		return fmt.Sprintf(".DB $%02X", opcode), addr + 1
	}

	operand := make([]byte, inst.Length-1)
	m.LoadBytes(addr+1, operand)

	if inst.Mode == cpu.REL {
		// Convert the relative offset to an absolute address.
		target := int(addr) + int(inst.Length) + int(operand[0])
		if operand[0] >= 0x80 {
			target -= 256
		}
		operand = []byte{byte(target), byte(target >> 8)}
	}

	format := "%s " + modeFormat[inst.Mode]
	line = fmt.Sprintf(format, inst.Name, hexString(operand))
	next = addr + uint16(inst.Length)
	return line, next
}

// GetRegisterString returns a single-line representation of the
// register file, suitable for display alongside a disassembled
// instruction.
func GetRegisterString(r *cpu.Registers) string {
	return fmt.Sprintf("A=%02X X=%02X Y=%02X PS=[%s] SP=%02X PC=%04X",
		r.A, r.X, r.Y, getFlagString(r), r.SP, r.PC)
}

func getFlagString(r *cpu.Registers) string {
	b := []byte("nvdizc")
	if r.Sign {
		b[0] = 'N'
	}
	if r.Overflow {
		b[1] = 'V'
	}
	if r.Decimal {
		b[2] = 'D'
	}
	if r.InterruptDisable {
		b[3] = 'I'
	}
	if r.Zero {
		b[4] = 'Z'
	}
	if r.Carry {
		b[5] = 'C'
	}
	return string(b)
}
