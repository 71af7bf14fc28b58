// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu emulates the instruction-execution core of a 6502 CPU:
// a 64K memory image, the register file, the opcode dispatch table,
// and a clock that paces execution against a simulated frequency.
package cpu

import (
	"context"
	"fmt"
	"time"
)

// An OpcodeError reports a fetched byte that has no entry in the
// instruction table. It is unrecoverable: the CPU performs no state
// mutation, and the caller should treat it as a stop condition.
type OpcodeError struct {
	Opcode byte   // the undefined opcode byte
	PC     uint16 // program counter at the time of the fetch
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode $%02X at $%04X", e.Opcode, e.PC)
}

// BrkHandler is an interface implemented by types that wish to be
// notified when a BRK instruction is about to be executed.
type BrkHandler interface {
	OnBrk(cpu *CPU)
}

// CPU represents a single emulated 6502 CPU bound to a memory image.
// The CPU exclusively owns its registers; execution is single-threaded
// and every instruction observes the fully settled state left by the
// previous one.
type CPU struct {
	Reg     Registers       // CPU registers
	Mem     Memory          // assigned memory
	Cycles  uint64          // total executed CPU cycles
	LastPC  uint16          // previous program counter
	InstSet *InstructionSet // opcode dispatch table

	// nextPC is the program counter value that takes effect when the
	// current instruction finishes. Instructions own PC advancement:
	// Step seeds nextPC with the address of the following instruction,
	// and branches, jumps and returns overwrite it.
	nextPC uint16

	debugger   *Debugger
	brkHandler BrkHandler
	storeByte  func(cpu *CPU, addr uint16, v byte)
}

// Interrupt vectors
const (
	vectorReset = 0xfffc
	vectorBRK   = 0xfffe
)

// NewCPU creates an emulated CPU bound to the specified memory and
// resets it.
func NewCPU(m Memory) *CPU {
	cpu := &CPU{
		Mem:       m,
		InstSet:   GetInstructionSet(),
		storeByte: (*CPU).storeByteNormal,
	}
	cpu.Reset()
	return cpu
}

// Reset restores the CPU to its power-on state: A, X and Y zero, stack
// pointer at $FD, all status flags cleared, and the program counter
// loaded from the reset vector. Memory contents are left untouched.
// Resetting twice in a row yields identical register state.
func (cpu *CPU) Reset() {
	cpu.Reg.Init()
	cpu.Reg.PC = cpu.Mem.LoadAddress(vectorReset)
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.Reg.PC = addr
}

// GetInstruction returns the instruction whose opcode is stored at the
// requested address, or nil if the byte there is not a valid opcode.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	return cpu.InstSet.Lookup(cpu.Mem.LoadByte(addr))
}

// NextAddr returns the address of the instruction following the
// instruction at addr. Undefined opcodes are treated as one byte long.
func (cpu *CPU) NextAddr(addr uint16) uint16 {
	if inst := cpu.GetInstruction(addr); inst != nil {
		return addr + uint16(inst.Length)
	}
	return addr + 1
}

// Step executes the single instruction at the current program counter
// and returns the number of clock cycles it consumed. If the byte at
// the program counter is not a valid opcode, Step mutates nothing and
// returns an OpcodeError.
func (cpu *CPU) Step() (int, error) {
	opcode := cpu.Mem.LoadByte(cpu.Reg.PC)

	inst := cpu.InstSet.Lookup(opcode)
	if inst == nil {
		return 0, &OpcodeError{Opcode: opcode, PC: cpu.Reg.PC}
	}

	// If a BRK instruction is about to be executed and a BRK handler
	// has been installed, call the handler instead of executing the
	// instruction.
	if inst.Opcode == 0x00 && cpu.brkHandler != nil {
		cpu.brkHandler.OnBrk(cpu)
		return int(inst.Cycles), nil
	}

	// Fetch the operand, if any.
	var buf [2]byte
	operand := buf[:inst.Length-1]
	cpu.Mem.LoadBytes(cpu.Reg.PC+1, operand)

	// Seed nextPC with the address of the following instruction. The
	// instruction may overwrite it.
	cpu.LastPC = cpu.Reg.PC
	cpu.nextPC = cpu.Reg.PC + uint16(inst.Length)

	inst.fn(cpu, inst, operand)

	cpu.Reg.PC = cpu.nextPC
	cpu.Cycles += uint64(inst.Cycles)

	// Let an attached debugger handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.Reg.PC)
	}

	return int(inst.Cycles), nil
}

// Run steps the CPU until the context is canceled or an instruction
// fails. When 'clock' is non-nil, each instruction is throttled so that
// apparent execution speed approximates the clock's configured rate.
func (cpu *CPU) Run(ctx context.Context, clock *Clock) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		cycles, err := cpu.Step()
		if err != nil {
			return err
		}
		if clock != nil {
			if err := clock.Throttle(ctx, cycles, time.Since(start)); err != nil {
				return err
			}
		}
	}
}

// AttachBrkHandler attaches a handler that is called whenever the BRK
// instruction is executed.
func (cpu *CPU) AttachBrkHandler(handler BrkHandler) {
	cpu.brkHandler = handler
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or stores a
// byte to memory.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently attached debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

// zeroPageAddress assembles a 16-bit pointer from two consecutive
// zero-page cells. The second cell wraps within page zero.
func (cpu *CPU) zeroPageAddress(zpaddr uint16) uint16 {
	lo := cpu.Mem.LoadByte(zpaddr)
	hi := cpu.Mem.LoadByte(offsetZeroPage(zpaddr, 1))
	return uint16(lo) | uint16(hi)<<8
}

// effectiveAddress computes the memory location the addressing mode
// refers to. Instructions that write a result back to memory recompute
// their target through this function rather than reusing a previously
// loaded value.
func (cpu *CPU) effectiveAddress(mode Mode, operand []byte) uint16 {
	switch mode {
	case ZPG:
		return operandToAddress(operand)
	case ZPX:
		return offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
	case ZPY:
		return offsetZeroPage(operandToAddress(operand), cpu.Reg.Y)
	case ABS:
		return operandToAddress(operand)
	case ABX:
		return offsetAddress(operandToAddress(operand), cpu.Reg.X)
	case ABY:
		return offsetAddress(operandToAddress(operand), cpu.Reg.Y)
	case IDX:
		return cpu.zeroPageAddress(offsetZeroPage(operandToAddress(operand), cpu.Reg.X))
	case IDY:
		return offsetAddress(cpu.zeroPageAddress(operandToAddress(operand)), cpu.Reg.Y)
	default:
		panic("addressing mode has no effective address")
	}
}

// load resolves the operand value for the requested addressing mode.
func (cpu *CPU) load(mode Mode, operand []byte) byte {
	switch mode {
	case IMM:
		return operand[0]
	case ACC:
		return cpu.Reg.A
	case IMP:
		return 0
	default:
		return cpu.Mem.LoadByte(cpu.effectiveAddress(mode, operand))
	}
}

// loadAddress resolves a 16-bit target address for the jump
// instructions.
func (cpu *CPU) loadAddress(mode Mode, operand []byte) uint16 {
	switch mode {
	case ABS:
		return operandToAddress(operand)
	case IND:
		return cpu.Mem.LoadAddress(operandToAddress(operand))
	default:
		panic("invalid addressing mode")
	}
}

// store writes 'v' to the location the addressing mode refers to.
func (cpu *CPU) store(mode Mode, operand []byte, v byte) {
	if mode == ACC {
		cpu.Reg.A = v
		return
	}
	cpu.storeByte(cpu, cpu.effectiveAddress(mode, operand), v)
}

// branch redirects nextPC using the instruction's relative offset.
func (cpu *CPU) branch(operand []byte) {
	cpu.nextPC = relativeAddress(cpu.nextPC, operand[0])
}

// Store the byte value 'v' at the address 'addr'.
func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.Mem.StoreByte(addr, v)
}

// Store the byte value 'v' at the address 'addr', notifying the
// attached debugger.
func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr, v)
	cpu.Mem.StoreByte(addr, v)
}

// Push a value 'v' onto the stack.
func (cpu *CPU) push(v byte) {
	cpu.storeByte(cpu, stackAddress(cpu.Reg.SP), v)
	cpu.Reg.SP--
}

// Push the address 'addr' onto the stack.
func (cpu *CPU) pushAddress(addr uint16) {
	cpu.push(byte(addr >> 8))
	cpu.push(byte(addr))
}

// Pop a value from the stack and return it.
func (cpu *CPU) pop() byte {
	cpu.Reg.SP++
	return cpu.Mem.LoadByte(stackAddress(cpu.Reg.SP))
}

// Pop a 16-bit address off the stack.
func (cpu *CPU) popAddress() uint16 {
	lo := cpu.pop()
	hi := cpu.pop()
	return uint16(lo) | uint16(hi)<<8
}

// Update the Zero and Sign flags based on the value of 'v'.
func (cpu *CPU) updateNZ(v byte) {
	cpu.Reg.Zero = (v == 0)
	cpu.Reg.Sign = ((v & 0x80) != 0)
}

// Add with carry. Arithmetic is always binary; the Decimal flag is
// tracked but does not affect the sum.
func (cpu *CPU) adc(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	add := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)

	// The carry test uses the unbounded sum; the overflow test compares
	// the sign bits of the inputs against the sign bit of the result.
	v := acc + add + carry
	cpu.Reg.Carry = (v >= 0x100)
	cpu.Reg.Overflow = ((acc&0x80) == (add&0x80)) && ((acc&0x80) != (v&0x80))

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
}

// Boolean AND
func (cpu *CPU) and(inst *Instruction, operand []byte) {
	cpu.Reg.A &= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

// Arithmetic Shift Left. In accumulator mode the result lands in A;
// otherwise it is written back to the effective address the operand was
// loaded from.
func (cpu *CPU) asl(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = ((v & 0x80) == 0x80)
	v <<= 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// Branch if Carry Clear
func (cpu *CPU) bcc(inst *Instruction, operand []byte) {
	if !cpu.Reg.Carry {
		cpu.branch(operand)
	}
}

// Branch if Carry Set
func (cpu *CPU) bcs(inst *Instruction, operand []byte) {
	if cpu.Reg.Carry {
		cpu.branch(operand)
	}
}

// Branch if EQual (to zero)
func (cpu *CPU) beq(inst *Instruction, operand []byte) {
	if cpu.Reg.Zero {
		cpu.branch(operand)
	}
}

// Bit Test
func (cpu *CPU) bit(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Zero = ((v & cpu.Reg.A) == 0)
	cpu.Reg.Sign = ((v & 0x80) != 0)
	cpu.Reg.Overflow = ((v & 0x40) != 0)
}

// Branch if MInus (negative)
func (cpu *CPU) bmi(inst *Instruction, operand []byte) {
	if cpu.Reg.Sign {
		cpu.branch(operand)
	}
}

// Branch if Not Equal (not zero)
func (cpu *CPU) bne(inst *Instruction, operand []byte) {
	if !cpu.Reg.Zero {
		cpu.branch(operand)
	}
}

// Branch if PLus (positive)
func (cpu *CPU) bpl(inst *Instruction, operand []byte) {
	if !cpu.Reg.Sign {
		cpu.branch(operand)
	}
}

// Break: push the address past the BRK padding byte and the status
// byte with the break bit set, then vector through $FFFE.
func (cpu *CPU) brk(inst *Instruction, operand []byte) {
	cpu.pushAddress(cpu.nextPC + 1)
	cpu.push(cpu.Reg.SavePS(true))
	cpu.Reg.InterruptDisable = true
	cpu.nextPC = cpu.Mem.LoadAddress(vectorBRK)
}

// Branch if oVerflow Clear
func (cpu *CPU) bvc(inst *Instruction, operand []byte) {
	if !cpu.Reg.Overflow {
		cpu.branch(operand)
	}
}

// Branch if oVerflow Set
func (cpu *CPU) bvs(inst *Instruction, operand []byte) {
	if cpu.Reg.Overflow {
		cpu.branch(operand)
	}
}

// Clear Carry flag
func (cpu *CPU) clc(inst *Instruction, operand []byte) {
	cpu.Reg.Carry = false
}

// Clear Decimal flag
func (cpu *CPU) cld(inst *Instruction, operand []byte) {
	cpu.Reg.Decimal = false
}

// Clear InterruptDisable flag
func (cpu *CPU) cli(inst *Instruction, operand []byte) {
	cpu.Reg.InterruptDisable = false
}

// Clear oVerflow flag
func (cpu *CPU) clv(inst *Instruction, operand []byte) {
	cpu.Reg.Overflow = false
}

// Compare to accumulator
func (cpu *CPU) cmp(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = (cpu.Reg.A >= v)
	cpu.updateNZ(cpu.Reg.A - v)
}

// Compare to X register
func (cpu *CPU) cpx(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = (cpu.Reg.X >= v)
	cpu.updateNZ(cpu.Reg.X - v)
}

// Compare to Y register
func (cpu *CPU) cpy(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = (cpu.Reg.Y >= v)
	cpu.updateNZ(cpu.Reg.Y - v)
}

// Decrement memory value
func (cpu *CPU) dec(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand) - 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// Decrement X register
func (cpu *CPU) dex(inst *Instruction, operand []byte) {
	cpu.Reg.X--
	cpu.updateNZ(cpu.Reg.X)
}

// Decrement Y register
func (cpu *CPU) dey(inst *Instruction, operand []byte) {
	cpu.Reg.Y--
	cpu.updateNZ(cpu.Reg.Y)
}

// Boolean XOR
func (cpu *CPU) eor(inst *Instruction, operand []byte) {
	cpu.Reg.A ^= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

// Increment memory value
func (cpu *CPU) inc(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand) + 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// Increment X register
func (cpu *CPU) inx(inst *Instruction, operand []byte) {
	cpu.Reg.X++
	cpu.updateNZ(cpu.Reg.X)
}

// Increment Y register
func (cpu *CPU) iny(inst *Instruction, operand []byte) {
	cpu.Reg.Y++
	cpu.updateNZ(cpu.Reg.Y)
}

// Jump to memory address. The indirect form reads its target pointer
// with a linear 16-bit wrap, so JMP ($xxFF) takes its high byte from
// the following page.
func (cpu *CPU) jmp(inst *Instruction, operand []byte) {
	cpu.nextPC = cpu.loadAddress(inst.Mode, operand)
}

// Jump to subroutine, pushing the address of the last byte of the JSR
// instruction.
func (cpu *CPU) jsr(inst *Instruction, operand []byte) {
	cpu.pushAddress(cpu.nextPC - 1)
	cpu.nextPC = cpu.loadAddress(inst.Mode, operand)
}

// Load Accumulator
func (cpu *CPU) lda(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

// Load the X register
func (cpu *CPU) ldx(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.X)
}

// Load the Y register
func (cpu *CPU) ldy(inst *Instruction, operand []byte) {
	cpu.Reg.Y = cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.Y)
}

// Logical Shift Right
func (cpu *CPU) lsr(inst *Instruction, operand []byte) {
	v := cpu.load(inst.Mode, operand)
	cpu.Reg.Carry = ((v & 1) == 1)
	v >>= 1
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// No-operation
func (cpu *CPU) nop(inst *Instruction, operand []byte) {
	// Do nothing
}

// Boolean OR
func (cpu *CPU) ora(inst *Instruction, operand []byte) {
	cpu.Reg.A |= cpu.load(inst.Mode, operand)
	cpu.updateNZ(cpu.Reg.A)
}

// Push Accumulator
func (cpu *CPU) pha(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.A)
}

// Push Processor flags
func (cpu *CPU) php(inst *Instruction, operand []byte) {
	cpu.push(cpu.Reg.SavePS(true))
}

// Pull (pop) Accumulator
func (cpu *CPU) pla(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.pop()
	cpu.updateNZ(cpu.Reg.A)
}

// Pull (pop) Processor flags
func (cpu *CPU) plp(inst *Instruction, operand []byte) {
	cpu.Reg.RestorePS(cpu.pop())
}

// Rotate Left
func (cpu *CPU) rol(inst *Instruction, operand []byte) {
	tmp := cpu.load(inst.Mode, operand)
	v := (tmp << 1) | boolToByte(cpu.Reg.Carry)
	cpu.Reg.Carry = ((tmp & 0x80) != 0)
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// Rotate Right
func (cpu *CPU) ror(inst *Instruction, operand []byte) {
	tmp := cpu.load(inst.Mode, operand)
	v := (tmp >> 1) | (boolToByte(cpu.Reg.Carry) << 7)
	cpu.Reg.Carry = ((tmp & 1) != 0)
	cpu.updateNZ(v)
	cpu.store(inst.Mode, operand, v)
}

// Return from Interrupt
func (cpu *CPU) rti(inst *Instruction, operand []byte) {
	cpu.Reg.RestorePS(cpu.pop())
	cpu.nextPC = cpu.popAddress()
}

// Return from Subroutine
func (cpu *CPU) rts(inst *Instruction, operand []byte) {
	cpu.nextPC = cpu.popAddress() + 1
}

// Subtract with carry. Binary only, like adc.
func (cpu *CPU) sbc(inst *Instruction, operand []byte) {
	acc := uint32(cpu.Reg.A)
	sub := uint32(cpu.load(inst.Mode, operand))
	carry := boolToUint32(cpu.Reg.Carry)

	v := 0xff + acc - sub + carry
	cpu.Reg.Carry = (v >= 0x100)
	cpu.Reg.Overflow = ((acc&0x80) != (sub&0x80)) && ((acc&0x80) != (v&0x80))

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
}

// Set Carry flag
func (cpu *CPU) sec(inst *Instruction, operand []byte) {
	cpu.Reg.Carry = true
}

// Set Decimal flag
func (cpu *CPU) sed(inst *Instruction, operand []byte) {
	cpu.Reg.Decimal = true
}

// Set InterruptDisable flag
func (cpu *CPU) sei(inst *Instruction, operand []byte) {
	cpu.Reg.InterruptDisable = true
}

// Store Accumulator
func (cpu *CPU) sta(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.A)
}

// Store X register
func (cpu *CPU) stx(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.X)
}

// Store Y register
func (cpu *CPU) sty(inst *Instruction, operand []byte) {
	cpu.store(inst.Mode, operand, cpu.Reg.Y)
}

// Transfer Accumulator to X register
func (cpu *CPU) tax(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.X)
}

// Transfer Accumulator to Y register
func (cpu *CPU) tay(inst *Instruction, operand []byte) {
	cpu.Reg.Y = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.Y)
}

// Transfer stack pointer to X register
func (cpu *CPU) tsx(inst *Instruction, operand []byte) {
	cpu.Reg.X = cpu.Reg.SP
	cpu.updateNZ(cpu.Reg.X)
}

// Transfer X register to Accumulator
func (cpu *CPU) txa(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.Reg.X
	cpu.updateNZ(cpu.Reg.A)
}

// Transfer X register to the stack pointer
func (cpu *CPU) txs(inst *Instruction, operand []byte) {
	cpu.Reg.SP = cpu.Reg.X
}

// Transfer Y register to the Accumulator
func (cpu *CPU) tya(inst *Instruction, operand []byte) {
	cpu.Reg.A = cpu.Reg.Y
	cpu.updateNZ(cpu.Reg.A)
}
