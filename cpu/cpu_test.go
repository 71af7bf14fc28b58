// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu_test

import (
	"errors"
	"testing"

	"github.com/retrozone/sim6502/cpu"
)

func loadCPU(t *testing.T, origin uint16, code []byte) *cpu.CPU {
	t.Helper()

	mem := cpu.NewRAM()
	c := cpu.NewCPU(mem)
	if err := mem.PokeBytes(int(origin), code); err != nil {
		t.Fatal(err)
	}
	c.SetPC(origin)
	return c
}

func stepCPU(t *testing.T, c *cpu.CPU, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
	}
}

func runCPU(t *testing.T, origin uint16, code []byte, steps int) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, origin, code)
	stepCPU(t, c, steps)
	return c
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if c.Reg.PC != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, c.Reg.PC)
	}
}

func expectCycles(t *testing.T, c *cpu.CPU, cycles uint64) {
	t.Helper()
	if c.Cycles != cycles {
		t.Errorf("Cycles incorrect. exp: %d, got: %d", cycles, c.Cycles)
	}
}

func expectACC(t *testing.T, c *cpu.CPU, acc byte) {
	t.Helper()
	if c.Reg.A != acc {
		t.Errorf("Accumulator incorrect. exp: $%02X, got: $%02X", acc, c.Reg.A)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp byte) {
	t.Helper()
	if c.Reg.SP != sp {
		t.Errorf("Stack pointer incorrect. exp: $%02X, got: $%02X", sp, c.Reg.SP)
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Mem.LoadByte(addr)
	if got != v {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%02X", addr, v, got)
	}
}

func expectFlags(t *testing.T, c *cpu.CPU, carry, zero, overflow, sign bool) {
	t.Helper()
	if c.Reg.Carry != carry {
		t.Errorf("Carry incorrect. exp: %v, got: %v", carry, c.Reg.Carry)
	}
	if c.Reg.Zero != zero {
		t.Errorf("Zero incorrect. exp: %v, got: %v", zero, c.Reg.Zero)
	}
	if c.Reg.Overflow != overflow {
		t.Errorf("Overflow incorrect. exp: %v, got: %v", overflow, c.Reg.Overflow)
	}
	if c.Reg.Sign != sign {
		t.Errorf("Sign incorrect. exp: %v, got: %v", sign, c.Reg.Sign)
	}
}

func TestAccumulator(t *testing.T) {
	code := []byte{
		0xa9, 0x5e, // LDA #$5E
		0x85, 0x15, // STA $15
		0x8d, 0x00, 0x15, // STA $1500
	}

	c := runCPU(t, 0x1000, code, 3)

	expectPC(t, c, 0x1007)
	expectCycles(t, c, 9)
	expectACC(t, c, 0x5e)
	expectMem(t, c, 0x15, 0x5e)
	expectMem(t, c, 0x1500, 0x5e)
}

func TestStack(t *testing.T) {
	code := []byte{
		0xa9, 0x11, // LDA #$11
		0x48,       // PHA
		0xa9, 0x12, // LDA #$12
		0x48,       // PHA
		0xa9, 0x13, // LDA #$13
		0x48,             // PHA
		0x68,             // PLA
		0x8d, 0x00, 0x20, // STA $2000
		0x68,             // PLA
		0x8d, 0x01, 0x20, // STA $2001
		0x68,             // PLA
		0x8d, 0x02, 0x20, // STA $2002
	}

	c := loadCPU(t, 0x1000, code)
	stepCPU(t, c, 6)

	expectSP(t, c, 0xfa)
	expectACC(t, c, 0x13)
	expectMem(t, c, 0x1fd, 0x11)
	expectMem(t, c, 0x1fc, 0x12)
	expectMem(t, c, 0x1fb, 0x13)

	stepCPU(t, c, 6)
	expectACC(t, c, 0x11)
	expectSP(t, c, 0xfd)
	expectMem(t, c, 0x2000, 0x13)
	expectMem(t, c, 0x2001, 0x12)
	expectMem(t, c, 0x2002, 0x11)
}

// TestAdd sweeps all combinations of accumulator, operand and carry-in
// through an immediate-mode ADC and checks the result against a model
// of binary addition.
func TestAdd(t *testing.T) {
	mem := cpu.NewRAM()
	c := cpu.NewCPU(mem)

	for a := 0; a < 256; a++ {
		for op := 0; op < 256; op++ {
			for carry := 0; carry < 2; carry++ {
				mem.StoreByte(0x1000, 0x69) // ADC #op
				mem.StoreByte(0x1001, byte(op))

				c.SetPC(0x1000)
				c.Reg.A = byte(a)
				c.Reg.Carry = carry == 1
				if _, err := c.Step(); err != nil {
					t.Fatal(err)
				}

				sum := a + op + carry
				want := byte(sum)
				if c.Reg.A != want {
					t.Fatalf("ADC %02X+%02X+%d: acc exp $%02X, got $%02X",
						a, op, carry, want, c.Reg.A)
				}
				if c.Reg.Carry != (sum >= 0x100) {
					t.Fatalf("ADC %02X+%02X+%d: carry exp %v", a, op, carry, sum >= 0x100)
				}
				wantOverflow := (byte(a)^byte(op))&0x80 == 0 && (byte(a)^want)&0x80 != 0
				if c.Reg.Overflow != wantOverflow {
					t.Fatalf("ADC %02X+%02X+%d: overflow exp %v", a, op, carry, wantOverflow)
				}
				if c.Reg.Zero != (want == 0) || c.Reg.Sign != (want&0x80 != 0) {
					t.Fatalf("ADC %02X+%02X+%d: NZ flags incorrect", a, op, carry)
				}
			}
		}
	}
}

func TestSub(t *testing.T) {
	mem := cpu.NewRAM()
	c := cpu.NewCPU(mem)

	for a := 0; a < 256; a++ {
		for op := 0; op < 256; op++ {
			for carry := 0; carry < 2; carry++ {
				mem.StoreByte(0x1000, 0xe9) // SBC #op
				mem.StoreByte(0x1001, byte(op))

				c.SetPC(0x1000)
				c.Reg.A = byte(a)
				c.Reg.Carry = carry == 1
				if _, err := c.Step(); err != nil {
					t.Fatal(err)
				}

				diff := 0xff + a - op + carry
				want := byte(diff)
				if c.Reg.A != want {
					t.Fatalf("SBC %02X-%02X-%d: acc exp $%02X, got $%02X",
						a, op, 1-carry, want, c.Reg.A)
				}
				if c.Reg.Carry != (diff >= 0x100) {
					t.Fatalf("SBC %02X-%02X-%d: carry exp %v", a, op, 1-carry, diff >= 0x100)
				}
				wantOverflow := (byte(a)^byte(op))&0x80 != 0 && (byte(a)^want)&0x80 != 0
				if c.Reg.Overflow != wantOverflow {
					t.Fatalf("SBC %02X-%02X-%d: overflow exp %v", a, op, 1-carry, wantOverflow)
				}
			}
		}
	}
}

// TestAnd sweeps every operand value through an immediate-mode AND and
// checks that Sign tracks bit 7 of the result and Zero tracks a zero
// result.
func TestAnd(t *testing.T) {
	mem := cpu.NewRAM()
	c := cpu.NewCPU(mem)

	for _, acc := range []byte{0xff, 0x55} {
		for op := 0; op < 256; op++ {
			mem.StoreByte(0x1000, 0x29) // AND #op
			mem.StoreByte(0x1001, byte(op))

			c.SetPC(0x1000)
			c.Reg.A = acc
			if _, err := c.Step(); err != nil {
				t.Fatal(err)
			}

			want := acc & byte(op)
			if c.Reg.A != want {
				t.Fatalf("AND $%02X&$%02X: acc exp $%02X, got $%02X",
					acc, op, want, c.Reg.A)
			}
			if c.Reg.Zero != (want == 0) {
				t.Fatalf("AND $%02X&$%02X: zero exp %v", acc, op, want == 0)
			}
			if c.Reg.Sign != (want&0x80 != 0) {
				t.Fatalf("AND $%02X&$%02X: sign exp %v", acc, op, want&0x80 != 0)
			}
		}
	}
}

// TestLoadFlags sweeps every operand value through an immediate-mode
// LDA and checks the loaded value and the N/Z flags.
func TestLoadFlags(t *testing.T) {
	mem := cpu.NewRAM()
	c := cpu.NewCPU(mem)

	for op := 0; op < 256; op++ {
		mem.StoreByte(0x1000, 0xa9) // LDA #op
		mem.StoreByte(0x1001, byte(op))

		c.SetPC(0x1000)
		c.Reg.A = 0xa5 // must be overwritten
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}

		if c.Reg.A != byte(op) {
			t.Fatalf("LDA #$%02X: acc got $%02X", op, c.Reg.A)
		}
		if c.Reg.Zero != (op == 0) {
			t.Fatalf("LDA #$%02X: zero exp %v", op, op == 0)
		}
		if c.Reg.Sign != (op&0x80 != 0) {
			t.Fatalf("LDA #$%02X: sign exp %v", op, op&0x80 != 0)
		}
	}
}

// TestAddOverflow pins the four signed overflow combinations.
func TestAddOverflow(t *testing.T) {
	cases := []struct {
		a, op    byte
		overflow bool
	}{
		{0x50, 0x50, true},  // pos + pos = neg
		{0xd0, 0x90, true},  // neg + neg = pos
		{0x50, 0xd0, false}, // pos + neg never overflows
		{0xd0, 0x50, false}, // neg + pos never overflows
	}

	for _, tc := range cases {
		c := runCPUWithA(t, tc.a, []byte{0x69, tc.op})
		if c.Reg.Overflow != tc.overflow {
			t.Errorf("ADC $%02X+$%02X: overflow exp %v, got %v",
				tc.a, tc.op, tc.overflow, c.Reg.Overflow)
		}
	}
}

func runCPUWithA(t *testing.T, a byte, code []byte) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, 0x1000, code)
	c.Reg.A = a
	stepCPU(t, c, 1)
	return c
}

// Decimal mode is tracked but never changes arithmetic: ADC stays
// binary with the flag set.
func TestDecimalIgnored(t *testing.T) {
	code := []byte{
		0xf8,       // SED
		0xa9, 0x19, // LDA #$19
		0x69, 0x01, // ADC #$01
	}

	c := runCPU(t, 0x1000, code, 3)

	if !c.Reg.Decimal {
		t.Error("Decimal flag not set by SED")
	}
	expectACC(t, c, 0x1a) // binary sum, not BCD $20
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, op             byte
		carry, zero, sign bool
	}{
		{0x40, 0x40, true, true, false},
		{0x41, 0x40, true, false, false},
		{0x40, 0x41, false, false, true},
		{0x00, 0x01, false, false, true},
		{0x80, 0x01, true, false, false},
	}

	for _, tc := range cases {
		c := runCPUWithA(t, tc.a, []byte{0xc9, tc.op}) // CMP #op
		if c.Reg.Carry != tc.carry || c.Reg.Zero != tc.zero || c.Reg.Sign != tc.sign {
			t.Errorf("CMP $%02X,$%02X: flags exp C=%v Z=%v N=%v, got C=%v Z=%v N=%v",
				tc.a, tc.op, tc.carry, tc.zero, tc.sign,
				c.Reg.Carry, c.Reg.Zero, c.Reg.Sign)
		}
	}
}

// Zero page indexing wraps within page zero.
func TestZeroPageXWrap(t *testing.T) {
	code := []byte{
		0xa2, 0x02, // LDX #$02
		0xb5, 0xff, // LDA $FF,X  -> loads from $01
	}

	c := loadCPU(t, 0x1000, code)
	c.Mem.StoreByte(0x0001, 0x77)
	c.Mem.StoreByte(0x0101, 0x55) // must not be read
	stepCPU(t, c, 2)

	expectACC(t, c, 0x77)
}

// Absolute indexing carries across the page boundary.
func TestAbsoluteIndexedPageCross(t *testing.T) {
	code := []byte{
		0xa2, 0x01, // LDX #$01
		0xbd, 0xff, 0x10, // LDA $10FF,X -> loads from $1100
	}

	c := loadCPU(t, 0x1000, code)
	c.Mem.StoreByte(0x1100, 0x42)
	stepCPU(t, c, 2)

	expectACC(t, c, 0x42)
}

func TestIndexedIndirect(t *testing.T) {
	code := []byte{
		0xa2, 0x04, // LDX #$04
		0xa1, 0xfe, // LDA ($FE,X) -> pointer at $02/$03
	}

	c := loadCPU(t, 0x1000, code)
	c.Mem.StoreByte(0x0002, 0x00)
	c.Mem.StoreByte(0x0003, 0x30)
	c.Mem.StoreByte(0x3000, 0x99)
	stepCPU(t, c, 2)

	expectACC(t, c, 0x99)
}

func TestIndirectIndexed(t *testing.T) {
	code := []byte{
		0xa0, 0x10, // LDY #$10
		0xb1, 0x20, // LDA ($20),Y
	}

	c := loadCPU(t, 0x1000, code)
	c.Mem.StoreByte(0x0020, 0x00)
	c.Mem.StoreByte(0x0021, 0x30)
	c.Mem.StoreByte(0x3010, 0xab)
	stepCPU(t, c, 2)

	expectACC(t, c, 0xab)
}

// A zero-page pointer read wraps within page zero: the high byte of a
// pointer at $FF comes from $00.
func TestZeroPagePointerWrap(t *testing.T) {
	code := []byte{
		0xa0, 0x00, // LDY #$00
		0xb1, 0xff, // LDA ($FF),Y -> pointer lo at $FF, hi at $00
	}

	c := loadCPU(t, 0x1000, code)
	c.Mem.StoreByte(0x00ff, 0x34)
	c.Mem.StoreByte(0x0000, 0x12)
	c.Mem.StoreByte(0x1234, 0x5a)
	stepCPU(t, c, 2)

	expectACC(t, c, 0x5a)
}

func TestBranchForward(t *testing.T) {
	// BNE +$7F with Zero clear.
	c := loadCPU(t, 0x1000, []byte{0xd0, 0x7f})
	c.Reg.Zero = false
	stepCPU(t, c, 1)
	expectPC(t, c, 0x1081)
}

func TestBranchBackward(t *testing.T) {
	// BNE -$80 with Zero clear: the offset is signed, so the target
	// precedes the branch.
	c := loadCPU(t, 0x0010, []byte{0xd0, 0x80})
	c.Reg.Zero = false
	stepCPU(t, c, 1)
	expectPC(t, c, 0xff92)
}

func TestBranchNotTaken(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0xd0, 0x7f})
	c.Reg.Zero = true
	stepCPU(t, c, 1)
	expectPC(t, c, 0x1002)
}

func TestShiftAccumulator(t *testing.T) {
	c := runCPUWithA(t, 0x81, []byte{0x0a}) // ASL A
	expectACC(t, c, 0x02)
	expectFlags(t, c, true, false, false, false)
}

// Read-modify-write instructions store their result back to the
// effective address the operand was read from.
func TestShiftMemoryWriteback(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x06, 0x20}) // ASL $20
	c.Mem.StoreByte(0x0020, 0x81)
	c.Mem.StoreByte(0x0040, 0x33) // sentinel, must stay untouched
	stepCPU(t, c, 1)

	expectMem(t, c, 0x0020, 0x02)
	expectMem(t, c, 0x0040, 0x33)
	if !c.Reg.Carry {
		t.Error("Carry not set by ASL of $81")
	}
}

func TestRotate(t *testing.T) {
	code := []byte{
		0x38,       // SEC
		0xa9, 0x40, // LDA #$40
		0x2a, // ROL A -> $81, carry out clear
		0x6a, // ROR A -> $40, carry out set
	}

	c := loadCPU(t, 0x1000, code)
	stepCPU(t, c, 3)
	expectACC(t, c, 0x81)
	if c.Reg.Carry {
		t.Error("ROL of $40 should clear carry")
	}

	stepCPU(t, c, 1)
	expectACC(t, c, 0x40)
	if !c.Reg.Carry {
		t.Error("ROR of $81 should set carry")
	}
}

// The indirect jump pointer wraps linearly: reading a pointer at $12FF
// takes its high byte from $1300, not from $1200.
func TestJmpIndirect(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x6c, 0xff, 0x12}) // JMP ($12FF)
	c.Mem.StoreByte(0x12ff, 0x34)
	c.Mem.StoreByte(0x1300, 0x12)
	c.Mem.StoreByte(0x1200, 0x55) // would be read by a page-wrapping fetch
	stepCPU(t, c, 1)

	expectPC(t, c, 0x1234)
}

func TestJsrRts(t *testing.T) {
	code := []byte{
		0x20, 0x00, 0x20, // JSR $2000
	}
	sub := []byte{
		0xa9, 0x01, // LDA #$01
		0x60, // RTS
	}

	c := loadCPU(t, 0x1000, code)
	if err := c.Mem.(*cpu.RAM).PokeBytes(0x2000, sub); err != nil {
		t.Fatal(err)
	}

	stepCPU(t, c, 1)
	expectPC(t, c, 0x2000)
	expectSP(t, c, 0xfb)
	expectMem(t, c, 0x1fd, 0x10) // return address hi
	expectMem(t, c, 0x1fc, 0x02) // return address lo (last byte of JSR)

	stepCPU(t, c, 2)
	expectPC(t, c, 0x1003)
	expectSP(t, c, 0xfd)
	expectACC(t, c, 0x01)
}

func TestBrk(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x00}) // BRK
	c.Mem.StoreAddress(0xfffe, 0x9000)
	stepCPU(t, c, 1)

	expectPC(t, c, 0x9000)
	if !c.Reg.InterruptDisable {
		t.Error("BRK must set the interrupt disable flag")
	}
	expectSP(t, c, 0xfa)
	expectMem(t, c, 0x1fd, 0x10) // pushed PC hi
	expectMem(t, c, 0x1fc, 0x02) // pushed PC lo (skips the padding byte)
	expectMem(t, c, 0x1fb, cpu.BreakBit|cpu.ReservedBit)
}

func TestRti(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x00}) // BRK
	c.Mem.StoreAddress(0xfffe, 0x9000)
	c.Mem.StoreByte(0x9000, 0x40) // RTI
	stepCPU(t, c, 2)

	expectPC(t, c, 0x1002)
	expectSP(t, c, 0xfd)
}

func TestPhpPlp(t *testing.T) {
	code := []byte{
		0x38, // SEC
		0x08, // PHP
		0x18, // CLC
		0x28, // PLP
	}

	c := runCPU(t, 0x1000, code, 4)
	if !c.Reg.Carry {
		t.Error("PLP did not restore the carry flag")
	}
}

func TestBitTest(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x24, 0x20}) // BIT $20
	c.Mem.StoreByte(0x0020, 0xc0)
	c.Reg.A = 0x01
	stepCPU(t, c, 1)

	if !c.Reg.Zero || !c.Reg.Sign || !c.Reg.Overflow {
		t.Errorf("BIT flags incorrect: Z=%v N=%v V=%v",
			c.Reg.Zero, c.Reg.Sign, c.Reg.Overflow)
	}
}

func TestUnsupportedOpcode(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0xff})
	before := c.Reg

	cycles, err := c.Step()
	if err == nil {
		t.Fatal("expected an error for opcode $FF")
	}

	var opErr *cpu.OpcodeError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OpcodeError, got %T", err)
	}
	if opErr.Opcode != 0xff || opErr.PC != 0x1000 {
		t.Errorf("OpcodeError fields incorrect: opcode=$%02X pc=$%04X",
			opErr.Opcode, opErr.PC)
	}

	// The failed step must not mutate CPU state.
	if cycles != 0 || c.Cycles != 0 || c.Reg != before {
		t.Error("failed step mutated CPU state")
	}
}

func TestReset(t *testing.T) {
	mem := cpu.NewRAM()
	mem.StoreAddress(0xfffc, 0x1234)
	c := cpu.NewCPU(mem)

	expectPC(t, c, 0x1234)
	expectSP(t, c, 0xfd)

	// Disturb the register file, then confirm reset is idempotent.
	c.Reg.A = 0x55
	c.Reg.Carry = true
	c.Reg.PC = 0x8000

	c.Reset()
	after1 := c.Reg
	c.Reset()
	after2 := c.Reg

	if after1 != after2 {
		t.Error("reset is not idempotent")
	}
	expectPC(t, c, 0x1234)
	expectACC(t, c, 0x00)
}

func TestSavePSRestorePS(t *testing.T) {
	var r cpu.Registers
	r.Init()
	r.Carry = true
	r.Sign = true
	r.InterruptDisable = true

	ps := r.SavePS(false)

	var r2 cpu.Registers
	r2.Init()
	r2.RestorePS(ps)

	if r2.Carry != r.Carry || r2.Sign != r.Sign ||
		r2.InterruptDisable != r.InterruptDisable ||
		r2.Zero != r.Zero || r2.Overflow != r.Overflow ||
		r2.Decimal != r.Decimal {
		t.Error("status flags did not survive a save/restore round trip")
	}
}

func TestBrkHandler(t *testing.T) {
	c := loadCPU(t, 0x1000, []byte{0x00}) // BRK
	handler := &brkRecorder{}
	c.AttachBrkHandler(handler)

	stepCPU(t, c, 1)

	if !handler.called {
		t.Error("BRK handler was not invoked")
	}
	// With a handler attached, the BRK sequence is suppressed.
	expectPC(t, c, 0x1000)
	expectSP(t, c, 0xfd)
}

type brkRecorder struct {
	called bool
}

func (h *brkRecorder) OnBrk(c *cpu.CPU) {
	h.called = true
}

func TestDataBreakpoint(t *testing.T) {
	code := []byte{
		0xa9, 0x5e, // LDA #$5E
		0x8d, 0x00, 0x30, // STA $3000
	}

	c := loadCPU(t, 0x1000, code)
	handler := &breakpointRecorder{}
	d := cpu.NewDebugger(handler)
	c.AttachDebugger(d)
	d.AddDataBreakpoint(0x3000)

	stepCPU(t, c, 2)

	if handler.dataHits != 1 {
		t.Errorf("data breakpoint hits exp 1, got %d", handler.dataHits)
	}
	expectMem(t, c, 0x3000, 0x5e)
}

func TestBreakpoint(t *testing.T) {
	code := []byte{
		0xea, // NOP
		0xea, // NOP
	}

	c := loadCPU(t, 0x1000, code)
	handler := &breakpointRecorder{}
	d := cpu.NewDebugger(handler)
	c.AttachDebugger(d)
	d.AddBreakpoint(0x1001)

	stepCPU(t, c, 1)

	if handler.pcHits != 1 {
		t.Errorf("breakpoint hits exp 1, got %d", handler.pcHits)
	}
}

type breakpointRecorder struct {
	pcHits   int
	dataHits int
}

func (h *breakpointRecorder) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.pcHits++
}

func (h *breakpointRecorder) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.dataHits++
}
