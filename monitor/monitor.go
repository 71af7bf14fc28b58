// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package monitor implements an interactive machine-language monitor
// for the emulated CPU. It can load binary images into memory, run and
// single-step code at a throttled clock rate, set address and data
// breakpoints, dump memory, disassemble code, and inspect or modify
// CPU registers.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/cmd"

	"github.com/retrozone/sim6502/cpu"
	"github.com/retrozone/sim6502/disasm"
)

var cmds *cmd.Tree

func init() {
	// Create a command tree, where the parameter stored with each command
	// is a monitor callback capable of handling the command.
	cmds = cmd.NewTree("sim6502", []cmd.Command{
		{
			Name:     "help",
			Shortcut: "?",
			Data:     (*Monitor).cmdHelp,
		},
		{
			Name:     "breakpoint",
			Shortcut: "b",
			Brief:    "Breakpoint commands",
			Subcommands: cmd.NewTree("Breakpoint", []cmd.Command{
				{
					Name:        "list",
					Brief:       "List breakpoints",
					Description: "List all current breakpoints.",
					HelpText:    "breakpoint list",
					Data:        (*Monitor).cmdBreakpointList,
				},
				{
					Name:  "add",
					Brief: "Add a breakpoint",
					Description: "Add a breakpoint at the specified address." +
						" The breakpoint starts enabled.",
					HelpText: "breakpoint add <address>",
					Data:     (*Monitor).cmdBreakpointAdd,
				},
				{
					Name:        "remove",
					Brief:       "Remove a breakpoint",
					Description: "Remove a breakpoint at the specified address.",
					HelpText:    "breakpoint remove <address>",
					Data:        (*Monitor).cmdBreakpointRemove,
				},
				{
					Name:        "enable",
					Brief:       "Enable a breakpoint",
					Description: "Enable a previously added breakpoint.",
					HelpText:    "breakpoint enable <address>",
					Data:        (*Monitor).cmdBreakpointEnable,
				},
				{
					Name:  "disable",
					Brief: "Disable a breakpoint",
					Description: "Disable a previously added breakpoint. This" +
						" prevents the breakpoint from being hit when running the" +
						" CPU.",
					HelpText: "breakpoint disable <address>",
					Data:     (*Monitor).cmdBreakpointDisable,
				},
			}),
		},
		{
			Name:     "databreakpoint",
			Shortcut: "db",
			Brief:    "Data breakpoint commands",
			Subcommands: cmd.NewTree("Data breakpoint", []cmd.Command{
				{
					Name:        "list",
					Brief:       "List data breakpoints",
					Description: "List all current data breakpoints.",
					HelpText:    "databreakpoint list",
					Data:        (*Monitor).cmdDataBreakpointList,
				},
				{
					Name:  "add",
					Brief: "Add a data breakpoint",
					Description: "Add a new data breakpoint at the specified" +
						" memory address. When the CPU stores data at this address," +
						" the breakpoint will stop the CPU. Optionally, a byte" +
						" value may be specified, and the CPU will stop only" +
						" when this value is stored. The data breakpoint starts" +
						" enabled.",
					HelpText: "databreakpoint add <address> [<value>]",
					Data:     (*Monitor).cmdDataBreakpointAdd,
				},
				{
					Name:  "remove",
					Brief: "Remove a data breakpoint",
					Description: "Remove a previously added data breakpoint at" +
						" the specified memory address.",
					HelpText: "databreakpoint remove <address>",
					Data:     (*Monitor).cmdDataBreakpointRemove,
				},
				{
					Name:        "enable",
					Brief:       "Enable a data breakpoint",
					Description: "Enable a previously added data breakpoint.",
					HelpText:    "databreakpoint enable <address>",
					Data:        (*Monitor).cmdDataBreakpointEnable,
				},
				{
					Name:        "disable",
					Brief:       "Disable a data breakpoint",
					Description: "Disable a previously added data breakpoint.",
					HelpText:    "databreakpoint disable <address>",
					Data:        (*Monitor).cmdDataBreakpointDisable,
				},
			}),
		},
		{
			Name:     "disassemble",
			Shortcut: "d",
			Brief:    "Disassemble code",
			Description: "Disassemble machine code starting at the requested" +
				" address. The number of instructions to disassemble may be" +
				" specified as an option.",
			HelpText: "disassemble <address> [<count>]",
			Data:     (*Monitor).cmdDisassemble,
		},
		{
			Name:  "load",
			Brief: "Load a binary file",
			Description: "Load the contents of a raw binary file into the" +
				" emulated system's memory at the specified address, and set" +
				" the program counter to that address.",
			HelpText: "load <filename> <address>",
			Data:     (*Monitor).cmdLoad,
		},
		{
			Name:  "memory",
			Brief: "Memory commands",
			Subcommands: cmd.NewTree("Memory", []cmd.Command{
				{
					Name:  "dump",
					Brief: "Dump memory at address",
					Description: "Dump the contents of memory starting from the" +
						" specified address. The number of bytes to dump may be" +
						" specified as an option.",
					HelpText: "memory dump <address> [<bytes>]",
					Data:     (*Monitor).cmdMemoryDump,
				},
			}),
		},
		{
			Name:        "quit",
			Brief:       "Quit the program",
			Description: "Quit the program.",
			HelpText:    "quit",
			Data:        (*Monitor).cmdQuit,
		},
		{
			Name:     "registers",
			Shortcut: "r",
			Brief:    "Display register contents",
			Description: "Display the current contents of all CPU registers, and" +
				" disassemble the instruction at the current program counter address.",
			HelpText: "registers",
			Data:     (*Monitor).cmdRegisters,
		},
		{
			Name:  "reset",
			Brief: "Reset the CPU",
			Description: "Restore the CPU to its power-on state: registers" +
				" cleared, stack pointer at $FD, and the program counter loaded" +
				" from the reset vector. Memory contents are left untouched.",
			HelpText: "reset",
			Data:     (*Monitor).cmdReset,
		},
		{
			Name:  "run",
			Brief: "Run the CPU",
			Description: "Run the CPU at the configured clock rate until a" +
				" breakpoint is hit, a BRK instruction is reached, or the user" +
				" types Ctrl-C.",
			HelpText: "run [<address>]",
			Data:     (*Monitor).cmdRun,
		},
		{
			Name:  "set",
			Brief: "Set a register or configuration variable",
			Description: "Set the value of a register or configuration variable." +
				" Type the set command without a variable name or value to display" +
				" the current values of all configuration variables.",
			HelpText: "set <var> <value>",
			Data:     (*Monitor).cmdSet,
		},
		{
			Name:  "step",
			Brief: "Step the debugger",
			Subcommands: cmd.NewTree("Step", []cmd.Command{
				{
					Name:  "in",
					Brief: "Step into next instruction",
					Description: "Step the CPU by a single instruction. If the" +
						" instruction is a subroutine call, step into the subroutine." +
						" The number of steps may be specified as an option.",
					HelpText: "step in [<count>]",
					Data:     (*Monitor).cmdStepIn,
				},
				{
					Name:  "over",
					Brief: "Step over next instruction",
					Description: "Step the CPU by a single instruction. If the" +
						" instruction is a subroutine call, step over the subroutine." +
						" The number of steps may be specified as an option.",
					HelpText: "step over [<count>]",
					Data:     (*Monitor).cmdStepOver,
				},
			}),
		},

		// Aliases for nested commands
		{Name: "ba", Alias: "breakpoint add"},
		{Name: "br", Alias: "breakpoint remove"},
		{Name: "bl", Alias: "breakpoint list"},
		{Name: "be", Alias: "breakpoint enable"},
		{Name: "bd", Alias: "breakpoint disable"},
		{Name: "dbl", Alias: "databreakpoint list"},
		{Name: "dba", Alias: "databreakpoint add"},
		{Name: "dbr", Alias: "databreakpoint remove"},
		{Name: "dbe", Alias: "databreakpoint enable"},
		{Name: "dbd", Alias: "databreakpoint disable"},
		{Name: "m", Alias: "memory dump"},
		{Name: "s", Alias: "step over"},
		{Name: "si", Alias: "step in"},
	})
}

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displayCycles

	displayAll = displayRegisters | displayCycles
)

type state int32

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateStepOverBreakpoint
)

// A Monitor drives an emulated CPU with 64K of memory, a debugger, and
// a clock that throttles execution to a configurable rate.
type Monitor struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	mem         *cpu.RAM
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	clock       *cpu.Clock
	lastCmd     *cmd.Selection
	settings    *settings

	// state is read by the command loop and written by Break from the
	// Ctrl-C signal goroutine, so access goes through atomics. The
	// output writer is shared by the same two goroutines and is guarded
	// by outMu.
	state atomic.Int32
	outMu sync.Mutex
}

func (m *Monitor) getState() state {
	return state(m.state.Load())
}

func (m *Monitor) setState(s state) {
	m.state.Store(int32(s))
}

// New creates a new monitor environment.
func New() *Monitor {
	m := &Monitor{
		settings: newSettings(),
	}
	m.setState(stateProcessingCommands)

	// Create the emulated CPU and memory.
	m.mem = cpu.NewRAM()
	m.cpu = cpu.NewCPU(m.mem)
	m.clock = cpu.NewClock(m.settings.ClockRate)

	// Create a CPU debugger and attach it to the CPU. The monitor
	// receives breakpoint and BRK notifications directly.
	m.debugger = cpu.NewDebugger(m)
	m.cpu.AttachDebugger(m.debugger)
	m.cpu.AttachBrkHandler(m)

	return m
}

// RunCommands accepts monitor commands from a reader and outputs the
// results to a writer. If the commands are interactive, a prompt is
// displayed while the monitor waits for the next command to be entered.
func (m *Monitor) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	m.input = bufio.NewScanner(r)
	m.outMu.Lock()
	m.output = bufio.NewWriter(w)
	m.outMu.Unlock()
	m.interactive = interactive

	if interactive {
		m.println()
	}

	m.displayPC()

	for {
		m.prompt()

		line, err := m.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				m.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				m.println("Command is ambiguous.")
				continue
			case err != nil:
				m.printf("ERROR: %v.\n", err)
				continue
			}
		} else if m.lastCmd != nil {
			c = *m.lastCmd
		}

		if c.Command == nil {
			continue
		}
		m.lastCmd = &c

		handler := c.Command.Data.(func(*Monitor, cmd.Selection) error)
		err = handler(m, c)
		if err != nil {
			break
		}
	}
}

// Break interrupts a running CPU.
func (m *Monitor) Break() {
	m.println()

	if m.getState() == stateRunning {
		m.displayPC()
	}
	if m.getState() == stateProcessingCommands {
		m.prompt()
	}
	m.setState(stateProcessingCommands)
}

// OnBreakpoint is called when the CPU reaches an execution breakpoint.
func (m *Monitor) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	if b.StepOver {
		m.setState(stateStepOverBreakpoint)
	} else {
		m.setState(stateBreakpoint)
		m.printf("Breakpoint hit at $%04X.\n", b.Address)
		m.displayPC()
	}
}

// OnDataBreakpoint is called when the CPU stores to an address with a
// data breakpoint on it.
func (m *Monitor) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	m.printf("Data breakpoint hit on address $%04X.\n", b.Address)

	m.setState(stateBreakpoint)

	if c.LastPC != c.Reg.PC {
		d, _ := m.disassemble(c.LastPC, displayAll)
		m.println(d)
	}

	m.displayPC()
}

// OnBrk is called when the CPU is about to execute a BRK instruction.
func (m *Monitor) OnBrk(c *cpu.CPU) {
	m.setState(stateProcessingCommands)
	m.printf("BRK reached at $%04X.\n", c.Reg.PC)
	m.displayPC()
}

func (m *Monitor) printf(format string, args ...any) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	fmt.Fprintf(m.output, format, args...)
	m.output.Flush()
}

func (m *Monitor) println(args ...any) {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	fmt.Fprintln(m.output, args...)
	m.output.Flush()
}

func (m *Monitor) flush() {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	m.output.Flush()
}

func (m *Monitor) getLine() (string, error) {
	if m.input.Scan() {
		return m.input.Text(), nil
	}
	if m.input.Err() != nil {
		return "", m.input.Err()
	}
	return "", io.EOF
}

func (m *Monitor) prompt() {
	if m.interactive {
		m.printf("* ")
		m.flush()
	}
}

func (m *Monitor) displayPC() {
	if m.interactive {
		d, _ := m.disassemble(m.cpu.Reg.PC, displayAll)
		m.println(d)
	}
}

func (m *Monitor) cmdBreakpointList(c cmd.Selection) error {
	m.println("Addr  Enabled")
	m.println("----- -------")
	for _, b := range m.debugger.GetBreakpoints() {
		m.printf("$%04X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (m *Monitor) cmdBreakpointAdd(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	m.debugger.AddBreakpoint(addr)
	m.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (m *Monitor) cmdBreakpointRemove(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	if m.debugger.GetBreakpoint(addr) == nil {
		m.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	m.debugger.RemoveBreakpoint(addr)
	m.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (m *Monitor) cmdBreakpointEnable(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	b := m.debugger.GetBreakpoint(addr)
	if b == nil {
		m.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = false
	m.printf("Breakpoint at $%04X enabled.\n", addr)
	return nil
}

func (m *Monitor) cmdBreakpointDisable(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	b := m.debugger.GetBreakpoint(addr)
	if b == nil {
		m.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = true
	m.printf("Breakpoint at $%04X disabled.\n", addr)
	return nil
}

func (m *Monitor) cmdDataBreakpointList(c cmd.Selection) error {
	m.println("Addr  Enabled  Value")
	m.println("----- -------  -----")
	for _, b := range m.debugger.GetDataBreakpoints() {
		if b.Conditional {
			m.printf("$%04X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			m.printf("$%04X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (m *Monitor) cmdDataBreakpointAdd(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	if len(c.Args) > 1 {
		value, err := m.parseAddr(c.Args[1])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		m.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		m.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, value)
	} else {
		m.debugger.AddDataBreakpoint(addr)
		m.printf("Data breakpoint added at $%04X.\n", addr)
	}

	return nil
}

func (m *Monitor) cmdDataBreakpointRemove(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	if m.debugger.GetDataBreakpoint(addr) == nil {
		m.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	m.debugger.RemoveDataBreakpoint(addr)
	m.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (m *Monitor) cmdDataBreakpointEnable(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	b := m.debugger.GetDataBreakpoint(addr)
	if b == nil {
		m.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = false
	m.printf("Data breakpoint at $%04X enabled.\n", addr)
	return nil
}

func (m *Monitor) cmdDataBreakpointDisable(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	addr, err := m.parseAddr(c.Args[0])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	b := m.debugger.GetDataBreakpoint(addr)
	if b == nil {
		m.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = true
	m.printf("Data breakpoint at $%04X disabled.\n", addr)
	return nil
}

func (m *Monitor) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = m.settings.NextDisasmAddr
		if addr == 0 {
			addr = m.cpu.Reg.PC
		}

	case ".":
		addr = m.cpu.Reg.PC

	default:
		a, err := m.parseAddr(c.Args[0])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := m.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := parseNum(c.Args[1], m.settings.HexMode)
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		lines = l
	}

	for i := 0; i < lines; i++ {
		d, next := m.disassemble(addr, 0)
		m.println(d)
		addr = next
	}

	m.settings.NextDisasmAddr = addr
	m.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (m *Monitor) cmdHelp(c cmd.Selection) error {
	switch {
	case len(c.Args) == 0:
		m.displayCommands(cmds)
	default:
		s, err := cmds.Lookup(strings.Join(c.Args, " "))
		if err != nil {
			m.printf("%v\n", err)
		} else {
			switch {
			case s.Command.Subcommands != nil:
				m.displayCommands(s.Command.Subcommands)
			default:
				if s.Command.HelpText != "" {
					m.printf("Syntax: %s\n\n", s.Command.HelpText)
				}
				switch {
				case s.Command.Description != "":
					m.printf("Description:\n%s\n\n", indentWrap(3, s.Command.Description))
				case s.Command.Brief != "":
					m.printf("Description:\n%s.\n\n", indentWrap(3, s.Command.Brief))
				}
			}
		}
	}
	return nil
}

func (m *Monitor) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 2 {
		m.displayHelpText(c.Command)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".bin"
	}

	addr, err := m.parseAddr(c.Args[1])
	if err != nil {
		m.printf("%v\n", err)
		return nil
	}

	m.load(filename, addr)
	return nil
}

func (m *Monitor) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) < 1 {
		m.displayHelpText(c.Command)
		return nil
	}

	var addr uint16
	switch c.Args[0] {
	case "$":
		addr = m.settings.NextMemDumpAddr
		if addr == 0 {
			addr = m.cpu.Reg.PC
		}

	case ".":
		addr = m.cpu.Reg.PC

	default:
		a, err := m.parseAddr(c.Args[0])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	bytes := m.settings.MemDumpBytes
	if len(c.Args) >= 2 {
		var err error
		bytes, err = parseNum(c.Args[1], m.settings.HexMode)
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
	}

	m.dumpMemory(addr, uint16(bytes))

	m.settings.NextMemDumpAddr = addr + uint16(bytes)
	m.lastCmd.Args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (m *Monitor) cmdQuit(c cmd.Selection) error {
	return errors.New("exiting program")
}

func (m *Monitor) cmdRegisters(c cmd.Selection) error {
	d, _ := m.disassemble(m.cpu.Reg.PC, displayAll)
	m.println(d)
	return nil
}

func (m *Monitor) cmdReset(c cmd.Selection) error {
	m.cpu.Reset()
	m.printf("CPU reset. PC=$%04X SP=$%02X.\n", m.cpu.Reg.PC, m.cpu.Reg.SP)
	m.settings.NextDisasmAddr = m.cpu.Reg.PC
	return nil
}

func (m *Monitor) cmdRun(c cmd.Selection) error {
	if len(c.Args) > 0 {
		pc, err := m.parseAddr(c.Args[0])
		if err != nil {
			m.printf("%v\n", err)
			return nil
		}
		m.cpu.SetPC(pc)
	}

	m.printf("Running from $%04X. Press ctrl-C to break.\n", m.cpu.Reg.PC)

	m.setState(stateRunning)
	for m.getState() == stateRunning {
		m.step()
	}
	m.setState(stateProcessingCommands)

	m.settings.NextDisasmAddr = m.cpu.Reg.PC
	return nil
}

func (m *Monitor) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		m.println("Variables:")
		m.outMu.Lock()
		m.settings.Display(m.output)
		m.output.Flush()
		m.outMu.Unlock()

	case 1:
		m.displayHelpText(c.Command)

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")
		v, errV := parseNum(value, m.settings.HexMode)

		// Setting a register?
		if errV == nil {
			sz := -1
			switch key {
			case "a":
				m.cpu.Reg.A, sz = byte(v), 1
			case "x":
				m.cpu.Reg.X, sz = byte(v), 1
			case "y":
				m.cpu.Reg.Y, sz = byte(v), 1
			case "sp":
				m.cpu.Reg.SP, sz = byte(v), 1
			case ".":
				key = "pc"
				fallthrough
			case "pc":
				m.cpu.Reg.PC, sz = uint16(v), 2
			case "carry":
				m.cpu.Reg.Carry, sz = intToBool(v), 0
			case "zero":
				m.cpu.Reg.Zero, sz = intToBool(v), 0
			case "decimal":
				m.cpu.Reg.Decimal, sz = intToBool(v), 0
			case "overflow":
				m.cpu.Reg.Overflow, sz = intToBool(v), 0
			case "sign":
				m.cpu.Reg.Sign, sz = intToBool(v), 0
			}

			switch sz {
			case 0:
				m.printf("Register %s set to %v.\n", strings.ToUpper(key), intToBool(v))
				return nil
			case 1:
				m.printf("Register %s set to $%02X.\n", strings.ToUpper(key), byte(v))
				return nil
			case 2:
				m.printf("Register %s set to $%04X.\n", strings.ToUpper(key), uint16(v))
				return nil
			}
		}

		// Setting a monitor setting?
		var err error
		switch m.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			err = m.settings.Set(key, value)
		case reflect.Bool:
			var b bool
			b, err = stringToBool(value)
			if err == nil {
				err = m.settings.Set(key, b)
			}
		default:
			err = errV
			if err == nil {
				err = m.settings.Set(key, v)
			}
		}

		if err == nil {
			m.println("Setting updated.")
		} else {
			m.printf("%v\n", err)
		}

		m.onSettingsUpdate()
	}

	return nil
}

func (m *Monitor) cmdStepIn(c cmd.Selection) error {
	// Parse the number of steps.
	count := 1
	if len(c.Args) > 0 {
		n, err := parseNum(c.Args[0], m.settings.HexMode)
		if err == nil {
			count = n
		}
	}

	// Step the CPU count times.
	m.setState(stateRunning)
	for i := count - 1; i >= 0 && m.getState() == stateRunning; i-- {
		m.step()
		switch {
		case i == m.settings.MaxStepLines:
			m.println("...")
		case i < m.settings.MaxStepLines:
			m.displayPC()
		}
	}
	m.setState(stateProcessingCommands)

	m.settings.NextDisasmAddr = m.cpu.Reg.PC
	return nil
}

func (m *Monitor) cmdStepOver(c cmd.Selection) error {
	// Parse the number of steps.
	count := 1
	if len(c.Args) > 0 {
		n, err := parseNum(c.Args[0], m.settings.HexMode)
		if err == nil {
			count = n
		}
	}

	// Step over the next instruction count times.
	m.setState(stateRunning)
	for i := count - 1; i >= 0 && m.getState() == stateRunning; i-- {
		m.stepOver()
		switch {
		case i == m.settings.MaxStepLines:
			m.println("...")
		case i < m.settings.MaxStepLines:
			m.displayPC()
		}
	}
	m.setState(stateProcessingCommands)

	m.settings.NextDisasmAddr = m.cpu.Reg.PC
	return nil
}

func (m *Monitor) load(filename string, addr uint16) {
	filename, err := filepath.Abs(filename)
	if err != nil {
		m.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return
	}

	code, err := os.ReadFile(filename)
	if err != nil {
		m.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return
	}

	if err := m.mem.PokeBytes(int(addr), code); err != nil {
		m.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return
	}

	m.printf("Loaded '%s' to $%04X..$%04X\n", filepath.Base(filename),
		addr, int(addr)+len(code)-1)

	m.cpu.SetPC(addr)
	m.settings.NextDisasmAddr = addr
}

// step executes a single instruction and throttles the monitor so
// apparent execution speed matches the configured clock rate. Errors
// from undefined opcodes halt the running state.
func (m *Monitor) step() {
	start := time.Now()
	cycles, err := m.cpu.Step()
	if err != nil {
		m.printf("%v\n", err)
		m.setState(stateProcessingCommands)
		return
	}
	m.clock.Throttle(context.Background(), cycles, time.Since(start))
}

func (m *Monitor) stepOver() {
	// JSR instructions need to be handled specially.
	inst := m.cpu.GetInstruction(m.cpu.Reg.PC)
	if inst == nil || inst.Name != "JSR" {
		m.step()
		return
	}

	// Place a step-over breakpoint on the instruction following the JSR.
	// Either modify an already existing breakpoint on that instruction, or
	// create a temporary one.
	next := m.cpu.Reg.PC + uint16(inst.Length)
	tmpBreakpointCreated := false
	b := m.debugger.GetBreakpoint(next)
	if b == nil {
		b = m.debugger.AddBreakpoint(next)
		tmpBreakpointCreated = true
	}
	b.StepOver = true

	// Run until interrupted.
	for m.getState() == stateRunning {
		m.step()
	}
	b.StepOver = false

	// If we were interrupted by the temporary step-over breakpoint,
	// then continue as normal.
	if m.getState() == stateStepOverBreakpoint {
		m.setState(stateRunning)
	}

	// Remove the temporarily created breakpoint.
	if tmpBreakpointCreated {
		m.debugger.RemoveBreakpoint(next)
	}
}

func (m *Monitor) onSettingsUpdate() {
	m.clock = cpu.NewClock(m.settings.ClockRate)
}

// parseAddr interprets a 16-bit address argument: a register name, '.'
// for the program counter, or a numeric literal.
func (m *Monitor) parseAddr(s string) (uint16, error) {
	switch strings.ToLower(s) {
	case "a":
		return uint16(m.cpu.Reg.A), nil
	case "x":
		return uint16(m.cpu.Reg.X), nil
	case "y":
		return uint16(m.cpu.Reg.Y), nil
	case "sp":
		return uint16(m.cpu.Reg.SP) | 0x0100, nil
	case ".", "pc":
		return m.cpu.Reg.PC, nil
	}

	v, err := parseNum(s, m.settings.HexMode)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v += 0x10000
	}
	return uint16(v), nil
}

func (m *Monitor) disassemble(addr uint16, flags displayFlags) (str string, next uint16) {
	var line string
	line, next = disasm.Disassemble(m.cpu.Mem, addr)

	l := next - addr
	b := make([]byte, l)
	m.cpu.Mem.LoadBytes(addr, b)

	str = fmt.Sprintf("%04X-   %-8s    %-15s", addr, codeString(b[:l]), line)

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.GetRegisterString(&m.cpu.Reg)
	}

	if (flags & displayCycles) != 0 {
		str += fmt.Sprintf(" C=%-12d", m.cpu.Cycles)
	}

	return str, next
}

func (m *Monitor) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := addr0, 6, 32; a <= addr1; a, c1, c2 = a+1, c1+3, c2+1 {
			v := m.cpu.Mem.LoadByte(a)
			byteToBuf(v, buf[c1:c1+2])
			buf[c2] = toPrintableChar(v)
		}
		m.println(string(buf))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := (uint32(addr1) + 8) & 0xffff8
	if stop > 0x10000 {
		stop = 0x10000
	}

	a := uint16(start)
	for r := start; r < stop; r += 8 {
		addrToBuf(a, buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= addr0 && a <= addr1 {
				v := m.cpu.Mem.LoadByte(a)
				byteToBuf(v, buf[c1:c1+2])
				buf[c2] = toPrintableChar(v)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		m.println(string(buf))
	}
}

func (m *Monitor) displayHelpText(c *cmd.Command) {
	if c.HelpText != "" {
		m.printf("Syntax: %s\n", c.HelpText)
	} else {
		m.println("<no help text>")
	}
}

func (m *Monitor) displayCommands(commands *cmd.Tree) {
	m.printf("%s commands:\n", commands.Title)
	for _, c := range commands.Commands {
		if c.Brief != "" {
			m.printf("    %-15s  %s\n", c.Name, c.Brief)
		}
	}
	m.println()
}
