// Copyright 2026 The sim6502 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/term"

	"github.com/retrozone/sim6502/monitor"
)

func init() {
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: sim6502 [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	m := monitor.New()

	// Run commands contained in command-line files.
	args := flag.Args()
	if len(args) > 0 {
		for _, filename := range args {
			file, err := os.Open(filename)
			if err != nil {
				exitOnError(err)
			}
			m.RunCommands(file, os.Stdout, false)
			file.Close()
		}
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(m, c)

	// Run commands from stdin, interactively when attached to a
	// terminal.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	m.RunCommands(os.Stdin, os.Stdout, interactive)
}

func handleInterrupt(m *monitor.Monitor, c chan os.Signal) {
	for {
		<-c
		m.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
