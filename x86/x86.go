// x86 32-bit protected mode processor support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package x86 provides support for x86 32-bit protected mode architecture
// specific operations: port I/O, CPU identification, halt and reset.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package x86

import (
	"runtime"

	"github.com/withsecure/x86netboot/internal/reg"
)

// Peripheral registers
const (
	// Keyboard controller port, used to pulse the CPU reset pin.
	KBD_PORT = 0x64
)

// CPU represents the single execution core this system ever runs on: no
// SMP, no LAPIC, no timers — only port I/O, identification and halt.
type CPU struct {
	// Vendor holds the CPUID vendor string once Init has run.
	Vendor string

	clock int64
}

// defined in x86.s
func halt()

// Init performs the minimal bring-up required before driver init can run:
// the Go runtime's idle and exit hooks are wired to the halt primitive so
// a scheduler idle or a runtime exit degrades to the documented CLI+HLT
// loop rather than returning to an absent supervisor.
func (cpu *CPU) Init() {
	runtime.Exit = func(_ int32) { halt() }
	runtime.Idle = func(_ int64) { halt() }

	cpu.Vendor = vendorString()
}

// Halt disables interrupts and executes HLT in a loop, so that a spurious
// wake re-halts. This is the system's only failure/idle primitive: there is
// no supervisor to return control to.
func (cpu *CPU) Halt() {
	halt()
}

// Reset pulses the CPU reset pin via the 8042 keyboard controller.
func (cpu *CPU) Reset() {
	reg.Out8(KBD_PORT, 0xfe)
}

// GetTime returns a monotonically increasing nanosecond counter for
// runtime.nanotime1. There is no timer hardware on this platform (§9, no
// interrupts/timers): each call advances a software counter by a fixed
// step, which is sufficient for the runtime's internal scheduling since
// nothing in this system blocks on wall-clock time.
func (cpu *CPU) GetTime() int64 {
	cpu.clock += 1000
	return cpu.clock
}
