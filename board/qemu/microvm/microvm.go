// QEMU microvm support for tamago/x86
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package microvm provides hardware initialization, automatically on
// import, for a QEMU microvm machine configured with a single x86 core in
// 32-bit protected mode.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package microvm

import (
	_ "unsafe"

	"github.com/withsecure/x86netboot/soc/intel/rtc"
	"github.com/withsecure/x86netboot/soc/intel/uart"
	"github.com/withsecure/x86netboot/x86"
)

// Peripheral registers
const (
	// Communication port
	COM1 = 0x3f8
)

// Peripheral instances
var (
	// CPU instance
	X86 = &x86.CPU{}

	// Real-Time Clock
	RTC = &rtc.RTC{}

	// Serial port
	UART0 = &uart.UART{
		Index: 1,
		Base:  COM1,
	}
)

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	return X86.GetTime()
}

// Init takes care of the lower level initialization triggered early in
// runtime setup (post World start). There are no I/O APICs, no SMP, and no
// DMA allocator to bring up (§9 Non-goals): a single core, port I/O, and
// the serial console are all this board needs before the network stack
// can probe PCI.
//
//go:linkname Init runtime.hwinit1
func Init() {
	X86.Init()
	UART0.Init()
}
