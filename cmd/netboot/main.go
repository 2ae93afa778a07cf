// Network boot entry point
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command netboot is the entry point of §6: importing board/qemu/microvm
// links its Init to the runtime's hwinit1 hook, which brings up the CPU and
// the serial console before main ever runs. main logs
// the boot address and wall clock, builds the network stack, and pumps it
// forever — there is no supervisor to return to.
package main

import (
	"github.com/withsecure/x86netboot/board/qemu/microvm"
	"github.com/withsecure/x86netboot/diag"
	"github.com/withsecure/x86netboot/stack"
)

// entryAddr is the load address stage-0 hands off to, fixed by the linker
// script this repository's build driver emits.
const entryAddr = 0x00100000

func main() {
	diag.Init(microvm.UART0)

	diag.Log.Printf("netboot: entry at %#08x", entryAddr)

	if now, err := microvm.RTC.Now(); err == nil {
		diag.Log.Printf("netboot: wall clock %s", now)
	} else {
		diag.Log.Printf("netboot: rtc read failed: %v", err)
	}

	s, err := stack.Init()
	if err != nil {
		diag.Log.Printf("netboot: stack init failed: %v", err)
		microvm.X86.Halt()
	}

	diag.Log.Printf("netboot: stack up, MAC %x", s.OwnMAC())

	for {
		s.Update()
	}
}
