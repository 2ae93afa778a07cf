// 16550 Universal Asynchronous Receiver/Transmitter (UART) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uart implements a driver for Intel Serial I/O UART controllers
// adopting the following reference specification:
//   - PC16550D - Universal Asynchronous Receiver/Transmitter with FIFOs - June 1995
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package uart

import (
	"runtime"

	"github.com/withsecure/x86netboot/internal/reg"
)

// UART registers, offsets from Base.
const (
	DEFAULT_BAUDRATE = 115200

	RBR = 0x00 // receiver buffer (DLAB=0)
	THR = 0x00 // transmit holding (DLAB=0)
	DLL = 0x00 // divisor latch low (DLAB=1)
	IER = 0x01 // interrupt enable (DLAB=0)
	DLM = 0x01 // divisor latch high (DLAB=1)
	FCR = 0x02 // FIFO control
	LCR = 0x03 // line control
	MCR = 0x04 // modem control

	LSR      = 0x05
	LSR_DR   = 0
	LSR_THRE = 5

	LCR_DLAB = 0x80
)

// UART represents a serial port instance.
type UART struct {
	// Controller index
	Index int
	// Base register
	Base uint16
}

// Init initializes the UART to the canonical 115200-8N1 configuration (§6):
// disable interrupts, set the divisor latch access bit, program a divisor
// of 1 (115200 baud at the standard 1.8432 MHz UART clock), restore 8-N-1
// line control, enable and clear the FIFOs, and assert DTR/RTS/OUT2 in the
// modem control register.
func (hw *UART) Init() {
	if hw.Base == 0 {
		panic("invalid UART controller instance")
	}

	reg.Out8(hw.Base+IER, 0x00)
	reg.Out8(hw.Base+LCR, LCR_DLAB)
	reg.Out8(hw.Base+DLL, 0x01)
	reg.Out8(hw.Base+DLM, 0x00)
	reg.Out8(hw.Base+LCR, 0x03)
	reg.Out8(hw.Base+FCR, 0xc7)
	reg.Out8(hw.Base+MCR, 0x0b)
}

// Tx transmits a single character to the serial port.
func (hw *UART) Tx(c byte) {
	for reg.In8(hw.Base+LSR)&(1<<LSR_THRE) == 0 {
		// wait for TX FIFO to have room for a character
	}

	reg.Out8(hw.Base+THR, uint8(c))
}

// Rx receives a single character from the serial port.
func (hw *UART) Rx() (c byte, valid bool) {
	if reg.In8(hw.Base+LSR)&(1<<LSR_DR) == 0 {
		return
	}

	return byte(reg.In8(hw.Base + RBR)), true
}

// Write transmits every byte of buf to the serial port, implementing
// io.Writer so the diagnostic logger (see diag) can target it directly.
func (hw *UART) Write(buf []byte) (n int, _ error) {
	for n = 0; n < len(buf); n++ {
		hw.Tx(buf[n])
	}

	return
}

// Read reads available data to buffer from serial port.
func (hw *UART) Read(buf []byte) (n int, _ error) {
	var valid bool

	for n = 0; n < len(buf); n++ {
		buf[n], valid = hw.Rx()

		if !valid {
			if n == 0 {
				runtime.Gosched()
			}

			break
		}
	}

	return
}
