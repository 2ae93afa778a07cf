// Diagnostic log sink
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package diag provides the boot-time diagnostic log, a *log.Logger
// writing to the serial console. There is no stdout on bare metal: every
// diagnostic line goes out over the UART singleton instead.
package diag

import (
	"io"
	"log"
)

// Log is the package-level diagnostic logger. Until Init is called with
// the board's UART writer it discards everything written to it; the entry
// point calls Init first thing in main, before anything else logs.
var Log = log.New(io.Discard, "", 0)

// Init binds Log to w, typically a board's uart.UART instance. Called
// once, early, from the entry point after the board has brought up the
// serial console.
func Init(w io.Writer) {
	Log = log.New(w, "", 0)
}
