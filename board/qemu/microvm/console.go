// QEMU microvm support for tamago/x86
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linkprintk

package microvm

import (
	_ "unsafe"

	"github.com/withsecure/x86netboot/internal/reg"
)

//go:linkname printk runtime.printk
func printk(c byte) {
	reg.Out8(COM1, c)
}
