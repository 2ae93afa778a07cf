// Physical memory window mapping for DMA purposes
// https://github.com/f-secure-foundry/tamago
//
// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma provides a primitive for viewing a fixed physical memory
// address range as a Go byte slice, for use by device drivers whose
// descriptor rings and frame buffers live at hard-coded physical addresses
// (§3, §6). There is no allocator here: this system never allocates DMA
// buffers, it only maps windows onto memory regions the board owner has
// already reserved at link time.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package dma

import (
	"reflect"
	"unsafe"
)

// Map returns a byte slice of the given length backed directly by the
// physical memory at addr. The caller is responsible for ensuring the
// region is reserved, identity-mapped, and not otherwise in use by the Go
// runtime — the same discipline the source's fixed ring/arena addresses
// require (§9, "Raw memory ownership").
func Map(addr uint32, length int) []byte {
	var buf []byte

	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	hdr.Data = uintptr(addr)
	hdr.Len = length
	hdr.Cap = length

	return buf
}
