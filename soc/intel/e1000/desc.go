// Intel E1000-class descriptor marshalling
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package e1000

import (
	"encoding/binary"

	"github.com/withsecure/x86netboot/dma"
)

// Descriptors are read/written field by field as little-endian values over
// a byte slice that dma.Map lays on the ring memory. These are ordinary Go
// loads and stores, not reg accesses: no volatile or ordering guarantee is
// applied to them.

func readRxDescriptor(addr uint32) rxDescriptor {
	raw := dma.Map(addr, descSize)

	return rxDescriptor{
		bufferAddr: binary.LittleEndian.Uint64(raw[0:8]),
		length:     binary.LittleEndian.Uint16(raw[8:10]),
		checksum:   binary.LittleEndian.Uint16(raw[10:12]),
		status:     raw[12],
		errors:     raw[13],
		special:    binary.LittleEndian.Uint16(raw[14:16]),
	}
}

func writeRxDescriptor(addr uint32, d *rxDescriptor) {
	raw := dma.Map(addr, descSize)

	binary.LittleEndian.PutUint64(raw[0:8], d.bufferAddr)
	binary.LittleEndian.PutUint16(raw[8:10], d.length)
	binary.LittleEndian.PutUint16(raw[10:12], d.checksum)
	raw[12] = d.status
	raw[13] = d.errors
	binary.LittleEndian.PutUint16(raw[14:16], d.special)
}

func readTxDescriptor(addr uint32) txDescriptor {
	raw := dma.Map(addr, descSize)

	return txDescriptor{
		bufferAddr: binary.LittleEndian.Uint64(raw[0:8]),
		length:     binary.LittleEndian.Uint16(raw[8:10]),
		cso:        raw[10],
		cmd:        raw[11],
		status:     raw[12],
		css:        raw[13],
		special:    binary.LittleEndian.Uint16(raw[14:16]),
	}
}

func writeTxDescriptor(addr uint32, d *txDescriptor) {
	raw := dma.Map(addr, descSize)

	binary.LittleEndian.PutUint64(raw[0:8], d.bufferAddr)
	binary.LittleEndian.PutUint16(raw[8:10], d.length)
	raw[10] = d.cso
	raw[11] = d.cmd
	raw[12] = d.status
	raw[13] = d.css
	binary.LittleEndian.PutUint16(raw[14:16], d.special)
}

// mapPhysical returns a byte slice over a fixed physical memory window,
// used for the pre-allocated 2048-byte frame slots (§3): the driver never
// allocates these buffers, it only maps the hard-coded arena addresses.
func mapPhysical(addr uint32, length int) []byte {
	return dma.Map(addr, length)
}
