// Intel Peripheral Component Interconnect (PCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pci implements a minimal enumerator for Intel Peripheral
// Component Interconnect (PCI) controllers adopting the following
// reference specification:
//   - PCI Local Bus Specification, revision 3.0, PCI Special Interest Group
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package pci

import (
	"encoding/binary"

	"github.com/withsecure/x86netboot/internal/reg"
)

const (
	CONFIG_ADDRESS = 0x0cf8
	CONFIG_DATA    = 0x0cfc
)

const (
	maxBuses     = 256
	maxDevices   = 32
	maxFunctions = 8

	// MaxDevices bounds the result of Scan: only the first ten devices
	// found are kept, mirroring the source's fixed-size result array.
	MaxDevices = 10
)

// Header Type 0x0 offsets, as 32-bit dword indices into the 64-byte Type-0
// configuration header.
const (
	dwVendorDevice = 0
	dwStatusCmd    = 1
	dwClass        = 2
	dwBar0         = 4
)

// Device represents a single enumerated PCI function's Type-0 header,
// reinterpreted from the sixteen dwords read out of configuration space.
type Device struct {
	Bus      uint8
	Slot     uint8
	Function uint8

	VendorID uint16
	DeviceID uint16

	// ClassCode and Subclass identify the device's function, e.g.
	// (0x02, 0x00) for an Ethernet controller.
	ClassCode uint8
	Subclass  uint8

	bars [6]uint32
}

func address(bus, device, function uint8, offset uint32) uint32 {
	return 0x8000_0000 |
		uint32(bus)<<16 |
		uint32(device)<<11 |
		uint32(function)<<8 |
		(offset & 0xfc)
}

// read32 performs a single configuration-space dword read at (bus, device,
// function, offset), per §4.2: write the address to CONFIG_ADDRESS, read
// the dword back from CONFIG_DATA.
func read32(bus, device, function uint8, offset uint32) uint32 {
	reg.Out32(CONFIG_ADDRESS, address(bus, device, function, offset))
	return reg.In32(CONFIG_DATA)
}

func write32(bus, device, function uint8, offset uint32, val uint32) {
	reg.Out32(CONFIG_ADDRESS, address(bus, device, function, offset))
	reg.Out32(CONFIG_DATA, val)
}

// probe reads the 64-byte Type-0 header of one (bus, device, function)
// triple as sixteen dwords. ok is false if the slot is empty (offset 0
// reads back 0xFFFF_FFFF).
func probe(bus, device, function uint8) (d Device, ok bool) {
	var hdr [16]uint32

	hdr[dwVendorDevice] = read32(bus, device, function, 0)

	if hdr[dwVendorDevice] == 0xFFFF_FFFF {
		return Device{}, false
	}

	for i := 1; i < len(hdr); i++ {
		hdr[i] = read32(bus, device, function, uint32(i)*4)
	}

	d.Bus = bus
	d.Slot = device
	d.Function = function
	d.VendorID = uint16(hdr[dwVendorDevice])
	d.DeviceID = uint16(hdr[dwVendorDevice] >> 16)
	d.Subclass = uint8(hdr[dwClass] >> 16)
	d.ClassCode = uint8(hdr[dwClass] >> 24)
	copy(d.bars[:], hdr[dwBar0:dwBar0+6])

	return d, true
}

// BaseAddress returns a device's n-th Base Address Register, memory-space
// BARs only (I/O-space BARs, bit 0 set, are not used by this system).
func (d *Device) BaseAddress(n int) uint32 {
	if n < 0 || n > 5 {
		return 0
	}

	bar := d.bars[n]

	if bar&0x1 != 0 {
		return 0
	}

	// bits [2:1] encode the BAR type: 0 = 32-bit, 2 = 64-bit.
	switch (bar >> 1) & 0b11 {
	case 0:
		return bar &^ 0xf
	case 2:
		if n > 4 {
			return 0
		}
		return bar &^ 0xf
	}

	return 0
}

// Scan iterates bus ∈ 0..256, device ∈ 0..32, function ∈ 0..8 reading the
// Type-0 header of every populated slot, per §4.2. Results are capped at
// MaxDevices: scanning stops early once that many devices are found,
// mirroring the source's bounded result array.
func Scan() []Device {
	devices := make([]Device, 0, MaxDevices)

	for bus := 0; bus < maxBuses; bus++ {
		for device := 0; device < maxDevices; device++ {
			for function := 0; function < maxFunctions; function++ {
				d, ok := probe(uint8(bus), uint8(device), uint8(function))
				if !ok {
					if function == 0 {
						break
					}
					continue
				}

				devices = append(devices, d)

				if len(devices) >= MaxDevices {
					return devices
				}
			}
		}
	}

	return devices
}

// GetNIC returns the first enumerated device whose class/subclass identify
// it as an Ethernet controller (class_code=0x02, subclass=0x00), and
// reports whether one was found.
func GetNIC(devices []Device) (Device, bool) {
	for _, d := range devices {
		if d.ClassCode == 0x02 && d.Subclass == 0x00 {
			return d, true
		}
	}

	return Device{}, false
}

// String renders a device identity for diagnostic logging.
func (d Device) String() string {
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], d.VendorID)
	binary.BigEndian.PutUint16(buf[2:4], d.DeviceID)
	return "pci " + hex(buf[0]) + hex(buf[1]) + ":" + hex(buf[2]) + hex(buf[3])
}

func hex(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

// Read reads the device configuration space for a given function-relative
// register offset, for drivers needing raw access beyond the cached Type-0
// header fields (BaseAddress uses the cached BARs, not Read).
func (d *Device) Read(offset uint32) uint32 {
	return read32(d.Bus, d.Slot, d.Function, offset)
}

// Write writes the device configuration space at a 32-bit aligned offset.
func (d *Device) Write(offset uint32, val uint32) {
	write32(d.Bus, d.Slot, d.Function, offset, val)
}
