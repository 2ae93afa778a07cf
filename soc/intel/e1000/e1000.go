// Intel E1000-class Ethernet controller driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package e1000 implements a driver for the Intel E1000-class Gigabit
// Ethernet controller (device=0x100E, vendor=0x8086), adopting the
// following reference specification:
//   - Intel 8254x Family of Gigabit Ethernet Controllers Software Developer's Manual
//
// The driver owns fixed-capacity Rx/Tx descriptor rings living at
// hard-coded physical addresses (§6): there is no allocator, and the rings
// are never resized or relocated after Init.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=386` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package e1000

import (
	"github.com/withsecure/x86netboot/bits"
	"github.com/withsecure/x86netboot/internal/reg"
)

// Accepted device identity (§4.3).
const (
	VendorID = 0x8086
	DeviceID = 0x100e
)

// Register offsets from the device's MMIO base (§4.3).
const (
	RCTL = 0x0100

	RDBAL = 0x2800
	RDBAH = 0x2804
	RDLEN = 0x2808
	RDH   = 0x2810
	RDT   = 0x2818

	TCTL = 0x0400

	TDBAL = 0x3800
	TDBAH = 0x3804
	TDLEN = 0x3808
	TDH   = 0x3810
	TDT   = 0x3818

	RAL = 0x5400
	RAH = 0x5404
)

// RCTL bit positions.
const (
	RCTL_EN   = 1
	RCTL_UPE  = 3
	RCTL_MPE  = 4
	RCTL_BAM  = 15
	RCTL_BSIZE_POS  = 16
	RCTL_BSIZE_MASK = 0b11
	RCTL_SBP_POS    = 2
)

// RCTL.BSIZE=2048 (with BSEX clear) is encoded as 00.
const rctlBSIZE2048 = 0b00

// TCTL bit positions.
const (
	TCTL_EN = 1
)

// Tx descriptor.cmd bits (§3).
const (
	CMD_EOP  = 1 << 0
	CMD_IFCS = 1 << 1
	CMD_RS   = 1 << 3
)

// Ring geometry (§3).
const (
	RingSize      = 16
	FrameSlotSize = 2048
	MinFrameLen   = 48
)

// Hard-coded physical memory layout (§6). These addresses are assumed
// identity-mapped and exclusively owned by this driver for the lifetime of
// the system; relocating them is safe provided ring bases stay 128-byte
// aligned and frame arenas remain 32-bit addressable.
const (
	RxRingBase  = 0x00800000
	RxArenaBase = 0x00880000
	TxRingBase  = 0x00900000
	TxArenaBase = 0x00980000
)

// rxDescriptor mirrors the device's 16-byte little-endian Rx descriptor
// layout (§3). buffer_addr is written once at Init and never mutated by
// software afterwards.
type rxDescriptor struct {
	bufferAddr uint64
	length     uint16
	checksum   uint16
	status     uint8
	errors     uint8
	special    uint16
}

// txDescriptor mirrors the device's 16-byte little-endian Tx descriptor
// layout (§3).
type txDescriptor struct {
	bufferAddr uint64
	length     uint16
	cso        uint8
	cmd        uint8
	status     uint8
	css        uint8
	special    uint16
}

const descSize = 16

// NIC represents one initialized E1000-class controller instance. mmioBase
// and MAC are immutable after Init (§3); all other state is reached only
// through raw MMIO register writes or the descriptor rings.
type NIC struct {
	mmioBase uint32
	MAC      [6]byte
}

func (n *NIC) read32(offset uint32) uint32 {
	return reg.Read(n.mmioBase + offset)
}

func (n *NIC) write32(offset uint32, val uint32) {
	reg.Write(n.mmioBase+offset, val)
}

// New constructs a driver instance bound to a device's MMIO base address
// without touching hardware; call Init to program the rings.
func New(mmioBase uint32) *NIC {
	return &NIC{mmioBase: mmioBase}
}

// Init programs the Rx and Tx descriptor rings and enables the receiver
// and transmitter, per §4.3.
func (n *NIC) Init() {
	n.readMAC()
	n.initRx()
	n.initTx()
}

func (n *NIC) readMAC() {
	ral := n.read32(RAL)
	rah := n.read32(RAH)

	n.MAC[0] = byte(ral)
	n.MAC[1] = byte(ral >> 8)
	n.MAC[2] = byte(ral >> 16)
	n.MAC[3] = byte(ral >> 24)
	n.MAC[4] = byte(rah)
	n.MAC[5] = byte(rah >> 8)
}

func rxDescAddr(i int) uint32 { return RxRingBase + uint32(i)*descSize }
func txDescAddr(i int) uint32 { return TxRingBase + uint32(i)*descSize }

func rxFrameAddr(i int) uint32 { return RxArenaBase + uint32(i)*FrameSlotSize }
func txFrameAddr(i int) uint32 { return TxArenaBase + uint32(i)*FrameSlotSize }

func (n *NIC) initRx() {
	for i := 0; i < RingSize; i++ {
		d := rxDescriptor{
			bufferAddr: uint64(rxFrameAddr(i)),
		}
		writeRxDescriptor(rxDescAddr(i), &d)
	}

	n.write32(RDBAL, RxRingBase)
	n.write32(RDBAH, 0)
	n.write32(RDLEN, RingSize*descSize)

	// RDH/RDT initial values of 20/4 mirror the source's known-good boot
	// state for a 16-entry ring (§4.3, §9); any pair satisfying the ring
	// invariants is equally valid.
	n.write32(RDH, 20)
	n.write32(RDT, 4)

	var rctl uint32
	bits.Set(&rctl, RCTL_EN)
	bits.Clear(&rctl, RCTL_SBP_POS)
	bits.Set(&rctl, RCTL_UPE)
	bits.Set(&rctl, RCTL_MPE)
	bits.Set(&rctl, RCTL_BAM)
	bits.SetN(&rctl, RCTL_BSIZE_POS, RCTL_BSIZE_MASK, rctlBSIZE2048)

	n.write32(RCTL, rctl)
}

func (n *NIC) initTx() {
	for i := 0; i < RingSize; i++ {
		d := txDescriptor{
			bufferAddr: uint64(txFrameAddr(i)),
		}
		writeTxDescriptor(txDescAddr(i), &d)
	}

	n.write32(TDBAL, TxRingBase)
	n.write32(TDBAH, 0)
	n.write32(TDLEN, RingSize*descSize)
	n.write32(TDH, 0)
	n.write32(TDT, 0)

	var tctl uint32
	bits.Set(&tctl, TCTL_EN)

	n.write32(TCTL, tctl)
}

// Send transmits frame (truncated to its first length bytes), padding to
// the 48-byte Ethernet minimum, per §4.3. It is synchronous only in the
// sense that the descriptor and tail register are written before Send
// returns; transmission itself completes asynchronously and is reaped
// lazily by a later Send reusing the same slot.
func (n *NIC) Send(frame []byte, length int) {
	tail := int(n.read32(TDT)) % RingSize

	d := readTxDescriptor(txDescAddr(tail))

	if d.status == 1 {
		// completed, un-reaped descriptor: rewind TDT by one slot
		// before reuse, per the source's reclaim idiom. Only the
		// TDT register moves; buffer_addr and the addressing index
		// stay at tail throughout, since buffer_addr is not mutated
		// by software after ring initialization (§3) — the rewind
		// and the final advance below net to zero index movement.
		d.status = 0
		n.write32(TDT, uint32((tail-1+RingSize)%RingSize))
	}

	slot := mapPhysical(txFrameAddr(tail), FrameSlotSize)

	wrote := copy(slot, frame[:length])
	sendLen := wrote
	for ; sendLen < MinFrameLen; sendLen++ {
		slot[sendLen] = 0
	}

	d.length = uint16(sendLen)
	d.cmd = CMD_EOP | CMD_IFCS | CMD_RS
	d.status = 0

	writeTxDescriptor(txDescAddr(tail), &d)

	n.write32(TDT, uint32((tail+1)%RingSize))
}

// ReceivedFrame holds one drained Rx frame, copied out of its ring slot so
// it survives past the slot's reuse by the device.
type ReceivedFrame struct {
	Data []byte
}

// PollReceive scans the Rx ring in index order and drains every descriptor
// with a nonzero status, per §4.3. Descriptors whose errors field is
// nonzero are dropped silently (§4.3 failure semantics): this driver has
// no upper-layer error surface for L2 errors.
func (n *NIC) PollReceive() []ReceivedFrame {
	var frames []ReceivedFrame

	for i := 0; i < RingSize; i++ {
		addr := rxDescAddr(i)
		d := readRxDescriptor(addr)

		if d.status == 0 {
			continue
		}

		if d.errors == 0 {
			slot := mapPhysical(rxFrameAddr(i), int(d.length))
			buf := make([]byte, len(slot))
			copy(buf, slot)
			frames = append(frames, ReceivedFrame{Data: buf})
		}

		d.status = 0
		d.length = 0
		writeRxDescriptor(addr, &d)

		n.write32(RDT, uint32((int(n.read32(RDT))+1)%RingSize))
	}

	return frames
}
