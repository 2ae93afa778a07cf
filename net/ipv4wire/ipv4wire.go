// IPv4 header codec
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ipv4wire implements the 20-byte, no-options IPv4 header
// encode/decode of §4.4, on top of github.com/soypat/lneto/ipv4's
// zero-allocation frame accessors and github.com/soypat/lneto's CRC791
// checksum (fold-twice-then-NOT, §4.4/§8 property 2).
package ipv4wire

import (
	"errors"

	"github.com/soypat/lneto"
	"github.com/soypat/lneto/ipv4"
)

// HeaderLen is the fixed, options-free IPv4 header size (§4.4).
const HeaderLen = 20

const (
	versionIHL = 0x45 // version=4, IHL=5
	protoUDP   = 0x11
	defaultTTL = 0x40
	defaultID  = 0x0100
)

// ErrShort is returned when a buffer is too small to hold an IPv4 header.
var ErrShort = errors.New("ipv4wire: buffer shorter than 20 bytes")

// Header is the decoded fixed-offset view of an IPv4 header (§4.4).
type Header struct {
	TotalLength uint16
	Src         [4]byte
	Dst         [4]byte
	Checksum    uint16
}

// Encode writes a 20-byte IPv4 header into buf[0:20], with protocol fixed
// to UDP (0x11) per this stack's sole upper-layer protocol, and computes
// the header checksum per §4.4.
func Encode(buf []byte, h Header) (int, error) {
	if len(buf) < HeaderLen {
		return 0, ErrShort
	}

	frm, err := ipv4.NewFrame(buf[:HeaderLen])
	if err != nil {
		return 0, ErrShort
	}

	frm.ClearHeader()
	frm.SetVersionAndIHL(4, 5)
	frm.SetToS(0)
	frm.SetTotalLength(h.TotalLength)
	frm.SetID(defaultID)
	frm.SetFlags(0)
	frm.SetTTL(defaultTTL)
	frm.SetProtocol(lneto.IPProtoUDP)
	*frm.SourceAddr() = h.Src
	*frm.DestinationAddr() = h.Dst
	frm.SetCRC(0)

	frm.SetCRC(checksum(buf[:HeaderLen]))

	return HeaderLen, nil
}

// Decode parses the 20-byte header at the start of buf.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShort
	}

	frm, err := ipv4.NewFrame(buf[:HeaderLen])
	if err != nil {
		return Header{}, ErrShort
	}

	return Header{
		TotalLength: frm.TotalLength(),
		Src:         *frm.SourceAddr(),
		Dst:         *frm.DestinationAddr(),
		Checksum:    frm.CRC(),
	}, nil
}

// checksum implements §4.4's algorithm: sum the ten 16-bit big-endian
// words (with the checksum field itself zero), fold carries twice, then
// bitwise-NOT. lneto.CRC791's Sum16 is exactly this fold-then-NOT
// function, so this wraps it rather than reimplementing it.
func checksum(header []byte) uint16 {
	var crc lneto.CRC791
	crc.WriteEven(header)
	return crc.Sum16()
}

// VerifyChecksum recomputes the checksum over a full received header
// (including its on-wire checksum field) and reports whether the result
// folds to zero, per §8 property 2.
func VerifyChecksum(header []byte) bool {
	var crc lneto.CRC791
	crc.WriteEven(header[:HeaderLen])
	return crc.Sum16() == 0
}
