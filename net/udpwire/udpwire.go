// UDP header codec
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package udpwire implements the 8-byte UDP header encode/decode of §4.4,
// on top of github.com/soypat/lneto/udp's zero-allocation frame accessors.
package udpwire

import (
	"errors"

	"github.com/soypat/lneto/udp"
)

// HeaderLen is the fixed UDP header size (§4.4).
const HeaderLen = 8

// ErrShort is returned when a buffer is too small to hold a UDP header.
var ErrShort = errors.New("udpwire: buffer shorter than 8 bytes")

// Header is the decoded fixed-offset view of a UDP header (§4.4).
type Header struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
}

// Encode writes an 8-byte UDP header into buf[0:8]. The checksum field is
// always written as zero: IPv4 allows a zero UDP checksum and this stack
// does not compute one (§4.4).
func Encode(buf []byte, h Header) (int, error) {
	if len(buf) < HeaderLen {
		return 0, ErrShort
	}

	frm, err := udp.NewFrame(buf[:HeaderLen])
	if err != nil {
		return 0, ErrShort
	}

	frm.ClearHeader()
	frm.SetSourcePort(h.SrcPort)
	frm.SetDestinationPort(h.DstPort)
	frm.SetLength(h.Length)
	frm.SetCRC(0)

	return HeaderLen, nil
}

// Decode parses the 8-byte header at the start of buf.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShort
	}

	frm, err := udp.NewFrame(buf[:HeaderLen])
	if err != nil {
		return Header{}, ErrShort
	}

	return Header{
		SrcPort: frm.SourcePort(),
		DstPort: frm.DestinationPort(),
		Length:  frm.Length(),
	}, nil
}
