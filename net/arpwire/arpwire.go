// ARP frame codec
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arpwire implements the 28-byte IPv4 ARP payload encode/decode of
// §4.4, on top of github.com/soypat/lneto/arp's zero-allocation frame
// accessors.
package arpwire

import (
	"errors"
	"strconv"

	"github.com/soypat/lneto/arp"
	"github.com/soypat/lneto/ethernet"
)

// Len is the fixed size of an IPv4-over-Ethernet ARP payload (§4.4).
const Len = 28

const (
	htype = 0x0001
	hlen  = 6
	plen  = 4
)

// Operation mirrors the ARP header's oper field.
type Operation = arp.Operation

const (
	Request = arp.OpRequest
	Reply   = arp.OpReply
)

// ErrShort is returned when a buffer is too small to hold an ARP payload,
// and by Decode when the hardware or protocol address length field is not
// 6 or 4 respectively.
var ErrShort = errors.New("arpwire: buffer shorter than 28 bytes")

// Packet is the decoded IPv4 ARP payload (§3, §4.4).
type Packet struct {
	Operation  Operation
	SenderMAC  [6]byte
	SenderIP   [4]byte
	TargetMAC  [6]byte
	TargetIP   [4]byte
}

// Encode writes a 28-byte ARP payload into buf[0:28].
func Encode(buf []byte, p Packet) (int, error) {
	frm, err := arp.NewFrame(buf)
	if err != nil {
		return 0, ErrShort
	}

	frm.ClearHeader()
	frm.SetHardware(htype, hlen)
	frm.SetProtocol(ethernet.TypeIPv4, plen)
	frm.SetOperation(p.Operation)

	sha, spa := frm.Sender4()
	tha, tpa := frm.Target4()

	*sha = p.SenderMAC
	*spa = p.SenderIP
	*tha = p.TargetMAC
	*tpa = p.TargetIP

	return Len, nil
}

// Decode parses a 28-byte IPv4 ARP payload.
func Decode(buf []byte) (Packet, error) {
	frm, err := arp.NewFrame(buf)
	if err != nil {
		return Packet{}, ErrShort
	}

	if _, hl := frm.Hardware(); hl != hlen {
		return Packet{}, ErrShort
	}
	if _, pl := frm.Protocol(); pl != plen {
		return Packet{}, ErrShort
	}

	sha, spa := frm.Sender4()
	tha, tpa := frm.Target4()

	return Packet{
		Operation: frm.Operation(),
		SenderMAC: *sha,
		SenderIP:  *spa,
		TargetMAC: *tha,
		TargetIP:  *tpa,
	}, nil
}

// IPString renders a 4-byte address in dotted-quad form, for diagnostic
// logging.
func IPString(ip [4]byte) string {
	s := ""
	for i, b := range ip {
		if i != 0 {
			s += "."
		}
		s += strconv.Itoa(int(b))
	}
	return s
}
