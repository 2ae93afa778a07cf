// Ethernet frame codec
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ethernet implements the 14-byte Ethernet header encode/decode of
// §4.4, on top of github.com/soypat/lneto/ethernet's zero-allocation frame
// accessors.
package ethernet

import (
	"errors"

	"github.com/soypat/lneto/ethernet"
)

const HeaderLen = 14

// Type re-exports the lneto EtherType so callers never need the
// third-party import path to switch on it.
type Type = ethernet.Type

const (
	TypeIPv4 = ethernet.TypeIPv4
	TypeARP  = ethernet.TypeARP
)

// Broadcast is the all-ones MAC address used for ARP requests and DHCP
// Discover/Request.
var Broadcast = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ErrShort is returned when a buffer is too small to hold an Ethernet
// header.
var ErrShort = errors.New("ethernet: buffer shorter than 14 bytes")

// Header is the decoded fixed-offset view of an Ethernet frame header
// (§4.4): dst MAC, src MAC, ethertype.
type Header struct {
	Dst  [6]byte
	Src  [6]byte
	Type Type
}

// Encode writes a 14-byte Ethernet header into buf[0:14] and returns the
// number of bytes written.
func Encode(buf []byte, h Header) (int, error) {
	frm, err := ethernet.NewFrame(buf)
	if err != nil {
		return 0, ErrShort
	}

	*frm.DestinationHardwareAddr() = h.Dst
	*frm.SourceHardwareAddr() = h.Src
	frm.SetEtherType(h.Type)

	return HeaderLen, nil
}

// Decode parses the 14-byte header at the start of buf.
func Decode(buf []byte) (Header, error) {
	frm, err := ethernet.NewFrame(buf)
	if err != nil {
		return Header{}, ErrShort
	}

	return Header{
		Dst:  *frm.DestinationHardwareAddr(),
		Src:  *frm.SourceHardwareAddr(),
		Type: frm.EtherTypeOrSize(),
	}, nil
}

// Branch classifies a decoded ethertype into the three-way sum type §4.4
// and §9 ("Polymorphism over packet kinds") require: ARP, IPv4, or
// Unsupported. No virtual dispatch — callers switch on this value.
type Branch int

const (
	Unsupported Branch = iota
	Arp
	Ipv4
)

func (h Header) Branch() Branch {
	switch h.Type {
	case TypeARP:
		return Arp
	case TypeIPv4:
		return Ipv4
	default:
		return Unsupported
	}
}
