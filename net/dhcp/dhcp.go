// DHCP client state machine
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dhcp implements the narrow 4-state DHCP client of §4.6: Discover
// → Offer → Request → Ack, with a fixed transaction id and no timeout or
// retransmission (§9, flagged as likely unintended but left as specified).
//
// Header field encode/decode reuses github.com/soypat/lneto/dhcpv4's Frame
// for the fixed 240-byte BOOTP layout; option parsing is hand-rolled here
// because this client's narrow option subset and its single mandatory
// message-type option don't fit lneto's more general multi-option client.
package dhcp

import (
	"errors"

	"github.com/soypat/lneto/dhcpv4"
)

// Fixed fields carried in every outbound message (§4.6).
const (
	opBootRequest = 1
	htypeEthernet = 1
	hlenEthernet  = 6

	// XID is the fixed transaction id a new client starts with and sends in
	// its Discover; Update replaces it with the xid of the Offer, which the
	// Request then carries. It is never randomized (§4.6).
	XID = 0x13371337

	ClientPort = 68
	ServerPort = 67
)

// MagicCookie is the fixed 4-byte marker distinguishing DHCP from legacy
// BOOTP (§4.6).
const MagicCookie uint32 = 0x63825363

// HeaderLen is the fixed BOOTP header + sname + file + cookie size; DHCP
// options start immediately after it (§4.6).
const HeaderLen = 240

// MinMessageLen is the smallest buffer EncodeDiscover/EncodeRequest will
// accept: the fixed header plus a 1-byte message-type option (3 bytes)
// plus the end marker (1 byte).
const MinMessageLen = HeaderLen + 4

// Option codes this client encodes or decodes (§4.6).
const (
	OptHostName         = 12
	OptRequestedIP      = 50
	OptLeaseTime        = 51
	OptMessageType      = 53
	OptServerID         = 54
	OptParamRequestList = 55
	OptMaxMessageSize   = 57
	OptClientID         = 61
	OptEnd              = 255
)

// Message types carried by option 53 (§4.6).
const (
	MsgDiscover = 1
	MsgOffer    = 2
	MsgRequest  = 3
	MsgDecline  = 4
	MsgAck      = 5
	MsgNak      = 6
	MsgRelease  = 7
	MsgInform   = 8
)

// State is one of {NeedIP, DiscoverSent, RequestSent, Acquired} (§3, §4.6).
type State int

const (
	NeedIP State = iota
	DiscoverSent
	RequestSent
	Acquired
)

func (s State) String() string {
	switch s {
	case NeedIP:
		return "NeedIP"
	case DiscoverSent:
		return "DiscoverSent"
	case RequestSent:
		return "RequestSent"
	case Acquired:
		return "Acquired"
	default:
		return "Unknown"
	}
}

// ErrInvalidPacket is returned for a structurally short or malformed DHCP
// payload (§7 InvalidDhcpPacket): truncated below HeaderLen, a malformed
// option length/data, or a missing message-type option.
var ErrInvalidPacket = errors.New("dhcp: invalid packet")

// ErrBadMessageType is returned when option 53's value falls outside
// {1..8} (§7 BadDhcpMessageType).
type ErrBadMessageType struct{ Code byte }

func (e ErrBadMessageType) Error() string {
	return "dhcp: bad message type"
}

// Client carries the DHCP state machine state (§3): the transaction id
// (XID until an Offer is accepted), the offered/assigned IPv4, and the
// server's IP.
type Client struct {
	State    State
	OwnMAC   [6]byte
	Xid      uint32
	OwnIP    [4]byte
	ServerIP [4]byte
}

// NewClient constructs a client in state NeedIP for the given MAC address.
func NewClient(mac [6]byte) *Client {
	return &Client{State: NeedIP, OwnMAC: mac, Xid: XID}
}

// message is a decoded inbound DHCP payload's fields this client consults.
type message struct {
	msgType     byte
	xid         uint32
	yiaddr      [4]byte
	requestedIP [4]byte
	serverID    [4]byte
	hasServerID bool
}

// decode parses a DHCP payload per §4.6: walks options starting at byte
// 240, each option is code(1)|len(1)|data(len) except code 255 which
// terminates. A malformed length, truncated data, or missing message-type
// option yields ErrInvalidPacket.
func decode(payload []byte) (message, error) {
	if len(payload) < HeaderLen {
		return message{}, ErrInvalidPacket
	}

	frm, err := dhcpv4.NewFrame(payload)
	if err != nil {
		return message{}, ErrInvalidPacket
	}

	if frm.MagicCookie() != MagicCookie {
		return message{}, ErrInvalidPacket
	}

	var m message
	m.xid = frm.XID()
	m.yiaddr = *frm.YIAddr()

	opts := payload[HeaderLen:]
	ptr := 0
	sawMessageType := false

	for ptr < len(opts) {
		code := opts[ptr]

		if code == OptEnd {
			break
		}

		if ptr+1 >= len(opts) {
			return message{}, ErrInvalidPacket
		}

		length := int(opts[ptr+1])
		start := ptr + 2

		if start+length > len(opts) {
			return message{}, ErrInvalidPacket
		}

		data := opts[start : start+length]

		switch code {
		case OptMessageType:
			if length != 1 {
				return message{}, ErrInvalidPacket
			}
			m.msgType = data[0]
			sawMessageType = true
		case OptRequestedIP:
			if length == 4 {
				copy(m.requestedIP[:], data)
			}
		case OptServerID:
			if length == 4 {
				copy(m.serverID[:], data)
				m.hasServerID = true
			}
		}

		ptr = start + length
	}

	if !sawMessageType {
		return message{}, ErrInvalidPacket
	}

	if m.msgType < 1 || m.msgType > 8 {
		return message{}, ErrBadMessageType{Code: m.msgType}
	}

	return m, nil
}

// Update advances the state machine per §4.6. payload is the UDP payload
// of an inbound packet destined to port 68 (caller filters on that before
// calling Update), or nil, in which case Update does nothing and returns
// nil; NeedsDiscover is how the caller learns whether to send Discover.
//
// Any message type unrelated to the current state is ignored and the
// state is left unchanged (§8 property 4); a structurally invalid payload
// is dropped (the error is returned for diagnostic logging only, the
// state machine itself does not change).
func (c *Client) Update(payload []byte) error {
	if payload == nil {
		return nil
	}

	m, err := decode(payload)
	if err != nil {
		return err
	}

	switch {
	case c.State == DiscoverSent && m.msgType == MsgOffer:
		c.Xid = m.xid
		if m.hasServerID {
			c.ServerIP = m.serverID
		}
		c.State = RequestSent
	case c.State == RequestSent && m.msgType == MsgAck:
		c.OwnIP = m.yiaddr
		c.State = Acquired
	}

	return nil
}

// NeedsDiscover reports whether the client is in NeedIP and should emit a
// Discover this tick.
func (c *Client) NeedsDiscover() bool {
	return c.State == NeedIP
}

// EncodeDiscover writes a Discover message (msg type 1, options {53=1,
// 255}) into buf and transitions the state to DiscoverSent, per §4.6.
func (c *Client) EncodeDiscover(buf []byte) (int, error) {
	n, err := c.encodeHeader(buf, MsgDiscover)
	if err != nil {
		return 0, err
	}

	c.State = DiscoverSent

	return n, nil
}

// EncodeRequest writes a Request message (msg type 3, options {53=3,
// 255}) into buf, per §4.6.
func (c *Client) EncodeRequest(buf []byte) (int, error) {
	return c.encodeHeader(buf, MsgRequest)
}

func (c *Client) encodeHeader(buf []byte, msgType byte) (int, error) {
	if len(buf) < MinMessageLen {
		return 0, ErrInvalidPacket
	}

	frm, err := dhcpv4.NewFrame(buf[:HeaderLen])
	if err != nil {
		return 0, ErrInvalidPacket
	}

	frm.ClearHeader()
	frm.SetOp(opBootRequest)
	frm.SetHardware(htypeEthernet, hlenEthernet, 0)
	frm.SetXID(c.Xid)
	*frm.CHAddrAs6() = c.OwnMAC
	frm.SetMagicCookie(MagicCookie)

	n := HeaderLen
	n += encodeOption(buf[n:], OptMessageType, []byte{msgType})
	n += encodeEnd(buf[n:])

	return n, nil
}

func encodeOption(buf []byte, code byte, data []byte) int {
	buf[0] = code
	buf[1] = byte(len(data))
	copy(buf[2:], data)
	return 2 + len(data)
}

func encodeEnd(buf []byte) int {
	buf[0] = OptEnd
	return 1
}
