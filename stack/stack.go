// Network stack facade
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package stack implements the network stack facade of §4.7: it owns the
// NIC handle, the ARP cache, the acquired IPv4, and the DHCP client, and
// is pumped once per tick by Update from the main loop.
package stack

import (
	"errors"

	"github.com/withsecure/x86netboot/net/arpcache"
	"github.com/withsecure/x86netboot/net/arpwire"
	"github.com/withsecure/x86netboot/net/dhcp"
	"github.com/withsecure/x86netboot/net/ethernet"
	"github.com/withsecure/x86netboot/net/ipv4wire"
	"github.com/withsecure/x86netboot/net/udpwire"
	"github.com/withsecure/x86netboot/soc/intel/e1000"
	"github.com/withsecure/x86netboot/soc/intel/pci"
)

// mtu bounds every Tx buffer this stack allocates; each send makes a fresh
// buffer of at most this size, since no path ever needs more than one
// Ethernet MTU.
const mtu = 1500

// ErrNoNICFound is returned by Init when the PCI scan found no Ethernet
// controller at all (§7 NoNICFound).
var ErrNoNICFound = errors.New("stack: no Ethernet NIC found on the PCI bus")

// ErrUnsupportedNIC is returned by Init when an Ethernet controller was
// found but is not an accepted E1000-class device (§7 UnsupportedNIC).
type ErrUnsupportedNIC struct {
	Vendor uint16
	Device uint16
}

func (e *ErrUnsupportedNIC) Error() string {
	return "stack: unsupported NIC " + hex16(e.Vendor) + ":" + hex16(e.Device)
}

// ErrDestIPNotInArpTable is reserved for when a DHCP-less unicast send
// path is added (§7); nothing in this stack returns it yet.
type ErrDestIPNotInArpTable struct {
	IP [4]byte
}

func (e *ErrDestIPNotInArpTable) Error() string {
	return "stack: " + arpwire.IPString(e.IP) + " not in ARP table"
}

func hex16(v uint16) string {
	const digits = "0123456789abcdef"
	return string([]byte{
		digits[(v>>12)&0xf], digits[(v>>8)&0xf],
		digits[(v>>4)&0xf], digits[v&0xf],
	})
}

// nic is the subset of *e1000.NIC this facade drives, narrowed to an
// interface so tests can substitute a fake ring without touching real
// MMIO or physical memory.
type nic interface {
	Send(frame []byte, length int)
	PollReceive() []e1000.ReceivedFrame
}

// Stack is the network stack facade of §4.7. Constructed once after a
// successful PCI probe; never destroyed (the machine halts on panic, §6).
type Stack struct {
	nic    nic
	ownMAC [6]byte
	ownIP  [4]byte

	arp  arpcache.Agent
	dhcp *dhcp.Client
}

// Init runs the PCI probe, constructs the driver for the first accepted
// NIC found, and programs its Rx/Tx rings, per §4.7.
func Init() (*Stack, error) {
	return initFrom(pci.Scan())
}

func initFrom(devices []pci.Device) (*Stack, error) {
	dev, ok := pci.GetNIC(devices)
	if !ok {
		return nil, ErrNoNICFound
	}

	if dev.VendorID != e1000.VendorID || dev.DeviceID != e1000.DeviceID {
		return nil, &ErrUnsupportedNIC{Vendor: dev.VendorID, Device: dev.DeviceID}
	}

	hw := e1000.New(dev.BaseAddress(0))
	hw.Init()

	return newStack(hw, hw.MAC), nil
}

func newStack(n nic, mac [6]byte) *Stack {
	s := &Stack{
		nic:    n,
		ownMAC: mac,
		dhcp:   dhcp.NewClient(mac),
	}
	s.arp.OwnMAC = mac
	s.arp.OwnIP = &s.ownIP

	return s
}

// IP returns the currently assigned IPv4 address, 0.0.0.0 before DHCP
// acquisition completes.
func (s *Stack) IP() [4]byte { return s.ownIP }

// OwnMAC returns the NIC's hardware address.
func (s *Stack) OwnMAC() [6]byte { return s.ownMAC }

// DHCPState returns the DHCP client's current state (§3, §8 property 4).
func (s *Stack) DHCPState() dhcp.State { return s.dhcp.State }

// ARPLookup returns the cached MAC for ip, if any.
func (s *Stack) ARPLookup(ip [4]byte) ([6]byte, bool) { return s.arp.Cache.Lookup(ip) }

// Update implements the §4.7 tick: if DHCP still needs an address, emit
// Discover and return without touching the Rx path this tick; otherwise
// drain Rx and dispatch every frame by ethertype.
func (s *Stack) Update() {
	if s.dhcp.NeedsDiscover() {
		s.sendDHCP(s.dhcp.EncodeDiscover)
		return
	}

	for _, frame := range s.nic.PollReceive() {
		s.dispatch(frame.Data)
	}
}

func (s *Stack) dispatch(frame []byte) {
	eth, err := ethernet.Decode(frame)
	if err != nil {
		return
	}

	payload := frame[ethernet.HeaderLen:]

	switch eth.Branch() {
	case ethernet.Arp:
		s.handleARP(payload)
	case ethernet.Ipv4:
		s.handleIPv4(payload)
	}
}

func (s *Stack) handleARP(payload []byte) {
	pkt, err := arpwire.Decode(payload)
	if err != nil {
		return
	}

	reply, send := s.arp.HandleInbound(pkt)
	if !send {
		return
	}

	buf := make([]byte, ethernet.HeaderLen+arpwire.Len)

	n, err := arpwire.Encode(buf[ethernet.HeaderLen:], reply)
	if err != nil {
		return
	}

	ethernet.Encode(buf, ethernet.Header{
		Dst:  reply.TargetMAC,
		Src:  s.ownMAC,
		Type: ethernet.TypeARP,
	})

	s.nic.Send(buf, ethernet.HeaderLen+n)
}

func (s *Stack) handleIPv4(payload []byte) {
	if _, err := ipv4wire.Decode(payload); err != nil {
		return
	}

	udpPayload := payload[ipv4wire.HeaderLen:]

	hdr, err := udpwire.Decode(udpPayload)
	if err != nil {
		return
	}

	if hdr.DstPort != dhcp.ClientPort {
		return
	}

	prevState := s.dhcp.State
	s.dhcp.Update(udpPayload[udpwire.HeaderLen:])

	if prevState == dhcp.DiscoverSent && s.dhcp.State == dhcp.RequestSent {
		s.sendDHCP(s.dhcp.EncodeRequest)
	}

	if s.dhcp.State == dhcp.Acquired {
		s.ownIP = s.dhcp.OwnIP
	}
}

// sendDHCP builds a full broadcast Ethernet/IPv4/UDP frame around a DHCP
// message produced by encode (EncodeDiscover or EncodeRequest) and
// transmits it.
func (s *Stack) sendDHCP(encode func([]byte) (int, error)) {
	buf := make([]byte, mtu)

	dhcpOffset := ethernet.HeaderLen + ipv4wire.HeaderLen + udpwire.HeaderLen

	dhcpLen, err := encode(buf[dhcpOffset:])
	if err != nil {
		return
	}

	udpLen := udpwire.HeaderLen + dhcpLen
	udpwire.Encode(buf[ethernet.HeaderLen+ipv4wire.HeaderLen:], udpwire.Header{
		SrcPort: dhcp.ClientPort,
		DstPort: dhcp.ServerPort,
		Length:  uint16(udpLen),
	})

	ipLen := ipv4wire.HeaderLen + udpLen
	ipv4wire.Encode(buf[ethernet.HeaderLen:], ipv4wire.Header{
		TotalLength: uint16(ipLen),
		Src:         s.ownIP,
		Dst:         [4]byte{255, 255, 255, 255},
	})

	ethernet.Encode(buf, ethernet.Header{
		Dst:  ethernet.Broadcast,
		Src:  s.ownMAC,
		Type: ethernet.TypeIPv4,
	})

	s.nic.Send(buf, ethernet.HeaderLen+ipLen)
}
