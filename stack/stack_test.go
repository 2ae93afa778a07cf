package stack

import (
	"encoding/binary"
	"testing"

	"github.com/withsecure/x86netboot/net/arpwire"
	"github.com/withsecure/x86netboot/net/dhcp"
	"github.com/withsecure/x86netboot/net/ethernet"
	"github.com/withsecure/x86netboot/net/ipv4wire"
	"github.com/withsecure/x86netboot/net/udpwire"
	"github.com/withsecure/x86netboot/soc/intel/e1000"
	"github.com/withsecure/x86netboot/soc/intel/pci"
)

var (
	ownMAC   = [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	serverIP = [4]byte{10, 99, 99, 1}
	leaseIP  = [4]byte{10, 99, 99, 11}
)

// fakeNIC substitutes for the real e1000 driver in these tests: it
// records every transmitted frame and hands back a queued set of "Rx"
// frames on PollReceive, with no MMIO or physical memory involved.
type fakeNIC struct {
	sent [][]byte
	rx   []e1000.ReceivedFrame
}

func (f *fakeNIC) Send(frame []byte, length int) {
	buf := make([]byte, length)
	copy(buf, frame[:length])
	f.sent = append(f.sent, buf)
}

func (f *fakeNIC) PollReceive() []e1000.ReceivedFrame {
	out := f.rx
	f.rx = nil
	return out
}

func dhcpPayload(msgType byte, xid uint32, yiaddr [4]byte) []byte {
	buf := make([]byte, dhcp.HeaderLen+3)
	binary.BigEndian.PutUint32(buf[4:8], xid)
	copy(buf[16:20], yiaddr[:])
	binary.BigEndian.PutUint32(buf[dhcp.HeaderLen-4:dhcp.HeaderLen], dhcp.MagicCookie)
	buf[dhcp.HeaderLen] = dhcp.OptMessageType
	buf[dhcp.HeaderLen+1] = 1
	buf[dhcp.HeaderLen+2] = msgType
	return buf
}

func udpDatagram(srcPort, dstPort uint16, srcIP, dstIP [4]byte, payload []byte) []byte {
	buf := make([]byte, ethernet.HeaderLen+ipv4wire.HeaderLen+udpwire.HeaderLen+len(payload))

	udpLen := udpwire.HeaderLen + len(payload)
	udpwire.Encode(buf[ethernet.HeaderLen+ipv4wire.HeaderLen:], udpwire.Header{
		SrcPort: srcPort, DstPort: dstPort, Length: uint16(udpLen),
	})
	copy(buf[ethernet.HeaderLen+ipv4wire.HeaderLen+udpwire.HeaderLen:], payload)

	ipv4wire.Encode(buf[ethernet.HeaderLen:], ipv4wire.Header{
		TotalLength: uint16(ipv4wire.HeaderLen + udpLen),
		Src:         srcIP,
		Dst:         dstIP,
	})

	ethernet.Encode(buf, ethernet.Header{Dst: ownMAC, Src: [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}, Type: ethernet.TypeIPv4})

	return buf
}

func arpFrame(op arpwire.Operation, senderMAC [6]byte, senderIP [4]byte, targetMAC [6]byte, targetIP [4]byte) []byte {
	buf := make([]byte, ethernet.HeaderLen+arpwire.Len)

	arpwire.Encode(buf[ethernet.HeaderLen:], arpwire.Packet{
		Operation: op, SenderMAC: senderMAC, SenderIP: senderIP, TargetMAC: targetMAC, TargetIP: targetIP,
	})
	ethernet.Encode(buf, ethernet.Header{Dst: ethernet.Broadcast, Src: senderMAC, Type: ethernet.TypeARP})

	return buf
}

// TestS1DHCPAcquisition covers scenario S1: injecting an Offer and then an
// Ack drives the stack's IP and DHCP state to the leased address.
func TestS1DHCPAcquisition(t *testing.T) {
	fake := &fakeNIC{}
	s := newStack(fake, ownMAC)

	s.Update() // NeedIP: emits Discover
	if s.DHCPState() != dhcp.DiscoverSent {
		t.Fatalf("state after first Update = %v, want DiscoverSent", s.DHCPState())
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d frames after Discover, want 1", len(fake.sent))
	}

	offer := dhcpPayload(dhcp.MsgOffer, dhcp.XID, leaseIP)
	fake.rx = []e1000.ReceivedFrame{{Data: udpDatagram(dhcp.ServerPort, dhcp.ClientPort, serverIP, [4]byte{255, 255, 255, 255}, offer)}}

	s.Update()
	if s.DHCPState() != dhcp.RequestSent {
		t.Fatalf("state after offer = %v, want RequestSent", s.DHCPState())
	}
	if len(fake.sent) != 2 {
		t.Fatalf("sent %d frames after offer, want 2 (Discover + Request)", len(fake.sent))
	}

	ack := dhcpPayload(dhcp.MsgAck, dhcp.XID, leaseIP)
	fake.rx = []e1000.ReceivedFrame{{Data: udpDatagram(dhcp.ServerPort, dhcp.ClientPort, serverIP, leaseIP, ack)}}

	s.Update()
	if s.DHCPState() != dhcp.Acquired {
		t.Fatalf("state after ack = %v, want Acquired", s.DHCPState())
	}
	if s.IP() != leaseIP {
		t.Fatalf("IP = %v, want %v", s.IP(), leaseIP)
	}
}

// acquire drives a fresh stack through S1 and returns it positioned in
// Acquired state, for S2/S3 which run "after S1" (§8).
func acquire(t *testing.T) (*Stack, *fakeNIC) {
	t.Helper()

	fake := &fakeNIC{}
	s := newStack(fake, ownMAC)

	s.Update()

	offer := dhcpPayload(dhcp.MsgOffer, dhcp.XID, leaseIP)
	fake.rx = []e1000.ReceivedFrame{{Data: udpDatagram(dhcp.ServerPort, dhcp.ClientPort, serverIP, [4]byte{255, 255, 255, 255}, offer)}}
	s.Update()

	ack := dhcpPayload(dhcp.MsgAck, dhcp.XID, leaseIP)
	fake.rx = []e1000.ReceivedFrame{{Data: udpDatagram(dhcp.ServerPort, dhcp.ClientPort, serverIP, leaseIP, ack)}}
	s.Update()

	if s.DHCPState() != dhcp.Acquired {
		t.Fatalf("acquire: state = %v, want Acquired", s.DHCPState())
	}

	fake.sent = nil

	return s, fake
}

// TestS2ARPReply covers scenario S2: an inbound ARP request for our own
// IP yields exactly one outbound reply with the expected fields.
func TestS2ARPReply(t *testing.T) {
	s, fake := acquire(t)

	requester := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	requesterIP := [4]byte{10, 99, 99, 200}

	fake.rx = []e1000.ReceivedFrame{{Data: arpFrame(arpwire.Request, requester, requesterIP, [6]byte{}, s.IP())}}
	s.Update()

	if len(fake.sent) != 1 {
		t.Fatalf("sent %d frames, want exactly 1 ARP reply", len(fake.sent))
	}

	reply, err := arpwire.Decode(fake.sent[0][ethernet.HeaderLen:])
	if err != nil {
		t.Fatalf("decoding reply: %v", err)
	}

	if reply.Operation != arpwire.Reply {
		t.Fatalf("reply.Operation = %v, want Reply", reply.Operation)
	}
	if reply.SenderMAC != ownMAC || reply.SenderIP != s.IP() {
		t.Fatalf("reply sender = %v/%v, want %v/%v", reply.SenderMAC, reply.SenderIP, ownMAC, s.IP())
	}
	if reply.TargetMAC != requester {
		t.Fatalf("reply.TargetMAC = %v, want %v", reply.TargetMAC, requester)
	}
}

// TestS3ARPCacheCoalescing covers scenario S3: three inbound ARPs for the
// same IP from two distinct senders leave exactly one cache entry, bound
// to the MAC of the most recent sender.
func TestS3ARPCacheCoalescing(t *testing.T) {
	s, fake := acquire(t)

	macA := [6]byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	macB := [6]byte{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
	x := [4]byte{10, 99, 99, 50}

	fake.rx = []e1000.ReceivedFrame{
		{Data: arpFrame(arpwire.Request, macA, x, ownMAC, [4]byte{10, 99, 99, 254})},
		{Data: arpFrame(arpwire.Request, macA, x, ownMAC, [4]byte{10, 99, 99, 254})},
		{Data: arpFrame(arpwire.Request, macB, x, ownMAC, [4]byte{10, 99, 99, 254})},
	}
	s.Update()

	mac, ok := s.ARPLookup(x)
	if !ok {
		t.Fatalf("ARPLookup(%v): not found", x)
	}
	if mac != macB {
		t.Fatalf("ARPLookup(%v) = %v, want %v (most recent sender)", x, mac, macB)
	}
}

// TestS4UnsupportedNIC covers scenario S4: a probed Intel device that
// isn't the accepted E1000-class identity surfaces as ErrUnsupportedNIC.
func TestS4UnsupportedNIC(t *testing.T) {
	devices := []pci.Device{{
		VendorID:  0x8086,
		DeviceID:  0x1234,
		ClassCode: 0x02,
		Subclass:  0x00,
	}}

	_, err := initFrom(devices)

	unsupported, ok := err.(*ErrUnsupportedNIC)
	if !ok {
		t.Fatalf("initFrom: got %v (%T), want *ErrUnsupportedNIC", err, err)
	}
	if unsupported.Vendor != 0x8086 || unsupported.Device != 0x1234 {
		t.Fatalf("ErrUnsupportedNIC = %+v, want Vendor=0x8086 Device=0x1234", unsupported)
	}
}

func TestNoNICFound(t *testing.T) {
	if _, err := initFrom(nil); err != ErrNoNICFound {
		t.Fatalf("initFrom(nil): got %v, want ErrNoNICFound", err)
	}
}
