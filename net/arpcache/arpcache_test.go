package arpcache

import (
	"testing"

	"github.com/withsecure/x86netboot/net/arpwire"
)

var (
	macA = [6]byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01}
	macB = [6]byte{0x02, 0x02, 0x02, 0x02, 0x02, 0x02}
	ipA  = [4]byte{10, 0, 0, 1}
	ipB  = [4]byte{10, 0, 0, 2}
)

// TestZeroSenderIPIgnored covers §8 property 3a: an all-zero sender IP is
// never inserted into the cache.
func TestZeroSenderIPIgnored(t *testing.T) {
	var c Cache

	c.Update(macA, [4]byte{})

	if _, ok := c.Lookup([4]byte{}); ok {
		t.Fatalf("Lookup(0.0.0.0) = ok, want not found")
	}
}

// TestUpdateOverwritesMAC covers §8 property 3b: a repeated IP with a
// different MAC overwrites the cached MAC rather than inserting a second
// entry.
func TestUpdateOverwritesMAC(t *testing.T) {
	var c Cache

	c.Update(macA, ipA)
	c.Update(macB, ipA)

	got, ok := c.Lookup(ipA)
	if !ok {
		t.Fatalf("Lookup(ipA) = not found")
	}
	if got != macB {
		t.Fatalf("Lookup(ipA) = %v, want %v", got, macB)
	}
}

// TestCacheFullDropsSilently covers the §3 full-table rule: once all Capacity
// slots are occupied, a new (mac, ip) pair is dropped rather than evicting
// an existing entry.
func TestCacheFullDropsSilently(t *testing.T) {
	var c Cache

	for i := 0; i < Capacity; i++ {
		ip := [4]byte{10, 0, 0, byte(i + 1)}
		c.Update(macA, ip)
	}

	overflowIP := [4]byte{10, 0, 1, 0}
	c.Update(macB, overflowIP)

	if _, ok := c.Lookup(overflowIP); ok {
		t.Fatalf("Lookup(overflowIP) = ok, want dropped (table full)")
	}

	// every original entry must still be present and untouched
	for i := 0; i < Capacity; i++ {
		ip := [4]byte{10, 0, 0, byte(i + 1)}
		if mac, ok := c.Lookup(ip); !ok || mac != macA {
			t.Fatalf("Lookup(%v) = %v, %v, want %v, true", ip, mac, ok, macA)
		}
	}
}

func TestHandleInboundRepliesToOwnIP(t *testing.T) {
	ownIP := ipB
	a := Agent{OwnMAC: macB, OwnIP: &ownIP}

	req := arpwire.Packet{
		Operation: arpwire.Request,
		SenderMAC: macA,
		SenderIP:  ipA,
		TargetIP:  ownIP,
	}

	reply, send := a.HandleInbound(req)
	if !send {
		t.Fatalf("HandleInbound: send = false, want true")
	}
	if reply.Operation != arpwire.Reply {
		t.Fatalf("reply.Operation = %v, want Reply", reply.Operation)
	}
	if reply.SenderMAC != macB || reply.SenderIP != ownIP {
		t.Fatalf("reply sender = %v/%v, want %v/%v", reply.SenderMAC, reply.SenderIP, macB, ownIP)
	}
	if reply.TargetMAC != macA || reply.TargetIP != ipA {
		t.Fatalf("reply target = %v/%v, want %v/%v", reply.TargetMAC, reply.TargetIP, macA, ipA)
	}

	if mac, ok := a.Cache.Lookup(ipA); !ok || mac != macA {
		t.Fatalf("cache not updated from inbound request sender")
	}
}

func TestHandleInboundIgnoresOtherTargets(t *testing.T) {
	ownIP := ipB
	a := Agent{OwnMAC: macB, OwnIP: &ownIP}

	req := arpwire.Packet{
		Operation: arpwire.Request,
		SenderMAC: macA,
		SenderIP:  ipA,
		TargetIP:  [4]byte{10, 0, 0, 99},
	}

	if _, send := a.HandleInbound(req); send {
		t.Fatalf("HandleInbound for a different target: send = true, want false")
	}
}

func TestWhoHasBuildsBroadcastRequest(t *testing.T) {
	ownIP := ipA
	a := Agent{OwnMAC: macA, OwnIP: &ownIP}

	p := a.WhoHas(ipB)

	if p.Operation != arpwire.Request {
		t.Fatalf("WhoHas.Operation = %v, want Request", p.Operation)
	}
	if p.SenderMAC != macA || p.SenderIP != ownIP {
		t.Fatalf("WhoHas sender = %v/%v, want %v/%v", p.SenderMAC, p.SenderIP, macA, ownIP)
	}
	if p.TargetIP != ipB {
		t.Fatalf("WhoHas.TargetIP = %v, want %v", p.TargetIP, ipB)
	}
}
