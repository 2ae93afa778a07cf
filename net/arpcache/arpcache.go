// ARP cache and agent
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arpcache implements the bounded ARP address cache and the ARP
// agent's inbound/outbound behavior of §3 and §4.5.
package arpcache

import "github.com/withsecure/x86netboot/net/arpwire"

// Capacity is the fixed number of cached (mac, ipv4) entries (§3).
const Capacity = 10

var zeroIP [4]byte

// Cache is a fixed array of up to Capacity (mac, ipv4) entries. An empty
// slot is encoded as ipv4 == 0.0.0.0 (§3).
type Cache struct {
	entries [Capacity]entry
}

type entry struct {
	mac [6]byte
	ip  [4]byte
}

func (c *Cache) indexOf(ip [4]byte) int {
	for i := range c.entries {
		if c.entries[i].ip == ip {
			return i
		}
	}
	return -1
}

func (c *Cache) firstEmpty() int {
	for i := range c.entries {
		if c.entries[i].ip == zeroIP {
			return i
		}
	}
	return -1
}

// Update applies the §3 update rules for one inbound ARP sender
// (mac, ip): no-op if present with the same MAC, overwrite the MAC if
// present with a different one, insert into the first empty slot if
// absent, or drop silently if the table is full. An all-zero sender IP is
// never inserted (§8 property 3a).
func (c *Cache) Update(mac [6]byte, ip [4]byte) {
	if ip == zeroIP {
		return
	}

	if i := c.indexOf(ip); i >= 0 {
		c.entries[i].mac = mac
		return
	}

	if i := c.firstEmpty(); i >= 0 {
		c.entries[i] = entry{mac: mac, ip: ip}
	}

	// table full: new entries are dropped silently (§3 design choice).
}

// Lookup returns the cached MAC for ip, if any.
func (c *Cache) Lookup(ip [4]byte) (mac [6]byte, ok bool) {
	if i := c.indexOf(ip); i >= 0 {
		return c.entries[i].mac, true
	}
	return mac, false
}

// Agent drives the ARP cache from inbound packets and builds the two
// outbound operations of §4.5. It never consults the cache for its own
// sends.
type Agent struct {
	Cache   Cache
	OwnMAC  [6]byte
	OwnIP   *[4]byte
}

// HandleInbound applies the cache update rule for the packet's sender and,
// if the packet is a request for our own IP, returns a reply to send along
// with true. Non-request packets, or requests for a different target,
// only update the cache.
func (a *Agent) HandleInbound(p arpwire.Packet) (reply arpwire.Packet, send bool) {
	a.Cache.Update(p.SenderMAC, p.SenderIP)

	if p.Operation != arpwire.Request {
		return arpwire.Packet{}, false
	}

	if a.OwnIP == nil || p.TargetIP != *a.OwnIP {
		return arpwire.Packet{}, false
	}

	return arpwire.Packet{
		Operation: arpwire.Reply,
		SenderMAC: a.OwnMAC,
		SenderIP:  *a.OwnIP,
		TargetMAC: p.SenderMAC,
		TargetIP:  p.SenderIP,
	}, true
}

// WhoHas builds a broadcast ARP request for targetIP (§4.5).
func (a *Agent) WhoHas(targetIP [4]byte) arpwire.Packet {
	var ownIP [4]byte
	if a.OwnIP != nil {
		ownIP = *a.OwnIP
	}

	return arpwire.Packet{
		Operation: arpwire.Request,
		SenderMAC: a.OwnMAC,
		SenderIP:  ownIP,
		TargetMAC: [6]byte{},
		TargetIP:  targetIP,
	}
}
