package ingress

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"firestige.xyz/packetsentry/pkg/packet"
)

// FiveTuple is the value flow hashing and session correlation key off of
// (SPEC_FULL.md §3 supplement, grounded in the teacher's NetPacket shape
// and original_source's rx.rs flow hash call site).
type FiveTuple struct {
	SrcIP, DstIP     [16]byte
	SrcPort, DstPort uint16
	Protocol         packet.Protocol
}

// FlowKey returns pkt's 5-tuple, direction-normalized the same way
// FlowHash is, so two packets of the same flow in either direction map
// to the same key — used as a session-table key by downstream workers.
func FlowKey(pkt *packet.Packet) FiveTuple {
	t := fiveTupleOf(pkt)
	if greaterTuple(t.SrcIP, t.SrcPort, t.DstIP, t.DstPort) {
		t.SrcIP, t.DstIP = t.DstIP, t.SrcIP
		t.SrcPort, t.DstPort = t.DstPort, t.SrcPort
	}
	return t
}

// fiveTupleOf extracts pkt's 5-tuple, zero-padding IPv4 addresses into the
// 16-byte fields so IPv4 and IPv6 tuples hash over a uniform byte layout.
func fiveTupleOf(pkt *packet.Packet) FiveTuple {
	var t FiveTuple
	t.Protocol = pkt.Layers.Transport.Protocol
	t.SrcPort = pkt.SrcPort()
	t.DstPort = pkt.DstPort()
	copy(t.SrcIP[16-len(pkt.SrcIP()):], pkt.SrcIP())
	copy(t.DstIP[16-len(pkt.DstIP()):], pkt.DstIP())
	return t
}

// FlowHash computes a direction-symmetric hash over pkt's 5-tuple: two
// packets belonging to the same flow in either direction hash identically,
// which is required for session assembly to land both directions on the
// same worker (spec.md §4.5, invariant 8 in §8).
//
// original_source's rx.rs computes this with twox_hash::Xxh3Hash64; this
// uses github.com/cespare/xxhash/v2, the closest real Go-ecosystem
// non-cryptographic stream hash of the same xxHash family (see DESIGN.md).
func FlowHash(pkt *packet.Packet) uint64 {
	t := fiveTupleOf(pkt)

	srcIP, dstIP := t.SrcIP, t.DstIP
	srcPort, dstPort := t.SrcPort, t.DstPort

	// Symmetric ordering: the lesser (IP, port) endpoint, compared by IP
	// first and then by port, is written first, so swapping the two
	// directions of one flow yields the same bytes.
	if greaterTuple(srcIP, srcPort, dstIP, dstPort) {
		srcIP, dstIP = dstIP, srcIP
		srcPort, dstPort = dstPort, srcPort
	}

	var buf [37]byte
	copy(buf[0:16], srcIP[:])
	copy(buf[16:32], dstIP[:])
	buf[32] = byte(t.Protocol)
	binary.BigEndian.PutUint16(buf[33:35], srcPort)
	binary.BigEndian.PutUint16(buf[35:37], dstPort)
	return xxhash.Sum64(buf[:])
}

func greaterTuple(ip1 [16]byte, port1 uint16, ip2 [16]byte, port2 uint16) bool {
	for i := range ip1 {
		if ip1[i] != ip2[i] {
			return ip1[i] > ip2[i]
		}
	}
	return port1 > port2
}
