// Package layer implements the link/network/transport layer parser
// (spec.md §4.4): a chain of "simple parsers," one per protocol family,
// each walking raw[offset:] to find the next layer's protocol and offset.
package layer

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"

	"firestige.xyz/packetsentry/pkg/packet"
)

// simpleParser has the signature spec.md §4.4 calls for:
// parse(buf, offset) -> (next_layer | None). It returns the next
// protocol to hand control to, the offset that protocol's header starts
// at, any tunnel bit it set, and an error — ErrUnsupportedProtocol or
// ErrTruncated on failure.
type simpleParser func(raw []byte, offset int) (next packet.Protocol, nextOffset int, tunnel packet.Tunnel, err error)

// parsers maps a Protocol to the simpleParser that decodes it. Only
// protocols that can appear as a non-terminal layer need an entry —
// TCP/UDP/SCTP terminate the walk.
var parsers = map[packet.Protocol]simpleParser{
	packet.ProtocolEthernet: parseEthernet,
	packet.ProtocolVLAN:     parseVLAN,
	packet.ProtocolMPLS:     parseMPLS,
	packet.ProtocolPPPoE:    parsePPPoE,
	packet.ProtocolPPP:      parsePPP,
	packet.ProtocolIPv4:     parseIPv4,
	packet.ProtocolIPv6:     parseIPv6,
	packet.ProtocolGRE:      parseGRE,
}

// ParsePacket walks the layer chain starting at linkType, filling in
// pkt.Layers (and pkt.Tunnel for any encapsulation seen along the way).
// The walk stops once the transport layer (TCP/UDP/SCTP) is reached, or
// returns ErrUnsupportedProtocol/ErrTruncated without error to the
// caller's process — the caller is expected to log and drop the packet,
// per spec.md §4.4 ("logged but non-fatal").
func ParsePacket(pkt *packet.Packet, linkType packet.Protocol) error {
	current := linkType
	offset := 0

	pkt.Layers.Datalink = packet.Layer{Offset: 0, Protocol: linkType}

	for {
		parse, ok := parsers[current]
		if !ok {
			return packet.ErrUnsupportedProtocol
		}

		next, nextOffset, tunnelBit, err := parse(pkt.Raw, offset)
		if err != nil {
			return err
		}
		if tunnelBit != 0 {
			pkt.Tunnel.Set(tunnelBit)
		}

		recordLayer(pkt, current, next, nextOffset)

		if next.IsTransport() {
			pkt.Layers.Transport = packet.Layer{Offset: uint16(nextOffset), Protocol: next}
			return nil
		}

		current = next
		offset = nextOffset
	}
}

// recordLayer files the just-decoded "current" protocol's successor into
// the network-layer slot once we've left the datalink family, so that
// Layers.Network ends up holding whichever of IPv4/IPv6 terminated the
// network portion of the walk (VLAN/MPLS/PPPoE are tunnel/shim layers,
// not recorded in Layers.Network themselves).
func recordLayer(pkt *packet.Packet, current, next packet.Protocol, nextOffset int) {
	switch next {
	case packet.ProtocolIPv4, packet.ProtocolIPv6:
		pkt.Layers.Network = packet.Layer{Offset: uint16(nextOffset), Protocol: next}
	}
}

const ethernetHeaderLen = 14

func parseEthernet(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+ethernetHeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	etherType := binary.BigEndian.Uint16(raw[offset+12 : offset+14])
	next, tunnel, ok := fromEtherType(layers.EthernetType(etherType))
	if !ok {
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
	return next, offset + ethernetHeaderLen, tunnel, nil
}

// fromEtherType maps an EtherType to the next layer protocol and any
// tunnel bit it represents. Grounded on original_source's vlan.rs
// EtherType switch, generalized to MPLS/PPPoE/PPP in addition to VLAN.
func fromEtherType(et layers.EthernetType) (packet.Protocol, packet.Tunnel, bool) {
	switch et {
	case layers.EthernetTypeIPv4:
		return packet.ProtocolIPv4, 0, true
	case layers.EthernetTypeIPv6:
		return packet.ProtocolIPv6, 0, true
	case layers.EthernetTypeDot1Q, layers.EthernetTypeQinQ:
		return packet.ProtocolVLAN, packet.TunnelVLAN, true
	case layers.EthernetTypeMPLSUnicast, layers.EthernetTypeMPLSMulticast:
		return packet.ProtocolMPLS, packet.TunnelMPLS, true
	case layers.EthernetTypePPPoEDiscovery, layers.EthernetTypePPPoESession:
		return packet.ProtocolPPPoE, packet.TunnelPPPoE, true
	case layers.EthernetTypePPP:
		return packet.ProtocolPPP, 0, true
	default:
		return packet.ProtocolUnknown, 0, false
	}
}

const vlanHeaderLen = 4

func parseVLAN(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+vlanHeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	etherType := binary.BigEndian.Uint16(raw[offset+2 : offset+4])
	next, tunnel, ok := fromEtherType(layers.EthernetType(etherType))
	if !ok {
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
	return next, offset + vlanHeaderLen, tunnel | packet.TunnelVLAN, nil
}

const mplsHeaderLen = 4

// parseMPLS consumes one MPLS label stack entry per call and hands control
// back to itself until the bottom-of-stack bit is set, so a label stack of
// any depth is walked. The layer after the bottom entry is always taken to
// be IPv4; IPv6 or other payloads under MPLS are not detected.
func parseMPLS(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+mplsHeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	label := binary.BigEndian.Uint32(raw[offset : offset+4])
	bottomOfStack := label&0x100 != 0
	next := offset + mplsHeaderLen
	if !bottomOfStack {
		return packet.ProtocolMPLS, next, packet.TunnelMPLS, nil
	}
	return packet.ProtocolIPv4, next, packet.TunnelMPLS, nil
}

const pppoeHeaderLen = 6

func parsePPPoE(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+pppoeHeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	return packet.ProtocolPPP, offset + pppoeHeaderLen, packet.TunnelPPPoE, nil
}

// pppIPv4, pppIPv6 are the PPP protocol field values carrying IP traffic.
const (
	pppIPv4 = 0x0021
	pppIPv6 = 0x0057
)

func parsePPP(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+2 > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	switch binary.BigEndian.Uint16(raw[offset : offset+2]) {
	case pppIPv4:
		return packet.ProtocolIPv4, offset + 2, 0, nil
	case pppIPv6:
		return packet.ProtocolIPv6, offset + 2, 0, nil
	default:
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
}

func parseIPv4(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+20 > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	ihl := int(raw[offset]&0x0f) * 4
	if ihl < 20 || offset+ihl > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	next, tunnel, ok := fromIPProtocol(layers.IPProtocol(raw[offset+9]))
	if !ok {
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
	return next, offset + ihl, tunnel, nil
}

const ipv6HeaderLen = 40

func parseIPv6(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+ipv6HeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	next, tunnel, ok := fromIPProtocol(layers.IPProtocol(raw[offset+6]))
	if !ok {
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
	return next, offset + ipv6HeaderLen, tunnel, nil
}

// greMinHeaderLen is the fixed flags/version + protocol-type prefix every
// GRE header carries; the checksum/key/sequence-number fields beyond it
// are optional, signaled by flag bits in the first header byte (RFC 2784,
// RFC 2890).
const greMinHeaderLen = 4

const (
	greFlagChecksumOrRouting = 0x80 | 0x40 // C and the deprecated R bit share one Checksum+Reserved1 word
	greFlagKey               = 0x20
	greFlagSeq               = 0x10
)

// parseGRE skips the GRE encapsulation header — 4 bytes of flags/version
// and protocol type, plus whichever of the optional checksum, key, and
// sequence-number words the flags byte declares present — before handing
// control to the inner protocol named by the GRE protocol-type field
// (the same EtherType value space as parseEthernet/parseVLAN use).
// Without this, the walk would reinterpret GRE header bytes as the start
// of the next layer's header.
func parseGRE(raw []byte, offset int) (packet.Protocol, int, packet.Tunnel, error) {
	if offset+greMinHeaderLen > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}
	flags := raw[offset]
	protoType := binary.BigEndian.Uint16(raw[offset+2 : offset+4])

	next := offset + greMinHeaderLen
	if flags&greFlagChecksumOrRouting != 0 {
		next += 4
	}
	if flags&greFlagKey != 0 {
		next += 4
	}
	if flags&greFlagSeq != 0 {
		next += 4
	}
	if next > len(raw) {
		return packet.ProtocolUnknown, 0, 0, packet.ErrTruncated
	}

	inner, _, ok := fromEtherType(layers.EthernetType(protoType))
	if !ok {
		return packet.ProtocolUnknown, 0, 0, packet.ErrUnsupportedProtocol
	}
	return inner, next, packet.TunnelGRE, nil
}

// fromIPProtocol maps an IP next-header value to the transport protocol
// or a further tunnel layer. ICMP and other unrecognized values are
// UnsupportedProtocol — logged non-fatally by the caller.
func fromIPProtocol(p layers.IPProtocol) (packet.Protocol, packet.Tunnel, bool) {
	switch p {
	case layers.IPProtocolTCP:
		return packet.ProtocolTCP, 0, true
	case layers.IPProtocolUDP:
		return packet.ProtocolUDP, 0, true
	case layers.IPProtocolSCTP:
		return packet.ProtocolSCTP, 0, true
	case layers.IPProtocolGRE:
		return packet.ProtocolGRE, packet.TunnelGRE, true
	default:
		return packet.ProtocolUnknown, 0, false
	}
}
