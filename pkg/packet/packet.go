package packet

import (
	"encoding/binary"
	"errors"
	"net"
	"time"
)

// ErrUnsupportedProtocol is raised by the layer parser when it encounters
// an EtherType or next-header value it does not recognize. It is logged
// and non-fatal: the packet is dropped from further processing but the
// rx worker continues.
var ErrUnsupportedProtocol = errors.New("packet: unsupported protocol")

// ErrTruncated is raised when a layer's declared header does not fit in
// the remaining captured bytes.
var ErrTruncated = errors.New("packet: truncated header")

// Layer records one parsed layer's starting offset into Packet.Raw and
// its recognized protocol.
type Layer struct {
	Offset   uint16
	Protocol Protocol
}

// Layers holds the four layer slots the layer parser fills in as it walks
// the protocol chain. Not every slot is necessarily populated — a packet
// whose layer parse stops early (tunnel, unsupported protocol) may leave
// Transport and Application at their zero value (Protocol: ProtocolUnknown).
type Layers struct {
	Datalink    Layer
	Network     Layer
	Transport   Layer
	Application Layer
}

// Packet is the zero-copy-friendly record the ingress pipeline builds
// once per captured frame and mutates only during layer-parse and
// classify. Raw is never copied or mutated after capture; Rules is
// append-only during a classify pass and is Reset between packets when
// the caller pools Packet values.
type Packet struct {
	Raw       []byte
	Timestamp time.Time
	CapLen    int
	WireLen   int

	Layers Layers
	Tunnel Tunnel

	Rules RuleSet
}

// Reset clears per-packet mutable state so a Packet value can be reused
// from a pool for the next captured frame.
func (p *Packet) Reset() {
	p.Raw = nil
	p.Timestamp = time.Time{}
	p.CapLen = 0
	p.WireLen = 0
	p.Layers = Layers{}
	p.Tunnel = 0
	p.Rules.Reset()
}

// TransportHeaderLen returns the fixed or minimum header length for the
// packet's transport protocol, used to compute Payload's start.
func (p *Packet) TransportHeaderLen() int {
	switch p.Layers.Transport.Protocol {
	case ProtocolUDP:
		return 8
	case ProtocolTCP:
		return p.tcpHeaderLen()
	case ProtocolSCTP:
		return 12
	default:
		return 0
	}
}

// tcpHeaderLen reads the data-offset nibble of a TCP header to compute its
// actual (variable) length; defaults to the minimum 20 bytes if the
// header is truncated.
func (p *Packet) tcpHeaderLen() int {
	off := int(p.Layers.Transport.Offset)
	if off+13 >= len(p.Raw) {
		return 20
	}
	dataOffset := int(p.Raw[off+12] >> 4)
	if dataOffset < 5 {
		dataOffset = 5
	}
	return dataOffset * 4
}

// Payload returns the transport payload, well-defined whenever
// Layers.Transport.Protocol is one of TCP/UDP/SCTP (spec.md §3 invariant).
// Returns nil for non-transport packets or when the header does not fit.
func (p *Packet) Payload() []byte {
	if !p.Layers.Transport.Protocol.IsTransport() {
		return nil
	}
	start := int(p.Layers.Transport.Offset) + p.TransportHeaderLen()
	if start > len(p.Raw) {
		return nil
	}
	return p.Raw[start:]
}

// SrcPort and DstPort extract the first two 16-bit fields of the
// transport header, which is the source/destination port layout shared
// by TCP, UDP, and SCTP.
func (p *Packet) SrcPort() uint16 {
	return p.transportPort(0)
}

func (p *Packet) DstPort() uint16 {
	return p.transportPort(2)
}

func (p *Packet) transportPort(byteOffset int) uint16 {
	off := int(p.Layers.Transport.Offset) + byteOffset
	if off+2 > len(p.Raw) {
		return 0
	}
	return binary.BigEndian.Uint16(p.Raw[off : off+2])
}

// SrcIP and DstIP extract the network-layer source/destination address.
// Returns nil when the network layer was not recorded as IPv4 or IPv6.
func (p *Packet) SrcIP() net.IP {
	return p.networkIP(12, 8, 16)
}

func (p *Packet) DstIP() net.IP {
	return p.networkIP(16, 24, 16)
}

func (p *Packet) networkIP(v4Offset, v6Offset, v6Len int) net.IP {
	base := int(p.Layers.Network.Offset)
	switch p.Layers.Network.Protocol {
	case ProtocolIPv4:
		if base+v4Offset+4 > len(p.Raw) {
			return nil
		}
		return net.IP(p.Raw[base+v4Offset : base+v4Offset+4])
	case ProtocolIPv6:
		if base+v6Offset+v6Len > len(p.Raw) {
			return nil
		}
		return net.IP(p.Raw[base+v6Offset : base+v6Offset+v6Len])
	default:
		return nil
	}
}
