// Package packet defines the zero-copy-friendly packet record and the
// closed protocol enums the classification subsystem operates on.
package packet

// Protocol is the closed set of layer protocols the layer parser and
// classifiers recognize.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolNull
	ProtocolEthernet
	ProtocolVLAN
	ProtocolMPLS
	ProtocolPPPoE
	ProtocolPPP
	ProtocolIPv4
	ProtocolIPv6
	ProtocolGRE
	ProtocolTCP
	ProtocolUDP
	ProtocolSCTP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolNull:
		return "NULL"
	case ProtocolEthernet:
		return "ETHERNET"
	case ProtocolVLAN:
		return "VLAN"
	case ProtocolMPLS:
		return "MPLS"
	case ProtocolPPPoE:
		return "PPPOE"
	case ProtocolPPP:
		return "PPP"
	case ProtocolIPv4:
		return "IPV4"
	case ProtocolIPv6:
		return "IPV6"
	case ProtocolGRE:
		return "GRE"
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	case ProtocolSCTP:
		return "SCTP"
	default:
		return "UNKNOWN"
	}
}

// IsTransport reports whether p is one of the three transport protocols
// the port and DPI classifiers operate on.
func (p Protocol) IsTransport() bool {
	return p == ProtocolTCP || p == ProtocolUDP || p == ProtocolSCTP
}

// DpiProtocol is a bitflag subset of {TCP, UDP, SCTP} used to gate DPI
// rule matches by the packet's actual transport protocol. It is a plain
// small-integer bitset rather than a third-party bitflag library: the
// pack carries no dedicated bitflag type, and three named bits with
// bitwise ops need nothing a library would add over a typed uint8.
type DpiProtocol uint8

const (
	DpiProtocolTCP  DpiProtocol = 1 << 0
	DpiProtocolUDP  DpiProtocol = 1 << 1
	DpiProtocolSCTP DpiProtocol = 1 << 2

	DpiProtocolAll = DpiProtocolTCP | DpiProtocolUDP | DpiProtocolSCTP
)

// DpiProtocolFrom maps a transport Protocol to its DpiProtocol bit.
// Non-transport protocols map to DpiProtocolAll ("any transport"), since
// some signatures are meant to match raw payload regardless of the
// carrying transport.
func DpiProtocolFrom(p Protocol) DpiProtocol {
	switch p {
	case ProtocolTCP:
		return DpiProtocolTCP
	case ProtocolUDP:
		return DpiProtocolUDP
	case ProtocolSCTP:
		return DpiProtocolSCTP
	default:
		return DpiProtocolAll
	}
}

// Contains reports whether d includes the transport protocol p maps to.
func (d DpiProtocol) Contains(p Protocol) bool {
	return d&DpiProtocolFrom(p) != 0
}

// Tunnel records which tunnel encapsulations were seen while walking the
// layer chain. Encapsulation detection sets a bit here rather than
// replacing the outer layer's recorded protocol.
type Tunnel uint8

const (
	TunnelGRE Tunnel = 1 << iota
	TunnelMPLS
	TunnelPPPoE
	TunnelVLAN
)

func (t *Tunnel) Set(bit Tunnel)      { *t |= bit }
func (t Tunnel) Has(bit Tunnel) bool  { return t&bit != 0 }
