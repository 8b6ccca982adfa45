package layer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/packetsentry/pkg/packet"
)

func ethernetIPv4TCP(dstPort uint16) []byte {
	raw := make([]byte, 14+20+20)
	binary.BigEndian.PutUint16(raw[12:14], 0x0800) // IPv4
	raw[14] = 0x45                                  // version 4, IHL 5
	raw[14+9] = 6                                    // TCP
	binary.BigEndian.PutUint16(raw[14+20+2:14+20+4], dstPort)
	raw[14+20+12] = 5 << 4
	return raw
}

func TestParsePacketEthernetIPv4TCP(t *testing.T) {
	pkt := &packet.Packet{Raw: ethernetIPv4TCP(443)}
	require.NoError(t, ParsePacket(pkt, packet.ProtocolEthernet))

	assert.Equal(t, packet.ProtocolTCP, pkt.Layers.Transport.Protocol)
	assert.Equal(t, uint16(34), pkt.Layers.Transport.Offset)
	assert.Equal(t, packet.ProtocolIPv4, pkt.Layers.Network.Protocol)
	assert.Equal(t, uint16(443), pkt.DstPort())
}

func TestParsePacketUnknownEtherTypeS6(t *testing.T) {
	raw := make([]byte, 14)
	binary.BigEndian.PutUint16(raw[12:14], 0x0801) // unassigned EtherType

	pkt := &packet.Packet{Raw: raw}
	err := ParsePacket(pkt, packet.ProtocolEthernet)
	assert.ErrorIs(t, err, packet.ErrUnsupportedProtocol)
}

func TestParsePacketVLANTagged(t *testing.T) {
	raw := make([]byte, 14+4+20+8)
	binary.BigEndian.PutUint16(raw[12:14], 0x8100) // 802.1Q
	binary.BigEndian.PutUint16(raw[16:18], 0x0800) // inner EtherType IPv4
	raw[18] = 0x45
	raw[18+9] = 17 // UDP

	pkt := &packet.Packet{Raw: raw}
	require.NoError(t, ParsePacket(pkt, packet.ProtocolEthernet))

	assert.Equal(t, packet.ProtocolUDP, pkt.Layers.Transport.Protocol)
	assert.True(t, pkt.Tunnel.Has(packet.TunnelVLAN))
}

// ethernetGREIPv4TCP builds Ethernet -> outer IPv4(proto=GRE) -> GRE
// (minimal 4-byte header, no optional fields) -> inner IPv4 -> TCP, to
// exercise the GRE header skip.
func ethernetGREIPv4TCP(dstPort uint16) []byte {
	raw := make([]byte, 14+20+4+20+20)

	binary.BigEndian.PutUint16(raw[12:14], 0x0800) // outer EtherType IPv4
	raw[14] = 0x45                                  // outer IPv4, IHL 5
	raw[14+9] = 47                                   // GRE

	greOffset := 14 + 20
	raw[greOffset] = 0x00                                                   // flags: no checksum/key/seq
	binary.BigEndian.PutUint16(raw[greOffset+2:greOffset+4], 0x0800)        // GRE protocol type: IPv4

	innerOffset := greOffset + 4
	raw[innerOffset] = 0x45    // inner IPv4, IHL 5
	raw[innerOffset+9] = 6     // TCP

	tcpOffset := innerOffset + 20
	binary.BigEndian.PutUint16(raw[tcpOffset+2:tcpOffset+4], dstPort)
	raw[tcpOffset+12] = 5 << 4

	return raw
}

func TestParsePacketGRETunneledIPv4TCP(t *testing.T) {
	pkt := &packet.Packet{Raw: ethernetGREIPv4TCP(3389)}
	require.NoError(t, ParsePacket(pkt, packet.ProtocolEthernet))

	assert.True(t, pkt.Tunnel.Has(packet.TunnelGRE), "GRE tunnel bit must be set")
	assert.Equal(t, packet.ProtocolIPv4, pkt.Layers.Network.Protocol, "Network layer must be the inner IPv4, not a GRE-header misread")
	assert.Equal(t, uint16(38), pkt.Layers.Network.Offset, "inner IPv4 starts right after the 4-byte GRE header")
	assert.Equal(t, packet.ProtocolTCP, pkt.Layers.Transport.Protocol)
	assert.Equal(t, uint16(58), pkt.Layers.Transport.Offset)
	assert.Equal(t, uint16(3389), pkt.DstPort())
}

func TestParsePacketGREWithOptionalFieldsSkipsThem(t *testing.T) {
	// Outer IPv4 -> GRE with checksum (C bit) and key (K bit) present ->
	// inner IPv4 -> TCP. The GRE header here is 4 + 4 (checksum+reserved1)
	// + 4 (key) = 12 bytes.
	raw := make([]byte, 14+20+12+20+20)

	binary.BigEndian.PutUint16(raw[12:14], 0x0800)
	raw[14] = 0x45
	raw[14+9] = 47

	greOffset := 14 + 20
	raw[greOffset] = 0x80 | 0x20 // C and K bits set
	binary.BigEndian.PutUint16(raw[greOffset+2:greOffset+4], 0x0800)

	innerOffset := greOffset + 12
	raw[innerOffset] = 0x45
	raw[innerOffset+9] = 6

	tcpOffset := innerOffset + 20
	binary.BigEndian.PutUint16(raw[tcpOffset+2:tcpOffset+4], 22)
	raw[tcpOffset+12] = 5 << 4

	pkt := &packet.Packet{Raw: raw}
	require.NoError(t, ParsePacket(pkt, packet.ProtocolEthernet))

	assert.Equal(t, packet.ProtocolTCP, pkt.Layers.Transport.Protocol)
	assert.Equal(t, uint16(tcpOffset), pkt.Layers.Transport.Offset)
	assert.Equal(t, uint16(22), pkt.DstPort())
}

func TestParsePacketTruncated(t *testing.T) {
	pkt := &packet.Packet{Raw: []byte{0, 1, 2}}
	err := ParsePacket(pkt, packet.ProtocolEthernet)
	assert.ErrorIs(t, err, packet.ErrTruncated)
}
