// Package ingress implements the capture source abstraction and the rx
// worker loop that ties capture, layer parsing, flow-hash fan-out, and
// classification together (spec.md §4.5, §5, §6).
package ingress

import (
	"errors"
	"time"

	"firestige.xyz/packetsentry/pkg/packet"
)

// ErrTimeout is returned by Capture.Next when no packet arrived within
// the source's configured read timeout; the rx worker treats this as
// recoverable — back off briefly and retry.
var ErrTimeout = errors.New("ingress: capture read timeout")

// ErrClosed is returned once an offline source has exhausted every file
// and there is nothing left to read.
var ErrClosed = errors.New("ingress: capture source closed")

// Stats reports a capture source's packet counters.
type Stats struct {
	RxPackets uint64
	Dropped   uint64
	IfDropped uint64
}

// Capture abstracts over a live network interface or an offline pcap
// file/directory reader. Next blocks with a short timeout; Stop releases
// the underlying handle and must be safe to call after an error.
type Capture interface {
	// Next returns the next captured frame's bytes, its capture
	// timestamp, and the link type to hand to the layer parser. Returns
	// ErrTimeout or ErrClosed as sentinel errors; any other error is a
	// fatal capture error that terminates this source's rx thread.
	Next() (raw []byte, ts time.Time, linkType packet.Protocol, err error)
	Stats() Stats
	Stop() error
}
