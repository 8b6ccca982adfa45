package ingress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gopcap "github.com/google/gopacket/pcap"

	"firestige.xyz/packetsentry/pkg/packet"
)

// OfflineSource reads one or more pcap/pcapng files to completion, then
// reports ErrClosed. Generalized from the teacher's internal/source/file
// (single-file only) to also accept a directory, walked non-recursively
// for .pcap/.pcapng files per spec.md §6.
type OfflineSource struct {
	files   []string
	fileIdx int
	handle  *gopcap.Handle

	stats Stats
}

// NewOfflineSourceFile opens a single pcap file.
func NewOfflineSourceFile(path string) (*OfflineSource, error) {
	if path == "" {
		return nil, fmt.Errorf("ingress: pcap file path is required")
	}
	return &OfflineSource{files: []string{path}}, nil
}

// NewOfflineSourceDir walks dir non-recursively for .pcap/.pcapng files,
// in sorted order, and reads them in sequence.
func NewOfflineSourceDir(dir string) (*OfflineSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingress: reading pcap directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".pcap") || strings.HasSuffix(name, ".pcapng") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("ingress: no .pcap/.pcapng files found in %s", dir)
	}
	return &OfflineSource{files: files}, nil
}

func (s *OfflineSource) openNext() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	if s.fileIdx >= len(s.files) {
		return ErrClosed
	}
	handle, err := gopcap.OpenOffline(s.files[s.fileIdx])
	if err != nil {
		return fmt.Errorf("ingress: opening pcap file %s: %w", s.files[s.fileIdx], err)
	}
	s.fileIdx++
	s.handle = handle
	return nil
}

func (s *OfflineSource) Next() ([]byte, time.Time, packet.Protocol, error) {
	if s.handle == nil {
		if err := s.openNext(); err != nil {
			return nil, time.Time{}, packet.ProtocolUnknown, err
		}
	}

	for {
		data, ci, err := s.handle.ReadPacketData()
		if err == nil {
			s.stats.RxPackets++
			return data, ci.Timestamp, linkTypeToProtocol(s.handle.LinkType()), nil
		}
		if !errors.Is(err, io.EOF) {
			return nil, time.Time{}, packet.ProtocolUnknown, fmt.Errorf("ingress: reading %s: %w", s.files[s.fileIdx-1], err)
		}
		// End of this file: advance to the next one, or signal closed.
		if openErr := s.openNext(); openErr != nil {
			return nil, time.Time{}, packet.ProtocolUnknown, openErr
		}
	}
}

func (s *OfflineSource) Stats() Stats {
	return s.stats
}

func (s *OfflineSource) Stop() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

func linkTypeToProtocol(lt gopcap.LinkType) packet.Protocol {
	switch lt {
	case gopcap.LinkTypeEthernet:
		return packet.ProtocolEthernet
	default:
		return packet.ProtocolEthernet
	}
}
