// Package config loads packetsentry's configuration surface (spec.md
// §6) from a YAML file with an environment-variable overlay, following
// the teacher's internal/otus/config loader pattern.
package config

import (
	"fmt"

	"firestige.xyz/packetsentry/internal/log"
)

// Config is packetsentry's full configuration surface (spec.md §6).
type Config struct {
	// Interfaces lists live capture interfaces; one rx thread is started
	// per entry. Mutually exclusive with PcapFile/PcapDir.
	Interfaces []string `mapstructure:"interfaces"`

	// PcapFile and PcapDir select offline mode. PcapDir is walked
	// non-recursively for .pcap/.pcapng files.
	PcapFile string `mapstructure:"pcap_file"`
	PcapDir  string `mapstructure:"pcap_dir"`

	// SnapLen bounds how many bytes of each packet live capture keeps.
	SnapLen int `mapstructure:"snap_len"`
	// BufferSizeMB sizes the live capture ring buffer.
	BufferSizeMB int `mapstructure:"buffer_size_mb"`
	// BPFFilter is an optional BPF expression applied to live capture.
	BPFFilter string `mapstructure:"bpf_filter"`
	// ReadTimeoutMillis bounds how long a live Capture.Next blocks before
	// returning ErrTimeout.
	ReadTimeoutMillis int `mapstructure:"read_timeout_millis"`

	// RxStatLogInterval is the number of received packets between stats
	// log lines.
	RxStatLogInterval uint64 `mapstructure:"rx_stat_log_interval"`
	// ClassifierWorkers is the size of the classification worker pool.
	ClassifierWorkers uint32 `mapstructure:"classifier_workers"`
	// ChannelCapacity is the bound on each rx→classify fanout channel.
	ChannelCapacity uint32 `mapstructure:"channel_capacity"`

	// ParserLibraries lists paths to dynamically loaded parser .so
	// files; StaticParsers names parsers statically registered via
	// pkg/parser.Register (e.g. the bundled pkg/parser/examples).
	ParserLibraries []string `mapstructure:"parser_libraries"`
	StaticParsers   []string `mapstructure:"static_parsers"`

	Logger *log.LoggerConfig `mapstructure:"logger"`
}

// Defaults returns a Config matching the teacher's own default shape:
// console logging at info level, a single classify worker, and queue
// sizing conservative enough to run on a laptop.
func Defaults() *Config {
	return &Config{
		SnapLen:           65536,
		BufferSizeMB:      8,
		ReadTimeoutMillis: 100,
		RxStatLogInterval: 100000,
		ClassifierWorkers: 1,
		ChannelCapacity:   4096,
		Logger: &log.LoggerConfig{
			Level:    "info",
			Pattern:  "%time [%level] %caller: %msg%n",
			Time:     "2006-01-02 15:04:05",
			Appender: "console",
		},
	}
}

// Validate checks the cross-field invariants the loader cannot express
// via mapstructure tags alone: exactly one capture source mode, and
// non-zero worker/queue sizing.
func (c *Config) Validate() error {
	sources := 0
	if len(c.Interfaces) > 0 {
		sources++
	}
	if c.PcapFile != "" {
		sources++
	}
	if c.PcapDir != "" {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("config: exactly one of interfaces, pcap_file, or pcap_dir must be set")
	}
	if c.ClassifierWorkers == 0 {
		return fmt.Errorf("config: classifier_workers must be at least 1")
	}
	if c.ChannelCapacity == 0 {
		return fmt.Errorf("config: channel_capacity must be at least 1")
	}
	return nil
}
