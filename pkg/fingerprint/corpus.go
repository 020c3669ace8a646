// Package fingerprint resolves observed TCP/IP signals (TCP window size, TCP
// option ordering, initial TTL, destination port) into operating system and
// service identities by matching them against reference corpora.
//
// The corpora themselves are owned by the storage layer; this package only
// defines the read-only Corpus contract and the ranking rules applied on top
// of it.
package fingerprint

import "context"

const (
	// GeneralPurpose is the device class admitted by approximate OS matching.
	GeneralPurpose = "general purpose"

	// WindowTolerance is the maximum window size distance accepted by
	// approximate OS matching.
	WindowTolerance = 1000

	// UnknownService is returned for ports without a service entry.
	UnknownService = "unknown"
)

// OSFingerprint is one reference row keyed by (window size, option pattern).
type OSFingerprint struct {
	CPE           string `json:"cpe" yaml:"cpe"`
	Name          string `json:"os_name" yaml:"os_name"`
	Vendor        string `json:"os_vendor" yaml:"os_vendor"`
	Family        string `json:"os_family" yaml:"os_family"`
	Generation    string `json:"os_generation" yaml:"os_generation"`
	DeviceType    string `json:"device_type" yaml:"device_type"`
	WindowSize    uint16 `json:"tcp_window_size" yaml:"tcp_window_size"`
	OptionPattern string `json:"tcp_option_pattern" yaml:"tcp_option_pattern"`
}

// OSTTL maps an initial TTL to an operating system family.
type OSTTL struct {
	Family      string `json:"os_family" yaml:"os_family"`
	Description string `json:"os_description" yaml:"os_description"`
	InitialTTL  uint8  `json:"initial_ttl" yaml:"initial_ttl"`
}

// Service describes the service conventionally bound to a TCP port.
type Service struct {
	Port        uint16 `json:"port" yaml:"port"`
	Name        string `json:"service_name" yaml:"service_name"`
	Description string `json:"service_description,omitempty" yaml:"service_description,omitempty"`
	WellKnown   bool   `json:"wellknown_flag" yaml:"wellknown_flag"`
	Default     bool   `json:"default_flag" yaml:"default_flag"`
}

// Corpus is the read-only reference data consulted by the Resolver.
// Implementations must be safe for concurrent use.
type Corpus interface {
	// LookupOSByTTL returns the entry whose initial TTL equals ttl exactly.
	LookupOSByTTL(ctx context.Context, ttl uint8) (OSTTL, bool, error)

	// LookupOSFingerprint returns rows matching window and pattern exactly.
	LookupOSFingerprint(ctx context.Context, window uint16, pattern string) ([]OSFingerprint, error)

	// LookupOSFingerprintApprox returns rows accepted by MatchesApprox,
	// ordered by generation descending.
	LookupOSFingerprintApprox(ctx context.Context, window uint16, pattern string) ([]OSFingerprint, error)

	// LookupService returns the service entry for port.
	LookupService(ctx context.Context, port uint16) (Service, bool, error)

	// DefaultServicePorts returns the ports scanned when none are given.
	DefaultServicePorts(ctx context.Context) ([]uint16, error)

	// WellKnownServicePorts returns the well-known port subset.
	WellKnownServicePorts(ctx context.Context) ([]uint16, error)
}
