package probe

import (
	"net/netip"
	"strings"
	"time"
)

// Target is one resolved destination of a session.
type Target struct {
	Addr netip.Addr // Resolved address probed on the wire
	Host string     // Name the user supplied, empty when an address was given
}

// String returns the host name when known, the address otherwise.
func (t Target) String() string {
	if t.Host != "" {
		return t.Host
	}
	return t.Addr.String()
}

// Signal is the fingerprint tuple observed in a single TCP reply.
// It only lives in memory; it is never serialized with a result.
type Signal struct {
	Window  uint16 // TCP window size
	Options string // Ordered TCP option kinds, e.g. "MSS,NOP,WS"
	TTL     uint8  // TTL of the reply as received
}

// Response is one observed reply (or the lack of one) for a single probe.
// Values are immutable once handed to the scheduler.
type Response struct {
	Seq       uint32        `json:"seq" yaml:"seq"`
	IP        string        `json:"ip_addr" yaml:"ip_addr"`
	HostName  string        `json:"host_name" yaml:"host_name"`
	Port      *uint16       `json:"port_number,omitempty" yaml:"port_number,omitempty"`
	TTL       uint8         `json:"ttl" yaml:"ttl"`
	Hop       uint8         `json:"hop" yaml:"hop"`
	RTT       time.Duration `json:"rtt" yaml:"rtt"`
	Status    Status        `json:"status" yaml:"status"`
	Protocol  Protocol      `json:"protocol" yaml:"protocol"`
	NodeType  NodeType      `json:"node_type" yaml:"node_type"`
	PortState PortState     `json:"port_state,omitempty" yaml:"port_state,omitempty"`
	MAC       string        `json:"mac_addr,omitempty" yaml:"mac_addr,omitempty"`
	Addrs     []string      `json:"addrs,omitempty" yaml:"addrs,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`

	Signal *Signal `json:"-" yaml:"-"`
}

// PortNumber returns the probed port, or 0 when the probe had none.
func (r Response) PortNumber() uint16 {
	if r.Port == nil {
		return 0
	}
	return *r.Port
}

// PortPtr returns a pointer to a copy of p, or nil for 0.
func PortPtr(p uint16) *uint16 {
	if p == 0 {
		return nil
	}
	return &p
}

// initialTTLs are the initial TTL values used by common IP stacks, ascending.
var initialTTLs = []uint8{32, 64, 128, 255}

// GuessInitialTTL returns the smallest common initial TTL that is not below
// the observed TTL.
func GuessInitialTTL(observed uint8) uint8 {
	for _, ttl := range initialTTLs {
		if observed <= ttl {
			return ttl
		}
	}
	return 255
}

// HopsFromTTL estimates the hop count of a reply from its received TTL.
func HopsFromTTL(observed uint8) uint8 {
	if observed == 0 {
		return 0
	}
	return GuessInitialTTL(observed) - observed
}

// NormalizeHost lowercases a host name and strips the trailing root dot.
func NormalizeHost(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}
