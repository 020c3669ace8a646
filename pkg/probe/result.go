package probe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewProbeID returns a fresh identifier for one scan invocation.
func NewProbeID() string {
	return uuid.NewString()
}

// Session is the header shared by every result variant.
type Session struct {
	ProbeID     string        `json:"probe_id" yaml:"probe_id"`
	CommandType CommandType   `json:"command_type" yaml:"command_type"`
	ScanType    ScanType      `json:"scan_type,omitempty" yaml:"scan_type,omitempty"`
	Protocol    Protocol      `json:"protocol" yaml:"protocol"`
	ProbeStatus Status        `json:"probe_status" yaml:"probe_status"`
	Target      string        `json:"target" yaml:"target"`
	StartTime   time.Time     `json:"start_time" yaml:"start_time"`
	EndTime     time.Time     `json:"end_time" yaml:"end_time"`
	ElapsedTime time.Duration `json:"elapsed_time" yaml:"elapsed_time"`
	IssuedAt    time.Time     `json:"issued_at" yaml:"issued_at"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewSession starts a session header stamped with the current time.
func NewSession(cmd CommandType, scan ScanType, proto Protocol, target string) Session {
	now := time.Now()
	return Session{
		ProbeID:     NewProbeID(),
		CommandType: cmd,
		ScanType:    scan,
		Protocol:    proto,
		ProbeStatus: StatusTimeout,
		Target:      target,
		StartTime:   now,
		IssuedAt:    now,
	}
}

// Result is implemented by the five session result variants.
type Result interface {
	Meta() Session
}

// Port is one port observed on a node.
type Port struct {
	Number  uint16    `json:"port" yaml:"port"`
	State   PortState `json:"state" yaml:"state"`
	Service string    `json:"service,omitempty" yaml:"service,omitempty"`
}

// OSGuess is the operating system identity attached to a node.
type OSGuess struct {
	Family     string  `json:"os_family" yaml:"os_family"`
	Name       string  `json:"os_name,omitempty" yaml:"os_name,omitempty"`
	Vendor     string  `json:"os_vendor,omitempty" yaml:"os_vendor,omitempty"`
	Generation string  `json:"os_generation,omitempty" yaml:"os_generation,omitempty"`
	CPE        string  `json:"cpe,omitempty" yaml:"cpe,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Technique  string  `json:"technique" yaml:"technique"` // exact, approximate or ttl
}

// Node is a per-target record of port and host scans.
type Node struct {
	IP       string   `json:"ip_addr" yaml:"ip_addr"`
	HostName string   `json:"host_name" yaml:"host_name"`
	MAC      string   `json:"mac_addr,omitempty" yaml:"mac_addr,omitempty"`
	TTL      uint8    `json:"ttl" yaml:"ttl"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Ports    []Port   `json:"ports,omitempty" yaml:"ports,omitempty"`
	OS       *OSGuess `json:"os,omitempty" yaml:"os,omitempty"`

	Signal *Signal `json:"-" yaml:"-"`
}

// OpenPorts returns the ports of n in the open state.
func (n Node) OpenPorts() []Port {
	var open []Port
	for _, p := range n.Ports {
		if p.State == PortOpen {
			open = append(open, p)
		}
	}
	return open
}

// PingStat summarizes a ping or neighbor session.
type PingStat struct {
	Responses   []Response    `json:"responses" yaml:"responses"`
	ProbeTime   time.Duration `json:"probe_time" yaml:"probe_time"`
	Transmitted int           `json:"transmitted_count" yaml:"transmitted_count"`
	Received    int           `json:"received_count" yaml:"received_count"`
	Min         time.Duration `json:"min" yaml:"min"`
	Avg         time.Duration `json:"avg" yaml:"avg"`
	Max         time.Duration `json:"max" yaml:"max"`
}

// Domain is one discovered name with its addresses.
type Domain struct {
	Name string   `json:"domain_name" yaml:"domain_name"`
	IPs  []string `json:"ips" yaml:"ips"`
}

type PortScanResult struct {
	Session `yaml:",inline"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
}

type HostScanResult struct {
	Session `yaml:",inline"`
	Nodes   []Node `json:"nodes" yaml:"nodes"`
}

type PingResult struct {
	Session `yaml:",inline"`
	Stat    PingStat `json:"stat" yaml:"stat"`
}

type TracerouteResult struct {
	Session `yaml:",inline"`
	Nodes   []Response `json:"nodes" yaml:"nodes"`
}

type DomainScanResult struct {
	Session    `yaml:",inline"`
	BaseDomain string   `json:"base_domain" yaml:"base_domain"`
	Domains    []Domain `json:"domains" yaml:"domains"`
}

func (r *PortScanResult) Meta() Session   { return r.Session }
func (r *HostScanResult) Meta() Session   { return r.Session }
func (r *PingResult) Meta() Session       { return r.Session }
func (r *TracerouteResult) Meta() Session { return r.Session }
func (r *DomainScanResult) Meta() Session { return r.Session }

// DecodeResult unmarshals a JSON encoded result into its concrete variant,
// selected by the command_type field.
func DecodeResult(data []byte) (Result, error) {
	var head struct {
		CommandType CommandType `json:"command_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode result header: %w", err)
	}

	var out Result
	switch head.CommandType {
	case CommandPortScan:
		out = &PortScanResult{}
	case CommandHostScan:
		out = &HostScanResult{}
	case CommandPing, CommandNeighbor:
		out = &PingResult{}
	case CommandTraceroute:
		out = &TracerouteResult{}
	case CommandDomainScan:
		out = &DomainScanResult{}
	default:
		return nil, fmt.Errorf("unknown command type %q", head.CommandType)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", head.CommandType, err)
	}
	return out, nil
}
