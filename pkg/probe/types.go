// Package probe holds the data model shared by probers, the scheduler, the
// aggregator and storage: per-probe responses, their tri-state status, and the
// five session result variants produced by a scan invocation.
package probe

import (
	"fmt"
	"strings"
)

// Status is the terminal outcome of a single probe attempt.
type Status string

const (
	StatusDone    Status = "Done"    // Reply received and valid
	StatusError   Status = "Error"   // Local send/receive failure or negative reply
	StatusTimeout Status = "Timeout" // No reply before the per-probe deadline
)

// NodeType tags the role of the node that answered a probe.
type NodeType string

const (
	NodeDestination  NodeType = "Destination"
	NodeIntermediate NodeType = "Intermediate"
)

// Protocol is the transport label carried by responses and sessions.
type Protocol string

const (
	ProtocolICMP Protocol = "ICMP"
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolARP  Protocol = "ARP"
	ProtocolDNS  Protocol = "DNS"
)

// ParseProtocol maps a user supplied protocol name to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "icmp", "icmpv4":
		return ProtocolICMP, nil
	case "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	case "arp":
		return ProtocolARP, nil
	case "dns":
		return ProtocolDNS, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", s)
	}
}

// CommandType discriminates the kind of session.
type CommandType string

const (
	CommandPortScan   CommandType = "PortScan"
	CommandHostScan   CommandType = "HostScan"
	CommandPing       CommandType = "Ping"
	CommandTraceroute CommandType = "Traceroute"
	CommandDomainScan CommandType = "DomainScan"
	CommandNeighbor   CommandType = "Neighbor"
)

// CommandTypes lists every session kind in a stable order.
func CommandTypes() []CommandType {
	return []CommandType{
		CommandPortScan,
		CommandHostScan,
		CommandPing,
		CommandTraceroute,
		CommandDomainScan,
		CommandNeighbor,
	}
}

// ScanType further discriminates port and host scans.
type ScanType string

const (
	ScanTCPSyn     ScanType = "TcpSynScan"
	ScanTCPConnect ScanType = "TcpConnectScan"
	ScanICMPPing   ScanType = "IcmpPingScan"
	ScanTCPPing    ScanType = "TcpPingScan"
	ScanUDPPing    ScanType = "UdpPingScan"
	ScanARP        ScanType = "ArpScan"
	ScanNone       ScanType = ""
)

// ParsePortScanType accepts "syn" or "connect" (and the full names).
func ParsePortScanType(s string) (ScanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "syn", "tcpsynscan":
		return ScanTCPSyn, nil
	case "connect", "tcpconnectscan":
		return ScanTCPConnect, nil
	default:
		return "", fmt.Errorf("unsupported port scan type %q", s)
	}
}

// HostScanTypeFor returns the host scan type that uses protocol p.
func HostScanTypeFor(p Protocol) (ScanType, error) {
	switch p {
	case ProtocolICMP:
		return ScanICMPPing, nil
	case ProtocolTCP:
		return ScanTCPPing, nil
	case ProtocolUDP:
		return ScanUDPPing, nil
	case ProtocolARP:
		return ScanARP, nil
	default:
		return "", fmt.Errorf("protocol %s cannot be used for host scans", p)
	}
}

// PortState is the state of a probed TCP/UDP port.
type PortState string

const (
	PortOpen     PortState = "open"
	PortClosed   PortState = "closed"
	PortFiltered PortState = "filtered"
)
