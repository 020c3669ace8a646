package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Interface is a summary of one local network interface.
type Interface struct {
	Index    int      `json:"index" yaml:"index"`
	Name     string   `json:"name" yaml:"name"`
	MAC      string   `json:"mac_addr,omitempty" yaml:"mac_addr,omitempty"`
	MTU      int      `json:"mtu" yaml:"mtu"`
	Up       bool     `json:"up" yaml:"up"`
	Loopback bool     `json:"loopback" yaml:"loopback"`
	Addrs    []string `json:"addrs" yaml:"addrs"`
}

// IPv4 returns the first IPv4 address of the interface.
func (i Interface) IPv4() (netip.Addr, bool) {
	for _, s := range i.Addrs {
		p, err := netip.ParsePrefix(s)
		if err == nil && p.Addr().Is4() {
			return p.Addr(), true
		}
	}
	return netip.Addr{}, false
}

// ErrNoInterface is returned when no usable interface is found.
var ErrNoInterface = errors.New("no usable network interface")

// Interfaces lists the local interfaces.
func Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifi := range ifaces {
		out = append(out, summarize(ifi))
	}
	return out, nil
}

func summarize(ifi net.Interface) Interface {
	i := Interface{
		Index:    ifi.Index,
		Name:     ifi.Name,
		MTU:      ifi.MTU,
		Up:       ifi.Flags&net.FlagUp != 0,
		Loopback: ifi.Flags&net.FlagLoopback != 0,
		Addrs:    []string{},
	}
	if len(ifi.HardwareAddr) > 0 {
		i.MAC = ifi.HardwareAddr.String()
	}
	if addrs, err := ifi.Addrs(); err == nil {
		for _, a := range addrs {
			i.Addrs = append(i.Addrs, a.String())
		}
	}
	return i
}

// InterfaceByName returns the named interface, or the default interface
// when name is empty.
func InterfaceByName(name string) (Interface, error) {
	if name == "" {
		return DefaultInterface()
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Interface{}, fmt.Errorf("%w: %s: %v", ErrNoInterface, name, err)
	}
	return summarize(*ifi), nil
}

// DefaultInterface picks the first interface that is up, not loopback and
// carries an IPv4 address.
func DefaultInterface() (Interface, error) {
	all, err := Interfaces()
	if err != nil {
		return Interface{}, err
	}
	for _, i := range all {
		if !i.Up || i.Loopback {
			continue
		}
		if _, ok := i.IPv4(); ok {
			return i, nil
		}
	}
	return Interface{}, ErrNoInterface
}

// SourceAddrFor returns the local address the kernel would use to reach dst.
// No packet is sent.
func SourceAddrFor(dst netip.Addr) (netip.Addr, error) {
	conn, err := net.Dial("udp", netip.AddrPortFrom(dst, 9).String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("route to %s: %w", dst, err)
	}
	defer conn.Close()

	ap, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}, err
	}
	return ap.Addr().Unmap(), nil
}
