package scanexec

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vulntor/netscout/pkg/probe"
	"github.com/vulntor/netscout/pkg/scheduler"
)

var validate = validator.New()

// Timing holds the knobs shared by every probing command.
type Timing struct {
	Timeout        time.Duration `validate:"gt=0"`
	WaitTime       time.Duration `validate:"gte=0"`
	Rate           time.Duration `validate:"gte=0"`
	OverallTimeout time.Duration `validate:"gte=0"`
	Concurrency    int           `validate:"gte=0,lte=65535"`
}

// Common holds options shared by every command.
type Common struct {
	Timing
	Random    bool
	Interface string
	NoPersist bool
}

func (c Common) schedulerOptions() scheduler.Options {
	return scheduler.Options{
		Random:         c.Random,
		Rate:           c.Rate,
		WaitTime:       c.WaitTime,
		Timeout:        c.Timeout,
		OverallTimeout: c.OverallTimeout,
		Concurrency:    c.Concurrency,
	}
}

// PortScanParams configures a port scan of one or more targets.
type PortScanParams struct {
	Common
	Targets  []string       `validate:"required,min=1,dive,required"`
	ScanType probe.ScanType `validate:"oneof=TcpSynScan TcpConnectScan"`
	Ports    scheduler.PortSelection
	NoPing   bool
	Service  bool // Attach service labels to ports
}

// HostScanParams configures a host discovery scan.
type HostScanParams struct {
	Common
	Targets  []string       `validate:"required,min=1,dive,required"`
	Protocol probe.Protocol `validate:"oneof=ICMP TCP UDP ARP"`
	Port     uint16
}

// PingParams configures a ping of one target.
type PingParams struct {
	Common
	Target   string         `validate:"required"`
	Protocol probe.Protocol `validate:"oneof=ICMP TCP UDP"`
	Port     uint16
	Count    int `validate:"gte=1,lte=65535"`
}

// TraceParams configures a traceroute.
type TraceParams struct {
	Common
	Target   string         `validate:"required"`
	Protocol probe.Protocol `validate:"oneof=ICMP UDP"`
	Port     uint16
	MaxHop   uint8 `validate:"gte=1"`
}

// DomainScanParams configures a subdomain scan.
type DomainScanParams struct {
	Common
	Apex      string `validate:"required,fqdn"`
	Words     []string
	Wordlist  string
	Resolvers []string `validate:"dive,required"`
}

// NeighborParams configures an ARP resolution of one neighbor.
type NeighborParams struct {
	Common
	Target string `validate:"required,ip4_addr"`
	Count  int    `validate:"gte=1,lte=65535"`
}

func validateParams(p any) error {
	if err := validate.Struct(p); err != nil {
		return NewInvalidOptionsError(fmt.Errorf("invalid options: %w", err))
	}
	return nil
}
