package types

import (
	"fmt"
	"strings"
)

var AllProbes = []ProbeType{}

func init() {
	for i := 0; i <= int(UDPAsync); i++ {
		AllProbes = append(AllProbes, ProbeType(i))
	}
}

// ProbeType represents one discovery technique
type ProbeType int

const (
	ICMPSweep ProbeType = iota
	TCPAsync
	ThoroughTCP
	UDPAsync
)

func (t ProbeType) String() string {
	switch t {
	case ICMPSweep:
		return "ping"
	case TCPAsync:
		return "tcp-async"
	case ThoroughTCP:
		return "nmap"
	case UDPAsync:
		return "udp-async"
	default:
		return "unknown"
	}
}

// Title is the human readable name used in progress logs
func (t ProbeType) Title() string {
	switch t {
	case ICMPSweep:
		return "PING SWEEP"
	case TCPAsync:
		return "Masscan (TCP)"
	case ThoroughTCP:
		return "Nmap top 100 TCP ports"
	case UDPAsync:
		return "Masscan (UDP)"
	default:
		return "unknown"
	}
}

// ParseProbeType resolves a probe name as printed by String
func ParseProbeType(name string) (ProbeType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, probe := range AllProbes {
		if probe.String() == name {
			return probe, nil
		}
	}
	return 0, fmt.Errorf("unknown probe type %q", name)
}

// Protocol is the transport a port finding was observed on
type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)
