package probe

import (
	"context"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// HostSweeper reports the responsive hosts of a target, one address per line
type HostSweeper interface {
	Sweep(ctx context.Context, target netrange.TargetSpec) ([]byte, error)
}

// PortScanner probes a fixed port list and returns one JSON record per line
type PortScanner interface {
	ScanPorts(ctx context.Context, target netrange.TargetSpec, ports []string, proto types.Protocol) ([]byte, error)
}

// ServiceScanner returns the open TCP ports of every responsive host
type ServiceScanner interface {
	ScanServices(ctx context.Context, target netrange.TargetSpec) (map[string][]int, error)
}
