package probe

import (
	"context"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// AsyncPorts probes a fixed port list with a fast asynchronous scanner
type AsyncPorts struct {
	*base
	scanner PortScanner
	proto   types.Protocol
}

// NewTCPAsync creates the async TCP adapter over the top TCP ports
func NewTCPAsync(scanner PortScanner, opts ...Option) *AsyncPorts {
	return newAsyncPorts(types.TCPAsync, types.TCP, TopTCPPorts, scanner, opts)
}

// NewUDPAsync creates the async UDP adapter over the top UDP ports
func NewUDPAsync(scanner PortScanner, opts ...Option) *AsyncPorts {
	return newAsyncPorts(types.UDPAsync, types.UDP, TopUDPPorts, scanner, opts)
}

func newAsyncPorts(probe types.ProbeType, proto types.Protocol, ports []string, scanner PortScanner, opts []Option) *AsyncPorts {
	b := newBase(probe, append([]Option{WithPorts(ports)}, opts...))
	return &AsyncPorts{base: b, scanner: scanner, proto: proto}
}

// Protocol returns the transport probed
func (a *AsyncPorts) Protocol() types.Protocol {
	return a.proto
}

// Ports returns the probed port list
func (a *AsyncPorts) Ports() []string {
	return a.ports
}

// Run scans the selected targets of the range
func (a *AsyncPorts) Run(ctx context.Context, target *netrange.NetworkRange) Result {
	return a.run(ctx, target, func(ctx context.Context, spec netrange.TargetSpec) ([]types.Finding, int, error) {
		output, err := a.scanner.ScanPorts(ctx, spec, a.ports, a.proto)
		if err != nil {
			return nil, 0, err
		}
		findings, skipped := ParseAsyncRecords(output, a.proto)
		return findings, skipped, nil
	})
}
