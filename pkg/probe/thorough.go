package probe

import (
	"context"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// ThoroughTCP runs the slower service scanner over its top ports
type ThoroughTCP struct {
	*base
	scanner ServiceScanner
}

// NewThoroughTCP creates the thorough TCP adapter
func NewThoroughTCP(scanner ServiceScanner, opts ...Option) *ThoroughTCP {
	return &ThoroughTCP{base: newBase(types.ThoroughTCP, opts), scanner: scanner}
}

// Run scans the selected targets of the range
func (a *ThoroughTCP) Run(ctx context.Context, target *netrange.NetworkRange) Result {
	return a.run(ctx, target, func(ctx context.Context, spec netrange.TargetSpec) ([]types.Finding, int, error) {
		services, err := a.scanner.ScanServices(ctx, spec)
		if err != nil {
			return nil, 0, err
		}
		return portMapFindings(services, types.TCP), 0, nil
	})
}
