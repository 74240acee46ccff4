package probe

import (
	"context"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// ICMPSweep finds hosts answering echo requests
type ICMPSweep struct {
	*base
	sweeper HostSweeper
}

// NewICMPSweep creates the ping sweep adapter
func NewICMPSweep(sweeper HostSweeper, opts ...Option) *ICMPSweep {
	return &ICMPSweep{base: newBase(types.ICMPSweep, opts), sweeper: sweeper}
}

// Run sweeps the selected targets of the range
func (a *ICMPSweep) Run(ctx context.Context, target *netrange.NetworkRange) Result {
	return a.run(ctx, target, func(ctx context.Context, spec netrange.TargetSpec) ([]types.Finding, int, error) {
		output, err := a.sweeper.Sweep(ctx, spec)
		if err != nil {
			return nil, 0, err
		}
		hosts, skipped := ParseHostList(output)
		findings := make([]types.Finding, 0, len(hosts))
		for _, host := range hosts {
			findings = append(findings, types.Finding{Host: host, Label: types.LabelICMP})
		}
		return findings, skipped, nil
	})
}
