package tools

import (
	"context"
	"strings"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
)

// Fping sweeps targets with the fping binary
type Fping struct {
	exec Executor
}

// NewFping creates a sweeper around binary
func NewFping(binary string, opts ...Option) *Fping {
	f := &Fping{exec: Executor{
		Binary: binary,
		// 1: some targets unreachable, which is the normal case for a sweep
		AcceptExitCodes: []int{1},
	}}
	for _, opt := range opts {
		opt(&f.exec)
	}
	return f
}

// Sweep returns the alive hosts, one per line
func (f *Fping) Sweep(ctx context.Context, target netrange.TargetSpec) ([]byte, error) {
	args, cleanup, err := fpingArgs(target)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return f.exec.Execute(ctx, args...)
}

func fpingArgs(target netrange.TargetSpec) ([]string, func(), error) {
	family := "-4"
	if strings.Contains(target.CIDR, ":") {
		family = "-6"
	}
	args := []string{family, "--addr", "-r", "1", "-a", "-i", "1"}
	if !target.IsList() {
		return append(args, "-g", target.CIDR), func() {}, nil
	}
	file, cleanup, err := writeTargetFile(target.Hosts)
	if err != nil {
		return nil, nil, err
	}
	return append(args, "-f", file), cleanup, nil
}
