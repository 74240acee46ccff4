package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// DefaultRate is the masscan packet rate
const DefaultRate = 100000

// Masscan runs the masscan binary with JSON output on stdout
type Masscan struct {
	exec Executor
	rate int
}

// NewMasscan creates a port scanner around binary sending rate packets/s
func NewMasscan(binary string, rate int, opts ...Option) *Masscan {
	if rate <= 0 {
		rate = DefaultRate
	}
	m := &Masscan{exec: Executor{Binary: binary}, rate: rate}
	for _, opt := range opts {
		opt(&m.exec)
	}
	return m
}

// ScanPorts scans ports over proto and returns masscan's JSON records
func (m *Masscan) ScanPorts(ctx context.Context, target netrange.TargetSpec, ports []string, proto types.Protocol) ([]byte, error) {
	args, cleanup, err := m.args(target, ports, proto)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return m.exec.Execute(ctx, args...)
}

func (m *Masscan) args(target netrange.TargetSpec, ports []string, proto types.Protocol) ([]string, func(), error) {
	args, cleanup, err := targetArgs(target, "-iL")
	if err != nil {
		return nil, nil, err
	}
	return append(args,
		"-p"+portList(ports, proto),
		"--rate", strconv.Itoa(m.rate),
		"--wait", "0",
		"--open",
		"--output-format", "json",
		"--output-filename", "-",
	), cleanup, nil
}

// portList joins ports, prefixing each with U: for UDP as masscan expects
func portList(ports []string, proto types.Protocol) string {
	if proto != types.UDP {
		return strings.Join(ports, ",")
	}
	prefixed := make([]string, len(ports))
	for i, port := range ports {
		prefixed[i] = "U:" + port
	}
	return strings.Join(prefixed, ",")
}
