package tools

import (
	"context"
	"fmt"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
)

// DefaultTopPorts is how many of nmap's most common ports are scanned
const DefaultTopPorts = 100

// Nmap runs nmap over its most common TCP ports
type Nmap struct {
	binary   string
	topPorts int
	timeout  time.Duration
}

// NmapOption is a functional option for configuring Nmap
type NmapOption func(*Nmap)

// WithTopPorts sets how many of the most common ports are scanned
func WithTopPorts(n int) NmapOption {
	return func(s *Nmap) {
		if n > 0 {
			s.topPorts = n
		}
	}
}

// WithNmapTimeout bounds each nmap run
func WithNmapTimeout(d time.Duration) NmapOption {
	return func(s *Nmap) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewNmap creates a service scanner around binary
func NewNmap(binary string, opts ...NmapOption) *Nmap {
	s := &Nmap{binary: binary, topPorts: DefaultTopPorts, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanServices runs `-Pn --open -T5 -n --top-ports N` and maps hosts to open ports
func (s *Nmap) ScanServices(ctx context.Context, target netrange.TargetSpec) (map[string][]int, error) {
	path, err := LookPath(s.binary)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithBinaryPath(path),
		nmap.WithSkipHostDiscovery(),
		nmap.WithOpenOnly(),
		nmap.WithTimingTemplate(nmap.TimingFastest),
		nmap.WithDisabledDNSResolution(),
		nmap.WithMostCommonPorts(s.topPorts),
	}

	if target.IsList() {
		file, cleanup, err := writeTargetFile(target.Hosts)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		opts = append(opts, nmap.WithTargetInput(file))
	} else {
		opts = append(opts, nmap.WithTargets(target.CIDR))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: nmap after %s", ErrTimeout, s.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		gologger.Verbose().Msgf("nmap warnings for %s: %v", target.CIDR, *warnings)
	}

	return openPorts(result), nil
}

// openPorts maps every up host to its open TCP ports
func openPorts(result *nmap.Run) map[string][]int {
	services := make(map[string][]int)
	if result == nil {
		return services
	}

	for _, host := range result.Hosts {
		if len(host.Addresses) == 0 || host.Status.State != "up" {
			continue
		}

		ip := host.Addresses[0].Addr
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" || addr.AddrType == "ipv6" {
				ip = addr.Addr
				break
			}
		}

		var ports []int
		for _, port := range host.Ports {
			if port.Protocol != "tcp" || port.State.State != "open" {
				continue
			}
			ports = append(ports, int(port.ID))
		}
		if len(ports) > 0 {
			services[ip] = ports
		}
	}

	return services
}
