package netrange

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/projectdiscovery/mapcidr"
	"github.com/projectdiscovery/pd-discovery/pkg/peerdiscovery/common"
	sliceutil "github.com/projectdiscovery/utils/slice"
)

// MaxAddresses caps how many addresses a single range may expand to
const MaxAddresses = 1 << 24

var (
	ErrEmptyRange    = errors.New("empty range")
	ErrRangeTooLarge = errors.New("range too large")
)

// NetworkRange is a resolved target range. It is not modified after Resolve.
type NetworkRange struct {
	// CIDR is the range as given on input and identifies it in results
	CIDR    string
	Network *net.IPNet
	// Hosts holds the usable host addresses in ascending order
	Hosts []string
	Class SizeClass
}

// TargetSpec describes what a probe should be pointed at: either a whole
// CIDR or an explicit host list
type TargetSpec struct {
	CIDR  string
	Hosts []string
}

// IsList reports whether the spec is an explicit host list
func (t TargetSpec) IsList() bool {
	return t.Hosts != nil
}

// Size returns the number of hosts covered by the spec
func (t TargetSpec) Size(r *NetworkRange) int {
	if t.IsList() {
		return len(t.Hosts)
	}
	return len(r.Hosts)
}

func (t TargetSpec) String() string {
	if t.IsList() {
		return strings.Join(t.Hosts, " ")
	}
	return t.CIDR
}

// Resolve expands a CIDR into its usable host population and size class.
// A bare IP address is treated as a single host range.
func Resolve(cidr string) (*NetworkRange, error) {
	id := strings.TrimSpace(cidr)
	if id == "" {
		return nil, ErrEmptyRange
	}

	normalized := id
	if !strings.Contains(normalized, "/") {
		ip := net.ParseIP(normalized)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR %q", id)
		}
		if ip.To4() != nil {
			normalized += "/32"
		} else {
			normalized += "/128"
		}
	}

	_, network, err := net.ParseCIDR(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR: %w", err)
	}

	ones, bits := network.Mask.Size()
	if bits-ones > 24 {
		return nil, fmt.Errorf("%w: %s spans more than %d addresses", ErrRangeTooLarge, id, MaxAddresses)
	}

	ips, err := mapcidr.IPAddresses(network.String())
	if err != nil {
		return nil, fmt.Errorf("failed to expand CIDR: %w", err)
	}

	hosts := make([]string, 0, len(ips))
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if common.IsNetworkOrBroadcast(ip, network) {
			continue
		}
		hosts = append(hosts, ip.String())
	}

	return &NetworkRange{
		CIDR:    id,
		Network: network,
		Hosts:   hosts,
		Class:   Classify(len(hosts)),
	}, nil
}

// Targets returns the spec covering the whole range
func (r *NetworkRange) Targets() TargetSpec {
	return TargetSpec{CIDR: r.Network.String()}
}

// Subset returns a spec restricted to the given hosts
func (r *NetworkRange) Subset(hosts []string) TargetSpec {
	if hosts == nil {
		hosts = []string{}
	}
	return TargetSpec{CIDR: r.Network.String(), Hosts: hosts}
}

// ParseList splits a comma separated range list, dropping blanks and duplicates
func ParseList(value string) []string {
	var ranges []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ranges = append(ranges, item)
		}
	}
	return sliceutil.Dedupe(ranges)
}
