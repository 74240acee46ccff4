package probe

import (
	"fmt"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// Policy holds the sampling percentage a probe uses on medium and large
// ranges. Small ranges are always probed in full.
type Policy struct {
	Medium float64 `yaml:"medium"`
	Large  float64 `yaml:"large"`
}

// DefaultPolicies are the per technique sampling percentages
var DefaultPolicies = map[types.ProbeType]Policy{
	types.ICMPSweep:   {Medium: 0.1, Large: 0.005},
	types.TCPAsync:    {Medium: 0.1, Large: 0.05},
	types.ThoroughTCP: {Medium: 0.1, Large: 0.005},
	types.UDPAsync:    {Medium: 0.1, Large: 0.05},
}

// Percentage returns the share of hosts probed for class; 1 means the full range
func (p Policy) Percentage(class netrange.SizeClass) float64 {
	switch class {
	case netrange.Medium:
		return p.Medium
	case netrange.Large:
		return p.Large
	default:
		return 1
	}
}

// Samples reports whether ranges of class are sampled rather than probed in full
func (p Policy) Samples(class netrange.SizeClass) bool {
	return class != netrange.Small
}

// Validate checks that both percentages lie in (0, 1]
func (p Policy) Validate() error {
	for name, v := range map[string]float64{"medium": p.Medium, "large": p.Large} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s percentage %v must be in (0, 1]", name, v)
		}
	}
	return nil
}
