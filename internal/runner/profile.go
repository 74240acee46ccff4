package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/projectdiscovery/pd-discovery/pkg/probe"
	"github.com/projectdiscovery/pd-discovery/pkg/probe/tools"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
	"gopkg.in/yaml.v3"
)

// Profile is a yaml file tuning the probes of a run:
//
//	rate: 50000
//	timeout: 5m
//	ping_backend: native
//	binaries:
//	  masscan: /opt/masscan/bin/masscan
//	probes:
//	  ping:
//	    medium: 0.2
//	  udp-async:
//	    enabled: false
//	  tcp-async:
//	    ports: ["22", "80", "443"]
//	  nmap:
//	    top_ports: 50
type Profile struct {
	Rate        int                     `yaml:"rate"`
	Timeout     time.Duration           `yaml:"timeout"`
	PingBackend string                  `yaml:"ping_backend"`
	Binaries    Binaries                `yaml:"binaries"`
	Probes      map[string]ProbeProfile `yaml:"probes"`
}

// Binaries overrides tool locations
type Binaries struct {
	Fping   string `yaml:"fping"`
	Masscan string `yaml:"masscan"`
	Nmap    string `yaml:"nmap"`
}

// ProbeProfile tunes a single probe. Zero values keep the defaults.
type ProbeProfile struct {
	Enabled  *bool    `yaml:"enabled"`
	Medium   float64  `yaml:"medium"`
	Large    float64  `yaml:"large"`
	Ports    []string `yaml:"ports"`
	TopPorts int      `yaml:"top_ports"`
}

// LoadProfile reads a profile file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile, rejecting unknown keys and probe names
func ParseProfile(data []byte) (*Profile, error) {
	profile := &Profile{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(profile); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode profile: %w", err)
	}
	for name := range profile.Probes {
		if _, err := types.ParseProbeType(name); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// Apply merges the profile into options. Values equal to the flag defaults
// are overridden; probes disabled on the command line stay disabled.
func (p *Profile) Apply(options *Options) error {
	if p.Rate > 0 && options.Rate == tools.DefaultRate {
		options.Rate = p.Rate
	}
	if p.Timeout > 0 && options.Timeout == tools.DefaultTimeout {
		options.Timeout = p.Timeout
	}
	if p.PingBackend != "" && options.PingBackend == PingBackendAuto {
		options.PingBackend = p.PingBackend
	}
	if p.Binaries.Fping != "" {
		options.FpingBinary = p.Binaries.Fping
	}
	if p.Binaries.Masscan != "" {
		options.MasscanBinary = p.Binaries.Masscan
	}
	if p.Binaries.Nmap != "" {
		options.NmapBinary = p.Binaries.Nmap
	}

	for name, probeProfile := range p.Probes {
		probeType, err := types.ParseProbeType(name)
		if err != nil {
			return err
		}
		if probeProfile.Enabled != nil && !*probeProfile.Enabled {
			options.disable(probeType)
		}

		if probeProfile.Medium > 0 || probeProfile.Large > 0 {
			policy := probe.DefaultPolicies[probeType]
			if probeProfile.Medium > 0 {
				policy.Medium = probeProfile.Medium
			}
			if probeProfile.Large > 0 {
				policy.Large = probeProfile.Large
			}
			if err := policy.Validate(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if options.Policies == nil {
				options.Policies = make(map[types.ProbeType]probe.Policy)
			}
			options.Policies[probeType] = policy
		}

		if len(probeProfile.Ports) > 0 {
			if probeType != types.TCPAsync && probeType != types.UDPAsync {
				return fmt.Errorf("%s: ports only apply to tcp-async and udp-async", name)
			}
			if options.Ports == nil {
				options.Ports = make(map[types.ProbeType][]string)
			}
			options.Ports[probeType] = probeProfile.Ports
		}

		if probeProfile.TopPorts > 0 {
			if probeType != types.ThoroughTCP {
				return fmt.Errorf("%s: top_ports only applies to nmap", name)
			}
			options.TopPorts = probeProfile.TopPorts
		}
	}
	return nil
}

func (options *Options) disable(probeType types.ProbeType) {
	switch probeType {
	case types.ICMPSweep:
		options.NoPing = true
	case types.TCPAsync:
		options.NoTCPAsync = true
	case types.ThoroughTCP:
		options.NoNmap = true
	case types.UDPAsync:
		options.NoUDP = true
	}
}
