package probe

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/sampler"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

// Adapter runs one discovery technique against a resolved range
type Adapter interface {
	Type() types.ProbeType
	Run(ctx context.Context, target *netrange.NetworkRange) Result
}

// Result is the outcome of one adapter run. Err is set when the collaborator
// failed, in which case Findings is empty.
type Result struct {
	Probe types.ProbeType
	Range string
	// Targets is the number of hosts the probe was pointed at
	Targets int
	// Sampled tells whether Targets is a sample rather than the full range
	Sampled  bool
	Findings []types.Finding
	// Skipped counts malformed output lines that were ignored
	Skipped int
	Err     error
}

// Failed reports whether the collaborator invocation failed
func (r Result) Failed() bool {
	return r.Err != nil
}

// ByHost groups findings per host, returning hosts in first-seen order
func (r Result) ByHost() ([]string, map[string][]string) {
	var hosts []string
	grouped := make(map[string][]string)
	for _, f := range r.Findings {
		if _, ok := grouped[f.Host]; !ok {
			hosts = append(hosts, f.Host)
		}
		grouped[f.Host] = append(grouped[f.Host], f.Label)
	}
	return hosts, grouped
}

// Option configures an adapter
type Option func(*base)

// WithPolicy overrides the sampling percentages
func WithPolicy(p Policy) Option {
	return func(b *base) {
		b.policy = p
	}
}

// WithRand sets the random source used to draw samples
func WithRand(rng *rand.Rand) Option {
	return func(b *base) {
		b.rng = rng
	}
}

// WithPorts overrides the port list of port probes
func WithPorts(ports []string) Option {
	return func(b *base) {
		if len(ports) > 0 {
			b.ports = ports
		}
	}
}

// invokeFunc runs the collaborator against spec and parses its output
type invokeFunc func(ctx context.Context, spec netrange.TargetSpec) (findings []types.Finding, skipped int, err error)

// base is the target selection and invocation skeleton shared by all adapters
type base struct {
	probe  types.ProbeType
	policy Policy
	ports  []string

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newBase(probe types.ProbeType, opts []Option) *base {
	b := &base{
		probe:  probe,
		policy: DefaultPolicies[probe],
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *base) Type() types.ProbeType {
	return b.probe
}

// selectTargets returns the full range for small ranges, otherwise the first
// sample set drawn at the policy percentage
func (b *base) selectTargets(target *netrange.NetworkRange) (netrange.TargetSpec, bool) {
	if !b.policy.Samples(target.Class) {
		return target.Targets(), false
	}

	// *rand.Rand is not safe for concurrent use
	b.rngMu.Lock()
	set := sampler.Sample(target.Hosts, b.policy.Percentage(target.Class), b.rng)
	b.rngMu.Unlock()

	return target.Subset(set.First()), true
}

func (b *base) run(ctx context.Context, target *netrange.NetworkRange, invoke invokeFunc) (result Result) {
	result = Result{Probe: b.probe, Range: target.CIDR}

	spec, sampled := b.selectTargets(target)
	result.Targets = spec.Size(target)
	result.Sampled = sampled

	if sampled {
		gologger.Verbose().Msgf("%s on %s: sampling %s of %s hosts",
			b.probe, target.CIDR, humanize.Comma(int64(result.Targets)), humanize.Comma(int64(len(target.Hosts))))
	}
	if result.Targets == 0 {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result.Findings = nil
			result.Err = fmt.Errorf("%s collaborator panicked: %v", b.probe, r)
		}
	}()

	findings, skipped, err := invoke(ctx, spec)
	result.Skipped = skipped
	if err != nil {
		result.Err = fmt.Errorf("%s failed on %s: %w", b.probe, target.CIDR, err)
		return result
	}
	result.Findings = findings

	if skipped > 0 {
		gologger.Verbose().Msgf("%s on %s: skipped %d malformed output lines", b.probe, target.CIDR, skipped)
	}
	return result
}
