package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/probe"
	"github.com/projectdiscovery/pd-discovery/pkg/tracking"
	syncutil "github.com/projectdiscovery/utils/sync"
)

// Failure is a range that could not be resolved
type Failure struct {
	Range string
	Err   error
}

// Summary describes a finished run
type Summary struct {
	// Ranges lists the resolved range identifiers in input order
	Ranges []string
	Failed []Failure
	// Degraded holds the adapter results whose collaborator failed
	Degraded []probe.Result
	Probes int
	// Findings counts labels newly recorded, not labels reported
	Findings int
	Elapsed  time.Duration
	// Cancelled is set when the context ended before all work was launched
	Cancelled bool
}

// Orchestrator runs adapters over ranges
type Orchestrator struct {
	store    *tracking.Store
	adapters []probe.Adapter

	rangeParallelism int
	probeParallelism int
	observer         func(probe.Result)

	mu      sync.Mutex
	summary Summary
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRangeParallelism sets how many ranges are probed at once
func WithRangeParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.rangeParallelism = n
		}
	}
}

// WithProbeParallelism sets how many adapters run at once on one range
func WithProbeParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.probeParallelism = n
		}
	}
}

// WithObserver registers a callback invoked after every adapter run.
// It may be called concurrently when parallelism is above one.
func WithObserver(fn func(probe.Result)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// New creates an orchestrator writing into store. Only the adapters passed
// here are ever invoked.
func New(store *tracking.Store, adapters []probe.Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:            store,
		adapters:         adapters,
		rangeParallelism: 1,
		probeParallelism: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run probes every range and returns once all launched work has finished
func (o *Orchestrator) Run(ctx context.Context, ranges []string) Summary {
	start := time.Now()
	o.mu.Lock()
	o.summary = Summary{}
	o.mu.Unlock()

	awg, err := syncutil.New(syncutil.WithSize(o.rangeParallelism))
	if err != nil {
		gologger.Error().Msgf("Error creating syncutil: %v", err)
		return o.finish(start, true)
	}

	seen := make(map[string]struct{}, len(ranges))
	cancelled := false
	for _, cidr := range ranges {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		target, err := netrange.Resolve(cidr)
		if err != nil {
			gologger.Error().Msgf("Could not resolve range %s: %s", cidr, err)
			o.record(func(s *Summary) {
				s.Failed = append(s.Failed, Failure{Range: cidr, Err: err})
			})
			continue
		}
		if _, ok := seen[target.CIDR]; ok {
			continue
		}
		seen[target.CIDR] = struct{}{}

		o.store.Open(target.CIDR, target.Class)
		o.record(func(s *Summary) {
			s.Ranges = append(s.Ranges, target.CIDR)
		})
		gologger.Verbose().Msgf("Range %s resolved to %d hosts (%s)", target.CIDR, len(target.Hosts), target.Class)

		awg.Add()
		go func(target *netrange.NetworkRange) {
			defer awg.Done()
			o.probeRange(ctx, target)
		}(target)
	}
	awg.Wait()

	return o.finish(start, cancelled || ctx.Err() != nil)
}

// probeRange runs every adapter against one resolved range
func (o *Orchestrator) probeRange(ctx context.Context, target *netrange.NetworkRange) {
	awg, err := syncutil.New(syncutil.WithSize(o.probeParallelism))
	if err != nil {
		gologger.Error().Msgf("Error creating syncutil: %v", err)
		return
	}

	for _, adapter := range o.adapters {
		if ctx.Err() != nil {
			break
		}

		awg.Add()
		go func(adapter probe.Adapter) {
			defer awg.Done()

			title := adapter.Type().Title()
			gologger.Info().Msgf("%s on %s", title, target.CIDR)
			result := adapter.Run(ctx, target)
			o.collect(result)
			gologger.Info().Msgf("%s on %s COMPLETE", title, target.CIDR)
		}(adapter)
	}
	awg.Wait()
}

// collect merges a result into the store
func (o *Orchestrator) collect(result probe.Result) {
	if result.Failed() {
		gologger.Warning().Msgf("%s on %s returned no results: %s", result.Probe, result.Range, result.Err)
	}

	merged := 0
	hosts, labels := result.ByHost()
	for _, host := range hosts {
		added, err := o.store.MergeCount(result.Range, host, labels[host]...)
		if err != nil {
			gologger.Verbose().Msgf("Could not merge %s finding for %q: %s", result.Probe, host, err)
			continue
		}
		merged += added
	}

	o.record(func(s *Summary) {
		s.Probes++
		s.Findings += merged
		if result.Failed() {
			s.Degraded = append(s.Degraded, result)
		}
	})

	if o.observer != nil {
		o.observer(result)
	}
}

func (o *Orchestrator) record(fn func(s *Summary)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.summary)
}

func (o *Orchestrator) finish(start time.Time, cancelled bool) Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summary.Elapsed = time.Since(start)
	o.summary.Cancelled = cancelled
	return o.summary
}
