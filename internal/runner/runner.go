package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/pd-discovery/pkg/discovery"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/pd-discovery/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/pd-discovery/pkg/probe"
	"github.com/projectdiscovery/pd-discovery/pkg/probe/tools"
	"github.com/projectdiscovery/pd-discovery/pkg/report"
	"github.com/projectdiscovery/pd-discovery/pkg/tracking"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
	errorutil "github.com/projectdiscovery/utils/errors"
	"github.com/rs/xid"
)

// Runner contains the internal logic of the program
type Runner struct {
	options  *Options
	store    *tracking.Store
	adapters []probe.Adapter
	runID    xid.ID
}

// NewRunner instance
func NewRunner(options *Options) (*Runner, error) {
	r := &Runner{
		options: options,
		store:   tracking.NewStore(),
		runID:   xid.New(),
	}

	r.adapters = r.buildAdapters()
	return r, nil
}

// buildAdapters constructs the enabled probes in their run order
func (r *Runner) buildAdapters() []probe.Adapter {
	var (
		adapters   []probe.Adapter
		masscan    *tools.Masscan
		needsRoot  bool
		toolOption = tools.WithTimeout(r.options.Timeout)
	)

	for _, probeType := range types.AllProbes {
		if !r.options.Enabled(probeType) {
			gologger.Verbose().Msgf("%s disabled", probeType.Title())
			continue
		}

		opts := []probe.Option{probe.WithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))}
		if policy, ok := r.options.Policies[probeType]; ok {
			opts = append(opts, probe.WithPolicy(policy))
		}
		if ports, ok := r.options.Ports[probeType]; ok {
			opts = append(opts, probe.WithPorts(ports))
		}

		switch probeType {
		case types.ICMPSweep:
			adapters = append(adapters, probe.NewICMPSweep(r.hostSweeper(toolOption), opts...))
			needsRoot = true
		case types.TCPAsync, types.UDPAsync:
			if masscan == nil {
				masscan = tools.NewMasscan(r.options.MasscanBinary, r.options.Rate, toolOption)
			}
			if probeType == types.TCPAsync {
				adapters = append(adapters, probe.NewTCPAsync(masscan, opts...))
			} else {
				adapters = append(adapters, probe.NewUDPAsync(masscan, opts...))
			}
			needsRoot = true
		case types.ThoroughTCP:
			nmap := tools.NewNmap(r.options.NmapBinary,
				tools.WithTopPorts(r.options.TopPorts),
				tools.WithNmapTimeout(r.options.Timeout),
			)
			adapters = append(adapters, probe.NewThoroughTCP(nmap, opts...))
		}
	}

	if needsRoot && !tools.IsPrivileged() {
		gologger.Warning().Msgf("Not running as root: ping sweeps and masscan will likely return no results")
	}
	return adapters
}

// hostSweeper picks the ping backend. auto prefers fping and falls back
// to the in-process sweeper. A missing fping that was asked for explicitly
// is kept, so the ping sweep degrades to an empty result.
func (r *Runner) hostSweeper(toolOption tools.Option) probe.HostSweeper {
	_, lookErr := tools.LookPath(r.options.FpingBinary)

	switch r.options.PingBackend {
	case PingBackendFping:
		if lookErr != nil {
			gologger.Warning().Msgf("fping backend requested but %s", lookErr)
		}
		return tools.NewFping(r.options.FpingBinary, toolOption)
	case PingBackendNative:
		return r.nativeSweeper()
	default:
		if lookErr == nil {
			return tools.NewFping(r.options.FpingBinary, toolOption)
		}
		gologger.Verbose().Msgf("%s not found, using native ping sweep", r.options.FpingBinary)
		return r.nativeSweeper()
	}
}

func (r *Runner) nativeSweeper() *pingsweep.Sweeper {
	return pingsweep.New(pingsweep.WithDeadline(r.options.Timeout))
}

// targetRanges returns the command line ranges plus local networks with -auto
func (r *Runner) targetRanges() ([]string, error) {
	ranges := r.options.TargetRanges()
	if r.options.Auto {
		networks, err := common.GetLocalNetworks()
		if err != nil {
			return nil, errorutil.NewWithErr(err).Msgf("could not list local networks")
		}
		for _, network := range networks {
			ones, bits := network.Mask.Size()
			if 1<<min(bits-ones, 62) > netrange.MaxAddresses {
				gologger.Verbose().Msgf("Skipping local network %s: too large to probe", network)
				continue
			}
			gologger.Verbose().Msgf("Adding local network %s", network)
			ranges = append(ranges, network.String())
		}
		ranges = netrange.ParseList(strings.Join(ranges, ","))
	}
	if len(ranges) == 0 {
		return nil, errors.New("no target ranges to discover")
	}
	return ranges, nil
}

// Run the instance
func (r *Runner) Run(ctx context.Context) error {
	ranges, err := r.targetRanges()
	if err != nil {
		return err
	}

	started := time.Now()
	gologger.Info().Msgf("Starting run %s over %d ranges with %d probes", r.runID, len(ranges), len(r.adapters))

	orchestrator := discovery.New(r.store, r.adapters,
		discovery.WithRangeParallelism(r.options.RangeParallelism),
		discovery.WithProbeParallelism(r.options.ProbeParallelism),
	)
	summary := orchestrator.Run(ctx, ranges)
	if summary.Cancelled {
		gologger.Warning().Msgf("Run interrupted, writing partial results")
	}

	records := r.store.Snapshot()
	out := report.Report{
		RunID:   r.runID.String(),
		Started: started,
		Elapsed: report.Duration(summary.Elapsed),
		Records: records,
	}
	for _, failure := range summary.Failed {
		out.Failed = append(out.Failed, failure.Range)
	}

	writer := &report.Writer{Dir: r.options.OutputDir, JSON: r.options.JSON}
	paths, err := writer.Write(out)
	if err != nil {
		return errorutil.NewWithErr(err).Msgf("could not write report")
	}

	r.printSummary(records, summary)
	for _, path := range paths {
		gologger.Info().Msgf("Report written to %s", path)
	}
	return nil
}

func (r *Runner) printSummary(records []tracking.RecordSnapshot, summary discovery.Summary) {
	for _, record := range records {
		gologger.Silent().Msgf("%s [%s] %s hosts up", record.Range, au.Cyan(record.Class), au.Green(humanize.Comma(int64(record.UpHostCount))))
	}
	gologger.Info().Msgf("Completed %d probes on %d ranges in %s (%d failed ranges, %d degraded probes)",
		summary.Probes, len(summary.Ranges), summary.Elapsed.Round(time.Second), len(summary.Failed), len(summary.Degraded))
}
