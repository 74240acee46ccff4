package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/probe"
	"github.com/projectdiscovery/pd-discovery/pkg/probe/tools"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
	envutil "github.com/projectdiscovery/utils/env"
)

var au = aurora.New(aurora.WithColors(true))

var (
	FpingBinaryEnv   = envutil.GetEnvOrDefault("PD_DISCOVERY_FPING", "fping")
	MasscanBinaryEnv = envutil.GetEnvOrDefault("PD_DISCOVERY_MASSCAN", "masscan")
	NmapBinaryEnv    = envutil.GetEnvOrDefault("PD_DISCOVERY_NMAP", "nmap")
	OutputDirEnv     = envutil.GetEnvOrDefault("PD_DISCOVERY_OUTPUT", "logs")
)

// Ping backends
const (
	PingBackendAuto   = "auto"
	PingBackendFping  = "fping"
	PingBackendNative = "native"
)

// Options contains the configuration options for a discovery run
type Options struct {
	Ranges goflags.StringSlice
	Auto   bool

	NoPing      bool
	NoTCPAsync  bool
	NoNmap      bool
	NoUDP       bool
	PingBackend string
	Rate        int
	Timeout     time.Duration
	Profile     string

	RangeParallelism int
	ProbeParallelism int

	OutputDir string
	JSON      bool

	Verbose bool
	Silent  bool
	NoColor bool
	Version bool

	FpingBinary   string
	MasscanBinary string
	NmapBinary    string
	TopPorts      int
	Policies      map[types.ProbeType]probe.Policy
	Ports         map[types.ProbeType][]string
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{
		FpingBinary:   FpingBinaryEnv,
		MasscanBinary: MasscanBinaryEnv,
		NmapBinary:    NmapBinaryEnv,
	}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`pd-discovery finds live hosts and open services across network ranges, sampling the large ones`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringSliceVarP(&options.Ranges, "range", "r", nil, "target ranges to discover (comma separated CIDRs)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.BoolVar(&options.Auto, "auto", false, "add the private networks of local interfaces"),
	)

	flagSet.CreateGroup("probes", "Probes",
		flagSet.BoolVarP(&options.NoPing, "no-ping", "np", false, "disable the ICMP ping sweep"),
		flagSet.BoolVarP(&options.NoTCPAsync, "no-tcp-async", "na", false, "disable the asynchronous TCP port scan"),
		flagSet.BoolVarP(&options.NoNmap, "no-nmap", "nn", false, "disable the nmap TCP service scan"),
		flagSet.BoolVarP(&options.NoUDP, "no-udp", "nu", false, "disable the asynchronous UDP port scan"),
		flagSet.StringVar(&options.PingBackend, "ping-backend", PingBackendAuto, "ping sweep backend (auto, fping, native)"),
		flagSet.IntVar(&options.Rate, "rate", tools.DefaultRate, "packets per second sent by the port scanner"),
		flagSet.DurationVar(&options.Timeout, "timeout", tools.DefaultTimeout, "timeout of a single tool invocation"),
		flagSet.StringVar(&options.Profile, "profile", "", "yaml probe profile (sampling, ports, binaries)"),
	)

	flagSet.CreateGroup("concurrency", "Concurrency",
		flagSet.IntVarP(&options.RangeParallelism, "range-parallelism", "rp", 1, "number of ranges to probe in parallel"),
		flagSet.IntVarP(&options.ProbeParallelism, "probe-parallelism", "pp", 1, "number of probes to run in parallel on a range"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.OutputDir, "output-dir", "o", OutputDirEnv, "directory to write the reports to"),
		flagSet.BoolVar(&options.JSON, "json", false, "also write a json report"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results in output"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version)
		os.Exit(0)
	}

	if options.Profile != "" {
		profile, err := LoadProfile(options.Profile)
		if err != nil {
			gologger.Fatal().Msgf("Could not load profile: %s\n", err)
		}
		if err := profile.Apply(options); err != nil {
			gologger.Fatal().Msgf("Could not apply profile: %s\n", err)
		}
	}

	if err := options.Validate(); err != nil {
		gologger.Fatal().Msgf("Program exiting: %s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// Validate checks option combinations
func (options *Options) Validate() error {
	if len(options.Ranges) == 0 && !options.Auto {
		return errors.New("no target range provided, use -range or -auto")
	}
	switch options.PingBackend {
	case PingBackendAuto, PingBackendFping, PingBackendNative:
	default:
		return fmt.Errorf("invalid ping backend %q", options.PingBackend)
	}
	if options.Rate <= 0 {
		return fmt.Errorf("invalid rate %d", options.Rate)
	}
	if options.RangeParallelism <= 0 || options.ProbeParallelism <= 0 {
		return errors.New("parallelism must be at least 1")
	}
	if options.Verbose && options.Silent {
		return errors.New("both verbose and silent mode specified")
	}
	for probeType, policy := range options.Policies {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("%s: %w", probeType, err)
		}
	}
	return nil
}

// Enabled reports whether a probe is enabled
func (options *Options) Enabled(probeType types.ProbeType) bool {
	switch probeType {
	case types.ICMPSweep:
		return !options.NoPing
	case types.TCPAsync:
		return !options.NoTCPAsync
	case types.ThoroughTCP:
		return !options.NoNmap
	case types.UDPAsync:
		return !options.NoUDP
	default:
		return false
	}
}

// TargetRanges returns the deduplicated ranges given on the command line
func (options *Options) TargetRanges() []string {
	return netrange.ParseList(strings.Join(options.Ranges, ","))
}
