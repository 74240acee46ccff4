package runner

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/pd-discovery/pkg/probe"
	"github.com/projectdiscovery/pd-discovery/pkg/probe/tools"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

func defaultOptions() *Options {
	return &Options{
		Ranges:           []string{"10.0.0.0/24"},
		PingBackend:      PingBackendAuto,
		Rate:             tools.DefaultRate,
		Timeout:          tools.DefaultTimeout,
		RangeParallelism: 1,
		ProbeParallelism: 1,
		OutputDir:        "logs",
		FpingBinary:      "fping",
		MasscanBinary:    "masscan",
		NmapBinary:       "nmap",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Options)
		wantErr bool
	}{
		{name: "defaults", modify: func(o *Options) {}},
		{name: "auto without ranges", modify: func(o *Options) { o.Ranges = nil; o.Auto = true }},
		{name: "no ranges", modify: func(o *Options) { o.Ranges = nil }, wantErr: true},
		{name: "bad backend", modify: func(o *Options) { o.PingBackend = "arp" }, wantErr: true},
		{name: "zero rate", modify: func(o *Options) { o.Rate = 0 }, wantErr: true},
		{name: "zero parallelism", modify: func(o *Options) { o.ProbeParallelism = 0 }, wantErr: true},
		{name: "verbose and silent", modify: func(o *Options) { o.Verbose = true; o.Silent = true }, wantErr: true},
		{name: "bad policy", modify: func(o *Options) {
			o.Policies = map[types.ProbeType]probe.Policy{types.ICMPSweep: {Medium: 2, Large: 0.1}}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := defaultOptions()
			tt.modify(options)
			if err := options.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTargetRanges(t *testing.T) {
	options := defaultOptions()
	options.Ranges = []string{"10.0.0.0/24", " 10.0.0.0/24", "", "192.168.0.0/16"}
	want := []string{"10.0.0.0/24", "192.168.0.0/16"}
	if got := options.TargetRanges(); !reflect.DeepEqual(got, want) {
		t.Errorf("TargetRanges() = %v, want %v", got, want)
	}

	r := &Runner{options: &Options{}}
	if _, err := r.targetRanges(); err == nil {
		t.Error("expected an error without any range")
	}
}

func TestBuildAdaptersHonoursDisabledProbes(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
		want   []types.ProbeType
	}{
		{
			name:   "all disabled",
			modify: func(o *Options) { o.NoPing, o.NoTCPAsync, o.NoNmap, o.NoUDP = true, true, true, true },
		},
		{
			name:   "nmap only",
			modify: func(o *Options) { o.NoPing, o.NoTCPAsync, o.NoUDP = true, true, true },
			want:   []types.ProbeType{types.ThoroughTCP},
		},
		{
			name:   "all enabled keep run order",
			modify: func(o *Options) { o.PingBackend = PingBackendNative },
			want:   []types.ProbeType{types.ICMPSweep, types.TCPAsync, types.ThoroughTCP, types.UDPAsync},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := defaultOptions()
			tt.modify(options)
			r, err := NewRunner(options)
			if err != nil {
				t.Fatalf("NewRunner() error = %v", err)
			}
			var got []types.ProbeType
			for _, adapter := range r.adapters {
				got = append(got, adapter.Type())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("adapters = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHostSweeperBackends(t *testing.T) {
	options := defaultOptions()
	options.FpingBinary = "pd-discovery-missing-fping"
	r := &Runner{options: options}
	toolOption := tools.WithTimeout(time.Second)

	options.PingBackend = PingBackendFping
	if _, ok := r.hostSweeper(toolOption).(*tools.Fping); !ok {
		t.Error("an explicit fping backend must be kept even without the binary")
	}

	for _, backend := range []string{PingBackendAuto, PingBackendNative} {
		options.PingBackend = backend
		if sweeper, ok := r.hostSweeper(toolOption).(*pingsweep.Sweeper); !ok {
			t.Errorf("%s: expected the native sweeper, got %T", backend, sweeper)
		}
	}
}

func TestMissingFpingDegradesPingSweep(t *testing.T) {
	options := defaultOptions()
	options.PingBackend = PingBackendFping
	options.FpingBinary = "pd-discovery-missing-fping"
	options.NoTCPAsync, options.NoNmap, options.NoUDP = true, true, true

	r, err := NewRunner(options)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if len(r.adapters) != 1 {
		t.Fatalf("expected the ping sweep only, got %d adapters", len(r.adapters))
	}

	target, err := netrange.Resolve("10.0.0.0/30")
	if err != nil {
		t.Fatal(err)
	}
	result := r.adapters[0].Run(context.Background(), target)
	if !errors.Is(result.Err, tools.ErrToolNotFound) {
		t.Errorf("Run() error = %v, want ErrToolNotFound", result.Err)
	}
	if len(result.Findings) != 0 {
		t.Errorf("Run() findings = %v, want none", result.Findings)
	}
}
