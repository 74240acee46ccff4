package probe

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
)

type fakeSweeper struct {
	output []byte
	err    error
	calls  []netrange.TargetSpec
}

func (f *fakeSweeper) Sweep(_ context.Context, target netrange.TargetSpec) ([]byte, error) {
	f.calls = append(f.calls, target)
	return f.output, f.err
}

type fakePortScanner struct {
	output []byte
	err    error
	ports  []string
	proto  types.Protocol
	calls  []netrange.TargetSpec
}

func (f *fakePortScanner) ScanPorts(_ context.Context, target netrange.TargetSpec, ports []string, proto types.Protocol) ([]byte, error) {
	f.calls = append(f.calls, target)
	f.ports = ports
	f.proto = proto
	return f.output, f.err
}

type fakeServiceScanner struct {
	services map[string][]int
	err      error
	panics   bool
	calls    []netrange.TargetSpec
}

func (f *fakeServiceScanner) ScanServices(_ context.Context, target netrange.TargetSpec) (map[string][]int, error) {
	f.calls = append(f.calls, target)
	if f.panics {
		panic("scanner blew up")
	}
	return f.services, f.err
}

func mustResolve(t *testing.T, cidr string) *netrange.NetworkRange {
	t.Helper()
	r, err := netrange.Resolve(cidr)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", cidr, err)
	}
	return r
}

func TestICMPSweepSmallRangeUsesFullRange(t *testing.T) {
	target := mustResolve(t, "10.0.0.0/24")
	if target.Class != netrange.Small {
		t.Fatalf("class = %v, want small", target.Class)
	}

	sweeper := &fakeSweeper{output: []byte("10.0.0.1\n10.0.0.20\n\nICMP Host Unreachable from 10.0.0.1\n")}
	result := NewICMPSweep(sweeper).Run(context.Background(), target)

	if len(sweeper.calls) != 1 {
		t.Fatalf("sweeper called %d times, want 1", len(sweeper.calls))
	}
	spec := sweeper.calls[0]
	if spec.IsList() || spec.CIDR != "10.0.0.0/24" {
		t.Errorf("target spec = %+v, want the whole /24", spec)
	}
	if result.Sampled || result.Targets != 254 {
		t.Errorf("Sampled = %v, Targets = %d; want full 254", result.Sampled, result.Targets)
	}

	want := []types.Finding{{Host: "10.0.0.1", Label: "ICMP"}, {Host: "10.0.0.20", Label: "ICMP"}}
	if !reflect.DeepEqual(result.Findings, want) {
		t.Errorf("Findings = %v, want %v", result.Findings, want)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Failed() {
		t.Errorf("unexpected error: %v", result.Err)
	}
}

func TestThoroughTCPMediumRangeSamples(t *testing.T) {
	target := mustResolve(t, "10.0.0.0/16")
	if target.Class != netrange.Medium {
		t.Fatalf("class = %v, want medium", target.Class)
	}

	scanner := &fakeServiceScanner{services: map[string][]int{}}
	adapter := NewThoroughTCP(scanner, WithPolicy(Policy{Medium: 0.10, Large: 0.005}), WithRand(rand.New(rand.NewPCG(1, 1))))
	result := adapter.Run(context.Background(), target)

	if len(scanner.calls) != 1 {
		t.Fatalf("scanner called %d times", len(scanner.calls))
	}
	spec := scanner.calls[0]
	if !spec.IsList() {
		t.Fatal("medium range must be probed with a host list")
	}
	if len(spec.Hosts) != 6553 || result.Targets != 6553 || !result.Sampled {
		t.Errorf("sample has %d hosts (Targets %d, Sampled %v), want 6553", len(spec.Hosts), result.Targets, result.Sampled)
	}

	population := make(map[string]struct{}, len(target.Hosts))
	for _, h := range target.Hosts {
		population[h] = struct{}{}
	}
	seen := make(map[string]struct{}, len(spec.Hosts))
	for _, h := range spec.Hosts {
		if _, ok := population[h]; !ok {
			t.Fatalf("sampled host %s is outside the range", h)
		}
		if _, dup := seen[h]; dup {
			t.Fatalf("host %s sampled twice", h)
		}
		seen[h] = struct{}{}
	}
}

func TestThoroughTCPFindings(t *testing.T) {
	target := mustResolve(t, "192.168.1.0/24")
	scanner := &fakeServiceScanner{services: map[string][]int{
		"192.168.1.20": {443, 22},
		"192.168.1.3":  {80},
		"192.168.1.4":  {},
	}}

	result := NewThoroughTCP(scanner).Run(context.Background(), target)
	want := []types.Finding{
		{Host: "192.168.1.20", Label: "22 (TCP)"},
		{Host: "192.168.1.20", Label: "443 (TCP)"},
		{Host: "192.168.1.3", Label: "80 (TCP)"},
	}
	if !reflect.DeepEqual(result.Findings, want) {
		t.Errorf("Findings = %v, want %v", result.Findings, want)
	}
}

func TestAsyncPortsParsesValidAndSkipsMalformed(t *testing.T) {
	target := mustResolve(t, "10.0.0.0/24")
	scanner := &fakePortScanner{output: []byte("{\"ip\":\"10.0.0.5\",\"ports\":[{\"port\":80}]}\n{\"ip\":\n")}

	result := NewTCPAsync(scanner).Run(context.Background(), target)

	if result.Failed() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	want := []types.Finding{{Host: "10.0.0.5", Label: "80 (TCP)"}}
	if !reflect.DeepEqual(result.Findings, want) {
		t.Errorf("Findings = %v, want %v", result.Findings, want)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if scanner.proto != types.TCP || !reflect.DeepEqual(scanner.ports, TopTCPPorts) {
		t.Errorf("scanner got proto %s, ports %v", scanner.proto, scanner.ports)
	}
}

func TestUDPAsyncDefaults(t *testing.T) {
	target := mustResolve(t, "10.0.0.0/28")
	scanner := &fakePortScanner{output: []byte(`{"ip":"10.0.0.3","ports":[{"port":161,"proto":"udp"}]}`)}

	adapter := NewUDPAsync(scanner)
	result := adapter.Run(context.Background(), target)

	if adapter.Type() != types.UDPAsync || adapter.Protocol() != types.UDP {
		t.Errorf("Type() = %v, Protocol() = %v", adapter.Type(), adapter.Protocol())
	}
	if len(scanner.ports) != len(TopUDPPorts) {
		t.Errorf("scanner got %d ports, want %d", len(scanner.ports), len(TopUDPPorts))
	}
	want := []types.Finding{{Host: "10.0.0.3", Label: "161 (UDP)"}}
	if !reflect.DeepEqual(result.Findings, want) {
		t.Errorf("Findings = %v, want %v", result.Findings, want)
	}
}

func TestWithPortsOverride(t *testing.T) {
	scanner := &fakePortScanner{}
	adapter := NewTCPAsync(scanner, WithPorts([]string{"8443"}))
	if !reflect.DeepEqual(adapter.Ports(), []string{"8443"}) {
		t.Errorf("Ports() = %v", adapter.Ports())
	}
	adapter = NewTCPAsync(scanner, WithPorts(nil))
	if !reflect.DeepEqual(adapter.Ports(), TopTCPPorts) {
		t.Errorf("empty override must keep the defaults, got %v", adapter.Ports())
	}
}

func TestCollaboratorFailureYieldsEmptyResult(t *testing.T) {
	target := mustResolve(t, "10.0.0.0/24")
	toolErr := errors.New("exit status 2")

	t.Run("error", func(t *testing.T) {
		result := NewICMPSweep(&fakeSweeper{output: []byte("10.0.0.1\n"), err: toolErr}).Run(context.Background(), target)
		if !errors.Is(result.Err, toolErr) {
			t.Errorf("Err = %v, want wrapped tool error", result.Err)
		}
		if len(result.Findings) != 0 {
			t.Errorf("Findings = %v, want none on failure", result.Findings)
		}
	})

	t.Run("panic", func(t *testing.T) {
		result := NewThoroughTCP(&fakeServiceScanner{panics: true}).Run(context.Background(), target)
		if !result.Failed() || len(result.Findings) != 0 {
			t.Errorf("panic must degrade to an empty failed result, got %+v", result)
		}
	})

	t.Run("empty output", func(t *testing.T) {
		result := NewTCPAsync(&fakePortScanner{}).Run(context.Background(), target)
		if result.Failed() || len(result.Findings) != 0 {
			t.Errorf("empty output = %+v, want empty successful result", result)
		}
	})
}

func TestParseAsyncRecords(t *testing.T) {
	output := []byte(`[
{   "ip": "10.0.0.5",   "timestamp": "1700000000", "ports": [ {"port": 22, "proto": "tcp", "status": "open"} ] },
{   "ip": "10.0.0.6",   "timestamp": "1700000000", "ports": [ {"port": 80, "proto": "tcp", "status": "open"} ] }
]
{"ip":"10.0.0.7","ports":[]}
{"ip":"10.0.0.8"}
{"ports":[{"port":80}]}
{"ip":"not-an-ip","ports":[{"port":80}]}
{"ip":"10.0.0.9","ports":[{"port":"80"}]}
garbage
`)
	findings, skipped := ParseAsyncRecords(output, types.TCP)
	want := []types.Finding{
		{Host: "10.0.0.5", Label: "22 (TCP)"},
		{Host: "10.0.0.6", Label: "80 (TCP)"},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("findings = %v, want %v", findings, want)
	}
	if skipped != 6 {
		t.Errorf("skipped = %d, want 6", skipped)
	}
}

func TestParseAsyncRecordsRejectsInvalidPorts(t *testing.T) {
	output := []byte(`{"ip":"10.0.0.1","ports":[{"port":70000}]}
{"ip":"10.0.0.2","ports":[{"port":-1}]}
{"ip":"10.0.0.3","ports":[{"port":80.5}]}
{"ip":"10.0.0.4","ports":[{"port":0}]}
{"ip":"10.0.0.5","ports":[{"port":65535}]}
{"ip":"10.0.0.6","ports":[{"port":1}]}
`)
	findings, skipped := ParseAsyncRecords(output, types.UDP)
	want := []types.Finding{
		{Host: "10.0.0.5", Label: "65535 (UDP)"},
		{Host: "10.0.0.6", Label: "1 (UDP)"},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("findings = %v, want %v", findings, want)
	}
	if skipped != 4 {
		t.Errorf("skipped = %d, want 4", skipped)
	}
}

func TestParseSkipsOversizedLine(t *testing.T) {
	var output bytes.Buffer
	output.WriteString(`{"ip":"10.0.0.1","ports":[{"port":22}]}` + "\n")
	output.Write(bytes.Repeat([]byte("x"), 5*humanize.MiByte))
	output.WriteString("\n" + `{"ip":"10.0.0.5","ports":[{"port":80}]}` + "\n")

	findings, skipped := ParseAsyncRecords(output.Bytes(), types.TCP)
	want := []types.Finding{
		{Host: "10.0.0.1", Label: "22 (TCP)"},
		{Host: "10.0.0.5", Label: "80 (TCP)"},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("findings = %v, want %v", findings, want)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	hostOutput := append(bytes.Repeat([]byte("1"), 5*humanize.MiByte), []byte("\n10.0.0.9\n")...)
	hosts, skipped := ParseHostList(hostOutput)
	if !reflect.DeepEqual(hosts, []string{"10.0.0.9"}) || skipped != 1 {
		t.Errorf("ParseHostList() = %v, %d", hosts, skipped)
	}
}

func TestParseHostList(t *testing.T) {
	hosts, skipped := ParseHostList([]byte(" 10.0.0.1 \r\n\nfd00::1\n10.0.0.300\n"))
	if !reflect.DeepEqual(hosts, []string{"10.0.0.1", "fd00::1"}) {
		t.Errorf("hosts = %v", hosts)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestResultByHost(t *testing.T) {
	result := Result{Findings: []types.Finding{
		{Host: "10.0.0.2", Label: "22 (TCP)"},
		{Host: "10.0.0.1", Label: "80 (TCP)"},
		{Host: "10.0.0.2", Label: "443 (TCP)"},
	}}
	hosts, grouped := result.ByHost()
	if !reflect.DeepEqual(hosts, []string{"10.0.0.2", "10.0.0.1"}) {
		t.Errorf("hosts = %v", hosts)
	}
	if !reflect.DeepEqual(grouped["10.0.0.2"], []string{"22 (TCP)", "443 (TCP)"}) {
		t.Errorf("grouped = %v", grouped)
	}
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicies[types.ICMPSweep]
	if p.Percentage(netrange.Small) != 1 || p.Percentage(netrange.Medium) != 0.1 || p.Percentage(netrange.Large) != 0.005 {
		t.Errorf("unexpected ICMP policy %+v", p)
	}
	if p.Samples(netrange.Small) || !p.Samples(netrange.Large) {
		t.Error("only medium and large ranges are sampled")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (Policy{Medium: 0, Large: 0.5}).Validate(); err == nil {
		t.Error("expected error for zero percentage")
	}
	if err := (Policy{Medium: 0.5, Large: 1.5}).Validate(); err == nil {
		t.Error("expected error for percentage above one")
	}
	for _, probe := range types.AllProbes {
		if _, ok := DefaultPolicies[probe]; !ok {
			t.Errorf("no default policy for %s", probe)
		}
	}
}
