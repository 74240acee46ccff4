package probe

import (
	"bufio"
	"bytes"
	"math"
	"net"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/projectdiscovery/pd-discovery/pkg/types"
	"github.com/tidwall/gjson"
)

const (
	// maxLineSize bounds a single output line; longer lines are skipped
	maxLineSize    = 4 * humanize.MiByte
	readBufferSize = 64 * humanize.KiByte

	maxPort = 65535
)

// eachLine calls fn for every non-blank line and returns how many lines
// were dropped for exceeding maxLineSize
func eachLine(output []byte, fn func(line string)) (oversized int) {
	reader := bufio.NewReaderSize(bytes.NewReader(output), readBufferSize)
	var (
		line       []byte
		discarding bool
	)
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return oversized
		}
		if !discarding {
			if len(line)+len(chunk) > maxLineSize {
				discarding = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if isPrefix {
			continue
		}

		if discarding {
			oversized++
			discarding = false
		} else if text := strings.TrimSpace(string(line)); text != "" {
			fn(text)
		}
		line = line[:0]
	}
}

// ParseHostList reads one address per line, skipping anything that is not an IP
func ParseHostList(output []byte) (hosts []string, skipped int) {
	oversized := eachLine(output, func(line string) {
		ip := net.ParseIP(line)
		if ip == nil {
			skipped++
			return
		}
		hosts = append(hosts, ip.String())
	})
	return hosts, skipped + oversized
}

// ParseAsyncRecords reads JSON records, one per line, each carrying an ip and
// a ports list whose first element has a port. The array framing masscan
// wraps its records in is tolerated; any other malformed line is skipped.
func ParseAsyncRecords(output []byte, proto types.Protocol) (findings []types.Finding, skipped int) {
	oversized := eachLine(output, func(line string) {
		line = strings.TrimSuffix(line, ",")
		if line == "[" || line == "]" {
			return
		}
		if !gjson.Valid(line) {
			skipped++
			return
		}

		record := gjson.Parse(line)
		ip := record.Get("ip")
		port := record.Get("ports.0.port")
		if ip.Type != gjson.String || net.ParseIP(ip.String()) == nil || !validPort(port) {
			skipped++
			return
		}

		findings = append(findings, types.Finding{
			Host:  ip.String(),
			Label: types.PortLabel(int(port.Int()), proto),
		})
	})
	return findings, skipped + oversized
}

// validPort accepts whole numbers in 1..65535
func validPort(port gjson.Result) bool {
	if port.Type != gjson.Number {
		return false
	}
	value := port.Float()
	return value == math.Trunc(value) && value >= 1 && value <= maxPort
}

// portMapFindings flattens a host to ports map, hosts and ports ascending
func portMapFindings(services map[string][]int, proto types.Protocol) []types.Finding {
	hosts := make([]string, 0, len(services))
	for host := range services {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	var findings []types.Finding
	for _, host := range hosts {
		ports := append([]int(nil), services[host]...)
		sort.Ints(ports)
		for _, port := range ports {
			findings = append(findings, types.Finding{Host: host, Label: types.PortLabel(port, proto)})
		}
	}
	return findings
}
