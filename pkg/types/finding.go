package types

import "fmt"

// LabelICMP marks a host that answered an echo request
const LabelICMP = "ICMP"

// Finding is a single (host, service label) fact reported by a probe
type Finding struct {
	Host  string
	Label string
}

// PortLabel renders the service label for an open port, e.g. "80 (TCP)"
func PortLabel(port int, proto Protocol) string {
	return fmt.Sprintf("%d (%s)", port, proto)
}
