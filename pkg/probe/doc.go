// Package probe adapts external discovery tools to a common contract.
//
// Each adapter picks its targets from a resolved range, hands them to a
// collaborator and turns the raw output into (host, label) findings:
//   - ICMPSweep: newline separated responsive hosts, labelled "ICMP"
//   - AsyncPorts: one JSON record per line with ip and ports[0].port,
//     labelled "<port> (TCP)" or "<port> (UDP)"
//   - ThoroughTCP: a host to open ports map, labelled "<port> (TCP)"
//
// Small ranges are probed in full. Medium and large ranges are probed against
// the first of three random sample sets, at a per technique percentage.
//
// Collaborator failures never surface as panics or aborts: they come back as
// a Result with an Err and no findings, which callers treat exactly like a
// probe that found nothing. Malformed output lines are skipped.
package probe
