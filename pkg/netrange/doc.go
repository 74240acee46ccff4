// Package netrange resolves CIDR target ranges into their usable host
// population and buckets them by size.
//
// The size class decides how aggressively probes subsample a range:
//   - small:  up to 32512 hosts, probed in full
//   - medium: more than 32512 and fewer than 16777214 hosts
//   - large:  16777214 hosts and above
//
// Example:
//
//	r, err := netrange.Resolve("10.0.0.0/16")
//	// r.Class == netrange.Medium, len(r.Hosts) == 65534
package netrange
