// Package pingsweep discovers active hosts with an in-process ICMP echo sweep.
//
// A Sweeper satisfies the same contract as the fping collaborator: given a
// target spec it returns the responsive addresses, one per line. It is used
// when fping is not installed or when the native backend is requested.
//
// Discovery is performed by:
// - Expanding the target spec to individual IPs (network/broadcast excluded)
// - Sending echo requests over one shared connection per address family
// - Matching replies by echo ID, sequence number and source address
// - Resending to silent hosts for the configured number of retries
//
// Example usage:
//
//	sweeper := pingsweep.New(pingsweep.WithRetries(1))
//	output, err := sweeper.Sweep(ctx, netrange.TargetSpec{CIDR: "192.168.1.0/24"})
//
// Privilege Requirements:
// - Raw ICMP sockets require root/admin privileges on most systems
// - Without them the sweeper falls back to unprivileged datagram ICMP sockets
//   where the OS supports them (Linux with net.ipv4.ping_group_range, macOS)
//
// Limitations:
// - Hosts with ICMP disabled or firewalled will not respond
// - Some networks may rate-limit ICMP traffic
package pingsweep
