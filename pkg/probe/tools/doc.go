// Package tools invokes the external discovery binaries: fping for ICMP
// sweeps, masscan for asynchronous port probes and nmap (through
// github.com/Ullaakut/nmap/v3) for the thorough TCP scan.
//
// Sampled host lists are passed through a temp file using each tool's list
// flag rather than on the command line. Every invocation is bounded by a
// timeout, and a binary lookup is cached for a minute.
//
// Privilege Requirements:
// - masscan and fping's raw sockets require root on most systems
package tools
