package common

import "net"

// IsNetworkOrBroadcast checks if an IP is the network or broadcast address.
// For IPv4, it checks both network and broadcast addresses.
// For IPv6, it checks the subnet-router anycast (network) address only.
// Point-to-point networks (/31, /32, /127, /128) have neither.
func IsNetworkOrBroadcast(ip net.IP, network *net.IPNet) bool {
	if network == nil || !HasReservedAddresses(network) {
		return false
	}

	if ip.Equal(network.IP) {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		return ip.Equal(BroadcastAddress(network))
	}

	return false
}

// HasReservedAddresses reports whether the network keeps its first and last
// addresses out of the usable host pool
func HasReservedAddresses(network *net.IPNet) bool {
	ones, bits := network.Mask.Size()
	return bits-ones > 1
}

// BroadcastAddress returns the all-ones host address of network
func BroadcastAddress(network *net.IPNet) net.IP {
	broadcast := make(net.IP, len(network.IP))
	copy(broadcast, network.IP)
	for i := range broadcast {
		broadcast[i] |= ^network.Mask[i]
	}
	return broadcast
}
