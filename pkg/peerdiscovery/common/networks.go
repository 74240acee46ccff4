package common

import (
	"net"
)

var (
	mask24 = net.CIDRMask(24, 32)
	mask64 = net.CIDRMask(64, 128)
)

// GetLocalNetworks returns the private networks attached to local interfaces:
// IPv4 addresses widened to /24, IPv6 link-local and ULA addresses to /64
func GetLocalNetworks() ([]*net.IPNet, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var networks []*net.IPNet
	seen := make(map[string]struct{})

	for _, iface := range interfaces {
		// Skip loopback and down interfaces
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}

			network := localNetwork(ipNet.IP)
			if network == nil {
				continue
			}

			key := network.String()
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			networks = append(networks, network)
		}
	}

	return networks, nil
}

// localNetwork widens a private interface address to its scan network,
// returning nil for addresses that should not be scanned
func localNetwork(ip net.IP) *net.IPNet {
	if ip4 := ip.To4(); ip4 != nil {
		if !ip4.IsPrivate() {
			return nil
		}
		return &net.IPNet{IP: ip4.Mask(mask24), Mask: mask24}
	}

	if len(ip) != net.IPv6len || ip.IsLoopback() || ip.IsMulticast() {
		return nil
	}

	// ULA addresses start with fd (fd00::/8)
	if !ip.IsLinkLocalUnicast() && ip[0] != 0xfd {
		return nil
	}
	return &net.IPNet{IP: ip.Mask(mask64), Mask: mask64}
}
