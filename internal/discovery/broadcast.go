package discovery

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/jackpal/gateway"
)

var limitedBroadcast = net.IPv4(0xff, 0xff, 0xff, 0xff)

// broadcastAddrs returns the directed broadcast address of every up IPv4
// interface that supports broadcast, falling back to 255.255.255.255.
func broadcastAddrs() []net.IP {
	var dsts []net.IP
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagBroadcast == 0 || ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := ifi.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				if ipn, ok := addr.(*net.IPNet); ok && ipn.IP.IsGlobalUnicast() && ipn.IP.To4() != nil {
					dsts = append(dsts, bcast(ipn).IP)
				}
			}
		}
	}
	if len(dsts) == 0 {
		dsts = append(dsts, limitedBroadcast)
	}
	return dsts
}

// bcast returns the broadcast address of the network ip belongs to.
func bcast(ip *net.IPNet) *net.IPNet {
	v4 := ip.IP.To4()
	mask := ip.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	bc := &net.IPNet{IP: make(net.IP, net.IPv4len), Mask: mask}
	for i := range v4 {
		bc.IP[i] = v4[i] | ^mask[i]
	}
	return bc
}

// localIPv4 returns the IPv4 address of the interface holding the default
// route, else the first non-loopback IPv4 address of this host, or "".
func localIPv4() string {
	if ip, err := gateway.DiscoverInterface(); err == nil {
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4.String()
		}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipn, ok := addr.(*net.IPNet); ok && ipn.IP.IsGlobalUnicast() {
			if v4 := ipn.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}

// resolveTargets turns configured targets into UDP destinations. A target
// without a port gets defPort; unresolvable targets are skipped.
func resolveTargets(targets []string, defPort int) []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(targets))
	for _, t := range targets {
		hostport := t
		if _, _, err := net.SplitHostPort(t); err != nil {
			hostport = net.JoinHostPort(t, strconv.Itoa(defPort))
		}
		addr, err := net.ResolveUDPAddr("udp4", hostport)
		if err != nil {
			slog.Debug("discovery target unresolvable", "target", t, "err", err)
			continue
		}
		out = append(out, addr)
	}
	return out
}
