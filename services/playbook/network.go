package playbook

import (
	"fmt"
	"net"
	"strings"
)

// ErrBadIPConfig is wrapped by host extraction failures.
var ErrBadIPConfig = fmt.Errorf("malformed ipconfig string")

// HostFromIPConfig extracts the host address from a cloud-init network string
// of the form "ip=<addr>/<prefix>,gw=<addr>[,...]". Malformed input is an
// error, never a silently wrong address.
func HostFromIPConfig(ipconfig string) (string, error) {
	first := ipconfig
	if idx := strings.Index(ipconfig, ","); idx >= 0 {
		first = ipconfig[:idx]
	}

	addr, ok := strings.CutPrefix(first, "ip=")
	if !ok {
		return "", fmt.Errorf("%w: %q missing ip= segment", ErrBadIPConfig, ipconfig)
	}

	addr, _, ok = strings.Cut(addr, "/")
	if !ok {
		return "", fmt.Errorf("%w: %q missing /prefix", ErrBadIPConfig, ipconfig)
	}

	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("%w: %q is not an IP address", ErrBadIPConfig, addr)
	}

	return addr, nil
}
