package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_ticketshare._udp"
	DefaultDomain      = "local"
)

type ServiceInfo struct {
	Name   string // instance name, e.g. "ticketshare-1a2b3c4d"
	Type   string // service name, e.g. "_ticketshare._udp"
	Domain string // domain, e.g. "local"
	Addrs  []net.IP
	Port   int
	Text   map[string]string
}

// Endpoints returns host:port strings for every known address.
func (s ServiceInfo) Endpoints() []string {
	out := make([]string, 0, len(s.Addrs))
	for _, ip := range s.Addrs {
		out = append(out, net.JoinHostPort(ip.String(), strconv.Itoa(s.Port)))
	}
	return out
}

// ServiceName is the fully qualified browse name, e.g. "_ticketshare._udp.local.".
func ServiceName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

// DiscoveryResult carries either a snapshot of the visible services or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}
