// Package discovery finds agent servers advertising themselves on the local
// network.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"clawmobile/internal/domain"
)

// Service browsed for on the local network.
const (
	ServiceType = "_allmightyclaw._tcp"
	Domain      = "local."
)

// Browser scans for agent servers.
type Browser interface {
	Scan(ctx context.Context) ([]domain.Server, error)
}

// serverFromRecord builds a Server from one resolved service instance. TXT
// keys "id", "name" and "scheme" override the defaults. The first usable
// address wins; IPv4 is preferred.
func serverFromRecord(instance string, ipv4, ipv6 []net.IP, port int, txt []string) (domain.Server, bool) {
	meta := parseTXTRecords(txt)

	var host string
	switch {
	case len(ipv4) > 0:
		host = ipv4[0].String()
	case len(ipv6) > 0:
		host = ipv6[0].String()
	default:
		return domain.Server{}, false
	}

	scheme := strings.ToLower(meta["scheme"])
	if scheme != "https" {
		scheme = "http"
	}

	name := meta["name"]
	if name == "" {
		name = instance
	}
	id := meta["id"]
	if id == "" {
		id = instance
	}
	return domain.Server{
		ID:   id,
		Name: name,
		URL:  fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port))),
	}, true
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		k, v, ok := strings.Cut(t, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

// dedupe keeps the first server seen for each URL.
func dedupe(servers []domain.Server) []domain.Server {
	seen := make(map[string]bool, len(servers))
	out := servers[:0]
	for _, s := range servers {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}
