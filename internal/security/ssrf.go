package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"clawmobile/internal/domain"
)

// privateRanges lists private, loopback and link-local blocks. A paired agent
// normally lives in one of these.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var parsedRanges []*net.IPNet

func init() {
	for _, cidr := range privateRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		parsedRanges = append(parsedRanges, ipnet)
	}
}

// ValidateServerURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateServerURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.NewDomainError("ValidateServerURL", domain.ErrInvalidInput, fmt.Sprintf("invalid URL: %v", err))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return domain.NewDomainError("ValidateServerURL", domain.ErrInvalidInput,
			"missing URL scheme, only http/https allowed")
	default:
		return domain.NewDomainError("ValidateServerURL", domain.ErrInvalidInput,
			fmt.Sprintf("scheme %q not allowed, only http/https", u.Scheme))
	}
	if u.Hostname() == "" {
		return domain.NewDomainError("ValidateServerURL", domain.ErrInvalidInput, "empty hostname")
	}
	return nil
}

// InsecureTransport reports whether rawURL would send the bearer token in
// clear text beyond the local network: plain http to a public IP or to a DNS
// name that is not localhost or mDNS (.local).
func InsecureTransport(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Scheme, "http") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if ip := net.ParseIP(host); ip != nil {
		return !IsPrivateIP(ip)
	}
	return host != "localhost" && !strings.HasSuffix(host, ".local")
}

// IsPrivateIP checks if an IP falls within any private/reserved range.
func IsPrivateIP(ip net.IP) bool {
	// Normalize IPv4-mapped IPv6 to IPv4
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	for _, ipnet := range parsedRanges {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
