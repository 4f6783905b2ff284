package cookie

import (
	"net"
	"strings"
)

// DeriveDomain returns the registrable parent of host (its last two labels)
// so a cookie set on app.example.com is visible on api.example.com. IP
// addresses, localhost and single-label hosts yield "" (host-only cookies).
//
// Multi-part public suffixes such as co.uk are not recognised; deployments
// on them must configure the domain explicitly.
func DeriveDomain(host string) string {
	h := host
	if hp, _, err := net.SplitHostPort(host); err == nil {
		h = hp
	}
	h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), "[]")
	h = strings.TrimSuffix(h, ".")
	if h == "" || h == "localhost" || strings.HasSuffix(h, ".localhost") || net.ParseIP(h) != nil {
		return ""
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return ""
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
