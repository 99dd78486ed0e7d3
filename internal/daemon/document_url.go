package daemon

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"studai/internal/services"
)

// ipLookup resolves a host name; tests replace it.
type ipLookup func(ctx context.Context, host string) ([]net.IP, error)

func defaultIPLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// checkDocumentURL accepts an http(s) pdf_url whose host is allowed by
// api.document_hosts and resolves only to public addresses.
func (s *apiServer) checkDocumentURL(ctx context.Context, raw string) error {
	const op = "resolve document"
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return services.Wrap(services.ErrValidation, "submit", op, "pdf_url must be an absolute URL", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "submit", op,
			fmt.Sprintf("pdf_url scheme %q is not supported", parsed.Scheme), nil)
	}
	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	if host == "" {
		return services.Wrap(services.ErrValidation, "submit", op, "pdf_url has no host", nil)
	}
	if !hostAllowed(host, s.documentHosts) {
		return services.Wrap(services.ErrValidation, "submit", op,
			fmt.Sprintf("pdf_url host %s is not in api.document_hosts", host), nil)
	}

	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		lookup := s.lookupIP
		if lookup == nil {
			lookup = defaultIPLookup
		}
		if ips, err = lookup(ctx, host); err != nil || len(ips) == 0 {
			return services.Wrap(services.ErrValidation, "submit", op,
				fmt.Sprintf("pdf_url host %s does not resolve", host), err)
		}
	}
	for _, ip := range ips {
		if !publicIP(ip) {
			return services.Wrap(services.ErrValidation, "submit", op,
				fmt.Sprintf("pdf_url host %s resolves to non-public address %s", host, ip), nil)
		}
	}
	return nil
}

func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, entry := range allowed {
		if strings.HasPrefix(entry, ".") {
			if strings.HasSuffix(host, entry) || host == entry[1:] {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}
