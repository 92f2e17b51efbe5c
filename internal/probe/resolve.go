package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Resolution classes reported by Resolve.
const (
	ResolveOK        = "RESOLVES"
	ResolveNotFound  = "NXDOMAIN"
	ResolveTransient = "SERVFAIL_or_TIMEOUT"
	ResolveInvalid   = "INVALID_ENDPOINT"
)

type Resolution struct {
	Endpoint string
	Host     string
	Addrs    []string
	Class    string
	Err      string
}

// Resolve looks up the host part of an endpoint, which may be a URL
// ("http://h:1/x", "postgres://u@h/db") or a bare "host:port".
func Resolve(ctx context.Context, resolver *net.Resolver, endpoint string) Resolution {
	res := Resolution{Endpoint: endpoint, Host: EndpointHost(endpoint)}
	if res.Host == "" {
		res.Class = ResolveInvalid
		return res
	}
	if ip := net.ParseIP(res.Host); ip != nil {
		res.Addrs = []string{ip.String()}
		res.Class = ResolveOK
		return res
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := resolver.LookupHost(ctx, res.Host)
	switch {
	case err == nil && len(addrs) > 0:
		res.Addrs = addrs
		res.Class = ResolveOK
	case err != nil:
		res.Err = err.Error()
		res.Class = ResolveTransient
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			res.Class = ResolveNotFound
		}
	default:
		res.Class = ResolveNotFound
	}
	return res
}

func EndpointHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}
