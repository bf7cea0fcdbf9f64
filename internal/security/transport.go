// Package security guards outbound channel webhook calls against requests
// into private networks.
//
// Webhook URLs come from deployment configuration, but a receiver can still
// redirect, or its DNS can resolve, to internal addresses such as the Lambda
// runtime API, the instance metadata service or VPC endpoints. SafeTransport
// checks every resolved address at dial time and CheckRedirect repeats the
// check for each redirect hop.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout is the maximum time allowed for DNS resolution.
const dnsTimeout = 500 * time.Millisecond

// DefaultMaxRedirects is the redirect limit used by NewSafeHTTPClient.
const DefaultMaxRedirects = 3

var (
	// ErrBlocked is returned when a request targets a blocked IP range.
	ErrBlocked = errors.New("egress: request to blocked IP range")
	// ErrDNSTimeout is returned when DNS resolution exceeds dnsTimeout.
	ErrDNSTimeout = errors.New("egress: DNS resolution timeout")
	// ErrDNSFailed is returned when DNS resolution fails entirely.
	ErrDNSFailed = errors.New("egress: DNS resolution failed")
	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("egress: too many redirects")
)

// BlockedCIDRs lists the ranges webhook calls may never reach.
var BlockedCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

var blockedNets = mustParseCIDRs(BlockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("egress: bad CIDR %q: %v", cidr, err))
		}
		nets = append(nets, ipNet)
	}
	return nets
}

// IsBlockedIP reports whether ip falls within a blocked range. IPv4-mapped
// IPv6 addresses are checked as IPv4.
func IsBlockedIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, ipNet := range blockedNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// resolveAllowed resolves host and fails if any address is blocked, so a
// public address mixed with a private one is still rejected.
func resolveAllowed(ctx context.Context, resolver Resolver, host string) ([]net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return []net.IPAddr{{IP: ip}}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, err := resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}

	for _, addr := range ips {
		if IsBlockedIP(addr.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, addr.IP, host)
		}
	}
	return ips, nil
}

// SafeTransport is an http.RoundTripper whose dialer refuses blocked
// addresses.
type SafeTransport struct {
	Base *http.Transport

	// Resolver is used for DNS lookups. If nil, net.DefaultResolver is used.
	Resolver Resolver
}

// NewSafeTransport wraps base, replacing its DialContext. A nil base gets a
// clone of http.DefaultTransport.
func NewSafeTransport(base *http.Transport) *SafeTransport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	// The guarded dialer connects to an address it has already validated.
	base.Proxy = nil
	st := &SafeTransport{Base: base}
	base.DialContext = st.dialContext
	return st
}

// RoundTrip implements http.RoundTripper.
func (st *SafeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return st.Base.RoundTrip(req)
}

func (st *SafeTransport) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid address %q: %w", addr, err)
	}

	ips, err := resolveAllowed(ctx, st.resolver(), host)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
}

func (st *SafeTransport) resolver() Resolver {
	if st.Resolver != nil {
		return st.Resolver
	}
	return net.DefaultResolver
}

// CheckRedirect returns an http.Client CheckRedirect function that enforces
// maxRedirects and validates each redirect target. A nil resolver uses
// net.DefaultResolver.
func CheckRedirect(maxRedirects int, resolver Resolver) func(req *http.Request, via []*http.Request) error {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		_, err := resolveAllowed(req.Context(), resolver, host)
		return err
	}
}

// NewSafeHTTPClient creates the http.Client used for channel webhooks.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Transport:     NewSafeTransport(nil),
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(maxRedirects, nil),
	}
}
