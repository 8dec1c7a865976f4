package enforce

import (
	"net"
	"net/http"
	"strings"
)

// Resolver decides whether a request arrived over a secure connection.
type Resolver interface {
	Secure(req *http.Request) bool
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(req *http.Request) bool

func (f ResolverFunc) Secure(req *http.Request) bool {
	return f(req)
}

type tlsResolver struct{}

// TLSResolver treats a request as secure if the connection it arrived on was encrypted.
// This is only useful if TLS is terminated by the same process.
func TLSResolver() Resolver {
	return tlsResolver{}
}

func (tlsResolver) Secure(req *http.Request) bool {
	return req.TLS != nil
}

type headerResolver struct {
	header string
	fold   bool
}

// XForwardedProtoResolver treats a request as secure if the X-Forwarded-Proto header is "https"
// (compared case-insensitively). Most load balancers and ingress controllers set this header.
func XForwardedProtoResolver() Resolver {
	return &headerResolver{header: "X-Forwarded-Proto", fold: true}
}

// CustomProtoHeaderResolver creates a resolver that treats a request as secure if the named header
// has the exact value "https".
func CustomProtoHeaderResolver(header string) Resolver {
	return &headerResolver{header: header}
}

func (h *headerResolver) Secure(req *http.Request) bool {
	value := req.Header.Get(h.header)
	if h.fold {
		return strings.EqualFold(value, "https")
	}
	return value == "https"
}

type azureResolver struct{}

// AzureResolver treats a request as secure if the X-Arr-Ssl header added by Azure's front ends is
// present and not a falsy value.
func AzureResolver() Resolver {
	return azureResolver{}
}

func (azureResolver) Secure(req *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(req.Header.Get("X-Arr-Ssl"))) {
	case "", "0", "false", "off":
		return false
	default:
		return true
	}
}

type forwardedResolver struct{}

// ForwardedResolver treats a request as secure if the standard Forwarded header (RFC 7239) carries
// proto=https. A missing or malformed header is never secure.
func ForwardedResolver() Resolver {
	return forwardedResolver{}
}

func (forwardedResolver) Secure(req *http.Request) bool {
	header := req.Header.Get("Forwarded")
	if header == "" {
		return false
	}
	return ParseForwarded(header)["proto"] == "https"
}

type trustedResolver struct {
	resolver           Resolver
	trustedDownstreams []net.IPNet
}

// TrustedResolver only consults the given resolver if the request came directly from one of the
// trusted downstream networks. Requests from anywhere else are never considered secure, as a client
// could otherwise just send the header themselves.
func TrustedResolver(resolver Resolver, trustedDownstreams []net.IPNet) Resolver {
	return &trustedResolver{resolver: resolver, trustedDownstreams: trustedDownstreams}
}

func (t *trustedResolver) Secure(req *http.Request) bool {
	return FromTrusted(req.RemoteAddr, t.trustedDownstreams) && t.resolver.Secure(req)
}

// FromTrusted reports whether the given remote address falls within one of the trusted networks.
// The address may be a bare IP or a host:port pair as found in http.Request.RemoteAddr.
func FromTrusted(remoteAddr string, trusted []net.IPNet) bool {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for i := range trusted {
		if trusted[i].Contains(parsed) {
			return true
		}
	}
	return false
}

// ResolverByName returns one of the built-in resolvers by the name used in config files.
// The "header" resolver needs an argument, so is not available here; see CustomProtoHeaderResolver.
func ResolverByName(name string) (Resolver, bool) {
	switch strings.ToLower(name) {
	case "tls", "https":
		return TLSResolver(), true
	case "x-forwarded-proto":
		return XForwardedProtoResolver(), true
	case "azure", "x-arr-ssl":
		return AzureResolver(), true
	case "forwarded":
		return ForwardedResolver(), true
	default:
		return nil, false
	}
}
