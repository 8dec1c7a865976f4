package proxy

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/csmith/tlsguard/enforce"
)

// Decorator adjusts a request before it is sent upstream. in is the request as received from the
// client; out is the request that will be proxied.
type Decorator interface {
	Decorate(in, out *http.Request)
}

type bannedHeaderDecorator struct {
	headers []string
}

// NewBannedHeaderDecorator returns a decorator that strips headers describing the client connection.
// extra names any further headers to strip, such as the one read by a custom protocol header resolver.
func NewBannedHeaderDecorator(extra ...string) Decorator {
	return &bannedHeaderDecorator{
		headers: append([]string{"X-Real-IP", "True-Client-IP", "X-Arr-Ssl"}, extra...),
	}
}

func (b *bannedHeaderDecorator) Decorate(_, out *http.Request) {
	for i := range b.headers {
		out.Header.Del(b.headers[i])
	}
}

type forwardingDecorator struct {
	trustedDownstreams []net.IPNet
}

// NewForwardingDecorator returns a decorator that describes the client to the upstream using both the
// X-Forwarded-* headers and an RFC 7239 Forwarded header. Existing values are only carried over when
// the request came from a trusted downstream. The protocol is always https, as only secure requests
// are proxied.
func NewForwardingDecorator(trustedDownstreams []net.IPNet) Decorator {
	return &forwardingDecorator{trustedDownstreams: trustedDownstreams}
}

func (f *forwardingDecorator) Decorate(in, out *http.Request) {
	ip, _, err := net.SplitHostPort(in.RemoteAddr)
	if err != nil {
		ip = in.RemoteAddr
	}
	trusted := enforce.FromTrusted(in.RemoteAddr, f.trustedDownstreams)

	host := in.Host
	if h := in.Header.Get("X-Forwarded-Host"); trusted && h != "" {
		host = h
	}

	out.Header.Set("X-Forwarded-For", chain(trusted, in.Header.Values("X-Forwarded-For"), ip))
	out.Header.Set("X-Forwarded-Host", host)
	out.Header.Set("X-Forwarded-Proto", "https")

	element := fmt.Sprintf("for=%s;host=%s;proto=https", forwardedNode(ip), forwardedValue(in.Host))
	out.Header.Set("Forwarded", chain(trusted, in.Header.Values("Forwarded"), element))
}

// chain appends value to any previous hops, which are only kept if they came from a trusted source.
func chain(trusted bool, previous []string, value string) string {
	if !trusted || len(previous) == 0 {
		return value
	}
	return strings.Join(previous, ", ") + ", " + value
}

func forwardedNode(ip string) string {
	if strings.Contains(ip, ":") {
		return fmt.Sprintf("\"[%s]\"", ip)
	}
	return forwardedValue(ip)
}

func forwardedValue(v string) string {
	if v == "" || strings.ContainsFunc(v, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune(".-_~", r))
	}) {
		return fmt.Sprintf("%q", v)
	}
	return v
}

type userAgentDecorator struct{}

// NewUserAgentDecorator returns a decorator that sends an empty User-Agent when the client didn't
// send one, instead of Go's default.
func NewUserAgentDecorator() Decorator {
	return &userAgentDecorator{}
}

func (u *userAgentDecorator) Decorate(_, out *http.Request) {
	if _, ok := out.Header["User-Agent"]; !ok {
		out.Header.Set("User-Agent", "")
	}
}
