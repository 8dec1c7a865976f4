package enforce

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// OutcomeKind describes what should happen to a request.
type OutcomeKind int

const (
	Proceed  OutcomeKind = iota // The request is secure and should be passed on
	Redirect                    // The client should be sent to the HTTPS equivalent URL
	Disallow                    // The method can't be redirected, and the request is refused
)

func (k OutcomeKind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case Redirect:
		return "redirect"
	case Disallow:
		return "disallow"
	default:
		return "unknown"
	}
}

// Outcome is the result of deciding what to do with a single request.
type Outcome struct {
	Kind     OutcomeKind
	Status   int    // Response status, unused for Proceed
	Location string // Redirect target, only for Redirect
	Allow    string // Allow header, only for Disallow
}

// Decide works out what to do with the given request. It does not modify the request, and always
// returns the same outcome for the same settings and request.
func Decide(settings *Settings, req *http.Request) Outcome {
	resolver := settings.Resolver
	if resolver == nil {
		resolver = TLSResolver()
	}

	if resolver.Secure(req) {
		return Outcome{Kind: Proceed}
	}

	if !settings.table.Redirects(req.Method) {
		status := settings.DisallowStatus
		if req.Method == http.MethodOptions && settings.Options == OptionsAllow {
			status = http.StatusOK
		}

		return Outcome{
			Kind:   Disallow,
			Status: status,
			Allow:  settings.table.AllowHeader(),
		}
	}

	status, _ := settings.table.Status(req.Method)
	return Outcome{
		Kind:     Redirect,
		Status:   status,
		Location: redirectLocation(settings, req),
	}
}

func redirectLocation(settings *Settings, req *http.Request) string {
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(redirectHost(settings, req))

	if !settings.SkipDefaultPort || settings.Port != 443 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(settings.Port))
	}

	if !settings.IgnoreURL {
		b.WriteString(requestURI(req))
	}

	return b.String()
}

// redirectHost returns the configured hostname, or the one the client asked for with any port removed.
func redirectHost(settings *Settings, req *http.Request) string {
	if settings.Hostname != "" {
		return settings.Hostname
	}

	host, _, err := net.SplitHostPort(req.Host)
	if err != nil {
		host = req.Host
	}

	// SplitHostPort drops the brackets around IPv6 literals
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host
}

// requestURI returns the path and query exactly as the client sent them, where available.
func requestURI(req *http.Request) string {
	if req.RequestURI != "" && strings.HasPrefix(req.RequestURI, "/") {
		return req.RequestURI
	}
	if req.URL == nil {
		return ""
	}
	return req.URL.RequestURI()
}

// Write sends the response for a Redirect or Disallow outcome. It does nothing for Proceed.
func (o Outcome) Write(writer http.ResponseWriter) {
	switch o.Kind {
	case Redirect:
		writer.Header().Set("Location", o.Location)
		writer.WriteHeader(o.Status)
	case Disallow:
		writer.Header().Set("Allow", o.Allow)
		writer.WriteHeader(o.Status)
	}
}
