package enforce

import (
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Guard is a http.Handler middleware that redirects or refuses insecure requests according to its
// current settings. The settings can be replaced at any time; each request uses the settings that
// were current when it arrived.
type Guard struct {
	settings atomic.Pointer[Settings]
}

// NewGuard creates a new Guard using the given settings. If settings is nil, the defaults are used.
func NewGuard(settings *Settings) *Guard {
	g := &Guard{}
	g.Update(settings)
	return g
}

// Update replaces the settings used for subsequent requests.
func (g *Guard) Update(settings *Settings) {
	if settings == nil {
		settings = Resolve(Options{})
	}
	g.settings.Store(settings)
}

// Settings returns the settings currently in use.
func (g *Guard) Settings() *Settings {
	return g.settings.Load()
}

// Middleware wraps the given handler, only passing on requests that are secure.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		serve(g.settings.Load(), next, writer, request)
	})
}

// Middleware returns a middleware that enforces the given settings.
func Middleware(settings *Settings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			serve(settings, next, writer, request)
		})
	}
}

func serve(settings *Settings, next http.Handler, writer http.ResponseWriter, request *http.Request) {
	outcome := Decide(settings, request)
	if settings.Observer != nil {
		settings.Observer(request, outcome)
	}

	if outcome.Kind == Proceed {
		next.ServeHTTP(writer, request)
		return
	}

	slog.Debug(
		"Refusing insecure request",
		"outcome", outcome.Kind,
		"method", request.Method,
		"host", request.Host,
		"status", outcome.Status,
		"location", outcome.Location,
	)
	outcome.Write(writer)
}
