package enforce

import (
	"net/http"

	"golang.org/x/exp/slices"
)

// OptionsPolicy determines how insecure OPTIONS requests are handled.
type OptionsPolicy int

const (
	OptionsAllow    OptionsPolicy = iota // Always answer OPTIONS with 200 and an Allow header
	OptionsDisallow                      // Treat OPTIONS like any other method
)

// Options is the loosely specified configuration for an enforcer. Every field is optional: nil
// pointers and nil slices take their defaults. A non-nil empty slice is respected, so
// RedirectMethods: []string{} disables redirects entirely.
type Options struct {
	Resolver                Resolver
	Port                    *int
	Hostname                *string
	SkipDefaultPort         *bool
	IgnoreURL               *bool
	Temporary               *bool
	RedirectMethods         []string
	InternalRedirectMethods []string
	DisallowStatus          *int
	Options                 *OptionsPolicy

	// Observer, if set, is told about every decision that is made.
	Observer func(req *http.Request, outcome Outcome)
}

// Settings is a fully populated configuration, created by Resolve. It must not be modified once created.
//
// The method fields are informational only: decisions use the table built by Resolve, so changing
// RedirectMethods or InternalRedirectMethods afterwards has no effect. A Settings that wasn't created
// by Resolve has an empty table and disallows every method, and uses TLSResolver if Resolver is nil.
type Settings struct {
	Resolver                Resolver
	Port                    int
	Hostname                string
	SkipDefaultPort         bool
	IgnoreURL               bool
	Temporary               bool
	RedirectMethods         []string
	InternalRedirectMethods []string
	DisallowStatus          int
	Options                 OptionsPolicy
	Observer                func(req *http.Request, outcome Outcome)

	table *Table
}

// defaults returns a fresh copy of the default settings.
func defaults() *Settings {
	return &Settings{
		Resolver:                TLSResolver(),
		Port:                    443,
		SkipDefaultPort:         true,
		RedirectMethods:         []string{http.MethodGet, http.MethodHead},
		InternalRedirectMethods: []string{},
		DisallowStatus:          http.StatusMethodNotAllowed,
		Options:                 OptionsAllow,
	}
}

// Resolve merges the given options with the defaults and builds the redirect table. It never fails:
// odd values (such as no redirect methods at all) produce odd but well-defined behaviour.
func Resolve(options Options) *Settings {
	s := defaults()

	if options.Resolver != nil {
		s.Resolver = options.Resolver
	}
	if options.Port != nil {
		s.Port = *options.Port
	}
	if options.Hostname != nil {
		s.Hostname = *options.Hostname
	}
	if options.SkipDefaultPort != nil {
		s.SkipDefaultPort = *options.SkipDefaultPort
	}
	if options.IgnoreURL != nil {
		s.IgnoreURL = *options.IgnoreURL
	}
	if options.Temporary != nil {
		s.Temporary = *options.Temporary
	}
	if options.RedirectMethods != nil {
		s.RedirectMethods = slices.Clone(options.RedirectMethods)
	}
	if options.InternalRedirectMethods != nil {
		s.InternalRedirectMethods = slices.Clone(options.InternalRedirectMethods)
	}
	if options.DisallowStatus != nil {
		s.DisallowStatus = *options.DisallowStatus
	}
	if options.Options != nil {
		s.Options = *options.Options
	}
	s.Observer = options.Observer

	s.table = buildTable(s.RedirectMethods, s.InternalRedirectMethods, s.Temporary, s.Options)
	return s
}

// Table returns the redirect table built for these settings.
func (s *Settings) Table() *Table {
	return s.table
}
