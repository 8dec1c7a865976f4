package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/csmith/tlsguard/config"
	"github.com/csmith/tlsguard/enforce"
	"golang.org/x/sys/unix"
)

// policySource loads guard settings from a policy file, or provides the default policy if there isn't one.
type policySource struct {
	path        string
	downstreams []net.IPNet
	observer    func(*http.Request, enforce.Outcome)
}

func newPolicySource(path string, downstreams []net.IPNet, observer func(*http.Request, enforce.Outcome)) *policySource {
	return &policySource{
		path:        path,
		downstreams: downstreams,
		observer:    observer,
	}
}

// Load reads the policy file (if any) and resolves it into settings.
//
// This process never terminates TLS itself, so when the policy doesn't name a resolver the
// X-Forwarded-Proto header is used. Header resolvers are only trusted from the trusted downstreams
// if any are configured.
func (p *policySource) Load() (*enforce.Settings, error) {
	options, err := p.read()
	if err != nil {
		return nil, err
	}

	if options.Resolver == nil {
		options.Resolver = enforce.XForwardedProtoResolver()
	}
	if len(p.downstreams) > 0 {
		options.Resolver = enforce.TrustedResolver(options.Resolver, p.downstreams)
	}
	options.Observer = p.observer

	settings := enforce.Resolve(options)
	slog.Debug(
		"Resolved policy",
		"path", p.path,
		"redirect_methods", settings.Table().Methods(),
		"port", settings.Port,
		"hostname", settings.Hostname,
		"disallow_status", settings.DisallowStatus,
	)
	return settings, nil
}

// Validate checks that the policy file can be read and parsed.
func (p *policySource) Validate() error {
	if p.path == "" {
		return fmt.Errorf("no policy file specified")
	}

	slog.Debug("Validating policy file", "path", p.path)

	if err := unix.Access(p.path, unix.R_OK); err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}

	if _, err := p.read(); err != nil {
		return err
	}

	slog.Info("Policy file is valid", "path", p.path)
	return nil
}

func (p *policySource) read() (enforce.Options, error) {
	if p.path == "" {
		return enforce.Options{}, nil
	}

	slog.Debug("Reading policy file", "path", p.path)

	f, err := os.Open(p.path)
	if err != nil {
		return enforce.Options{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	options, err := config.Parse(f)
	if err != nil {
		return enforce.Options{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return options, nil
}
