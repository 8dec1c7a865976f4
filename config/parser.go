package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/csmith/tlsguard/enforce"
)

// Parse reads a policy file from the given reader, and returns the options that it contains.
// Directives that aren't recognised are logged and skipped, so newer files can be used with older versions.
func Parse(reader io.Reader) (options enforce.Options, err error) {
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(reader)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		directive, args, _ := strings.Cut(text, " ")
		directive = strings.ToLower(directive)
		args = strings.TrimSpace(args)

		if seen[directive] {
			return enforce.Options{}, fmt.Errorf("line %d: %s specified multiple times", line, directive)
		}

		switch directive {
		case "resolver":
			options.Resolver, err = parseResolver(args)
		case "port":
			options.Port, err = parsePort(args)
		case "hostname":
			if !isDomainName(args) {
				err = fmt.Errorf("invalid hostname: %q", args)
			} else {
				options.Hostname = &args
			}
		case "skip-default-port":
			options.SkipDefaultPort, err = parseBool(args)
		case "ignore-url":
			options.IgnoreURL, err = parseBool(args)
		case "temporary":
			options.Temporary, err = parseBool(args)
		case "redirect-methods":
			options.RedirectMethods = strings.Fields(args)
			if options.RedirectMethods == nil {
				options.RedirectMethods = []string{}
			}
		case "internal-redirect-methods":
			options.InternalRedirectMethods = strings.Fields(args)
			if options.InternalRedirectMethods == nil {
				options.InternalRedirectMethods = []string{}
			}
		case "disallow-status":
			options.DisallowStatus, err = parseStatus(args)
		case "options":
			options.Options, err = parseOptionsPolicy(args)
		default:
			slog.Warn("Ignoring unknown directive in policy file", "line", line, "directive", directive)
			continue
		}

		if err != nil {
			return enforce.Options{}, fmt.Errorf("line %d: %s: %w", line, directive, err)
		}
		seen[directive] = true
	}

	if err := scanner.Err(); err != nil {
		return enforce.Options{}, err
	}

	return
}

func parseResolver(args string) (enforce.Resolver, error) {
	name, param, _ := strings.Cut(args, " ")
	param = strings.TrimSpace(param)

	if strings.EqualFold(name, "header") {
		if param == "" || strings.Contains(param, " ") {
			return nil, fmt.Errorf("header resolver requires a single header name")
		}
		return enforce.CustomProtoHeaderResolver(param), nil
	}

	if param != "" {
		return nil, fmt.Errorf("resolver %s does not take any arguments", name)
	}

	resolver, ok := enforce.ResolverByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown resolver: %q", name)
	}
	return resolver, nil
}

func parsePort(args string) (*int, error) {
	port, err := strconv.Atoi(args)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port out of range: %d", port)
	}
	return &port, nil
}

func parseStatus(args string) (*int, error) {
	status, err := strconv.Atoi(args)
	if err != nil {
		return nil, fmt.Errorf("invalid status: %w", err)
	}
	if status < 100 || status > 599 {
		return nil, fmt.Errorf("status out of range: %d", status)
	}
	return &status, nil
}

func parseBool(args string) (*bool, error) {
	var res bool
	switch strings.ToLower(args) {
	case "", "true", "yes", "on":
		res = true
	case "false", "no", "off":
		res = false
	default:
		return nil, fmt.Errorf("invalid boolean: %q", args)
	}
	return &res, nil
}

func parseOptionsPolicy(args string) (*enforce.OptionsPolicy, error) {
	var res enforce.OptionsPolicy
	switch strings.ToLower(args) {
	case "allow":
		res = enforce.OptionsAllow
	case "disallow":
		res = enforce.OptionsDisallow
	default:
		return nil, fmt.Errorf("invalid options policy: %q", args)
	}
	return &res, nil
}
