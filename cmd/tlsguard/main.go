package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/csmith/envflag/v2"
	"github.com/csmith/tlsguard/enforce"
	"github.com/csmith/tlsguard/metrics"
	"github.com/csmith/tlsguard/proxy"
)

var (
	configPath         = flag.String("config", "", "Path to policy file. If not set, the default policy is used.")
	upstreamAddress    = flag.String("upstream", "", "Address of the upstream to pass secure requests to")
	httpPort           = flag.Int("http-port", 8080, "Port to listen on for HTTP requests")
	trustedDownstreams = flag.String("trusted-downstreams", "", "Comma-separated list of CIDR ranges to trust forwarding headers from")
	metricsPort        = flag.Int("metrics-port", 0, "Port to expose metrics endpoint on. Disabled by default.")
	validate           = flag.Bool("validate", false, "Validate policy file and exit")
)

func main() {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	if err := run(os.Args[1:], signalChan); err != nil {
		slog.Error("tlsguard encountered a fatal error", "error", err)
		os.Exit(1)
	}
}

func run(args []string, signalChan <-chan os.Signal) error {
	envflag.Parse(envflag.WithArguments(args))
	initLogging()

	downstreams, err := parseDownstreams(*trustedDownstreams)
	if err != nil {
		return fmt.Errorf("could not parse trusted downstreams: %w", err)
	}

	recorder := metrics.NewRecorder()
	policy := newPolicySource(*configPath, downstreams, recorder.Observe)

	if *validate {
		return policy.Validate()
	}

	settings, err := policy.Load()
	if err != nil {
		return err
	}
	guard := enforce.NewGuard(settings)

	upstream, err := proxy.NewUpstream(
		*upstreamAddress,
		proxy.NewBannedHeaderDecorator(),
		proxy.NewForwardingDecorator(downstreams),
		proxy.NewUserAgentDecorator(),
	)
	if err != nil {
		return fmt.Errorf("invalid upstream: %w", err)
	}
	upstream.WrapErrorHandler(recorder.TrackBadGateway)

	errChan := make(chan error, 1)

	slog.Info("Starting HTTP server", "port", *httpPort, "upstream", *upstreamAddress)
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *httpPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", *httpPort, err)
	}
	s := newServer(newRouter(guard, upstream), errChan)
	go s.start(listener)

	var ms *server
	if *metricsPort > 0 {
		ms, err = serveMetrics(recorder, errChan)
		if err != nil {
			s.stop(context.Background())
			return err
		}
	}

	stop := func() {
		s.stop(context.Background())
		if ms != nil {
			ms.stop(context.Background())
		}
	}

	for {
		select {
		case sig := <-signalChan:
			switch sig {
			case syscall.SIGHUP:
				slog.Info("Received signal, reloading policy...", "signal", sig)
				reload(policy, guard)
			case syscall.SIGINT, syscall.SIGTERM:
				slog.Info("Received signal, stopping servers...", "signal", sig)
				stop()
				slog.Info("Servers stopped. Goodbye!")
				return nil
			}
		case err := <-errChan:
			stop()
			return err
		}
	}
}

// reload loads the policy again and installs it. If the policy can't be loaded the previous one stays in place.
func reload(policy *policySource, guard *enforce.Guard) {
	settings, err := policy.Load()
	if err != nil {
		slog.Error("Failed to reload policy, keeping previous policy", "error", err)
		return
	}
	guard.Update(settings)
	slog.Info("Installed new policy")
}

func serveMetrics(recorder *metrics.Recorder, errChan chan<- error) (*server, error) {
	slog.Info("Starting metrics server", "port", *metricsPort)
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *metricsPort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", *metricsPort, err)
	}

	s := newServer(newMetricsRouter(recorder), errChan)
	go s.start(listener)
	return s, nil
}

func parseDownstreams(downstreams string) ([]net.IPNet, error) {
	var res []net.IPNet
	parts := strings.Split(downstreams, ",")
	for i := range parts {
		v := strings.TrimSpace(parts[i])
		if v != "" {
			_, ipNet, err := net.ParseCIDR(v)
			if err != nil {
				return nil, fmt.Errorf("failed to parse trusted downstream CIDR '%q': %w", v, err)
			}
			res = append(res, *ipNet)
		}
	}
	return res, nil
}
