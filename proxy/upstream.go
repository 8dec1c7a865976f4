package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"
)

const badGatewayError = `<!doctype html>
<html lang="en">
<head>
  <title>502 Bad Gateway</title>
</head>
<body>
  <h1>Bad Gateway</h1>
  <p>The server was unable to complete your request. Please try again later.</p>
</body>
</html>`

// Upstream passes requests that have made it through the guard on to a single upstream server.
type Upstream struct {
	target     *url.URL
	decorators []Decorator
	proxy      *httputil.ReverseProxy
}

// NewUpstream creates a new Upstream that proxies to the given address. The address may be given as
// a full URL ("http://localhost:8080/app") or just as a host and port.
func NewUpstream(address string, decorators ...Decorator) (*Upstream, error) {
	target, err := parseTarget(address)
	if err != nil {
		return nil, err
	}

	u := &Upstream{
		target:     target,
		decorators: decorators,
	}

	u.proxy = &httputil.ReverseProxy{
		Rewrite:      u.rewrite,
		ErrorHandler: handleError,
		BufferPool:   newBufferPool(),
		Transport: &http.Transport{
			ForceAttemptHTTP2:   false,
			DisableCompression:  true,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return u, nil
}

// WrapErrorHandler replaces the handler used when the upstream can't be reached with one derived from the
// current handler.
func (u *Upstream) WrapErrorHandler(wrap func(func(http.ResponseWriter, *http.Request, error)) func(http.ResponseWriter, *http.Request, error)) {
	u.proxy.ErrorHandler = wrap(u.proxy.ErrorHandler)
}

func (u *Upstream) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	u.proxy.ServeHTTP(writer, request)
}

func (u *Upstream) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(u.target)
	// Keep the host the client asked for, the upstream may serve more than one site
	pr.Out.Host = pr.In.Host

	for i := range u.decorators {
		u.decorators[i].Decorate(pr.In, pr.Out)
	}
}

func parseTarget(address string) (*url.URL, error) {
	if address == "" {
		return nil, fmt.Errorf("no upstream specified")
	}

	target, err := url.Parse(address)
	if err != nil || target.Host == "" {
		// Probably a bare host:port
		target, err = url.Parse("http://" + address)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream %q: %w", address, err)
		}
	}

	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported upstream scheme: %s", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: no host", address)
	}
	return target, nil
}

// handleError handles the reverse proxy not being able to connect to an upstream
func handleError(writer http.ResponseWriter, request *http.Request, err error) {
	slog.Warn("Failed to connect to upstream", "host", request.Host, "error", err)
	writer.WriteHeader(http.StatusBadGateway)
	_, _ = writer.Write([]byte(badGatewayError))
}

type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, 32*1024)
			},
		},
	}
}

func (b *bufferPool) Get() []byte {
	return b.pool.Get().([]byte)
}

func (b *bufferPool) Put(bytes []byte) {
	b.pool.Put(bytes)
}
