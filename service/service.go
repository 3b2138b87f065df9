// package service provides functions and methods
// for creating and running the api of the proxy service
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nixta/gp-datatype-proxy/config"
	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/overrides"
	"github.com/nixta/gp-datatype-proxy/service/rewritemdw"
)

const (
	shutdownTimeout = 10 * time.Second
)

// ProxyService represents an instance of the proxy service API
type ProxyService struct {
	httpProxy *http.Server
	opsServer *http.Server
	upstream  url.URL
	transport http.RoundTripper
	*logging.ServiceLogger
}

// New returns a new ProxyService with the specified config and error (if any)
func New(config config.Config, serviceLogger *logging.ServiceLogger) (ProxyService, error) {
	service := ProxyService{
		upstream:      config.ProxyUpstreamURLParsed,
		transport:     newUpstreamTransport(config),
		ServiceLogger: serviceLogger,
	}

	table := overrides.DefaultTypeLookupTable()
	serviceLogger.Debug().Msg(fmt.Sprintf("loaded data type lookups for %d tools", table.Len()))

	rewriter := rewritemdw.New(rewritemdw.ResponseRewriterConfig{
		Resolver:      overrides.NewResolver(table),
		MaxBodyBytes:  config.MaxRewriteBodyBytes,
		ServiceLogger: serviceLogger,
	})

	proxies, err := NewMountProxies(config.ProxyUpstreamURLParsed, config.ProxyMountModeMapParsed, rewriter, service.transport, serviceLogger)
	if err != nil {
		return ProxyService{}, fmt.Errorf("error creating mount proxies: %w", err)
	}

	// the informational endpoint is answered locally, everything else is
	// proxied through the mount matching the request path
	handler := createRequestLoggingMiddleware(
		createRouter(&service, createProxyRequestMiddleware(proxies, serviceLogger)),
		serviceLogger,
	)

	// create an http server for the caller to start at their own discretion
	service.httpProxy = &http.Server{
		Addr:              fmt.Sprintf(":%s", config.ProxyServicePort),
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	if config.ProxyOpsPort != "" {
		service.opsServer = &http.Server{
			Addr:              fmt.Sprintf(":%s", config.ProxyOpsPort),
			Handler:           service.OpsHandler(),
			ReadHeaderTimeout: 30 * time.Second,
		}
	}

	return service, nil
}

// Handler returns the handler serving the proxy port
func (p *ProxyService) Handler() http.Handler {
	return p.httpProxy.Handler
}

// OpsHandler returns the handler for metrics and health endpoints
func (p *ProxyService) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.Handler())
	mux.HandleFunc(HealthcheckPath, createHealthcheckHandler(p))
	mux.HandleFunc(ServicecheckPath, createServicecheckHandler(p))
	return mux
}

// Run runs the proxy service until ctx is cancelled or a listener fails,
// draining in flight requests before returning. Returns error (if any) in
// the event the proxy service stops for a reason other than ctx.
func (p *ProxyService) Run(ctx context.Context) error {
	errs := make(chan error, 2)

	serve := func(server *http.Server, name string) {
		p.Info().Msg(fmt.Sprintf("starting %s listener on %s", name, server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("%s listener: %w", name, err)
			return
		}
		errs <- nil
	}

	servers := []*http.Server{p.httpProxy}
	go serve(p.httpProxy, "proxy")

	if p.opsServer != nil {
		servers = append(servers, p.opsServer)
		go serve(p.opsServer, "ops")
	}

	var runErr error
	select {
	case <-ctx.Done():
		p.Info().Msg("shutting down proxy service")
	case runErr = <-errs:
		p.Error().Err(runErr).Msg("proxy service listener stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("error shutting down %s: %w", server.Addr, err))
		}
	}

	return runErr
}

// newUpstreamTransport returns the transport used for every request to the upstream
func newUpstreamTransport(config config.Config) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.UpstreamResponseHeaderTimeout
	return transport
}
