package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	upstreamHealthcheckTimeout = 5 * time.Second
)

// isInfoRequest reports whether the request is for the informational
// endpoint, which is answered by the proxy and never forwarded
func isInfoRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return r.URL.Path == InfoPath || r.URL.Path == InfoPath+"/"
}

// createInfoHandler creates a handler function that describes the proxy service
func createInfoHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg(fmt.Sprintf("%s called", InfoPath))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		if r.Method == http.MethodHead {
			return
		}

		w.Write([]byte(InfoMessage))
	}
}

// createRouter returns the handler for the proxy port, serving the
// informational endpoint and proxying every other request
func createRouter(service *ProxyService, proxyHandler http.Handler) http.HandlerFunc {
	infoHandler := createInfoHandler(service)

	return func(w http.ResponseWriter, r *http.Request) {
		if isInfoRequest(r) {
			infoHandler(w, r)
			return
		}

		proxyHandler.ServeHTTP(w, r)
	}
}

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the proxy service is able to reach the upstream
// and functioning as expected
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg(fmt.Sprintf("%s called", HealthcheckPath))

		if err := service.checkUpstream(r.Context()); err != nil {
			service.Logger.Error().
				Err(err).
				Msg("upstream healthcheck failed")

			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(fmt.Sprintf("proxy service unable to connect to upstream: %v", err)))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(HealthcheckMessage))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the proxy service is running
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg(fmt.Sprintf("%s called", ServicecheckPath))

		w.WriteHeader(http.StatusOK)

		w.Write([]byte(ServicecheckMessage))
	}
}

// checkUpstream makes a HEAD request to the upstream base url, any
// http response (regardless of status) means the upstream is reachable
func (p *ProxyService) checkUpstream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, upstreamHealthcheckTimeout)
	defer cancel()

	target := p.upstream
	if !strings.HasSuffix(target.Path, "/") {
		target.Path += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return err
	}

	resp, err := p.transport.RoundTrip(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}
