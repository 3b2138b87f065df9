package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/negroni"

	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/metrics"
	"github.com/nixta/gp-datatype-proxy/service/rewritemdw"
)

const (
	RequestIDHeaderKey = "X-Request-Id"
)

// createRequestLoggingMiddleware returns a handler that logs any request to stdout
// once it has been served, with its status, size and latency. A request scoped
// logger carrying a request id is added to the request context so later
// middleware and the rewriter log against the same request.
func createRequestLoggingMiddleware(h http.Handler, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receivedAt := time.Now()

		// reuse the caller's id but never forward a generated one, the
		// request is proxied with its headers as received
		requestID := r.Header.Get(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		requestLogger := serviceLogger.WithFields(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", requestID).Str("method", r.Method).Str("path", r.URL.Path)
		})

		requestLogger.Trace().Str("host", r.Host).Str("remote_addr", r.RemoteAddr).Msg("request received")

		lrw := negroni.NewResponseWriter(w)

		h.ServeHTTP(lrw, r.WithContext(requestLogger.WithContext(r.Context())))

		requestLogger.Info().
			Int("status", lrw.Status()).
			Int("size", lrw.Size()).
			Dur("latency", time.Since(receivedAt)).
			Str("rewrite_status", lrw.Header().Get(rewritemdw.RewriteStatusHeaderKey)).
			Msg("request served")
	}
}

// createProxyRequestMiddleware creates the main service handler which selects the
// mount proxy for the request and forwards it to the upstream, recording the
// request path relative to the mount for the response rewriter before the
// outbound request path is rewritten
func createProxyRequestMiddleware(proxies Proxies, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context(), serviceLogger)

		proxy, metadata, found := proxies.ProxyForRequest(r)
		if !found {
			logger.Error().Msg("no mount configured for request path")
			http.NotFound(w, r)
			return
		}

		logger.Debug().
			Str("mount", metadata.MountLabel()).
			Str("mode", metadata.Mode.String()).
			Str("match_path", metadata.MatchPath).
			Msg("proxying request")

		proxyRequestAt := time.Now()

		lrw := negroni.NewResponseWriter(w)

		proxy.ServeHTTP(lrw, r.WithContext(rewritemdw.WithMatchPath(r.Context(), metadata.MatchPath)))

		requestRoundtrip := time.Since(proxyRequestAt)

		metrics.ProxiedRequests.WithLabelValues(metadata.MountLabel(), r.Method, strconv.Itoa(lrw.Status())).Inc()
		metrics.ProxiedRequestDuration.WithLabelValues(metadata.MountLabel()).Observe(requestRoundtrip.Seconds())

		logger.Debug().Dur("latency", requestRoundtrip).Msg("proxy request round trip")
	}
}
