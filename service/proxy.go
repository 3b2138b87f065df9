package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/nixta/gp-datatype-proxy/config"
	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/metrics"
	"github.com/nixta/gp-datatype-proxy/service/rewritemdw"
)

var (
	// forwardingHeaders are dropped by httputil.ReverseProxy before Rewrite
	// runs, they are restored so the upstream sees them as the caller sent them
	forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}
)

// Proxies is an interface for getting a reverse proxy for a given request.
type Proxies interface {
	ProxyForRequest(r *http.Request) (proxy *httputil.ReverseProxy, metadata ProxyMetadata, found bool)
}

// ProxyMetadata describes the mount a request arrived on
type ProxyMetadata struct {
	// MountPrefix is the mount prefix stripped from the forwarded path, empty for the root mount
	MountPrefix string
	Mode        rewritemdw.Mode
	// MatchPath is the escaped request path relative to the mount, as addressed to the
	// upstream API, computed before the outbound request is rewritten
	MatchPath string
}

// MountLabel returns a non empty label for the mount, used in logs and metrics
func (m ProxyMetadata) MountLabel() string {
	if m.MountPrefix == "" {
		return "/"
	}
	return m.MountPrefix
}

type mountProxy struct {
	prefix string
	mode   rewritemdw.Mode
	proxy  *httputil.ReverseProxy
}

// MountProxies chooses a proxy based on the longest mount prefix
// matching the path of the incoming request. Every mount forwards to
// the same upstream, differing only in the prefix stripped and the rewrite mode.
type MountProxies struct {
	mounts []mountProxy
}

var _ Proxies = MountProxies{}

// ProxyForRequest implements Proxies. It determines the proxy based solely on the request path.
func (mp MountProxies) ProxyForRequest(r *http.Request) (*httputil.ReverseProxy, ProxyMetadata, bool) {
	for _, mount := range mp.mounts {
		if !matchesMount(r.URL.Path, mount.prefix) {
			continue
		}

		return mount.proxy, ProxyMetadata{
			MountPrefix: mount.prefix,
			Mode:        mount.mode,
			MatchPath:   stripMountPrefix(r.URL.EscapedPath(), mount.prefix),
		}, true
	}

	return nil, ProxyMetadata{}, false
}

// NewMountProxies creates a reverse proxy to upstream for each mount,
// each applying the rewrite mode of its mount to upstream responses.
// mounts must be ordered longest prefix first as returned by config.ParseRawMountModeMap.
func NewMountProxies(upstream url.URL, mounts []config.Mount, rewriter *rewritemdw.ResponseRewriter, transport http.RoundTripper, serviceLogger *logging.ServiceLogger) (MountProxies, error) {
	if len(mounts) == 0 {
		return MountProxies{}, config.ErrEmptyMountModeMap
	}

	proxies := make([]mountProxy, 0, len(mounts))

	for _, mount := range mounts {
		mode, err := rewritemdw.ParseMode(mount.Mode)
		if err != nil {
			return MountProxies{}, fmt.Errorf("mount %q: %w", mount.Prefix, err)
		}

		serviceLogger.Debug().Msg(fmt.Sprintf("creating reverse proxy for mount %q to %s with rewrite mode %s", mount.Prefix, upstream.String(), mode))

		proxies = append(proxies, mountProxy{
			prefix: mount.Prefix,
			mode:   mode,
			proxy:  newReverseProxy(upstream, mount.Prefix, mode, rewriter, transport, serviceLogger),
		})
	}

	return MountProxies{mounts: proxies}, nil
}

func newReverseProxy(upstream url.URL, prefix string, mode rewritemdw.Mode, rewriter *rewritemdw.ResponseRewriter, transport http.RoundTripper, serviceLogger *logging.ServiceLogger) *httputil.ReverseProxy {
	target := upstream

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = stripMountPrefix(pr.Out.URL.Path, prefix)
			if pr.Out.URL.RawPath != "" {
				pr.Out.URL.RawPath = stripMountPrefix(pr.Out.URL.RawPath, prefix)
			}

			// SetURL also clears Out.Host so the upstream sees its own host
			pr.SetURL(&target)

			for _, key := range forwardingHeaders {
				if values, ok := pr.In.Header[key]; ok {
					pr.Out.Header[key] = values
				}
			}
		},
		Transport:      transport,
		ModifyResponse: rewriter.ModifyResponse(mode),
		ErrorHandler:   newErrorHandler(prefix, serviceLogger),
	}
}

// newErrorHandler maps failures proxying a single request to a gateway status
func newErrorHandler(prefix string, serviceLogger *logging.ServiceLogger) func(http.ResponseWriter, *http.Request, error) {
	mountLabel := ProxyMetadata{MountPrefix: prefix}.MountLabel()

	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger := logging.FromContext(r.Context(), serviceLogger)
		status, reason := classifyProxyError(err)

		metrics.UpstreamErrors.WithLabelValues(mountLabel, reason).Inc()

		if reason == ProxyErrorReasonClientCanceled {
			logger.Debug().Err(err).Str("mount", mountLabel).Msg("caller went away before the upstream responded")
		} else {
			logger.Error().Err(err).Str("mount", mountLabel).Str("reason", reason).Int("status", status).Msg("error proxying request")
		}

		w.WriteHeader(status)
	}
}

const (
	ProxyErrorReasonUpstreamUnreachable = "upstream_unreachable"
	ProxyErrorReasonUpstreamTimeout     = "upstream_timeout"
	ProxyErrorReasonClientCanceled      = "client_canceled"
	ProxyErrorReasonMalformedJSON       = "malformed_json"
	ProxyErrorReasonUndecodableBody     = "undecodable_body"
	ProxyErrorReasonBodyTooLarge        = "body_too_large"
)

// classifyProxyError returns the status and reason for an error returned
// by the transport or by rewriting the upstream response
func classifyProxyError(err error) (int, string) {
	var netErr net.Error

	switch {
	case errors.Is(err, rewritemdw.ErrMalformedJSONBody):
		return http.StatusBadGateway, ProxyErrorReasonMalformedJSON
	case errors.Is(err, rewritemdw.ErrBodyTooLarge):
		return http.StatusBadGateway, ProxyErrorReasonBodyTooLarge
	case errors.Is(err, rewritemdw.ErrUndecodableBody):
		return http.StatusBadGateway, ProxyErrorReasonUndecodableBody
	case errors.Is(err, context.Canceled):
		return http.StatusBadGateway, ProxyErrorReasonClientCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return http.StatusGatewayTimeout, ProxyErrorReasonUpstreamTimeout
	default:
		return http.StatusBadGateway, ProxyErrorReasonUpstreamUnreachable
	}
}

// matchesMount reports whether path falls under the mount prefix,
// matching whole path segments only
func matchesMount(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// stripMountPrefix removes the mount prefix from path, always returning an absolute path
func stripMountPrefix(path, prefix string) string {
	if prefix == "" || !matchesMount(path, prefix) {
		return path
	}

	stripped := strings.TrimPrefix(path, prefix)
	if stripped == "" {
		return "/"
	}
	return stripped
}
