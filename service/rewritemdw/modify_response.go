package rewritemdw

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/metrics"
)

type contextKey string

const (
	MatchPathContextKey contextKey = "X-NIXTA-PROXY-MATCH-PATH"

	RewriteStatusHeaderKey        = "X-Nixta-Proxy-Rewrite-Status"
	RewriteStatusRewrittenValue   = "REWRITTEN"
	RewriteStatusPassthroughValue = "PASSTHROUGH"
	contentLengthHeaderKey        = "Content-Length"
)

// WithMatchPath returns a context carrying the request path job results
// are matched against, which is independent of any rewriting of the
// outbound request path
func WithMatchPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, MatchPathContextKey, path)
}

// MatchPathFromContext returns the path set by WithMatchPath, if any
func MatchPathFromContext(ctx context.Context) (string, bool) {
	path, ok := ctx.Value(MatchPathContextKey).(string)
	return path, ok
}

// ModifyResponse returns a function suitable for httputil.ReverseProxy.ModifyResponse
// which works in the following way:
// - responses not declared as json, or without a body, are streamed through untouched
// - json responses are buffered in full and passed to Rewrite with the match path from the request context
// - the body, Content-Length and Content-Encoding are replaced with the rewritten values
//
// errors returned are handled by the reverse proxy ErrorHandler and only affect the current response
func (rw *ResponseRewriter) ModifyResponse(mode Mode) func(*http.Response) error {
	return func(resp *http.Response) error {
		ctx := context.Background()
		var path string
		if resp.Request != nil {
			ctx = resp.Request.Context()
			path = resp.Request.URL.EscapedPath()
		}
		if matchPath, ok := MatchPathFromContext(ctx); ok {
			path = matchPath
		}
		logger := logging.FromContext(ctx, rw.ServiceLogger)

		if !IsJSONContentType(resp.Header) {
			rw.record(mode, OutcomeNotJSON, resp)
			logger.Trace().Str("path", path).Str("content_type", resp.Header.Get(ContentTypeHeaderKey)).Msg("streaming non json response")
			return nil
		}

		if !hasBody(resp) {
			rw.record(mode, OutcomeEmptyBody, resp)
			return nil
		}

		body, err := readAllLimited(resp.Body, rw.maxBodyBytes)
		resp.Body.Close()
		if err != nil {
			metrics.RewriteOutcomes.WithLabelValues(mode.String(), string(outcomeForError(err))).Inc()
			logger.Error().Err(err).Str("path", path).Msg("error buffering upstream json response")
			return fmt.Errorf("buffering response for %s: %w", path, err)
		}

		result, err := rw.Rewrite(path, resp.Header, body, mode)
		if err != nil {
			metrics.RewriteOutcomes.WithLabelValues(mode.String(), string(result.Outcome)).Inc()
			logger.Error().Err(err).Str("path", path).Msg("error rewriting upstream json response")
			return err
		}

		if result.Outcome == OutcomeRewritten {
			logger.Debug().
				Str("path", path).
				Str("tool", result.Identity.ToolName).
				Str("parameter", result.Identity.ParameterName).
				Str("data_type", result.OriginalDataType).
				Str("value", result.Value).
				Str("override", string(result.Override)).
				Str("mode", mode.String()).
				Msg("rewrote job result data type")
		} else {
			logger.Debug().Str("path", path).Str("outcome", string(result.Outcome)).Msg("passing json response through unchanged")
		}

		if result.ContentDecoded {
			resp.Header.Del(ContentEncodingHeaderKey)
		}

		resp.Body = io.NopCloser(bytes.NewReader(result.Body))
		resp.ContentLength = int64(len(result.Body))
		resp.Header.Set(contentLengthHeaderKey, strconv.Itoa(len(result.Body)))

		rw.record(mode, result.Outcome, resp)

		return nil
	}
}

// record counts the outcome and marks the response with the rewrite status header
func (rw *ResponseRewriter) record(mode Mode, outcome Outcome, resp *http.Response) {
	metrics.RewriteOutcomes.WithLabelValues(mode.String(), string(outcome)).Inc()

	status := RewriteStatusPassthroughValue
	if outcome == OutcomeRewritten {
		status = RewriteStatusRewrittenValue
	}
	resp.Header.Set(RewriteStatusHeaderKey, status)
}

// hasBody reports whether the upstream response can carry a body
func hasBody(resp *http.Response) bool {
	if resp.Body == nil || resp.Body == http.NoBody {
		return false
	}
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch {
	case resp.StatusCode >= 100 && resp.StatusCode < 200,
		resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		return false
	}
	return true
}
