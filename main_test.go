package main_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixta/gp-datatype-proxy/config"
	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/service"
	"github.com/nixta/gp-datatype-proxy/service/rewritemdw"
)

const (
	createBuffersResultPath = "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc123/results/bufferlayer"
	unknownToolResultPath   = "/arcgis/rest/services/tasks/GPServer/unknowntool/jobs/abc123/results/output"
	numericToolResultPath   = "/arcgis/rest/services/tasks/GPServer/tool1/jobs/abc123/results/bufferlayer"

	jobResultBody = `{"dataType":"GPRecordSet","value":"1"}`
)

var (
	testServiceLogger = func() *logging.ServiceLogger {
		logger, err := logging.New("ERROR")
		if err != nil {
			panic(err)
		}
		return &logger
	}()
)

// upstreamRequest is what the fake upstream saw for a proxied request
type upstreamRequest struct {
	Method   string
	Path     string
	RawQuery string
	Host     string
	Header   http.Header
	Body     []byte
}

// fakeUpstream serves the same canned response for every request
// and records the requests it received
type fakeUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []upstreamRequest

	status int
	header http.Header
	body   []byte
}

func newFakeUpstream(t *testing.T, status int, header http.Header, body []byte) *fakeUpstream {
	upstream := &fakeUpstream{status: status, header: header, body: body}

	upstream.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestBody, _ := io.ReadAll(r.Body)

		upstream.mu.Lock()
		upstream.requests = append(upstream.requests, upstreamRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Host:     r.Host,
			Header:   r.Header.Clone(),
			Body:     requestBody,
		})
		upstream.mu.Unlock()

		for key, values := range upstream.header {
			w.Header()[key] = values
		}
		w.WriteHeader(upstream.status)
		w.Write(upstream.body)
	}))
	t.Cleanup(upstream.Close)

	return upstream
}

func (u *fakeUpstream) lastRequest(t *testing.T) upstreamRequest {
	u.mu.Lock()
	defer u.mu.Unlock()

	require.NotEmpty(t, u.requests, "expected upstream to receive a request")
	return u.requests[len(u.requests)-1]
}

func jsonHeader() http.Header {
	header := make(http.Header)
	header.Set("Content-Type", "application/json; charset=utf-8")
	return header
}

// startProxy starts the proxy handler in front of upstreamURL with the default mounts
func startProxy(t *testing.T, upstreamURL string) *httptest.Server {
	parsedURL, err := url.Parse(upstreamURL)
	require.NoError(t, err)

	mounts, err := config.ParseRawMountModeMap(config.DEFAULT_PROXY_MOUNT_MODE_MAP)
	require.NoError(t, err)

	testConfig := config.Config{
		LogLevel:                         "ERROR",
		ProxyServicePort:                 "7777",
		ProxyUpstreamURLRaw:              upstreamURL,
		ProxyUpstreamURLParsed:           *parsedURL,
		ProxyMountModeMapRaw:             config.DEFAULT_PROXY_MOUNT_MODE_MAP,
		ProxyMountModeMapParsed:          mounts,
		UpstreamResponseHeaderTimeoutRaw: "2s",
		UpstreamResponseHeaderTimeout:    2 * time.Second,
		MaxRewriteBodyBytes:              config.DEFAULT_MAX_REWRITE_BODY_BYTES,
	}
	require.NoError(t, config.Validate(testConfig))

	proxyService, err := service.New(testConfig, testServiceLogger)
	require.NoError(t, err)

	proxy := httptest.NewServer(proxyService.Handler())
	t.Cleanup(proxy.Close)

	return proxy
}

func doRequest(t *testing.T, method string, url string, body io.Reader) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)

	// keep the transport from negotiating compression on our behalf
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func TestE2ETestProxyRewritesJobResultsPerMount(t *testing.T) {
	testCases := []struct {
		name         string
		path         string
		expectPath   string
		expectBody   string
		expectStatus string
	}{
		{
			name:         "override only mount injects dataTypeOverride",
			path:         "/override-only" + createBuffersResultPath,
			expectPath:   createBuffersResultPath,
			expectBody:   `{"dataType":"GPRecordSet","value":"1","dataTypeOverride":"GPFeatureRecordSetLayer"}`,
			expectStatus: rewritemdw.RewriteStatusRewrittenValue,
		},
		{
			name:         "root mount injects dataTypeOverride",
			path:         createBuffersResultPath,
			expectPath:   createBuffersResultPath,
			expectBody:   `{"dataType":"GPRecordSet","value":"1","dataTypeOverride":"GPFeatureRecordSetLayer"}`,
			expectStatus: rewritemdw.RewriteStatusRewrittenValue,
		},
		{
			name:         "override and replace mount injects and replaces dataType",
			path:         "/override-and-replace" + createBuffersResultPath,
			expectPath:   createBuffersResultPath,
			expectBody:   `{"dataType":"GPFeatureRecordSetLayer","value":"1","dataTypeOverride":"GPFeatureRecordSetLayer"}`,
			expectStatus: rewritemdw.RewriteStatusRewrittenValue,
		},
		{
			name:         "unknown tool injects the original dataType",
			path:         "/override-only" + unknownToolResultPath,
			expectPath:   unknownToolResultPath,
			expectBody:   `{"dataType":"GPRecordSet","value":"1","dataTypeOverride":"GPRecordSet"}`,
			expectStatus: rewritemdw.RewriteStatusRewrittenValue,
		},
		{
			name:         "numeric tool segment is passed through",
			path:         "/override-only" + numericToolResultPath,
			expectPath:   numericToolResultPath,
			expectBody:   jobResultBody,
			expectStatus: rewritemdw.RewriteStatusPassthroughValue,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := newFakeUpstream(t, http.StatusOK, jsonHeader(), []byte(jobResultBody))
			proxy := startProxy(t, upstream.URL)

			resp, body := doRequest(t, http.MethodGet, proxy.URL+tc.path+"?f=json", nil)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.expectBody, string(body))
			assert.Equal(t, tc.expectStatus, resp.Header.Get(rewritemdw.RewriteStatusHeaderKey))
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))

			upstreamReq := upstream.lastRequest(t)
			assert.Equal(t, tc.expectPath, upstreamReq.Path)
			assert.Equal(t, "f=json", upstreamReq.RawQuery)
		})
	}
}

func TestE2ETestProxyForwardsRequestAsReceived(t *testing.T) {
	upstream := newFakeUpstream(t, http.StatusOK, jsonHeader(), []byte(`{"jobId":"abc123","jobStatus":"esriJobSubmitted"}`))
	proxy := startProxy(t, upstream.URL)

	requestBody := []byte("inputLayer=%7B%7D&f=json")
	req, err := http.NewRequest(http.MethodPost, proxy.URL+"/override-and-replace/arcgis/rest/services/tasks/GPServer/CreateBuffers/submitJob", bytes.NewReader(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"jobId":"abc123","jobStatus":"esriJobSubmitted"}`, string(body))

	upstreamURL, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	upstreamReq := upstream.lastRequest(t)
	assert.Equal(t, http.MethodPost, upstreamReq.Method)
	assert.Equal(t, "/arcgis/rest/services/tasks/GPServer/CreateBuffers/submitJob", upstreamReq.Path)
	assert.Equal(t, upstreamURL.Host, upstreamReq.Host, "expected host header to be rewritten to the upstream host")
	assert.Equal(t, requestBody, upstreamReq.Body)
	assert.Equal(t, "Bearer token", upstreamReq.Header.Get("Authorization"))
	assert.Empty(t, upstreamReq.Header.Get(service.RequestIDHeaderKey), "expected generated request id to not be forwarded")
}

func TestE2ETestProxyPassesNonJSONResponsesThroughUnchanged(t *testing.T) {
	nonJSONBody := []byte(`{"dataType":"GPRecordSet","value":"1"}`)
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	header.Set("X-Upstream-Header", "kept")

	upstream := newFakeUpstream(t, http.StatusOK, header, nonJSONBody)
	proxy := startProxy(t, upstream.URL)

	resp, body := doRequest(t, http.MethodGet, proxy.URL+"/override-and-replace"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, nonJSONBody, body)
	assert.Equal(t, "kept", resp.Header.Get("X-Upstream-Header"))
	assert.Equal(t, rewritemdw.RewriteStatusPassthroughValue, resp.Header.Get(rewritemdw.RewriteStatusHeaderKey))
}

func TestE2ETestProxyPassesUpstreamErrorStatusesThrough(t *testing.T) {
	upstream := newFakeUpstream(t, http.StatusNotFound, jsonHeader(), []byte(`{"error":{"code":400,"message":"Invalid URL"}}`))
	proxy := startProxy(t, upstream.URL)

	resp, body := doRequest(t, http.MethodGet, proxy.URL+"/override-only"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, `{"error":{"code":400,"message":"Invalid URL"}}`, string(body))
}

func TestE2ETestProxyDecodesCompressedJobResults(t *testing.T) {
	var compressed bytes.Buffer
	writer := gzip.NewWriter(&compressed)
	_, err := writer.Write([]byte(jobResultBody))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	header := jsonHeader()
	header.Set("Content-Encoding", "gzip")

	upstream := newFakeUpstream(t, http.StatusOK, header, compressed.Bytes())
	proxy := startProxy(t, upstream.URL)

	resp, body := doRequest(t, http.MethodGet, proxy.URL+"/override-only"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.Equal(t, `{"dataType":"GPRecordSet","value":"1","dataTypeOverride":"GPFeatureRecordSetLayer"}`, string(body))
}

func TestE2ETestProxyReturnsBadGatewayForMalformedJSON(t *testing.T) {
	upstream := newFakeUpstream(t, http.StatusOK, jsonHeader(), []byte(`{"dataType":`))
	proxy := startProxy(t, upstream.URL)

	resp, _ := doRequest(t, http.MethodGet, proxy.URL+"/override-only"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestE2ETestProxyReturnsBadGatewayForUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstreamURL := upstream.URL
	upstream.Close()

	proxy := startProxy(t, upstreamURL)

	resp, _ := doRequest(t, http.MethodGet, proxy.URL+"/override-only"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestE2ETestProxyReturnsGatewayTimeoutForSlowUpstream(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(upstream.Close)
	t.Cleanup(func() { close(release) })

	proxy := startProxy(t, upstream.URL)

	resp, _ := doRequest(t, http.MethodGet, proxy.URL+"/override-only"+createBuffersResultPath, nil)

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestE2ETestInfoEndpointIsNotProxied(t *testing.T) {
	upstream := newFakeUpstream(t, http.StatusOK, jsonHeader(), []byte(jobResultBody))
	proxy := startProxy(t, upstream.URL)

	resp, body := doRequest(t, http.MethodGet, proxy.URL+service.InfoPath, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.InfoMessage, string(body))

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	assert.Empty(t, upstream.requests, "expected info endpoint to never reach the upstream")
}
