package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// ProxyServiceClient provides a client
// for making requests and reading responses
// from the endpoints answered by the proxy service itself
type ProxyServiceClient struct {
	*http.Client
	config            ProxyServiceClientConfig
	DebugLogResponses bool
}

// ProxyServiceClientConfig wraps values used to
// create a new ProxyServiceClient
type ProxyServiceClientConfig struct {
	// ProxyServiceHostname is the base url of the proxy port
	ProxyServiceHostname string
	// ProxyServiceOpsHostname is the base url of the ops port
	ProxyServiceOpsHostname string
	DebugLogResponses       bool
}

// NewProxyServiceClient creates a new ProxyServiceClient
// using the provided config, returning the client and error (if any)
func NewProxyServiceClient(config ProxyServiceClientConfig) (*ProxyServiceClient, error) {
	httpClient := &http.Client{}
	return &ProxyServiceClient{
		Client:            httpClient,
		DebugLogResponses: config.DebugLogResponses,
		config:            config,
	}, nil
}

// GetInfo calls `InfoPath` on the proxy port, returning the informational message
func (c *ProxyServiceClient) GetInfo(ctx context.Context) (string, error) {
	return c.getText(ctx, c.config.ProxyServiceHostname+InfoPath)
}

// GetHealthcheck calls `HealthcheckPath` on the ops port, returning
// error (if any) when the proxy service can't reach the upstream
func (c *ProxyServiceClient) GetHealthcheck(ctx context.Context) (string, error) {
	return c.getText(ctx, c.config.ProxyServiceOpsHostname+HealthcheckPath)
}

// GetServicecheck calls `ServicecheckPath` on the ops port
func (c *ProxyServiceClient) GetServicecheck(ctx context.Context) (string, error) {
	return c.getText(ctx, c.config.ProxyServiceOpsHostname+ServicecheckPath)
}

func (c *ProxyServiceClient) getText(ctx context.Context, url string) (string, error) {
	request, err := CreateRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	err = Call(*c, request, &body)

	return body.String(), err
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message, url, statusCode}
}

// CreateRequest isolates duplicate code in creating http requests
func CreateRequest(ctx context.Context, method string, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	return req, nil
}

// Call makes an http request to the proxy service
// copying the response body to result if non-nil
// returning error (if any)
func Call(client ProxyServiceClient, request *http.Request, result io.Writer) error {
	response, err := client.Do(request)

	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	if client.DebugLogResponses {
		fmt.Printf("Request Path %s \n Response Body %s \n  Response Status Code %d \n ", request.URL, string(bodyBytes), response.StatusCode)
	}

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		return &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}
	}

	if result == nil {
		return nil
	}

	if _, err := result.Write(bodyBytes); err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}
	return nil
}
