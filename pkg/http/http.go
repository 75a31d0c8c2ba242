package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultIdleTimeout    = 90 * time.Second
	keepAlivePeriod       = 30 * time.Second
	maxIdleConns          = 100
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 30 * time.Second
	maxConnsPerHost       = 16

	DefaultUserAgent = "direct-model-downloader/1.0"
)

type Client struct {
	*http.Client
}

// NewClient creates a new HTTP client with custom transport settings.
// There is deliberately no overall request timeout: a model transfer can
// run for hours, so only dialing and response headers are bounded.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultConnectTimeout,
			KeepAlive: keepAlivePeriod,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       defaultIdleTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		DisableCompression:    true,
		MaxConnsPerHost:       maxConnsPerHost,
	}

	return &Client{
		&http.Client{
			Transport: transport,
		},
	}
}

// Get performs a GET request to the specified URL. The body is left
// open for streaming; callers own closing it.
func (c *Client) Get(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		logger.Errorf("Failed to create GET request for %s: %v", urlStr, err)
		return nil, ErrRequestCreation
	}

	req.Header.Set("User-Agent", DefaultUserAgent)

	logger.Debugf("Sending GET request to %s", urlStr)

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("GET request failed for %s: %v", urlStr, err)
		return nil, ClassifyError(err)
	}

	logger.Debugf("GET response for %s: status=%d", urlStr, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		logger.Errorf("GET request returned error status %d for %s", resp.StatusCode, urlStr)

		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	return resp, nil
}

// PostJSON performs a POST request with a JSON-encoded body. The
// response is returned regardless of status code so callers can read
// the error payload; only transport failures are classified here.
func (c *Client) PostJSON(ctx context.Context, urlStr string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
	if err != nil {
		logger.Errorf("Failed to create POST request for %s: %v", urlStr, err)
		return nil, ErrRequestCreation
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Content-Type", "application/json")

	logger.Debugf("Sending POST request to %s", urlStr)

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("POST request failed for %s: %v", urlStr, err)
		return nil, ClassifyError(err)
	}

	return resp, nil
}

// ContentLength extracts the declared length of a response. Returns nil
// when the server did not supply a usable Content-Length.
func ContentLength(resp *http.Response) *int64 {
	if resp.ContentLength > 0 {
		total := resp.ContentLength
		return &total
	}

	return nil
}
