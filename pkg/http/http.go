package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultIdleTimeout    = 90 * time.Second
	keepAlivePeriod       = 30 * time.Second
	maxIdleConns          = 100
	tlsHandshakeTimeout   = 10 * time.Second
	expectContinueTimeout = 1 * time.Second
	responseHeaderTimeout = 60 * time.Second
	maxConnsPerHost       = 16

	DefaultUserAgent = "bsfetch/1.0"
)

type Client struct {
	*http.Client

	userAgent string
}

type Option func(*Client)

// WithTimeout bounds a whole request including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.Timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTransport replaces the tuned transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.Transport = rt
	}
}

// NewClient creates a new HTTP client with custom transport settings.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultConnectTimeout,
			KeepAlive: keepAlivePeriod,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       defaultIdleTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		DisableCompression:    true,
		MaxConnsPerHost:       maxConnsPerHost,
	}

	c := &Client{
		Client:    &http.Client{Transport: transport},
		userAgent: DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Range fetches the inclusive byte range [start, end] and returns its body.
// A server that ignores the Range header yields ErrRangesNotSupported; a body
// shorter than the range yields ErrUnexpectedEOF.
func (c *Client) Range(ctx context.Context, urlStr string, start, end int64, headers map[string]string) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("%w: bytes=%d-%d", ErrInvalidContentRange, start, end)
	}

	req, err := c.generateRequest(ctx, urlStr, http.MethodGet, headers)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("Range GET request failed for %s: %v", redact(urlStr), err)
		return nil, ClassifyError(err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Errorf("Range GET request returned error status %d for %s", resp.StatusCode, redact(urlStr))
		return nil, NewStatusError(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusPartialContent {
		logger.Warnf("Server doesn't support ranges for %s (status: %d)", redact(urlStr), resp.StatusCode)
		return nil, ErrRangesNotSupported
	}

	if cr := resp.Header.Get("Content-Range"); cr != "" {
		gotStart, err := parseContentRangeStart(cr)
		if err != nil || gotStart != start {
			return nil, fmt.Errorf("%w: %q for bytes=%d-%d", ErrInvalidContentRange, cr, start, end)
		}
	}

	buf := make([]byte, end-start+1)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		logger.Errorf("Short range body for %s: %v", redact(urlStr), err)
		return nil, ClassifyError(err)
	}

	return buf, nil
}

// Get performs a GET request. The caller must close the response body.
func (c *Client) Get(ctx context.Context, urlStr string, headers map[string]string) (*http.Response, error) {
	req, err := c.generateRequest(ctx, urlStr, http.MethodGet, headers)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Sending GET request to %s", redact(urlStr))

	resp, err := c.Do(req)
	if err != nil {
		logger.Errorf("GET request failed for %s: %v", redact(urlStr), err)
		return nil, ClassifyError(err)
	}

	logger.Debugf("GET response for %s: status=%d", redact(urlStr), resp.StatusCode)

	return resp, nil
}

func (c *Client) generateRequest(ctx context.Context, urlStr, method string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, http.NoBody)
	if err != nil {
		logger.Errorf("Failed to create %s request for %s: %v", method, redact(urlStr), err)
		return nil, fmt.Errorf("%w: %w", ErrRequestCreation, err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// parseContentRangeStart reads the first byte offset of "bytes a-b/size".
func parseContentRangeStart(header string) (int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, ErrInvalidContentRange
	}

	first, _, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, ErrInvalidContentRange
	}

	return strconv.ParseInt(first, 10, 64)
}

// redact drops the query string, which carries signatures for content URLs.
func redact(urlStr string) string {
	if i := strings.IndexByte(urlStr, '?'); i >= 0 {
		return urlStr[:i] + "?..."
	}

	return urlStr
}
