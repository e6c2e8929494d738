// Package basespace is a thin client for the file endpoints of a
// BaseSpace-style REST API.
package basespace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/NamanBalaji/bsfetch/internal/logger"
	httpPkg "github.com/NamanBalaji/bsfetch/pkg/http"
)

const (
	DefaultAPIURL  = "https://api.basespace.illumina.com"
	DefaultVersion = "v1pre3"

	tokenHeader = "x-access-token"
)

var (
	ErrMissingToken   = errors.New("access token is required")
	ErrEmptyResponse  = errors.New("response envelope has no body")
	ErrDecodeResponse = errors.New("failed to decode response")
)

// ResponseStatus is the error block of the API envelope.
type ResponseStatus struct {
	ErrorCode string `json:"ErrorCode,omitempty"`
	Message   string `json:"Message,omitempty"`
}

type envelope struct {
	Response       json.RawMessage `json:"Response"`
	ResponseStatus ResponseStatus  `json:"ResponseStatus"`
}

// File is the subset of file metadata needed to download it.
type File struct {
	Id          string    `json:"Id"`
	Href        string    `json:"Href"`
	Name        string    `json:"Name"`
	ContentType string    `json:"ContentType"`
	Size        int64     `json:"Size"`
	Path        string    `json:"Path"`
	DateCreated time.Time `json:"DateCreated"`
}

// ContentMeta describes a pre-signed content URL.
type ContentMeta struct {
	HrefContent   string    `json:"HrefContent"`
	SupportsRange bool      `json:"SupportsRange"`
	Expires       time.Time `json:"Expires"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s (%s)", e.Err, e.Message, e.ErrorCode)
	}

	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type Client struct {
	http    *httpPkg.Client
	baseURL string
	version string
	token   string
}

type Option func(*Client)

func WithHTTPClient(c *httpPkg.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

func NewClient(baseURL, version, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	if version == "" {
		version = DefaultVersion
	}

	c := &Client{
		http:    httpPkg.NewClient(),
		baseURL: baseURL,
		version: version,
		token:   token,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetFile returns metadata for the file with the given id.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	var f File
	if err := c.get(ctx, nil, &f, "files", id); err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}

	return &f, nil
}

// GetFileContentMeta asks for a pre-signed content URL instead of a redirect.
func (c *Client) GetFileContentMeta(ctx context.Context, id string) (*ContentMeta, error) {
	var m ContentMeta
	if err := c.get(ctx, url.Values{"redirect": {"meta"}}, &m, "files", id, "content"); err != nil {
		return nil, fmt.Errorf("get content url for %s: %w", id, err)
	}

	return &m, nil
}

func (c *Client) get(ctx context.Context, query url.Values, out any, elems ...string) error {
	if c.token == "" {
		return ErrMissingToken
	}

	u, err := url.JoinPath(c.baseURL, append([]string{c.version}, elems...)...)
	if err != nil {
		return fmt.Errorf("%w: %w", httpPkg.ErrRequestCreation, err)
	}

	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.http.Get(ctx, u, map[string]string{
		tokenHeader: c.token,
		"Accept":    "application/json",
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpPkg.ClassifyError(err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Errorf("API request to %s failed: status=%d code=%s", u, resp.StatusCode, env.ResponseStatus.ErrorCode)

		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorCode:  env.ResponseStatus.ErrorCode,
			Message:    env.ResponseStatus.Message,
			Err:        httpPkg.NewStatusError(resp.StatusCode),
		}
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, decodeErr)
	}

	if len(env.Response) == 0 || string(env.Response) == "null" {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	return nil
}
