package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/treefs"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// HTTPClient is the subset of *http.Client used to fetch content
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`

	client HTTPClient
}

// HTTPProvider builds HTTPSources sharing one client
type HTTPProvider struct {
	Client HTTPClient
}

func (p *HTTPProvider) NewSource(raw []byte) (treefs.Source, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}

	src.URL = strings.TrimSpace(src.URL)
	if err := validateURL(src.URL); err != nil {
		return nil, err
	}
	if src.Method != nil {
		switch *src.Method {
		case HTTPMethodGet, HTTPMethodPost:
		default:
			return nil, fmt.Errorf("unsupported http method %q", *src.Method)
		}
	}

	src.client = p.Client
	if src.client == nil {
		src.client = http.DefaultClient
	}
	return &src, nil
}

// validateURL accepts absolute http(s) URLs without user info
func validateURL(raw string) error {
	if raw == "" {
		return errors.New("http source requires a url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	if u.User != nil {
		return fmt.Errorf("invalid url %q: user info not allowed", raw)
	}
	return nil
}

func (h *HTTPSource) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, h.getMethod(), h.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Fetch downloads the whole response body. Non-2xx responses are errors.
func (h *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := h.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", h.getMethod(), h.URL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (h *HTTPSource) getMethod() HTTPMethod {
	if h.Method != nil {
		return *h.Method
	}
	return HTTPMethodGet
}
