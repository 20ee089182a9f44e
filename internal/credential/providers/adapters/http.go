package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"iam/internal/credential/providers"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully-read HTTP response from a verifier.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSONClient posts JSON documents to remote verifiers and hands back the raw
// status and body. It does not retry and adds no deadline of its own beyond
// the underlying client's Timeout.
type JSONClient struct {
	provider string
	client   HTTPDoer
}

// JSONClientConfig configures a JSONClient.
type JSONClientConfig struct {
	Provider   string // provider type tag, used to label failures
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// NewJSONClient creates a JSON-over-HTTP client for a provider.
func NewJSONClient(cfg JSONClientConfig) *JSONClient {
	return &JSONClient{
		provider: cfg.Provider,
		client:   selectHTTPClient(cfg),
	}
}

func selectHTTPClient(cfg JSONClientConfig) HTTPDoer {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}

	// Zero Timeout means no client-side limit: the caller's context decides.
	return &http.Client{
		Timeout: cfg.Timeout,
	}
}

// PostJSON sends body as JSON to url and reads the whole response.
// Failures are *providers.VerificationError values categorized as transport
// (request could not be sent) or malformed response (body could not be read).
func (c *JSONClient) PostJSON(ctx context.Context, url string, body any) (*Response, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewVerificationError(
			providers.CategoryInternal,
			c.provider,
			"failed to marshal request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewVerificationError(
			providers.CategoryTransportFailure,
			c.provider,
			"failed to create request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, providers.NewVerificationError(
			providers.CategoryTransportFailure,
			c.provider,
			"failed to execute request",
			err,
		)
	}
	if resp == nil || resp.Body == nil {
		return nil, providers.NewVerificationError(
			providers.CategoryMalformedResponse,
			c.provider,
			"empty response from verifier",
			nil,
		)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.NewVerificationError(
			providers.CategoryMalformedResponse,
			c.provider,
			fmt.Sprintf("failed to read response (status %d)", resp.StatusCode),
			err,
		)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
