package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// jsonEndpoint is one provider's HTTP surface: where requests go and how they authenticate.
type jsonEndpoint struct {
	provider string
	client   *http.Client
	header   http.Header
}

// post sends in as a JSON body and decodes a 200 response into out.
// Any other status becomes an *APIError carrying the raw body.
func (e jsonEndpoint) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := e.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// probe issues a GET and reports whether the endpoint answered 200.
func (e jsonEndpoint) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if _, err := e.do(req); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (e jsonEndpoint) do(req *http.Request) ([]byte, error) {
	for k, v := range e.header {
		req.Header[k] = v
	}
	client := e.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: e.provider, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
