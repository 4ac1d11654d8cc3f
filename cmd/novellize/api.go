package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// apiClient talks to a running Novellize server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(serverURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// statusError is a non-2xx reply. Body holds the raw response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// do sends body (JSON-encoded when non-nil) and decodes the reply into out.
// accept lists extra status codes whose body is still decoded.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, code := range accept {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		b, _ := io.ReadAll(resp.Body)
		return &statusError{Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if raw, isRaw := out.(*[]byte); isRaw {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
