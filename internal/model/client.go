package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// RequestError is returned when a model endpoint could not be reached or
// answered with something other than 200.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return e.Op + ": request failed"
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type endpoint struct {
	baseURL string
	client  *http.Client
}

func newEndpoint(baseURL string, client *http.Client) endpoint {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return endpoint{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (e endpoint) do(req *http.Request, op string, out any) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (e endpoint) postJSON(ctx context.Context, path, op string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, op, out)
}

// ping lists the served models and checks name is among them. An endpoint
// that returns an empty list is treated as serving anything.
func (e endpoint) ping(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := e.do(req, "list models", &list); err != nil {
		return err
	}
	if len(list.Data) == 0 {
		return nil
	}
	for _, m := range list.Data {
		if m.ID == name {
			return nil
		}
	}
	return fmt.Errorf("model %q is not served by %s", name, e.baseURL)
}
