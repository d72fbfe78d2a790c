package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/warren/internal/model"
)

// HTTPClient implements WarrenClient using the warren HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *HTTPClient) CreateEnvironment(ctx context.Context) (*model.Environment, error) {
	var env model.Environment
	if err := c.doJSON(ctx, http.MethodPost, "/v1/environments", nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *HTTPClient) GetEnvironment(ctx context.Context, id string) (*model.Environment, error) {
	var env model.Environment
	if err := c.doJSON(ctx, http.MethodGet, "/v1/environments/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *HTTPClient) ListEnvironments(ctx context.Context, req *ListEnvironmentsRequest) (*ListEnvironmentsResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
	}

	path := "/v1/environments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListEnvironmentsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ExpireEnvironment(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/environments/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) StartStream(ctx context.Context, req *StartStreamRequest) (*StartStreamResponse, error) {
	var resp StartStreamResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/streams", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) StopStream(ctx context.Context, environmentID, runID string, dropSlot bool) error {
	q := url.Values{}
	q.Set("environment_id", environmentID)
	q.Set("run_id", runID)
	if dropSlot {
		q.Set("drop", "true")
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/streams?"+q.Encode(), nil, nil)
}

func (c *HTTPClient) ListStreams(ctx context.Context) (*ListStreamsResponse, error) {
	var resp ListStreamsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/streams", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListChanges(ctx context.Context, environmentID, runID string) (*ListChangesResponse, error) {
	q := url.Values{}
	q.Set("environment_id", environmentID)
	if runID != "" {
		q.Set("run_id", runID)
	}

	var resp ListChangesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/changes?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
