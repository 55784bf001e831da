// Package client is the remote side of the lost & found sync: a thin HTTP
// adapter over the CampusConnect API plus live-update subscriptions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/rs/zerolog/log"
)

// Remote is the contract the reconciliation layer consumes
type Remote interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.FoundItem, error)
	Create(ctx context.Context, req models.CreateFoundItemRequest) (models.FoundItem, error)
	Delete(ctx context.Context, id, actingIdentity string) error
	UpdateStatus(ctx context.Context, id string, status models.ItemStatus) (models.FoundItem, error)
}

// Client talks to the CampusConnect HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:4000/api)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches found items, newest first
func (c *Client) List(ctx context.Context, filter models.ItemFilter) ([]models.FoundItem, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Owner != "" {
		q.Set("owner", filter.Owner)
	}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}

	path := "/lostfound"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var items []models.FoundItem
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.FoundItem{}
	}
	return items, nil
}

// Create reports a found item and returns it with its server id
func (c *Client) Create(ctx context.Context, req models.CreateFoundItemRequest) (models.FoundItem, error) {
	var item models.FoundItem
	if err := c.do(ctx, http.MethodPost, "/lostfound", req, &item); err != nil {
		return models.FoundItem{}, err
	}
	if item.ID == "" {
		return models.FoundItem{}, fmt.Errorf("%w: server returned no id", models.ErrWrite)
	}
	return item, nil
}

// Delete removes an item on behalf of actingIdentity
func (c *Client) Delete(ctx context.Context, id, actingIdentity string) error {
	path := "/lostfound/" + url.PathEscape(id)
	if actingIdentity != "" {
		path += "?" + url.Values{"reporter": {actingIdentity}}.Encode()
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UpdateStatus sets an item's status; claiming goes through the claim route
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.ItemStatus) (models.FoundItem, error) {
	var item models.FoundItem
	var err error
	if status == models.StatusClaimed {
		err = c.do(ctx, http.MethodPatch, "/lostfound/"+url.PathEscape(id)+"/claim", nil, &item)
	} else {
		err = c.do(ctx, http.MethodPatch, "/lostfound/"+url.PathEscape(id)+"/status",
			models.UpdateStatusRequest{Status: status}, &item)
	}
	if err != nil {
		return models.FoundItem{}, err
	}
	return item, nil
}

// UploadImage sends a file to the upload endpoint and returns where it landed
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, r io.Reader) (models.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="image"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	})
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.send(req)
	if err != nil {
		return models.UploadResult{}, err
	}
	return models.ParseUploadResult(body)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.send(req)
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", models.ErrWrite, err)
	}
	return nil
}

// send executes req and classifies failures into the error taxonomy
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", req.Method, req.URL.Path, models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: failed to read response: %v", req.Method, req.URL.Path, models.ErrNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("body", string(body)).
		Msg("API request failed")

	return nil, statusError(resp.StatusCode, body)
}

func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	var kind error
	switch {
	case status == http.StatusBadRequest:
		kind = models.ErrValidation
	case status == http.StatusForbidden:
		kind = models.ErrForbidden
	case status == http.StatusNotFound:
		kind = models.ErrNotFound
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		kind = models.ErrNetwork
	default:
		kind = models.ErrWrite
	}
	return &StatusError{Code: status, Message: msg, kind: kind}
}

// StatusError is a non-2xx API response
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match the taxonomy sentinel for the status
func (e *StatusError) Unwrap() error { return e.kind }

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
