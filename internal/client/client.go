// Package client is an HTTP client for the Inkwell chapter API. Its
// Autosave method is the transport behind autosave.Coordinator.
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
	"time"

	"github.com/markdave123-py/Inkwell/internal/autosave"
	"github.com/markdave123-py/Inkwell/internal/core"
	"github.com/markdave123-py/Inkwell/internal/models"
)

var _ autosave.Saver = (*Client)(nil)

// Client authenticates with a bearer token. Requests are never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Autosave(ctx context.Context, chapterID, content string) (*models.AutosaveResult, error) {
	var res models.AutosaveResult
	err := c.do(ctx, http.MethodPost, "/api/chapters/"+url.PathEscape(chapterID)+"/autosave",
		map[string]string{"content": content}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetChapter(ctx context.Context, chapterID string) (*models.Chapter, error) {
	var ch models.Chapter
	if err := c.do(ctx, http.MethodGet, "/api/chapters/"+url.PathEscape(chapterID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SaveChapter is the explicit save.
func (c *Client) SaveChapter(ctx context.Context, chapterID string, patch models.ChapterPatch) (*models.Chapter, error) {
	var ch models.Chapter
	if err := c.do(ctx, http.MethodPut, "/api/chapters/"+url.PathEscape(chapterID), patch, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) ListChapters(ctx context.Context, projectID string) ([]models.ChapterListItem, error) {
	var items []models.ChapterListItem
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/chapters", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// APIError is a non-2xx response. It unwraps to the matching core error.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inkwell api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return &core.ValidationError{Field: e.Field, Reason: e.Message}
	case http.StatusUnauthorized:
		return core.ErrNotAuthenticated
	case http.StatusForbidden:
		return core.ErrForbidden
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrConflict
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
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
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			apiErr.Message, apiErr.Field = payload.Error, payload.Field
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
