// Package contentservice is the HTTP client for the headless content
// backend: multipart asset upload, exact-URL asset lookup, and entry
// creation, all under bearer-token auth.
package contentservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/halvard/raido/internal/apperr"
)

const (
	uploadPath     = "/api/upload"
	assetQueryPath = "/api/upload/files"

	maxResponseBytes = 4 << 20 // 4 MB
)

// Asset is the content service's descriptor for a stored binary file.
type Asset struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	AlternativeText string `json:"alternativeText,omitempty"`
	Caption         string `json:"caption,omitempty"`
}

// FileInfo is the optional display metadata attached to an upload as a
// JSON side channel.
type FileInfo struct {
	Name            string `json:"name,omitempty"`
	AlternativeText string `json:"alternativeText,omitempty"`
	Caption         string `json:"caption,omitempty"`
}

// Entry is the created-resource representation returned by a write endpoint.
type Entry struct {
	ID int `json:"id"`
}

// API is the interface consumers should depend on rather than the concrete
// *Client, to facilitate testing with fakes.
type API interface {
	UploadFile(ctx context.Context, data []byte, filename string, info *FileInfo) (*Asset, error)
	FindAssetByURL(ctx context.Context, sourceURL string) (*Asset, error)
	CreateEntry(ctx context.Context, collection string, data map[string]any) (*Entry, error)
}

// Client talks to one content service instance.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a client for the service at baseURL. A zero timeout
// defaults to 30 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// UploadFile sends one binary file to the upload endpoint as multipart
// form data, with optional display metadata in the fileInfo field.
// The service responds with an array of descriptors; the first is returned.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename string, info *FileInfo) (*Asset, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("contentservice: multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("contentservice: multipart write: %w", err)
	}
	if info != nil {
		infoJSON, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("contentservice: marshal fileInfo: %w", err)
		}
		if err := mw.WriteField("fileInfo", string(infoJSON)); err != nil {
			return nil, fmt.Errorf("contentservice: multipart fileInfo: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("contentservice: multipart close: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, uploadPath, &body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var assets []Asset
	if err := json.Unmarshal(respBody, &assets); err != nil {
		return nil, fmt.Errorf("contentservice: decode upload response: %w", err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("contentservice: upload returned no asset descriptor")
	}
	return &assets[0], nil
}

// FindAssetByURL queries the asset listing filtered by exact stored URL.
// Returns (nil, nil) when no asset matches.
func (c *Client) FindAssetByURL(ctx context.Context, sourceURL string) (*Asset, error) {
	q := url.Values{}
	q.Set("filters[url][$eq]", sourceURL)

	respBody, err := c.do(ctx, http.MethodGet, assetQueryPath+"?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var assets []Asset
	if err := json.Unmarshal(respBody, &assets); err != nil {
		return nil, fmt.Errorf("contentservice: decode asset listing: %w", err)
	}
	if len(assets) == 0 {
		return nil, nil
	}
	return &assets[0], nil
}

// CreateEntry posts { data: <fields> } to the route's write endpoint
// (e.g. /api/articles) and returns the created entry.
func (c *Client) CreateEntry(ctx context.Context, collection string, data map[string]any) (*Entry, error) {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return nil, fmt.Errorf("contentservice: marshal payload: %w", err)
	}

	if !strings.HasPrefix(collection, "/") {
		collection = "/" + collection
	}
	respBody, err := c.do(ctx, http.MethodPost, collection, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	// Response shape is { data: { id, ... } }; tolerate a bare object too.
	var wrapped struct {
		Data Entry `json:"data"`
	}
	if err := json.Unmarshal(respBody, &wrapped); err == nil && wrapped.Data.ID != 0 {
		return &wrapped.Data, nil
	}
	var entry Entry
	if err := json.Unmarshal(respBody, &entry); err != nil {
		return nil, fmt.Errorf("contentservice: decode entry response: %w", err)
	}
	return &entry, nil
}

// do executes one request and returns the response body. Transport
// failures become NetworkError; non-2xx statuses become ServiceError with
// the error body's message extracted when present.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("contentservice: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &apperr.NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &apperr.NetworkError{Op: "read response " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.ServiceError{
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
			Body:    string(respBody),
		}
	}
	return respBody, nil
}

// errorMessage extracts the message field from a service error body,
// accepting both { error: { message } } and { message } shapes.
func errorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &nested); err != nil {
		return ""
	}
	if nested.Error.Message != "" {
		return nested.Error.Message
	}
	return nested.Message
}

// Verify *Client satisfies API at compile time.
var _ API = (*Client)(nil)
