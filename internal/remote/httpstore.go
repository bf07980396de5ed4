package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mwhite/fleetsync/internal/models"
)

// HTTPStore talks to the hosted document store's REST API:
//
//	GET    /v1/{collection}?owner_id={owner}
//	POST   /v1/{collection}
//	PUT    /v1/{collection}/{id}
//	DELETE /v1/{collection}/{id}?owner_id={owner}
//	GET    /healthz
//
// The client carries no timeout of its own; every call's deadline comes
// from the caller's context, which is how the engine keeps its two
// timeout tiers.
type HTTPStore struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates an HTTPStore for the given endpoint.
func New(baseURL, apiKey, deviceID string) *HTTPStore {
	return &HTTPStore{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{},
	}
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// Create posts a new record; the response carries the canonical id the
// server assigned.
func (c *HTTPStore) Create(ctx context.Context, collection models.Collection, rec models.Record) (models.Record, error) {
	var out models.Record
	path := fmt.Sprintf("/v1/%s", collection)
	if err := c.do(ctx, http.MethodPost, path, rec, &out); err != nil {
		return models.Record{}, err
	}
	return out, nil
}

// Update replaces a record by id.
func (c *HTTPStore) Update(ctx context.Context, collection models.Collection, rec models.Record) (models.Record, error) {
	var out models.Record
	path := fmt.Sprintf("/v1/%s/%s", collection, url.PathEscape(rec.ID))
	if err := c.do(ctx, http.MethodPut, path, rec, &out); err != nil {
		return models.Record{}, err
	}
	return out, nil
}

// Delete removes a record by id.
func (c *HTTPStore) Delete(ctx context.Context, collection models.Collection, owner, id string) error {
	params := url.Values{}
	params.Set("owner_id", owner)
	path := fmt.Sprintf("/v1/%s/%s?%s", collection, url.PathEscape(id), params.Encode())
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Query fetches the owner's records in a collection.
func (c *HTTPStore) Query(ctx context.Context, collection models.Collection, owner string) ([]models.Record, error) {
	params := url.Values{}
	params.Set("owner_id", owner)
	path := fmt.Sprintf("/v1/%s?%s", collection, params.Encode())

	var out []models.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping hits /healthz to verify server reachability.
func (c *HTTPStore) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *HTTPStore) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		haveBody := json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != ""

		switch {
		case resp.StatusCode == http.StatusNotFound:
			if haveBody {
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			}
			return ErrNotFound
		case resp.StatusCode == http.StatusConflict:
			if haveBody {
				return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
			}
			return ErrConflict
		case resp.StatusCode >= 500:
			if haveBody {
				return fmt.Errorf("%w: %s", ErrServer, apiErr.Message)
			}
			return fmt.Errorf("%w: HTTP %d", ErrServer, resp.StatusCode)
		default:
			if haveBody {
				return &apiErr
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
