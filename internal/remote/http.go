package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPStore implements Store against the item-store HTTP API:
// GET /items, GET /items/{id}, POST /items (upsert).
type HTTPStore struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewHTTPStore creates an HTTPStore. timeout bounds each request and
// defaults to 10s when zero.
func NewHTTPStore(baseURL string, tokens TokenSource, timeout time.Duration) (*HTTPStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote store base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid remote store URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// ListItems implements Store.ListItems. Always hits the network.
func (s *HTTPStore) ListItems(ctx context.Context) ([]Item, error) {
	body, err := s.do(ctx, http.MethodGet, s.baseURL+"/items", nil)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return items, nil
}

// GetItem implements Store.GetItem.
func (s *HTTPStore) GetItem(ctx context.Context, id string) (Item, error) {
	body, err := s.do(ctx, http.MethodGet, s.baseURL+"/items/"+url.PathEscape(id), nil)
	if err != nil {
		return Item{}, err
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return Item{}, fmt.Errorf("parse item: %w", err)
	}
	return item, nil
}

// UpsertItem implements Store.UpsertItem.
func (s *HTTPStore) UpsertItem(ctx context.Context, input ItemInput) (Item, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return Item{}, fmt.Errorf("encode item: %w", err)
	}
	body, err := s.do(ctx, http.MethodPost, s.baseURL+"/items", payload)
	if err != nil {
		return Item{}, err
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return Item{}, fmt.Errorf("parse item: %w", err)
	}
	return item, nil
}

func (s *HTTPStore) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.tokens != nil {
		token, err := s.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("item store: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
