// Package remote adapts the generic remote item store: named items with
// opaque JSON-encoded content and metadata strings. The favorites layer owns
// the meaning of those strings; this package only moves them.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetItem for unknown item IDs.
var ErrNotFound = errors.New("item not found")

// Item is one stored record. Content and Metadata are opaque JSON strings
// from the store's perspective.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ItemInput is the upsert payload. A present ID means update-in-place;
// an empty ID means create.
type ItemInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Metadata string `json:"metadata"`
}

// Store is the remote item store client. ListItems is always network-fresh;
// callers must not cache its results (staleness would reintroduce the
// duplicate and soft-delete bugs the favorites filtering exists to fix).
type Store interface {
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	UpsertItem(ctx context.Context, input ItemInput) (Item, error)
}

// TokenSource supplies the bearer token attached to each call. The core does
// not manage token refresh, only consumes the current value.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource returning a fixed value.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }
