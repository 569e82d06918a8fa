package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by SnapshotStore.Load when nothing was saved yet.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists one opaque account snapshot. Implementations
// store and return the bytes unchanged.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, snapshot []byte) error
	Close() error
}

type EventType string

const (
	EventAccountCreated   EventType = "ACCOUNT_CREATED"
	EventAccountHealed    EventType = "ACCOUNT_HEALED"
	EventAccountReset     EventType = "ACCOUNT_RESET"
	EventOrderExecuted    EventType = "ORDER_EXECUTED"
	EventWatchlistToggled EventType = "WATCHLIST_TOGGLED"
)

// Event is one journal entry describing a committed ledger change.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	AccountID string          `json:"account_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventStore is an append-only journal. List returns the newest events
// first.
type EventStore interface {
	Append(ctx context.Context, evt Event) error
	List(ctx context.Context, limit int) ([]Event, error)
	Close() error
}
