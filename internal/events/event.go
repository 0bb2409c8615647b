package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types, used by the dashboard to pick a handler
const (
	TypeStockUpdate  = "stock_update"
	TypeCatalog      = "catalog_update"
	TypeUserPresence = "user_presence"
)

// Actions
const (
	SaleRecorded    = "sale_recorded"
	StockIn         = "stock_in"
	StockOut        = "stock_out"
	BundleSold      = "bundle_sold"
	ImportCompleted = "import_completed"
	BookCreated     = "book_created"
	BookUpdated     = "book_updated"
	BookDeleted     = "book_deleted"
	BundleCreated   = "bundle_created"
	BundleUpdated   = "bundle_updated"
	BundleDeleted   = "bundle_deleted"
	UserOnline      = "user_online"
)

// Actor is the user who caused the change
type Actor struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Event is a committed domain change pushed to the dashboard and the broker
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Action     string      `json:"action"`
	Data       interface{} `json:"data,omitempty"`
	User       *Actor      `json:"user,omitempty"`
	Message    string      `json:"message,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	// Key groups events of one entity on the same partition
	Key string `json:"-"`
}

// New fills id and timestamp
func New(typ, action string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Action:     action,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
