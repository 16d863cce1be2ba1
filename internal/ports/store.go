package ports

import (
	"context"
	"time"

	"github.com/drover-dev/drover/internal/domain"
)

type RunStore interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	UpdateRun(ctx context.Context, run *domain.Run) error
	DeleteRun(ctx context.Context, id string) error
	ListRuns(ctx context.Context) ([]*domain.Run, error)
}

// Event is one persisted action or observation of a run, stored with its
// serialized payload so past runs can be inspected and searched.
type Event struct {
	RunID     string
	Seq       int
	Source    string // "action" or "observation"
	Kind      string
	Message   string
	Payload   string // JSON
	CreatedAt time.Time
}

type EventStore interface {
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, runID string) ([]*Event, error)
	// SearchEvents returns the most recent events whose message or
	// payload contains the query text.
	SearchEvents(ctx context.Context, query string, limit int) ([]*Event, error)
}
