package ports

import (
	"context"

	"github.com/drover-dev/drover/internal/domain"
)

// Completer sends one ordered, role-tagged message sequence to a
// text-completion service and returns the raw reply text. Transport
// concerns (providers, retries, rate limits) live behind this interface;
// callers treat a Complete call as a single opaque blocking operation.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}
