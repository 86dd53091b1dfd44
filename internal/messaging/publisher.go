package messaging

import (
	"context"

	"github.com/reneepyh/ape-index/internal/domain"
)

// Publisher defines the interface for publishing batch events to the message queue
type Publisher interface {
	// PublishBatch announces a finished scrape batch to the message broker
	PublishBatch(ctx context.Context, event *domain.BatchEvent) error
	// Close closes the connection
	Close()
}
