// Package ledger records which topics were processed and which file links
// were delivered, so the relay never posts the same file twice.
package ledger

import "context"

// Ledger gates re-delivery. Both sets only grow, except where a bounded
// backend evicts its oldest entries.
type Ledger interface {
	IsNewFile(ctx context.Context, link string) (bool, error)
	IsSeenTopic(ctx context.Context, topicURL string) (bool, error)
	RecordDelivered(ctx context.Context, link string) error
	RecordSeenTopic(ctx context.Context, topicURL string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats reports ledger sizes.
type Stats struct {
	SeenTopics  int
	PostedLinks int
}
