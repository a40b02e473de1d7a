package messages

import (
	"context"
)

type Order int

const (
	OrderOldestFirst Order = iota
	OrderNewestFirst
)

type ListOptions struct {
	IncludeDeleted bool
	PinnedOnly     bool
	Order          Order
	// Limit <= 0 means no limit.
	Limit int
}

// Store is the persistence boundary for messages. Create assigns ID and
// CreatedAt. Update applies a Patch atomically to a single record and returns
// the stored result.
type Store interface {
	Create(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id int64) (*Message, error)
	Update(ctx context.Context, id int64, patch Patch) (*Message, error)
	List(ctx context.Context, opts ListOptions) ([]*Message, error)
}
