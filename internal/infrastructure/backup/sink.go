package backup

import (
	"context"
)

// Sink stores finished archives under a name
type Sink interface {
	// Name identifies the sink in logs and results
	Name() string
	Put(ctx context.Context, name string, data []byte) error
}
