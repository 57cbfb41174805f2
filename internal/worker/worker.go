package worker

import (
	"context"
)

// Worker is implemented by every background job the process manager runs.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}
