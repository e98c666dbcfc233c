package interfaces

import "context"

// Notifier pushes a human-readable message to the operator.
// Delivery is best effort; failures are logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
