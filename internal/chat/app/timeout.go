package app

import (
	"context"
	"time"
)

// defaultOperationTimeout bounds store and gateway calls when the service
// config leaves operation_timeout unset.
const defaultOperationTimeout = 5 * time.Second

// opDeadline derive the bounded context every repository, gateway and file
// store call of one operation runs under.
func opDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultOperationTimeout
	}
	return context.WithTimeout(ctx, d)
}
