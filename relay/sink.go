// Package relay forwards validated alerts from a channel to message
// brokers.
package relay

import (
	"context"

	"github.com/lisuiheng/opsfeed/core"
)

// Sink is a relay target. Publish must honour ctx cancellation.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg core.InboundMessage) error
	Close() error
}
