// Package channel defines the delivery boundary: the engine decides what to
// send and when, a Sender per channel decides how. Real providers (mail
// gateway, SMS broker, print service, legal handover) implement Sender
// outside this repository.
package channel

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/recoverops/dunning/model"
)

// Sender delivers one recovery action over a single channel. Send returns an
// error when the channel rejects the request; the engine treats rejection as
// a dispatch failure and retries on a later cycle.
type Sender interface {
	Send(ctx context.Context, templateRef string, c model.Case) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, templateRef string, c model.Case) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, templateRef string, c model.Case) error {
	return f(ctx, templateRef, c)
}

// Registry maps channels to their Sender implementations.
type Registry struct {
	mu      sync.RWMutex
	senders map[model.Channel]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[model.Channel]Sender)}
}

// Register binds a sender to a channel, replacing any previous binding.
func (r *Registry) Register(ch model.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

// Lookup returns the sender for a channel.
func (r *Registry) Lookup(ch model.Channel) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.senders[ch]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("no sender registered for channel %q", ch))
	}
	return s, nil
}

// NewLogSender returns a Sender that only logs the dispatch. It is the
// default host wiring so the engine runs end-to-end before real delivery
// providers are connected.
func NewLogSender(logger *zap.Logger, ch model.Channel) Sender {
	return SenderFunc(func(_ context.Context, templateRef string, c model.Case) error {
		logger.Info("dispatching recovery action",
			zap.String("channel", string(ch)),
			zap.String("template", templateRef),
			zap.String("case_id", c.ID),
			zap.String("amount", c.Amount.String()),
		)
		return nil
	})
}
