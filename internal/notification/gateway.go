package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Channel delivers notifications to users over one transport.
type Channel interface {
	Deliver(ctx context.Context, n Notification) error
	Close() error
}

// Gateway fans notifications out to every registered channel.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates a new notification gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("notification channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Publish delivers n on every channel. A failing channel does not stop the
// others; all failures are returned joined.
func (g *Gateway) Publish(ctx context.Context, n Notification) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	for name, ch := range g.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every registered channel.
func (g *Gateway) CloseAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	for name, ch := range g.channels {
		slog.Info("closing channel", "channel", name)
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing channel %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	Delivered []Notification
	Err       error
	mu        sync.Mutex
}

func (m *MockChannel) Deliver(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Delivered = append(m.Delivered, n)
	return nil
}

func (m *MockChannel) Close() error {
	return nil
}

// Sent returns a copy of the delivered notifications.
func (m *MockChannel) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.Delivered...)
}
