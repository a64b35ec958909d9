package notify

import (
	"context"
	"errors"

	"cryptoSpotBot/internal/domain"
	"cryptoSpotBot/internal/ports"
)

// Multi fans every notification out to all targets. A failing target does
// not stop delivery to the others; the failures are joined.
type Multi struct {
	targets []ports.Notifier
}

// NewMulti combines notifiers, skipping nil entries.
func NewMulti(targets ...ports.Notifier) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

func (m *Multi) each(fn func(ports.Notifier) error) error {
	var errs []error
	for _, t := range m.targets {
		if err := fn(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) SendTradeNotification(ctx context.Context, trade *domain.Trade) error {
	return m.each(func(n ports.Notifier) error { return n.SendTradeNotification(ctx, trade) })
}

func (m *Multi) SendSignalNotification(ctx context.Context, signal *domain.TradingSignal) error {
	return m.each(func(n ports.Notifier) error { return n.SendSignalNotification(ctx, signal) })
}

func (m *Multi) SendErrorNotification(ctx context.Context, message string) error {
	return m.each(func(n ports.Notifier) error { return n.SendErrorNotification(ctx, message) })
}
