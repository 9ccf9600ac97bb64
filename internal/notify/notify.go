package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Recipient is one addressee of a notification
type Recipient struct {
	UserID    string
	PushToken string
}

// Notification is a fire-and-forget message to a set of users
type Notification struct {
	Recipients []Recipient
	Title      string
	Body       string
	Payload    map[string]string
}

// Sink delivers notifications. Delivery failures never affect the caller's operation.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Fanout delivers to every sink and joins their errors
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every notification
type Discard struct{}

func (Discard) Notify(ctx context.Context, n Notification) error {
	log.Debug().Str("title", n.Title).Int("recipients", len(n.Recipients)).Msg("Notification discarded")
	return nil
}
