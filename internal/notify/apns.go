package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"group-media-backend/internal/config"
)

// pusher is the subset of *apns2.Client the sink uses
type pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNs pushes notifications to iOS devices
type APNs struct {
	client pusher
	topic  string
}

// NewAPNs creates an APNs sink from a .p8 signing key
func NewAPNs(cfg config.APNsConfig) (*APNs, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNs{client: client, topic: cfg.Topic}, nil
}

// Notify pushes to every recipient that has a device token
func (a *APNs) Notify(ctx context.Context, n Notification) error {
	p := payload.NewPayload().AlertTitle(n.Title).AlertBody(n.Body).Sound("default")
	for k, v := range n.Payload {
		p = p.Custom(k, v)
	}

	var errs []error
	for _, r := range n.Recipients {
		if r.PushToken == "" {
			continue
		}

		resp, err := a.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: r.PushToken,
			Topic:       a.topic,
			Payload:     p,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to push to user %s: %w", r.UserID, err))
			continue
		}
		if !resp.Sent() {
			errs = append(errs, fmt.Errorf("push to user %s rejected: %d %s", r.UserID, resp.StatusCode, resp.Reason))
			continue
		}

		log.Debug().Str("user_id", r.UserID).Str("apns_id", resp.ApnsID).Msg("Push sent")
	}

	return errors.Join(errs...)
}
