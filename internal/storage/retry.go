package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/config"
)

// Backend is the raw blob store a Retrying store delegates to
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying cannot fix
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrying wraps a Backend with bounded exponential backoff.
// Errors that outlive the budget come back as storage errors.
type Retrying struct {
	backend     Backend
	maxAttempts int
	initial     time.Duration
}

// NewRetrying creates a retrying store
func NewRetrying(backend Backend, cfg config.RetryConfig) *Retrying {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{backend: backend, maxAttempts: attempts, initial: cfg.InitialInterval}
}

func (r *Retrying) do(ctx context.Context, op, key string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	if r.initial > 0 {
		b.InitialInterval = r.initial
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxAttempts-1)), ctx)

	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Str("key", key).Dur("wait", wait).Msg("Retrying blob operation")
	})
	if err != nil {
		return apperrors.Storage("blob store "+op+" failed", err)
	}
	return nil
}

func (r *Retrying) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return r.do(ctx, "put", key, func() error {
		return r.backend.Put(ctx, key, data, contentType)
	})
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", key, func() error {
		return r.backend.Delete(ctx, key)
	})
}

func (r *Retrying) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := r.do(ctx, "exists", key, func() error {
		ok, err := r.backend.Exists(ctx, key)
		found = ok
		return err
	})
	return found, err
}

// SignedReadURL is local computation in both backends, so it is not retried
func (r *Retrying) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := r.backend.SignedReadURL(ctx, key, ttl)
	if err != nil {
		return "", apperrors.Storage("blob store sign failed", err)
	}
	return url, nil
}
