package services

import (
	"context"
	"fmt"
	"time"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/config"
	"group-media-backend/internal/models"
)

// Reservation is quota charged ahead of an upload. It is released if the upload fails.
type Reservation struct {
	UserID  string
	Counter string
	Cost    int64
	Day     time.Time
}

// QuotaLedger enforces the daily upload allowance of each user
type QuotaLedger struct {
	store Store
	cfg   config.QuotaConfig
	now   func() time.Time
}

// NewQuotaLedger creates a new quota ledger
func NewQuotaLedger(store Store, cfg config.QuotaConfig) *QuotaLedger {
	return &QuotaLedger{store: store, cfg: cfg, now: time.Now}
}

// Today is the ledger's current day
func (l *QuotaLedger) Today() time.Time {
	return today(l.now())
}

// charge returns the counter, cost and limit an upload is measured against
func (l *QuotaLedger) charge(user *models.User, mediaType models.MediaType, size int64) (string, int64, int64, error) {
	switch l.cfg.Policy {
	case config.QuotaPolicyItems:
		if mediaType == models.MediaVideo {
			return models.CounterVideos, 1, int64(l.cfg.DailyVideoLimit), nil
		}
		return models.CounterImages, 1, int64(l.cfg.DailyImageLimit), nil
	case config.QuotaPolicyBytes:
		limit, ok := l.cfg.Plans[user.Plan]
		if !ok {
			limit = l.cfg.Plans[l.cfg.DefaultPlan]
		}
		return models.CounterBytes, size, limit, nil
	default:
		return "", 0, 0, fmt.Errorf("unknown quota policy %q", l.cfg.Policy)
	}
}

func (l *QuotaLedger) denial(mediaType models.MediaType) error {
	if l.cfg.Policy == config.QuotaPolicyItems {
		return apperrors.ItemLimitExceeded(string(mediaType))
	}
	return apperrors.StorageLimitExceeded()
}

// CheckAndReserve charges an upload against today's allowance.
// A stale day is reset and persisted first; the charge itself is one conditional update,
// so concurrent uploads of the same user can never overshoot the limit together.
func (l *QuotaLedger) CheckAndReserve(ctx context.Context, user *models.User, mediaType models.MediaType, size int64) (*Reservation, error) {
	return l.Reserve(ctx, l.store, user, mediaType, size)
}

// Reserve is CheckAndReserve on q, so the charge can share a transaction with its pending marker
func (l *QuotaLedger) Reserve(ctx context.Context, q Queries, user *models.User, mediaType models.MediaType, size int64) (*Reservation, error) {
	counter, cost, limit, err := l.charge(user, mediaType, size)
	if err != nil {
		return nil, err
	}

	day := l.Today()
	if err := q.ResetQuotaIfStale(ctx, user.ID, day); err != nil {
		return nil, err
	}

	ok, err := q.ReserveQuota(ctx, user.ID, day, counter, cost, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, l.denial(mediaType)
	}

	return &Reservation{UserID: user.ID, Counter: counter, Cost: cost, Day: day}, nil
}

// Release gives a reservation back. A reservation from a previous day is a no-op.
func (l *QuotaLedger) Release(ctx context.Context, q Queries, r *Reservation) error {
	return q.ReleaseQuota(ctx, r.UserID, r.Day, r.Counter, r.Cost)
}

// Finalize makes the reservation of a pending upload permanent by dropping its marker.
// It must run in the transaction that persists the media row.
func (l *QuotaLedger) Finalize(ctx context.Context, q Queries, pendingID string) error {
	found, err := q.DeletePendingUpload(ctx, pendingID)
	if err != nil {
		return err
	}
	if !found {
		// the sweep already released this reservation and removed the blobs
		return apperrors.Conflict("upload expired before it was committed")
	}
	return nil
}

// Usage returns the user's counters as they apply today
func (l *QuotaLedger) Usage(user *models.User) models.Quota {
	return user.Quota.Current(l.Today())
}
