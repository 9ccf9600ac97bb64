package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"group-media-backend/internal/config"
	"group-media-backend/internal/models"
)

const (
	reconcileBatch    = 100
	defaultPendingTTL = time.Hour
	defaultSweepEvery = 10 * time.Minute
)

// Reconciler cleans up uploads whose blobs were written but whose media row never committed
type Reconciler struct {
	store    Store
	blobs    BlobStore
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewReconciler creates a new sweep over stale pending uploads
func NewReconciler(store Store, blobs BlobStore, cfg config.ReconcileConfig) *Reconciler {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepEvery
	}
	return &Reconciler{store: store, blobs: blobs, ttl: ttl, interval: interval, now: time.Now}
}

// RunOnce sweeps one batch of stale markers and returns how many were reclaimed.
// A marker is claimed in a transaction before its blobs are touched, so a sweep
// and a late commit of the same upload can never both succeed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	stale, err := r.store.ListStalePendingUploads(ctx, cutoff, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale uploads: %w", err)
	}

	swept := 0
	for _, p := range stale {
		claimed, err := r.claim(ctx, p)
		if err != nil {
			return swept, err
		}
		if !claimed {
			continue
		}

		keys := []string{p.StorageKey}
		if p.ThumbnailKey != nil {
			keys = append(keys, *p.ThumbnailKey)
		}
		purgeBlobs(ctx, r.blobs, keys)
		swept++
	}

	if swept > 0 {
		log.Info().Int("swept", swept).Msg("Reclaimed stale uploads")
	}
	return swept, nil
}

func (r *Reconciler) claim(ctx context.Context, p models.PendingUpload) (bool, error) {
	var claimed bool
	err := r.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		found, err := q.DeletePendingUpload(ctx, p.ID)
		if err != nil || !found {
			return err
		}
		claimed = true
		return q.ReleaseQuota(ctx, p.UserID, p.QuotaDay, p.QuotaCounter, p.QuotaCost)
	})
	if err != nil {
		return false, fmt.Errorf("failed to reclaim upload %s: %w", p.ID, err)
	}
	return claimed, nil
}

// Run sweeps on every tick until ctx is done
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Upload sweep failed")
			}
		}
	}
}
