package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group-media-backend/internal/config"
	"group-media-backend/internal/models"
)

const (
	mb         = 1 << 20
	testSecret = "test-secret"
)

type fixture struct {
	t        *testing.T
	store    *fakeStore
	blobs    *fakeBlobs
	thumbs   *fakeThumbs
	notifier *fakeNotifier
	clock    time.Time

	ledger     *QuotaLedger
	users      *UserService
	groups     *MembershipService
	media      *MediaService
	moderation *ModerationService
	reconciler *Reconciler
}

func bytesQuota() config.QuotaConfig {
	return config.QuotaConfig{
		Policy:      config.QuotaPolicyBytes,
		Plans:       map[string]int64{"free": 10 * mb, "pro": 100 * mb},
		DefaultPlan: "free",
	}
}

func itemsQuota() config.QuotaConfig {
	return config.QuotaConfig{
		Policy:          config.QuotaPolicyItems,
		DefaultPlan:     "free",
		DailyImageLimit: 3,
		DailyVideoLimit: 1,
	}
}

func newFixture(t *testing.T, quota config.QuotaConfig) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		store:    newFakeStore(),
		blobs:    newFakeBlobs(),
		thumbs:   &fakeThumbs{},
		notifier: &fakeNotifier{},
		clock:    time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	inline := func(fn func()) { fn() }
	types := NewMediaTypes([]string{"jpg", "jpeg", "png", "gif"}, []string{"mp4", "mov"})

	f.ledger = NewQuotaLedger(f.store, quota)
	f.ledger.now = now

	f.users = NewUserService(f.store, f.blobs, f.thumbs, types, f.ledger, testSecret, quota.DefaultPlan)
	f.users.now = now

	f.groups = NewMembershipService(f.store, f.blobs, f.thumbs, types, f.notifier)
	f.groups.now = now
	f.groups.spawn = inline

	f.media = NewMediaService(f.store, f.blobs, f.thumbs, f.ledger, types, f.notifier, MediaOptions{
		MaxUploadBytes: 50 * mb,
		SignedURLTTL:   time.Hour,
	})
	f.media.now = now
	f.media.spawn = inline

	f.moderation = NewModerationService(f.store, f.blobs)
	f.moderation.now = now

	f.reconciler = NewReconciler(f.store, f.blobs, config.ReconcileConfig{PendingTTL: time.Hour, Interval: time.Minute})
	f.reconciler.now = now

	return f
}

func (f *fixture) tick() {
	f.clock = f.clock.Add(time.Second)
}

func (f *fixture) register(name string) *models.User {
	f.t.Helper()
	user, _, err := f.users.Register(context.Background(), RegisterInput{
		Username: name,
		Email:    name + "@example.com",
	})
	require.NoError(f.t, err)
	return user
}

func (f *fixture) platformAdmin(name string) *models.User {
	f.t.Helper()
	user := f.register(name)
	f.store.view(func(st *memState) {
		u := st.users[user.ID]
		u.IsSuperAdmin = true
		st.users[user.ID] = u
	})
	return user
}

func (f *fixture) createGroup(owner *models.User, name string) *models.Group {
	f.t.Helper()
	f.tick()
	group, err := f.groups.CreateGroup(context.Background(), owner.ID, GroupInput{Name: &name})
	require.NoError(f.t, err)
	return group
}

func (f *fixture) join(group *models.Group, admin, user *models.User) {
	f.t.Helper()
	ctx := context.Background()
	f.tick()
	_, err := f.groups.RequestJoin(ctx, user.ID, group.JoinCode)
	require.NoError(f.t, err)
	require.NoError(f.t, f.groups.ResolveJoinRequest(ctx, admin.ID, user.ID, group.ID, models.JoinAccept))
}

func (f *fixture) upload(user *models.User, group *models.Group, filename string, size int) *models.Media {
	f.t.Helper()
	f.tick()
	media, err := f.media.Ingest(context.Background(), user.ID, group.ID, Upload{
		Filename: filename,
		Data:     bytes.Repeat([]byte{0x42}, size),
	})
	require.NoError(f.t, err)
	return media
}

func (f *fixture) usage(userID string) models.Quota {
	f.t.Helper()
	user, err := f.users.GetUser(context.Background(), userID)
	require.NoError(f.t, err)
	return user.Quota
}

func (f *fixture) pendingCount() int {
	var n int
	f.store.view(func(st *memState) { n = len(st.pending) })
	return n
}

// requireSingleAdmin checks that an existing group has exactly one admin and a deleted one has no members
func (f *fixture) requireSingleAdmin(groupID string) {
	f.t.Helper()
	f.store.view(func(st *memState) {
		_, exists := st.groups[groupID]
		members, admins := 0, 0
		for k, m := range st.members {
			if k.b != groupID {
				continue
			}
			members++
			if m.IsAdmin {
				admins++
			}
		}
		if !exists {
			require.Zero(f.t, members, "deleted group still has members")
			return
		}
		require.Positive(f.t, members, "group without members still exists")
		require.Equal(f.t, 1, admins, "group must have exactly one admin")
	})
}

func (f *fixture) adminOf(groupID string) string {
	var admin string
	f.store.view(func(st *memState) {
		for k, m := range st.members {
			if k.b == groupID && m.IsAdmin {
				admin = k.a
			}
		}
	})
	return admin
}

func (f *fixture) auditActions() []string {
	var actions []string
	f.store.view(func(st *memState) {
		for _, e := range st.audits {
			actions = append(actions, e.Action)
		}
	})
	return actions
}
