package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"group-media-backend/internal/apperrors"
	"group-media-backend/internal/models"
	"group-media-backend/internal/notify"
)

type pairKey struct{ a, b string }

type hiddenRow struct {
	reason  models.HiddenReason
	blocker string
	blocked string
}

// memState mirrors the relational schema, including its cascades and the one-admin index
type memState struct {
	users    map[string]models.User
	groups   map[string]models.Group
	members  map[pairKey]models.Membership // {user, group}
	requests map[pairKey]models.JoinRequest
	media    map[string]models.Media
	pending  map[string]models.PendingUpload
	blocks   map[pairKey]time.Time // {blocker, blocked}
	hidden   map[pairKey]hiddenRow // {user, media}
	reports  map[string]models.Report
	bans     map[string]models.BanRecord
	audits   []models.AuditEntry
	seq      int64

	insertMediaErr error
}

func newMemState() *memState {
	return &memState{
		users:    make(map[string]models.User),
		groups:   make(map[string]models.Group),
		members:  make(map[pairKey]models.Membership),
		requests: make(map[pairKey]models.JoinRequest),
		media:    make(map[string]models.Media),
		pending:  make(map[string]models.PendingUpload),
		blocks:   make(map[pairKey]time.Time),
		hidden:   make(map[pairKey]hiddenRow),
		reports:  make(map[string]models.Report),
		bans:     make(map[string]models.BanRecord),
	}
}

func (s *memState) clone() *memState {
	c := *s
	c.users = maps.Clone(s.users)
	c.groups = maps.Clone(s.groups)
	c.members = maps.Clone(s.members)
	c.requests = maps.Clone(s.requests)
	c.media = maps.Clone(s.media)
	c.pending = maps.Clone(s.pending)
	c.blocks = maps.Clone(s.blocks)
	c.hidden = maps.Clone(s.hidden)
	c.reports = maps.Clone(s.reports)
	c.bans = maps.Clone(s.bans)
	c.audits = slices.Clone(s.audits)
	return &c
}

func (s *memState) deleteMediaRow(id string) {
	delete(s.media, id)
	for k := range s.hidden {
		if k.b == id {
			delete(s.hidden, k)
		}
	}
	for rid, r := range s.reports {
		if r.MediaID == id {
			delete(s.reports, rid)
		}
	}
}

type fakeQueries struct {
	st *memState
	mu *sync.Mutex
}

func (q *fakeQueries) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

// fakeStore serializes transactions and applies them to a copy that replaces the state on success
type fakeStore struct {
	*fakeQueries
	txMu sync.Mutex
}

func newFakeStore() *fakeStore {
	s := &fakeStore{}
	s.fakeQueries = &fakeQueries{st: newMemState(), mu: &s.txMu}
	return s
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &fakeQueries{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// view runs fn against the committed state
func (s *fakeStore) view(fn func(st *memState)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	fn(s.st)
}

func (q *fakeQueries) CreateUser(_ context.Context, user *models.User) error {
	defer q.lock()()
	for _, u := range q.st.users {
		if u.Username == user.Username || u.Email == user.Email || samePhone(u.PhoneNumber, user.PhoneNumber) {
			return apperrors.ErrUserExists
		}
	}
	q.st.users[user.ID] = *user
	return nil
}

func samePhone(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (q *fakeQueries) GetUser(_ context.Context, id string) (*models.User, error) {
	defer q.lock()()
	u, ok := q.st.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (q *fakeQueries) IdentityTaken(_ context.Context, exceptID, username, email string, phone *string) (bool, error) {
	defer q.lock()()
	for _, u := range q.st.users {
		if u.ID == exceptID {
			continue
		}
		if u.Username == username || u.Email == email || samePhone(u.PhoneNumber, phone) {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueries) FindUsersByIdentity(_ context.Context, username string, phone *string) ([]models.User, error) {
	defer q.lock()()
	var out []models.User
	for _, u := range q.st.users {
		if (username != "" && strings.EqualFold(u.Username, username)) || samePhone(u.PhoneNumber, phone) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (q *fakeQueries) UpdateProfile(_ context.Context, user *models.User) error {
	defer q.lock()()
	u, ok := q.st.users[user.ID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Username = user.Username
	u.Email = user.Email
	u.PhoneNumber = user.PhoneNumber
	u.ProfileImage = user.ProfileImage
	q.st.users[user.ID] = u
	return nil
}

func (q *fakeQueries) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	defer q.lock()()
	u, ok := q.st.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.PushToken = pushToken
	q.st.users[userID] = u
	return nil
}

func (q *fakeQueries) DeleteUser(_ context.Context, id string) error {
	defer q.lock()()
	if _, ok := q.st.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(q.st.users, id)
	for k := range q.st.members {
		if k.a == id {
			delete(q.st.members, k)
		}
	}
	for k := range q.st.requests {
		if k.a == id {
			delete(q.st.requests, k)
		}
	}
	for mid, m := range q.st.media {
		if m.UserID == id {
			q.st.deleteMediaRow(mid)
		}
	}
	for k := range q.st.blocks {
		if k.a == id || k.b == id {
			delete(q.st.blocks, k)
		}
	}
	for k := range q.st.hidden {
		if k.a == id {
			delete(q.st.hidden, k)
		}
	}
	for rid, r := range q.st.reports {
		if r.ReporterID == id {
			delete(q.st.reports, rid)
		}
	}
	return nil
}

func counterValue(quota *models.Quota, counter string) int64 {
	switch counter {
	case models.CounterImages:
		return int64(quota.ImageCount)
	case models.CounterVideos:
		return int64(quota.VideoCount)
	default:
		return quota.UsageBytes
	}
}

func setCounter(quota *models.Quota, counter string, v int64) {
	switch counter {
	case models.CounterImages:
		quota.ImageCount = int(v)
	case models.CounterVideos:
		quota.VideoCount = int(v)
	default:
		quota.UsageBytes = v
	}
}

func (q *fakeQueries) ResetQuotaIfStale(_ context.Context, userID string, today time.Time) error {
	defer q.lock()()
	u, ok := q.st.users[userID]
	if !ok {
		return nil
	}
	if u.Quota.LastResetDate == nil || u.Quota.LastResetDate.Before(today) {
		day := today
		u.Quota = models.Quota{LastResetDate: &day}
		q.st.users[userID] = u
	}
	return nil
}

func (q *fakeQueries) ReserveQuota(_ context.Context, userID string, day time.Time, counter string, cost, limit int64) (bool, error) {
	defer q.lock()()
	u, ok := q.st.users[userID]
	if !ok || u.Quota.LastResetDate == nil || !u.Quota.LastResetDate.Equal(day) {
		return false, nil
	}
	used := counterValue(&u.Quota, counter)
	if used+cost > limit {
		return false, nil
	}
	setCounter(&u.Quota, counter, used+cost)
	q.st.users[userID] = u
	return true, nil
}

func (q *fakeQueries) ReleaseQuota(_ context.Context, userID string, day time.Time, counter string, cost int64) error {
	defer q.lock()()
	u, ok := q.st.users[userID]
	if !ok || u.Quota.LastResetDate == nil || !u.Quota.LastResetDate.Equal(day) {
		return nil
	}
	setCounter(&u.Quota, counter, max(counterValue(&u.Quota, counter)-cost, 0))
	q.st.users[userID] = u
	return nil
}

func (q *fakeQueries) CreateGroup(_ context.Context, group *models.Group) error {
	defer q.lock()()
	for _, g := range q.st.groups {
		if g.JoinCode == group.JoinCode {
			return errors.New("duplicate join code")
		}
	}
	q.st.groups[group.ID] = *group
	return nil
}

func (q *fakeQueries) JoinCodeExists(_ context.Context, code string) (bool, error) {
	defer q.lock()()
	for _, g := range q.st.groups {
		if g.JoinCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueries) GetGroup(_ context.Context, id string) (*models.Group, error) {
	defer q.lock()()
	g, ok := q.st.groups[id]
	if !ok {
		return nil, apperrors.ErrGroupNotFound
	}
	return &g, nil
}

func (q *fakeQueries) GetGroupByCode(_ context.Context, code string) (*models.Group, error) {
	defer q.lock()()
	for _, g := range q.st.groups {
		if g.JoinCode == code {
			return &g, nil
		}
	}
	return nil, apperrors.ErrGroupNotFound
}

func (q *fakeQueries) LockGroup(_ context.Context, id string) error {
	defer q.lock()()
	if _, ok := q.st.groups[id]; !ok {
		return apperrors.ErrGroupNotFound
	}
	return nil
}

func (q *fakeQueries) UpdateGroup(_ context.Context, group *models.Group) error {
	defer q.lock()()
	if _, ok := q.st.groups[group.ID]; !ok {
		return apperrors.ErrGroupNotFound
	}
	q.st.groups[group.ID] = *group
	return nil
}

func (q *fakeQueries) DeleteGroup(_ context.Context, id string) error {
	defer q.lock()()
	if _, ok := q.st.groups[id]; !ok {
		return apperrors.ErrGroupNotFound
	}
	delete(q.st.groups, id)
	for k := range q.st.members {
		if k.b == id {
			delete(q.st.members, k)
		}
	}
	for k := range q.st.requests {
		if k.b == id {
			delete(q.st.requests, k)
		}
	}
	for mid, m := range q.st.media {
		if m.GroupID == id {
			q.st.deleteMediaRow(mid)
		}
	}
	return nil
}

func (q *fakeQueries) groupMembers(groupID string) []models.Membership {
	var out []models.Membership
	for k, m := range q.st.members {
		if k.b == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (q *fakeQueries) ListUserGroups(_ context.Context, userID string) ([]models.UserGroup, error) {
	defer q.lock()()
	var mine []models.Membership
	for k, m := range q.st.members {
		if k.a == userID {
			mine = append(mine, m)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].Seq > mine[j].Seq })

	var out []models.UserGroup
	for _, m := range mine {
		out = append(out, models.UserGroup{
			Group:       q.st.groups[m.GroupID],
			IsAdmin:     m.IsAdmin,
			MemberCount: len(q.groupMembers(m.GroupID)),
		})
	}
	return out, nil
}

func (q *fakeQueries) hasOtherAdmin(userID, groupID string) bool {
	for k, m := range q.st.members {
		if k.b == groupID && k.a != userID && m.IsAdmin {
			return true
		}
	}
	return false
}

func (q *fakeQueries) AddMember(_ context.Context, m *models.Membership) error {
	defer q.lock()()
	key := pairKey{m.UserID, m.GroupID}
	if _, ok := q.st.members[key]; ok {
		return apperrors.ErrAlreadyMember
	}
	if _, ok := q.st.users[m.UserID]; !ok {
		return fmt.Errorf("foreign key violation: user %s", m.UserID)
	}
	if _, ok := q.st.groups[m.GroupID]; !ok {
		return fmt.Errorf("foreign key violation: group %s", m.GroupID)
	}
	if m.IsAdmin && q.hasOtherAdmin(m.UserID, m.GroupID) {
		return fmt.Errorf("unique violation: second admin in group %s", m.GroupID)
	}
	q.st.seq++
	m.Seq = q.st.seq
	q.st.members[key] = *m
	return nil
}

func (q *fakeQueries) GetMembership(_ context.Context, userID, groupID string) (*models.Membership, error) {
	defer q.lock()()
	m, ok := q.st.members[pairKey{userID, groupID}]
	if !ok {
		return nil, apperrors.ErrMembershipNotFound
	}
	return &m, nil
}

func (q *fakeQueries) ListMembers(_ context.Context, groupID string) ([]models.Member, error) {
	defer q.lock()()
	var out []models.Member
	for _, m := range q.groupMembers(groupID) {
		u := q.st.users[m.UserID]
		out = append(out, models.Member{
			Membership:   m,
			Username:     u.Username,
			ProfileImage: u.ProfileImage,
			PushToken:    u.PushToken,
		})
	}
	return out, nil
}

func (q *fakeQueries) RemoveMember(_ context.Context, userID, groupID string) error {
	defer q.lock()()
	key := pairKey{userID, groupID}
	if _, ok := q.st.members[key]; !ok {
		return apperrors.ErrMembershipNotFound
	}
	delete(q.st.members, key)
	return nil
}

func (q *fakeQueries) SetAdmin(_ context.Context, userID, groupID string, isAdmin bool) error {
	defer q.lock()()
	key := pairKey{userID, groupID}
	m, ok := q.st.members[key]
	if !ok {
		return apperrors.ErrMembershipNotFound
	}
	if isAdmin && q.hasOtherAdmin(userID, groupID) {
		return fmt.Errorf("unique violation: second admin in group %s", groupID)
	}
	m.IsAdmin = isAdmin
	q.st.members[key] = m
	return nil
}

func (q *fakeQueries) SetNotifications(_ context.Context, userID, groupID string, enabled bool) error {
	defer q.lock()()
	key := pairKey{userID, groupID}
	m, ok := q.st.members[key]
	if !ok {
		return apperrors.ErrMembershipNotFound
	}
	m.NotificationsEnabled = enabled
	q.st.members[key] = m
	return nil
}

func (q *fakeQueries) CreateJoinRequest(_ context.Context, req *models.JoinRequest) error {
	defer q.lock()()
	key := pairKey{req.UserID, req.GroupID}
	if _, ok := q.st.requests[key]; ok {
		return apperrors.ErrAlreadyRequested
	}
	q.st.requests[key] = *req
	return nil
}

func (q *fakeQueries) JoinRequestExists(_ context.Context, userID, groupID string) (bool, error) {
	defer q.lock()()
	_, ok := q.st.requests[pairKey{userID, groupID}]
	return ok, nil
}

func (q *fakeQueries) DeleteJoinRequest(_ context.Context, userID, groupID string) error {
	defer q.lock()()
	key := pairKey{userID, groupID}
	if _, ok := q.st.requests[key]; !ok {
		return apperrors.ErrJoinRequestNotFound
	}
	delete(q.st.requests, key)
	return nil
}

func (q *fakeQueries) ListJoinRequests(_ context.Context, groupID string) ([]models.JoinRequest, error) {
	defer q.lock()()
	var out []models.JoinRequest
	for k, r := range q.st.requests {
		if k.b == groupID {
			r.Username = q.st.users[r.UserID].Username
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q *fakeQueries) InsertMedia(_ context.Context, media *models.Media) error {
	defer q.lock()()
	if q.st.insertMediaErr != nil {
		return q.st.insertMediaErr
	}
	q.st.media[media.ID] = *media
	return nil
}

func (q *fakeQueries) GetMedia(_ context.Context, id string) (*models.Media, error) {
	defer q.lock()()
	m, ok := q.st.media[id]
	if !ok {
		return nil, apperrors.ErrMediaNotFound
	}
	return &m, nil
}

func (q *fakeQueries) GetMediaByIDs(_ context.Context, ids []string) ([]models.Media, error) {
	defer q.lock()()
	var out []models.Media
	for _, id := range ids {
		if m, ok := q.st.media[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (q *fakeQueries) filterMedia(keep func(models.Media) bool) []models.Media {
	var out []models.Media
	for _, m := range q.st.media {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (q *fakeQueries) ListGroupMedia(_ context.Context, groupID string) ([]models.Media, error) {
	defer q.lock()()
	return q.filterMedia(func(m models.Media) bool { return m.GroupID == groupID }), nil
}

func (q *fakeQueries) ListUserMedia(_ context.Context, userID string) ([]models.Media, error) {
	defer q.lock()()
	return q.filterMedia(func(m models.Media) bool { return m.UserID == userID }), nil
}

func (q *fakeQueries) DeleteMedia(_ context.Context, ids []string) (int64, error) {
	defer q.lock()()
	var n int64
	for _, id := range ids {
		if _, ok := q.st.media[id]; ok {
			q.st.deleteMediaRow(id)
			n++
		}
	}
	return n, nil
}

func (q *fakeQueries) ListVisibleMedia(_ context.Context, viewerID, groupID string) ([]models.MediaItem, error) {
	defer q.lock()()
	media := q.filterMedia(func(m models.Media) bool {
		if m.GroupID != groupID {
			return false
		}
		if _, hidden := q.st.hidden[pairKey{viewerID, m.ID}]; hidden {
			return false
		}
		_, blocked := q.st.blocks[pairKey{viewerID, m.UserID}]
		_, blockedBy := q.st.blocks[pairKey{m.UserID, viewerID}]
		return !blocked && !blockedBy
	})

	items := make([]models.MediaItem, 0, len(media))
	for _, m := range media {
		u := q.st.users[m.UserID]
		items = append(items, models.MediaItem{Media: m, Username: u.Username, ProfileImage: u.ProfileImage})
	}
	return items, nil
}

func (q *fakeQueries) InsertPendingUpload(_ context.Context, p *models.PendingUpload) error {
	defer q.lock()()
	q.st.pending[p.ID] = *p
	return nil
}

func (q *fakeQueries) DeletePendingUpload(_ context.Context, id string) (bool, error) {
	defer q.lock()()
	if _, ok := q.st.pending[id]; !ok {
		return false, nil
	}
	delete(q.st.pending, id)
	return true, nil
}

func (q *fakeQueries) ListStalePendingUploads(_ context.Context, before time.Time, limit int) ([]models.PendingUpload, error) {
	defer q.lock()()
	var out []models.PendingUpload
	for _, p := range q.st.pending {
		if p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *fakeQueries) InsertBlock(_ context.Context, blockerID, blockedID string) (bool, error) {
	defer q.lock()()
	key := pairKey{blockerID, blockedID}
	if _, ok := q.st.blocks[key]; ok {
		return false, nil
	}
	q.st.blocks[key] = time.Now()
	return true, nil
}

func (q *fakeQueries) DeleteBlock(_ context.Context, blockerID, blockedID string) (bool, error) {
	defer q.lock()()
	key := pairKey{blockerID, blockedID}
	if _, ok := q.st.blocks[key]; !ok {
		return false, nil
	}
	delete(q.st.blocks, key)
	return true, nil
}

func (q *fakeQueries) ListBlocks(_ context.Context, blockerID string) ([]models.Block, error) {
	defer q.lock()()
	var out []models.Block
	for k, at := range q.st.blocks {
		if k.a == blockerID {
			u := q.st.users[k.b]
			out = append(out, models.Block{
				BlockerID:    k.a,
				BlockedID:    k.b,
				Username:     u.Username,
				ProfileImage: u.ProfileImage,
				CreatedAt:    at,
			})
		}
	}
	return out, nil
}

func (q *fakeQueries) ListBlockersOf(_ context.Context, userID string) ([]string, error) {
	defer q.lock()()
	var out []string
	for k := range q.st.blocks {
		if k.b == userID {
			out = append(out, k.a)
		}
	}
	return out, nil
}

func (q *fakeQueries) HideBlockedMedia(_ context.Context, blockerID, blockedID string) error {
	defer q.lock()()
	row := hiddenRow{reason: models.HiddenBlock, blocker: blockerID, blocked: blockedID}
	for _, m := range q.st.media {
		var viewer string
		switch m.UserID {
		case blockedID:
			viewer = blockerID
		case blockerID:
			viewer = blockedID
		default:
			continue
		}
		key := pairKey{viewer, m.ID}
		if _, ok := q.st.hidden[key]; !ok {
			q.st.hidden[key] = row
		}
	}
	return nil
}

func (q *fakeQueries) UnhideBlockedMedia(_ context.Context, blockerID, blockedID string) error {
	defer q.lock()()
	for k, h := range q.st.hidden {
		if h.reason == models.HiddenBlock && h.blocker == blockerID && h.blocked == blockedID {
			delete(q.st.hidden, k)
		}
	}
	return nil
}

func (q *fakeQueries) HideMedia(_ context.Context, userID string, mediaIDs []string) error {
	defer q.lock()()
	for _, id := range mediaIDs {
		if _, ok := q.st.media[id]; ok {
			q.st.hidden[pairKey{userID, id}] = hiddenRow{reason: models.HiddenManual}
		}
	}
	return nil
}

func (q *fakeQueries) withUsernames(r models.Report) models.Report {
	r.ReporterUsername = q.st.users[r.ReporterID].Username
	r.UploaderUsername = q.st.users[r.UploaderID].Username
	return r
}

func (q *fakeQueries) CreateReport(_ context.Context, r *models.Report) error {
	defer q.lock()()
	q.st.reports[r.ID] = *r
	return nil
}

func (q *fakeQueries) GetReport(_ context.Context, id string) (*models.Report, error) {
	defer q.lock()()
	r, ok := q.st.reports[id]
	if !ok {
		return nil, apperrors.ErrReportNotFound
	}
	r = q.withUsernames(r)
	return &r, nil
}

func (q *fakeQueries) ListPendingReports(_ context.Context) ([]models.Report, error) {
	defer q.lock()()
	var out []models.Report
	for _, r := range q.st.reports {
		if r.Status == models.ReportPending {
			out = append(out, q.withUsernames(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (q *fakeQueries) DeleteReport(_ context.Context, id string) error {
	defer q.lock()()
	if _, ok := q.st.reports[id]; !ok {
		return apperrors.ErrReportNotFound
	}
	delete(q.st.reports, id)
	return nil
}

func (q *fakeQueries) CreateBan(_ context.Context, b *models.BanRecord) error {
	defer q.lock()()
	q.st.bans[b.ID] = *b
	return nil
}

func (q *fakeQueries) IsBanned(_ context.Context, username string, phone *string) (bool, error) {
	defer q.lock()()
	for _, b := range q.st.bans {
		if strings.EqualFold(b.Username, username) || samePhone(b.PhoneNumber, phone) {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueries) ListBans(_ context.Context) ([]models.BanRecord, error) {
	defer q.lock()()
	return slices.Collect(maps.Values(q.st.bans)), nil
}

func (q *fakeQueries) DeleteBan(_ context.Context, id string) error {
	defer q.lock()()
	if _, ok := q.st.bans[id]; !ok {
		return apperrors.ErrBanNotFound
	}
	delete(q.st.bans, id)
	return nil
}

func (q *fakeQueries) InsertAudit(_ context.Context, e *models.AuditEntry) error {
	defer q.lock()()
	q.st.audits = append(q.st.audits, *e)
	return nil
}

// fakeBlobs is an in-memory blob store with failure injection
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failPut   func(key string) error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut != nil {
		if err := b.failPut(key); err != nil {
			return err
		}
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *fakeBlobs) SignedReadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (b *fakeBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type fakeThumbs struct {
	err    error
	during func()
}

func (t *fakeThumbs) Generate(_ context.Context, _ []byte, _ models.MediaType) ([]byte, error) {
	if t.during != nil {
		t.during()
	}
	if t.err != nil {
		return nil, t.err
	}
	return []byte("jpeg-thumbnail"), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) notifications() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.sent)
}
