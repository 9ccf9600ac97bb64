package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"group-media-backend/internal/apperrors"
)

func TestRegisterIssuesToken(t *testing.T) {
	f := newFixture(t, bytesQuota())
	ctx := context.Background()

	user, token, err := f.users.Register(ctx, RegisterInput{
		Username:    " alice ",
		Email:       "Alice@Example.com",
		PhoneNumber: ptr(" "),
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Nil(t, user.PhoneNumber)
	assert.Equal(t, "free", user.Plan)

	userID, err := f.users.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	f := newFixture(t, bytesQuota())
	ctx := context.Background()
	f.register("alice")

	tests := []struct {
		name string
		in   RegisterInput
		code apperrors.Code
	}{
		{name: "taken username", in: RegisterInput{Username: "alice", Email: "other@example.com"}, code: apperrors.CodeConflict},
		{name: "taken email", in: RegisterInput{Username: "other", Email: "alice@example.com"}, code: apperrors.CodeConflict},
		{name: "blank username", in: RegisterInput{Username: " ", Email: "x@example.com"}, code: apperrors.CodeValidation},
		{name: "bad email", in: RegisterInput{Username: "x", Email: "not-an-email"}, code: apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.users.Register(ctx, tt.in)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestValidateJWTRejectsForeignTokens(t *testing.T) {
	f := newFixture(t, bytesQuota())

	_, err := f.users.ValidateJWT("garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x"}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = f.users.ValidateJWT(foreign)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iat": 1}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = f.users.ValidateJWT(noSubject)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestUpdateProfileReplacesImage(t *testing.T) {
	f := newFixture(t, bytesQuota())
	ctx := context.Background()
	alice := f.register("alice")
	f.register("bob")

	first, err := f.users.UpdateProfile(ctx, alice.ID, ProfileInput{Image: &Upload{Filename: "a.jpg", Data: []byte("a")}})
	require.NoError(t, err)
	require.NotNil(t, first.ProfileImage)
	oldImage := *first.ProfileImage

	_, err = f.users.UpdateProfile(ctx, alice.ID, ProfileInput{Username: ptr("bob")})
	assert.ErrorIs(t, err, apperrors.ErrUserExists)

	second, err := f.users.UpdateProfile(ctx, alice.ID, ProfileInput{
		Username: ptr("alice2"),
		Image:    &Upload{Filename: "b.png", Data: []byte("b")},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice2", second.Username)
	assert.True(t, f.blobs.has(*second.ProfileImage))
	assert.False(t, f.blobs.has(oldImage))

	_, err = f.users.UpdateProfile(ctx, alice.ID, ProfileInput{Image: &Upload{Filename: "c.gif", Data: nil}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyUpload)
}

func TestUpdatePushToken(t *testing.T) {
	f := newFixture(t, bytesQuota())
	ctx := context.Background()
	alice := f.register("alice")

	require.NoError(t, f.users.UpdatePushToken(ctx, alice.ID, " device-token "))
	user, err := f.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, user.PushToken)
	assert.Equal(t, "device-token", *user.PushToken)

	require.NoError(t, f.users.UpdatePushToken(ctx, alice.ID, ""))
	user, err = f.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, user.PushToken)

	assert.ErrorIs(t, f.users.UpdatePushToken(ctx, "missing", "t"), apperrors.ErrUserNotFound)
}

func TestDeleteAccountLeavesGroupsConsistent(t *testing.T) {
	f := newFixture(t, bytesQuota())
	ctx := context.Background()
	alice := f.register("alice")
	bob := f.register("bob")
	group := f.createGroup(alice, "Trip")
	f.join(group, alice, bob)
	a1 := f.upload(alice, group, "a1.jpg", 10)
	b1 := f.upload(bob, group, "b1.jpg", 10)

	require.NoError(t, f.users.DeleteAccount(ctx, alice.ID))

	f.requireSingleAdmin(group.ID)
	assert.Equal(t, bob.ID, f.adminOf(group.ID))
	assert.Equal(t, []string{b1.ID}, visibleIDs(t, f, bob.ID, group.ID))
	assert.False(t, f.blobs.has(a1.StorageKey))

	bans, err := f.store.ListBans(ctx)
	require.NoError(t, err)
	assert.Empty(t, bans)

	_, _, err = f.users.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com"})
	assert.NoError(t, err)
}
