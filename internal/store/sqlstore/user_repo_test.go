package sqlstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

func TestUserRepo_CreateAndGet(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	u := &domain.User{Username: "alice", Profile: strPtr("/uploads/alice.png")}
	require.NoError(t, r.users.Create(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := r.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "/uploads/alice.png", *got.Profile)
	assert.False(t, got.IsOnline)

	_, err = r.users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Error(t, r.users.Create(ctx, &domain.User{Username: "alice"}))
}

func TestUserRepo_SetOnlineAndReset(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	a := r.user(t, "alice")
	b := r.user(t, "bob")

	require.NoError(t, r.users.SetOnline(ctx, a.ID, true))
	require.NoError(t, r.users.SetOnline(ctx, b.ID, true))
	assert.ErrorIs(t, r.users.SetOnline(ctx, "missing", true), domain.ErrNotFound)

	got, err := r.users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	require.NoError(t, r.users.ResetOnline(ctx))
	all, err := r.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, u := range all {
		assert.False(t, u.IsOnline, u.Username)
	}
}

func TestUserRepo_BlockSetSemantics(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	a := r.user(t, "alice")
	b := r.user(t, "bob")

	require.NoError(t, r.users.Block(ctx, b.ID, a.ID))
	require.NoError(t, r.users.Block(ctx, b.ID, a.ID))

	blocked, err := r.users.IsBlocked(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = r.users.IsBlocked(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	got, err := r.users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, got.BlockedUsers)
	assert.True(t, got.HasBlocked(a.ID))

	require.NoError(t, r.users.Unblock(ctx, b.ID, a.ID))
	blocked, err = r.users.IsBlocked(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestUserRepo_GetMany(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	a := r.user(t, "alice")
	b := r.user(t, "bob")

	got, err := r.users.GetMany(ctx, []string{a.ID, b.ID, "", "missing", a.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "bob", got[b.ID].Username)

	empty, err := r.users.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGroupRepo_Lifecycle(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	g := &domain.Group{Name: "team", Members: []string{"alice"}}
	require.NoError(t, r.groups.Create(ctx, g))
	assert.NotEmpty(t, g.ID)

	added, err := r.groups.AddMember(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.groups.AddMember(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := r.groups.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, got.Members)

	member, err := r.groups.IsMember(ctx, g.ID, "carol")
	require.NoError(t, err)
	assert.False(t, member)

	mine, err := r.groups.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "team", mine[0].Name)

	other := &domain.Group{Name: "other", Members: []string{"carol"}}
	require.NoError(t, r.groups.Create(ctx, other))
	all, err := r.groups.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.groups.Delete(ctx, g.ID))
	_, err = r.groups.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.groups.Delete(ctx, g.ID), domain.ErrNotFound)

	mine, err = r.groups.ListForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, mine)
}
