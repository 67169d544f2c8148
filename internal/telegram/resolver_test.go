package telegram_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"

	"github.com/edgard/chatpulse/internal/database"
	"github.com/edgard/chatpulse/internal/telegram"
)

type identities map[int64]database.Identity

func (m identities) UpsertIdentity(context.Context, *database.Identity) error { return nil }

func (m identities) GetIdentity(_ context.Context, userID int64) (*database.Identity, error) {
	if userID == 666 {
		return nil, errors.New("database is locked")
	}
	identity, ok := m[userID]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (m identities) FindIdentityByUsername(context.Context, string) (*database.Identity, error) {
	return nil, nil
}

type members struct {
	calls  int
	member *models.ChatMember
	err    error
}

func (m *members) GetChatMember(context.Context, *bot.GetChatMemberParams) (*models.ChatMember, error) {
	m.calls++
	return m.member, m.err
}

func TestResolveName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := identities{1: {UserID: 1, FirstName: "Ann", LastName: "Lee"}, 2: {UserID: 2, Username: "bob"}}

	t.Run("identity cache first", func(t *testing.T) {
		t.Parallel()
		api := &members{}
		r := telegram.NewResolver(cache, api, nil)
		assert.Equal(t, "Ann Lee", r.ResolveName(ctx, -100, 1))
		assert.Equal(t, "@bob", r.ResolveName(ctx, -100, 2))
		assert.Zero(t, api.calls)
	})

	t.Run("chat member fallback is cached", func(t *testing.T) {
		t.Parallel()
		api := &members{member: &models.ChatMember{
			Type:   models.ChatMemberTypeMember,
			Member: &models.ChatMemberMember{User: &models.User{ID: 3, FirstName: "Cy"}},
		}}
		r := telegram.NewResolver(cache, api, nil)
		assert.Equal(t, "Cy", r.ResolveName(ctx, -100, 3))
		assert.Equal(t, "Cy", r.ResolveName(ctx, -100, 3))
		assert.Equal(t, 1, api.calls)
	})

	t.Run("numeric id last", func(t *testing.T) {
		t.Parallel()
		api := &members{err: errors.New("Bad Request: user not found")}
		r := telegram.NewResolver(cache, api, nil)
		assert.Equal(t, "4", r.ResolveName(ctx, -100, 4))
		assert.Equal(t, "666", r.ResolveName(ctx, -100, 666))
	})

	t.Run("no api", func(t *testing.T) {
		t.Parallel()
		r := telegram.NewResolver(nil, nil, nil)
		assert.Equal(t, "5", r.ResolveName(ctx, -100, 5))
	})
}

func TestIsModerator(t *testing.T) {
	t.Parallel()
	assert.True(t, telegram.IsModerator(&models.ChatMember{Type: models.ChatMemberTypeOwner}))
	assert.True(t, telegram.IsModerator(&models.ChatMember{Type: models.ChatMemberTypeAdministrator}))
	assert.False(t, telegram.IsModerator(&models.ChatMember{Type: models.ChatMemberTypeMember}))
	assert.False(t, telegram.IsModerator(nil))
}
