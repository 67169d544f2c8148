package analytics_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/analytics"
	"github.com/edgard/chatpulse/internal/database"
	"github.com/edgard/chatpulse/internal/ingest"
)

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "analytics.db"), database.Options{ReaderConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil, database.WithClock(func() time.Time { return noon.Add(-time.Hour) }))
}

func newService(store database.Store, now time.Time, loc *time.Location) *analytics.Service {
	return analytics.NewService(store, nil, nil, analytics.Options{
		Location: loc,
		Now:      func() time.Time { return now },
	})
}

func record(t *testing.T, store database.Store, chatID, userID, msgID int64, at time.Time, text string) {
	t.Helper()
	ev := &database.MessageEvent{ChatID: chatID, UserID: userID, MessageID: msgID, CreatedAt: at.Unix()}
	ev.Text.String, ev.Text.Valid = text, text != ""
	_, err := store.RecordMessage(context.Background(), ev)
	require.NoError(t, err)
}

func TestTodayStatsWindow(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	const chat = int64(-100500)
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	record(t, store, chat, 1, 1, time.Date(2026, 3, 13, 23, 59, 59, 0, time.UTC), "")
	record(t, store, chat, 1, 2, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "")
	record(t, store, chat, 2, 3, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), "")
	record(t, store, chat, 2, 4, time.Date(2026, 3, 14, 14, 59, 0, 0, time.UTC), "")
	record(t, store, chat, 1, 5, now, "")

	svc := newService(store, now, time.UTC)
	got, err := svc.TodayStats(context.Background(), chat)
	require.NoError(t, err)

	assert.EqualValues(t, 3, got.Total)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), got.Since)
	require.Len(t, got.Shares, 2)
	assert.Equal(t, int64(2), got.Shares[0].UserID)
	assert.EqualValues(t, 2, got.Shares[0].Count)
	assert.InDelta(t, 66.67, got.Shares[0].Percent, 0.01)
	assert.Equal(t, int64(1), got.Shares[1].UserID)
	assert.InDelta(t, 33.33, got.Shares[1].Percent, 0.01)
	assert.Equal(t, "1", got.Shares[1].Name, "unknown users fall back to the numeric id")
}

func TestTodayStatsUsesConfiguredZone(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	const chat = int64(-100501)
	zone := time.FixedZone("UTC-3", -3*60*60)
	// 23:00 on the 13th local time.
	now := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

	record(t, store, chat, 1, 1, time.Date(2026, 3, 13, 2, 30, 0, 0, time.UTC), "")
	record(t, store, chat, 1, 2, time.Date(2026, 3, 13, 3, 0, 0, 0, time.UTC), "")
	record(t, store, chat, 1, 3, time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC), "")

	got, err := newService(store, now, zone).TodayStats(context.Background(), chat)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Total)
	assert.True(t, got.Since.Equal(time.Date(2026, 3, 13, 3, 0, 0, 0, time.UTC)))
}

func TestTodayStatsEmpty(t *testing.T) {
	t.Parallel()
	got, err := newService(newStore(t), noon, time.UTC).TodayStats(context.Background(), -1)
	require.NoError(t, err)
	assert.Zero(t, got.Total)
	assert.Empty(t, got.Shares)
}

func TestGlobalStatsIncludesRolledUpAndLiveRows(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	const chat = int64(-100502)

	require.NoError(t, store.UpsertIdentity(ctx, &database.Identity{UserID: 7, FirstName: "Ana", LastSeen: noon.Unix()}))
	for i := range int64(3) {
		record(t, store, chat, 7, i+1, noon.AddDate(0, 0, -10), "")
	}
	_, err := store.RollupTotals(ctx, 2)
	require.NoError(t, err)
	record(t, store, chat, 8, 10, noon, "")

	got, err := newService(store, noon, time.UTC).GlobalStats(ctx, chat)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Total)
	require.Len(t, got.Shares, 2)
	assert.Equal(t, analytics.Share{UserID: 7, Name: "Ana", Count: 3, Percent: 75}, got.Shares[0])
	assert.Equal(t, analytics.Share{UserID: 8, Name: "8", Count: 1, Percent: 25}, got.Shares[1])
}

func TestBasicFlowScenario(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	const chat = int64(100)

	require.NoError(t, store.UpsertIdentity(ctx, &database.Identity{
		UserID: 2, Username: "bob", FirstName: "Bob", LastSeen: noon.Add(-time.Hour).Unix(),
	}))

	pipeline := ingest.NewPipeline(store, nil, nil, ingest.Options{})
	first := pipeline.Process(ctx, ingest.Message{
		ChatID: chat, UserID: 1, MessageID: 1, Timestamp: noon, Text: "hello @bob", FirstName: "Ann",
		Entities: []ingest.Entity{{Type: ingest.EntityMention, Handle: "bob", Offset: 6, Length: 4}},
	})
	require.NoError(t, first.EventErr)
	second := pipeline.Process(ctx, ingest.Message{
		ChatID: chat, UserID: 2, MessageID: 2, Timestamp: noon.Add(time.Minute), Text: "hi", Username: "bob", FirstName: "Bob",
		Entities: []ingest.Entity{{Type: ingest.EntityReply, TargetUserID: 1}},
	})
	require.NoError(t, second.EventErr)

	total, err := store.CountMessages(ctx, chat, database.Window{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	friends, err := newService(store, noon.Add(time.Hour), time.UTC).Friends(ctx, chat, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ann", friends.Name)
	assert.Equal(t, []analytics.Friend{{UserID: 2, Name: "Bob", Weight: 1}}, friends.Outgoing)
	assert.Equal(t, []analytics.Friend{{UserID: 2, Name: "Bob", Weight: 1}}, friends.Incoming)
}

func TestFriendsNoData(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	svc := newService(store, noon, time.UTC)
	const chat = int64(-100503)

	_, err := svc.Friends(ctx, chat, 1)
	require.ErrorIs(t, err, analytics.ErrNoChatGraph)
	require.ErrorIs(t, err, analytics.ErrNoData)

	record(t, store, chat, 1, 1, noon, "")
	_, err = store.RecordMention(ctx, &database.MentionEdge{ChatID: chat, FromUserID: 1, ToUserID: 1, MessageID: 1, CreatedAt: noon.Unix()})
	require.NoError(t, err)

	_, err = svc.Friends(ctx, chat, 2)
	require.ErrorIs(t, err, analytics.ErrNoUserGraph)

	_, err = svc.Friends(ctx, chat, 1)
	require.ErrorIs(t, err, analytics.ErrNoUserGraph, "self-mentions alone are not friends")
}

func TestSearchScoping(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	svc := newService(store, noon, time.UTC)

	changed, err := svc.SetFTS(ctx, 200, true, 42)
	require.NoError(t, err)
	assert.True(t, changed)

	record(t, store, 200, 5, 1, noon, "the eagle has landed")

	hit, err := svc.Search(ctx, 200, "eagle", nil)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "the eagle has landed", hit.Text)
	assert.EqualValues(t, 1, hit.MessageID)
	assert.EqualValues(t, 5, hit.UserID)

	_, err = svc.Search(ctx, 201, "eagle", nil)
	require.ErrorIs(t, err, analytics.ErrSearchDisabled)

	_, err = svc.SetFTS(ctx, 201, true, 42)
	require.NoError(t, err)
	hit, err = svc.Search(ctx, 201, "eagle", nil)
	require.NoError(t, err)
	assert.Nil(t, hit)

	other := int64(6)
	hit, err = svc.Search(ctx, 200, "eagle", &other)
	require.NoError(t, err)
	assert.Nil(t, hit, "scoped to a sender who never said it")
}

func TestSearchAfterDisableKeepsIndexedHistory(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	svc := newService(store, noon, time.UTC)

	_, err := svc.SetFTS(ctx, 300, true, 1)
	require.NoError(t, err)
	record(t, store, 300, 5, 1, noon, "kept forever")
	changed, err := svc.SetFTS(ctx, 300, false, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	record(t, store, 300, 5, 2, noon.Add(time.Minute), "kept secret")

	hit, err := svc.Search(ctx, 300, "kept", nil)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.EqualValues(t, 1, hit.MessageID)
}

func TestSeen(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	last := noon.Add(-90 * time.Minute)
	require.NoError(t, store.UpsertIdentity(ctx, &database.Identity{
		UserID: 9, Username: "Carol", FirstName: "Carol", LastName: "Danvers",
		LastSeen: last.Unix(), LastChatID: -100777, LastMessageID: 321,
	}))
	svc := newService(store, noon, time.UTC)

	tests := []struct {
		name string
		ref  analytics.UserRef
	}{
		{"by id", analytics.UserRef{UserID: 9}},
		{"by handle", analytics.UserRef{Handle: "carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Seen(ctx, -100777, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, "Carol Danvers", got.Name)
			assert.Equal(t, 90*time.Minute, got.Ago)
			assert.EqualValues(t, -100777, got.ChatID)
			assert.EqualValues(t, 321, got.MessageID)
		})
	}

	_, err := svc.Seen(ctx, -100777, analytics.UserRef{Handle: "nobody"})
	require.ErrorIs(t, err, analytics.ErrUnknownUser)
	_, err = svc.Seen(ctx, -100777, analytics.UserRef{})
	require.ErrorIs(t, err, analytics.ErrUnknownUser)
}

func TestParseUserRef(t *testing.T) {
	t.Parallel()
	tests := []struct {
		arg  string
		want analytics.UserRef
		ok   bool
	}{
		{"", analytics.UserRef{}, false},
		{"  ", analytics.UserRef{}, false},
		{"@", analytics.UserRef{}, false},
		{"@alice", analytics.UserRef{Handle: "alice"}, true},
		{"alice", analytics.UserRef{Handle: "alice"}, true},
		{"12345", analytics.UserRef{UserID: 12345}, true},
		{"0", analytics.UserRef{Handle: "0"}, true},
	}
	for _, tt := range tests {
		got, ok := analytics.ParseUserRef(tt.arg)
		assert.Equal(t, tt.ok, ok, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}
}

func TestPercentAndStartOfDay(t *testing.T) {
	t.Parallel()
	assert.Zero(t, analytics.Percent(3, 0))
	assert.InDelta(t, 50.0, analytics.Percent(1, 2), 1e-9)

	zone := time.FixedZone("UTC+5", 5*60*60)
	at := time.Date(2026, 7, 1, 0, 30, 0, 0, zone)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, zone), analytics.StartOfDay(at))
}
