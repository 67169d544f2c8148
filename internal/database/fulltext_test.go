package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatpulse/internal/database"
)

func TestSanitizeFTSQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "empty", query: "", want: ""},
		{name: "whitespace only", query: "  \t ", want: ""},
		{name: "single term", query: "pizza", want: `"pizza"*`},
		{name: "several terms", query: "cold  pizza night", want: `"cold"* "pizza"* "night"*`},
		{name: "operators are literal", query: "a OR b NOT c", want: `"a"* "OR"* "b"* "NOT"* "c"*`},
		{name: "quotes stripped", query: `"quoted" te"st`, want: `"quoted"* "test"*`},
		{name: "lone quote dropped", query: `" pizza`, want: `"pizza"*`},
		{name: "column filter neutralised", query: "text:secret", want: `"text:secret"*`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, database.SanitizeFTSQuery(tt.query))
		})
	}
}

func TestFullTextOnlyIndexesAfterOptIn(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	before := record(t, store, newEvent(testChat, 1, 1, baseTime, "pizza before opt in"))
	assert.False(t, before.Indexed)

	changed, err := store.SetFTSEnabled(ctx, testChat, true, 99)
	require.NoError(t, err)
	assert.True(t, changed)

	after := record(t, store, newEvent(testChat, 1, 2, baseTime.Add(time.Minute), "pizza after opt in"))
	assert.True(t, after.Indexed)

	for range 5 {
		hit, err := store.SearchRandom(ctx, testChat, "pizza", nil)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.EqualValues(t, 2, hit.MessageID)
		assert.Equal(t, "pizza after opt in", hit.Text.String)
	}

	hit, err := store.SearchRandom(ctx, testChat, "before", nil)
	require.NoError(t, err)
	assert.Nil(t, hit, "messages from before the opt-in must never be searchable")
}

func TestFullTextIndexesOnlyMessagesSentAfterOptIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "boundary.db"), database.Options{ReaderConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	enabledAt := baseTime
	clock := enabledAt
	store := database.NewStore(db, nil, database.WithClock(func() time.Time { return clock }))

	_, err = store.SetFTSEnabled(ctx, testChat, true, 1)
	require.NoError(t, err)

	tests := []struct {
		name      string
		messageID int64
		sentAt    time.Time
		indexed   bool
	}{
		{name: "queued before the switch", messageID: 1, sentAt: enabledAt.Add(-30 * time.Second), indexed: false},
		{name: "switching command itself", messageID: 2, sentAt: enabledAt, indexed: false},
		{name: "sent after the switch", messageID: 3, sentAt: enabledAt.Add(time.Second), indexed: true},
	}
	for _, tt := range tests {
		res := record(t, store, newEvent(testChat, 1, tt.messageID, tt.sentAt, "eagle "+tt.name))
		assert.Equal(t, tt.indexed, res.Indexed, tt.name)
	}

	for range 10 {
		hit, err := store.SearchRandom(ctx, testChat, "eagle", nil)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.EqualValues(t, 3, hit.MessageID)
	}

	// re-enabling moves the boundary forward
	_, err = store.SetFTSEnabled(ctx, testChat, false, 1)
	require.NoError(t, err)
	clock = enabledAt.Add(time.Hour)
	_, err = store.SetFTSEnabled(ctx, testChat, true, 1)
	require.NoError(t, err)

	res := record(t, store, newEvent(testChat, 1, 4, enabledAt.Add(30*time.Minute), "sent while off"))
	assert.False(t, res.Indexed)
	res = record(t, store, newEvent(testChat, 1, 5, clock.Add(time.Minute), "sent while on"))
	assert.True(t, res.Indexed)
}

func TestFullTextDisableStopsIndexing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SetFTSEnabled(ctx, testChat, true, 1)
	require.NoError(t, err)
	record(t, store, newEvent(testChat, 1, 1, baseTime, "kept searchable"))

	changed, err := store.SetFTSEnabled(ctx, testChat, false, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	res := record(t, store, newEvent(testChat, 1, 2, baseTime.Add(time.Second), "never searchable"))
	assert.False(t, res.Indexed)

	hit, err := store.SearchRandom(ctx, testChat, "searchable", nil)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.EqualValues(t, 1, hit.MessageID)

	hit, err = store.SearchRandom(ctx, testChat, "never", nil)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSearchRandomScoping(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	otherChat := testChat - 5
	for _, chat := range []int64{testChat, otherChat} {
		_, err := store.SetFTSEnabled(ctx, chat, true, 1)
		require.NoError(t, err)
	}

	record(t, store, newEvent(testChat, 1, 1, baseTime, "I love pizza"))
	record(t, store, newEvent(testChat, 2, 2, baseTime.Add(time.Second), "pizza is overrated"))
	record(t, store, newEvent(otherChat, 3, 3, baseTime.Add(2*time.Second), "pizza elsewhere"))
	record(t, store, newEvent(testChat, 2, 4, baseTime.Add(3*time.Second), "nothing relevant"))

	seen := map[int64]bool{}
	for range 40 {
		hit, err := store.SearchRandom(ctx, testChat, "pizza", nil)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.Equal(t, testChat, hit.ChatID)
		seen[hit.MessageID] = true
	}
	assert.Subset(t, []int64{1, 2}, keys(seen))

	sender := int64(1)
	for range 10 {
		hit, err := store.SearchRandom(ctx, testChat, "pizza", &sender)
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.EqualValues(t, 1, hit.MessageID)
	}

	prefix, err := store.SearchRandom(ctx, testChat, "overr", nil)
	require.NoError(t, err)
	require.NotNil(t, prefix)
	assert.EqualValues(t, 2, prefix.MessageID)

	nobody := int64(42)
	hit, err := store.SearchRandom(ctx, testChat, "pizza", &nobody)
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = store.SearchRandom(ctx, testChat, "   ", nil)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSearchRandomNeverEnabledChat(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	record(t, store, newEvent(testChat, 1, 1, baseTime, "pizza"))
	hit, err := store.SearchRandom(context.Background(), testChat, "pizza", nil)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func keys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
