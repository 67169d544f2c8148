// Package analytics answers the read-side questions the bot commands ask about a chat:
// who talks the most, when someone was last seen, a random search hit, and who
// mentions whom.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/chatpulse/internal/database"
)

var (
	// ErrNoData marks a query that has nothing to report. Callers render it as a
	// normal reply, not as a failure.
	ErrNoData = errors.New("no data")

	ErrSearchDisabled = fmt.Errorf("%w: full-text search is not enabled in this chat", ErrNoData)
	ErrNoChatGraph    = fmt.Errorf("%w: no mentions recorded in this chat", ErrNoData)
	ErrNoUserGraph    = fmt.Errorf("%w: user has no mentions in this chat", ErrNoData)
	ErrUnknownUser    = fmt.Errorf("%w: user not seen", ErrNoData)
)

// Store is the subset of the database the service reads from.
type Store interface {
	database.EventStore
	database.FullTextStore
	database.MentionStore
	database.IdentityStore
	database.SettingsStore
	database.TotalsStore
}

// NameResolver turns a user id into something printable. It never fails; the
// numeric id is the last resort.
type NameResolver interface {
	ResolveName(ctx context.Context, chatID, userID int64) string
}

// Options configures a Service.
type Options struct {
	TopLimit     int
	FriendsLimit int
	Location     *time.Location
	Now          func() time.Time
}

// Service implements the chat analytics commands on top of Store.
type Service struct {
	store    Store
	names    NameResolver
	logger   *slog.Logger
	topLimit int
	friends  int
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a Service. A nil resolver falls back to the identity cache.
func NewService(store Store, names NameResolver, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if names == nil {
		names = CacheResolver{Store: store}
	}
	if opts.TopLimit <= 0 {
		opts.TopLimit = 10
	}
	if opts.FriendsLimit <= 0 {
		opts.FriendsLimit = 3
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		names:    names,
		logger:   logger.With("component", "analytics"),
		topLimit: opts.TopLimit,
		friends:  opts.FriendsLimit,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// Share is one user's part of a chat's message count.
type Share struct {
	UserID  int64
	Name    string
	Count   int64
	Percent float64
}

// Activity is a ranked message count report.
type Activity struct {
	Total  int64
	Since  time.Time // zero for all-time reports
	Until  time.Time
	Shares []Share
}

// TodayStats ranks senders over [start of today, now) in the configured time zone.
func (s *Service) TodayStats(ctx context.Context, chatID int64) (Activity, error) {
	now := s.now().In(s.loc)
	since := StartOfDay(now)
	window := database.Window{Since: since, Until: now}

	total, top, err := s.store.ChatActivity(ctx, chatID, window, s.topLimit)
	if err != nil {
		return Activity{}, fmt.Errorf("failed to load today's activity: %w", err)
	}
	return Activity{
		Total:  total,
		Since:  since,
		Until:  now,
		Shares: s.shares(ctx, chatID, total, top),
	}, nil
}

// GlobalStats ranks senders over the whole history of the chat.
func (s *Service) GlobalStats(ctx context.Context, chatID int64) (Activity, error) {
	total, top, err := s.store.GlobalActivity(ctx, chatID, s.topLimit)
	if err != nil {
		return Activity{}, fmt.Errorf("failed to load global activity: %w", err)
	}
	return Activity{
		Total:  total,
		Until:  s.now().In(s.loc),
		Shares: s.shares(ctx, chatID, total, top),
	}, nil
}

func (s *Service) shares(ctx context.Context, chatID, total int64, top []database.SenderCount) []Share {
	out := make([]Share, 0, len(top))
	for _, sc := range top {
		out = append(out, Share{
			UserID:  sc.UserID,
			Name:    s.names.ResolveName(ctx, chatID, sc.UserID),
			Count:   sc.Count,
			Percent: Percent(sc.Count, total),
		})
	}
	return out
}

// Sighting is where and when a user last wrote.
type Sighting struct {
	UserID    int64
	Name      string
	Username  string
	LastSeen  time.Time
	Ago       time.Duration
	ChatID    int64
	MessageID int64
}

// UserRef identifies the subject of /seen: a user id, an @handle, or a bare number.
type UserRef struct {
	UserID int64
	Handle string
}

// ParseUserRef reads a /seen argument. It returns false for an empty argument.
func ParseUserRef(arg string) (UserRef, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return UserRef{}, false
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id != 0 {
		return UserRef{UserID: id}, true
	}
	handle := strings.TrimPrefix(arg, "@")
	if handle == "" || strings.ContainsAny(handle, " \t\n") {
		return UserRef{}, false
	}
	return UserRef{Handle: handle}, true
}

// Seen reports the last message the identity cache holds for ref.
func (s *Service) Seen(ctx context.Context, chatID int64, ref UserRef) (Sighting, error) {
	var (
		identity *database.Identity
		err      error
	)
	switch {
	case ref.UserID != 0:
		identity, err = s.store.GetIdentity(ctx, ref.UserID)
	case ref.Handle != "":
		identity, err = s.store.FindIdentityByUsername(ctx, ref.Handle)
	default:
		return Sighting{}, ErrUnknownUser
	}
	if err != nil {
		return Sighting{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if identity == nil || identity.LastSeen == 0 {
		return Sighting{}, ErrUnknownUser
	}

	last := time.Unix(identity.LastSeen, 0).In(s.loc)
	ago := s.now().Sub(last)
	if ago < 0 {
		ago = 0
	}
	return Sighting{
		UserID:    identity.UserID,
		Name:      s.names.ResolveName(ctx, chatID, identity.UserID),
		Username:  identity.Username,
		LastSeen:  last,
		Ago:       ago,
		ChatID:    identity.LastChatID,
		MessageID: identity.LastMessageID,
	}, nil
}

// Hit is a search result.
type Hit struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	Name      string
	Text      string
	SentAt    time.Time
}

// Search returns one random indexed message matching query, or nil when nothing
// matches. senderID, when set, restricts the search to that user's messages.
func (s *Service) Search(ctx context.Context, chatID int64, query string, senderID *int64) (*Hit, error) {
	settings, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat settings: %w", err)
	}
	if !settings.FTSEnabled && !settings.FTSEnabledAt.Valid {
		return nil, ErrSearchDisabled
	}

	ev, err := s.store.SearchRandom(ctx, chatID, query, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if ev == nil {
		return nil, nil
	}
	return &Hit{
		ChatID:    ev.ChatID,
		MessageID: ev.MessageID,
		UserID:    ev.UserID,
		Name:      s.names.ResolveName(ctx, chatID, ev.UserID),
		Text:      ev.Text.String,
		SentAt:    ev.Time().In(s.loc),
	}, nil
}

// Friend is a neighbour in the mention graph.
type Friend struct {
	UserID int64
	Name   string
	Weight int64
}

// Friends lists whom a user mentions most and who mentions them most.
type Friends struct {
	UserID   int64
	Name     string
	Outgoing []Friend
	Incoming []Friend
}

// Friends returns the strongest outgoing and incoming mention connections of userID.
// It short-circuits with ErrNoChatGraph or ErrNoUserGraph before ranking anything.
func (s *Service) Friends(ctx context.Context, chatID, userID int64) (Friends, error) {
	found, err := s.store.HasAnyEdges(ctx, chatID)
	if err != nil {
		return Friends{}, fmt.Errorf("failed to check mention graph: %w", err)
	}
	if !found {
		return Friends{}, ErrNoChatGraph
	}
	found, err = s.store.UserHasEdges(ctx, chatID, userID)
	if err != nil {
		return Friends{}, fmt.Errorf("failed to check user edges: %w", err)
	}
	if !found {
		return Friends{}, ErrNoUserGraph
	}

	out, err := s.store.TopConnections(ctx, chatID, userID, database.Outgoing, s.friends)
	if err != nil {
		return Friends{}, fmt.Errorf("failed to rank outgoing mentions: %w", err)
	}
	in, err := s.store.TopConnections(ctx, chatID, userID, database.Incoming, s.friends)
	if err != nil {
		return Friends{}, fmt.Errorf("failed to rank incoming mentions: %w", err)
	}
	if len(out) == 0 && len(in) == 0 {
		// only self-mentions
		return Friends{}, ErrNoUserGraph
	}

	return Friends{
		UserID:   userID,
		Name:     s.names.ResolveName(ctx, chatID, userID),
		Outgoing: s.friendList(ctx, chatID, out),
		Incoming: s.friendList(ctx, chatID, in),
	}, nil
}

func (s *Service) friendList(ctx context.Context, chatID int64, conns []database.Connection) []Friend {
	out := make([]Friend, 0, len(conns))
	for _, c := range conns {
		out = append(out, Friend{
			UserID: c.UserID,
			Name:   s.names.ResolveName(ctx, chatID, c.UserID),
			Weight: c.Weight,
		})
	}
	return out
}

// SetFTS turns full-text indexing on or off for a chat and reports whether the
// flag changed. Enabling is not retroactive.
func (s *Service) SetFTS(ctx context.Context, chatID int64, enabled bool, by int64) (bool, error) {
	changed, err := s.store.SetFTSEnabled(ctx, chatID, enabled, by)
	if err != nil {
		return false, fmt.Errorf("failed to update full-text setting: %w", err)
	}
	if changed {
		s.logger.InfoContext(ctx, "Full-text indexing setting changed",
			"chat_id", chatID, "enabled", enabled, "by", by)
	}
	return changed, nil
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Percent returns part/total as a percentage, 0 when total is 0.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
