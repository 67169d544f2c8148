package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chatpulse/internal/database"
)

// MemberGetter is the part of the Bot API the resolver needs. *bot.Bot implements it.
type MemberGetter interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

type cachedName struct {
	name    string
	expires time.Time
}

// Resolver names users for display: identity cache first, then getChatMember,
// then the numeric id. Names fetched from Telegram are kept in memory for TTL.
// Expired entries are dropped when looked up and swept at most once per TTL.
type Resolver struct {
	identities database.IdentityStore
	members    MemberGetter
	logger     *slog.Logger
	ttl        time.Duration
	timeout    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	names     map[[2]int64]cachedName
	lastSweep time.Time
}

// NewResolver creates a Resolver. members may be nil, in which case only the
// identity cache is consulted.
func NewResolver(identities database.IdentityStore, members MemberGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		identities: identities,
		members:    members,
		logger:     logger.With("component", "name_resolver"),
		ttl:        time.Hour,
		timeout:    3 * time.Second,
		now:        time.Now,
		names:      make(map[[2]int64]cachedName),
	}
}

// ResolveName never fails; see Resolver.
func (r *Resolver) ResolveName(ctx context.Context, chatID, userID int64) string {
	if r.identities != nil {
		identity, err := r.identities.GetIdentity(ctx, userID)
		if err != nil {
			r.logger.DebugContext(ctx, "Identity lookup failed", "user_id", userID, "error", err)
		} else if identity != nil {
			if name := identity.DisplayName(); name != "" {
				return name
			}
		}
	}

	key := [2]int64{chatID, userID}
	if name, ok := r.cached(key); ok {
		return name
	}

	if r.members != nil && chatID != 0 {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		member, err := r.members.GetChatMember(callCtx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
		cancel()
		if err != nil {
			r.logger.DebugContext(ctx, "getChatMember failed", "chat_id", chatID, "user_id", userID, "error", err)
		} else if name := MemberName(member); name != "" {
			r.remember(key, name)
			return name
		}
	}

	return strconv.FormatInt(userID, 10)
}

func (r *Resolver) cached(key [2]int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.names[key]
	if !ok {
		return "", false
	}
	if !r.now().Before(entry.expires) {
		delete(r.names, key)
		return "", false
	}
	return entry.name, true
}

func (r *Resolver) remember(key [2]int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastSweep) >= r.ttl {
		for k, entry := range r.names {
			if !now.Before(entry.expires) {
				delete(r.names, k)
			}
		}
		r.lastSweep = now
	}
	r.names[key] = cachedName{name: name, expires: now.Add(r.ttl)}
}

// MemberName returns the display name carried by a chat member, or "".
func MemberName(m *models.ChatMember) string {
	if m == nil {
		return ""
	}
	switch m.Type {
	case models.ChatMemberTypeOwner:
		if m.Owner != nil && m.Owner.User != nil {
			return userName(m.Owner.User)
		}
	case models.ChatMemberTypeAdministrator:
		if m.Administrator != nil {
			return userName(&m.Administrator.User)
		}
	case models.ChatMemberTypeMember:
		if m.Member != nil && m.Member.User != nil {
			return userName(m.Member.User)
		}
	case models.ChatMemberTypeRestricted:
		if m.Restricted != nil && m.Restricted.User != nil {
			return userName(m.Restricted.User)
		}
	case models.ChatMemberTypeLeft:
		if m.Left != nil && m.Left.User != nil {
			return userName(m.Left.User)
		}
	case models.ChatMemberTypeBanned:
		if m.Banned != nil && m.Banned.User != nil {
			return userName(m.Banned.User)
		}
	}
	return ""
}

// IsModerator reports whether the member is the chat owner or an administrator.
func IsModerator(m *models.ChatMember) bool {
	if m == nil {
		return false
	}
	return m.Type == models.ChatMemberTypeOwner || m.Type == models.ChatMemberTypeAdministrator
}

func userName(u *models.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	return name
}
