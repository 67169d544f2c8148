package database

import (
	"database/sql"
	"time"
)

// MessageEvent is one observed message. Text is only kept when the chat had
// full-text indexing enabled at write time.
type MessageEvent struct {
	ID        int64          `db:"id"`
	ChatID    int64          `db:"chat_id"`
	UserID    int64          `db:"user_id"`
	MessageID int64          `db:"message_id"`
	CreatedAt int64          `db:"created_at"` // unix seconds
	Text      sql.NullString `db:"text"`
}

// Time returns the event timestamp.
func (e MessageEvent) Time() time.Time {
	return time.Unix(e.CreatedAt, 0).UTC()
}

// RecordStatus reports what RecordMessage did with an event.
type RecordStatus int

const (
	StatusRecorded RecordStatus = iota + 1
	StatusDuplicate
)

func (s RecordStatus) String() string {
	switch s {
	case StatusRecorded:
		return "recorded"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RecordResult is returned by RecordMessage.
type RecordResult struct {
	Status  RecordStatus
	EventID int64
	// Indexed is true when a full-text record was written with the event.
	Indexed bool
}

// Window is a half-open time range [Since, Until). A zero bound is open.
type Window struct {
	Since time.Time
	Until time.Time
}

// SenderCount is one row of a top-senders ranking.
type SenderCount struct {
	UserID int64 `db:"user_id"`
	Count  int64 `db:"cnt"`
}

// Direction selects which side of a mention edge a query pivots on.
type Direction int

const (
	// Outgoing ranks the users someone mentions.
	Outgoing Direction = iota
	// Incoming ranks the users who mention someone.
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// MentionEdge is a directed from -> to reference within a chat.
type MentionEdge struct {
	ID         int64 `db:"id"`
	ChatID     int64 `db:"chat_id"`
	FromUserID int64 `db:"from_user_id"`
	ToUserID   int64 `db:"to_user_id"`
	MessageID  int64 `db:"message_id"`
	CreatedAt  int64 `db:"created_at"`
}

// Connection is a neighbour in the mention graph weighted by edge count.
type Connection struct {
	UserID int64 `db:"user_id"`
	Weight int64 `db:"weight"`
}

// Identity is the cached view of a user.
type Identity struct {
	UserID        int64  `db:"user_id"`
	Username      string `db:"username"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	IsBot         bool   `db:"is_bot"`
	LastSeen      int64  `db:"last_seen"`
	LastChatID    int64  `db:"last_chat_id"`
	LastMessageID int64  `db:"last_message_id"`
	UpdatedAt     int64  `db:"updated_at"`
}

// DisplayName prefers the full name, then the handle.
func (i Identity) DisplayName() string {
	name := i.FirstName
	if i.LastName != "" {
		if name != "" {
			name += " "
		}
		name += i.LastName
	}
	if name == "" && i.Username != "" {
		return "@" + i.Username
	}
	return name
}

// ChatSettings holds per-chat flags. A chat with no row has every flag off.
type ChatSettings struct {
	ChatID       int64         `db:"chat_id"`
	FTSEnabled   bool          `db:"fts_enabled"`
	FTSEnabledAt sql.NullInt64 `db:"fts_enabled_at"`
	UpdatedBy    int64         `db:"updated_by"`
	UpdatedAt    int64         `db:"updated_at"`
}

// indexes reports whether a message sent at sentAt (unix seconds) gets a full-text row.
// Timestamps have second resolution, so a message from the same second as the switch
// is treated as sent before it.
func (c ChatSettings) indexes(sentAt int64) bool {
	return c.FTSEnabled && c.FTSEnabledAt.Valid && sentAt > c.FTSEnabledAt.Int64
}

// RollupResult summarises one RollupTotals call.
type RollupResult struct {
	Events      int64
	Batches     int
	LastEventID int64
}

// IngestFailure is a dead-lettered ingestion step.
type IngestFailure struct {
	ID        string `db:"id"`
	ChatID    int64  `db:"chat_id"`
	UserID    int64  `db:"user_id"`
	MessageID int64  `db:"message_id"`
	Stage     string `db:"stage"`
	Error     string `db:"error"`
	CreatedAt int64  `db:"created_at"`
}
