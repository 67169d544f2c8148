// Package ingest turns inbound chat messages into stored events, identities and
// mention edges through a bounded queue drained by a fixed worker pool.
package ingest

import "time"

// EntityType classifies how a message refers to another user.
type EntityType int

const (
	// EntityMention is an @handle typed in the text.
	EntityMention EntityType = iota + 1
	// EntityTextMention is a structured mention that carries the target's user id.
	EntityTextMention
	// EntityReply marks the message as a reply to TargetUserID's message.
	EntityReply
)

func (t EntityType) String() string {
	switch t {
	case EntityMention:
		return "mention"
	case EntityTextMention:
		return "text_mention"
	case EntityReply:
		return "reply"
	default:
		return "unknown"
	}
}

// Entity is one reference to another user inside a message.
type Entity struct {
	Type EntityType
	// TargetUserID is set for text mentions and replies.
	TargetUserID int64
	// Handle is the @handle without the @, set for plain mentions.
	Handle string
	// Offset and Length locate the entity in the text, in UTF-16 code units.
	Offset int
	Length int
}

// Message is a transport-independent inbound chat message.
type Message struct {
	ChatID    int64
	UserID    int64
	MessageID int64
	Timestamp time.Time
	Text      string

	Username  string
	FirstName string
	LastName  string
	IsBot     bool

	Entities []Entity
}

// Stage names the ingestion step a failure happened in.
type Stage string

const (
	StageQueue    Stage = "queue"
	StageIdentity Stage = "identity"
	StageEvent    Stage = "event"
	StageMention  Stage = "mention"
)
