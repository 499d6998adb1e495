package chat

import (
	"sort"
	"time"
)

// DeliveryStatus is the lifecycle state of a message.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// Rank orders delivery statuses so transitions can be checked for
// monotonicity. Higher rank means further along the lifecycle.
func (s DeliveryStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// ContentKind describes the payload carried by a message.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindImage    ContentKind = "image"
	KindFile     ContentKind = "file"
	KindAudio    ContentKind = "audio"
	KindVideo    ContentKind = "video"
	KindLocation ContentKind = "location"
)

// Valid reports whether the kind is one of the supported content kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindAudio, KindVideo, KindLocation:
		return true
	}
	return false
}

// User is the minimal profile the engine needs: identity for routing and
// name/avatar for event context. Account management lives elsewhere.
type User struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	AvatarURL string    `gorm:"size:500" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Conversation is a private (2-party) or group (N-party) message thread.
// PairKey is the canonical sorted participant pair for private
// conversations; it is nil for groups so the unique index only guards
// private pairs.
type Conversation struct {
	ID            string        `gorm:"primarykey;size:36" json:"id"`
	IsGroup       bool          `gorm:"not null;default:false" json:"is_group"`
	Name          string        `gorm:"size:100" json:"name,omitempty"`
	AdminID       string        `gorm:"size:36" json:"admin_id,omitempty"`
	PairKey       *string       `gorm:"uniqueIndex;size:80" json:"-"`
	LastMessageID string        `gorm:"size:36" json:"last_message_id,omitempty"`
	Participants  []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the table name for the Conversation model.
func (Conversation) TableName() string {
	return "conversations"
}

// ParticipantIDs returns the user ids of all current participants.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether the user is a current participant.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Participant is the membership relation between a user and a conversation.
type Participant struct {
	ConversationID string    `gorm:"primaryKey;size:36" json:"-"`
	UserID         string    `gorm:"primaryKey;size:36" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

// TableName returns the table name for the Participant model.
func (Participant) TableName() string {
	return "conversation_participants"
}

// PairKey computes the canonical key for a private conversation between
// two users: the ids sorted and joined, so (a,b) and (b,a) collide on the
// unique index instead of creating two threads.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// Attachment is a file reference carried by a message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Message is a persisted chat message. Status only moves forward
// (sent -> delivered -> read); ReadBy accumulates the ids of users who
// have read it.
type Message struct {
	ID             string         `gorm:"primarykey;size:36" json:"id"`
	ConversationID string         `gorm:"size:36;index;not null" json:"conversation_id"`
	SenderID       string         `gorm:"size:36;not null" json:"sender_id"`
	Content        string         `gorm:"size:5000" json:"content"`
	ContentKind    ContentKind    `gorm:"size:20;not null;default:text" json:"content_kind"`
	Attachments    []Attachment   `gorm:"serializer:json" json:"attachments,omitempty"`
	Status         DeliveryStatus `gorm:"size:20;not null;default:sent" json:"status"`
	ReadBy         []string       `gorm:"serializer:json" json:"read_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName returns the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

// WasReadBy reports whether the user already appears in the read-by set.
func (m *Message) WasReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// PresenceRecord is the derived online/offline state for a user. LastSeen
// is only meaningful when Online is false; it is set when the user's last
// connection closes.
type PresenceRecord struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`
}
