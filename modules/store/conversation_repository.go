package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ErrConversationNotFound is returned when a conversation does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository provides access to conversations and their
// participant sets.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindByID retrieves a conversation with its participants.
func (r *ConversationRepository) FindByID(id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.Preload("Participants").First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

// FindPrivateByPair retrieves the private conversation between two users,
// if one exists.
func (r *ConversationRepository) FindPrivateByPair(a, b string) (*domain.Conversation, error) {
	key := domain.PairKey(a, b)
	var conv domain.Conversation
	if err := r.db.Preload("Participants").First(&conv, "pair_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find private conversation: %w", err)
	}
	return &conv, nil
}

// CreatePrivate creates the private conversation between two users. The
// pair key's unique index makes concurrent creates collide: the loser
// re-reads and returns the winner's row, with created=false.
func (r *ConversationRepository) CreatePrivate(a, b string) (*domain.Conversation, bool, error) {
	key := domain.PairKey(a, b)
	now := time.Now()
	conv := &domain.Conversation{
		ID:      uuid.New().String(),
		IsGroup: false,
		PairKey: &key,
		Participants: []domain.Participant{
			{UserID: a, JoinedAt: now},
			{UserID: b, JoinedAt: now},
		},
	}

	if err := r.db.Create(conv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := r.FindPrivateByPair(a, b)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to load existing private conversation: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create private conversation: %w", err)
	}
	return conv, true, nil
}

// CreateGroup creates a group conversation with the given participants.
// The admin is always included in the participant set.
func (r *ConversationRepository) CreateGroup(name, adminID string, participantIDs []string) (*domain.Conversation, error) {
	now := time.Now()
	seen := map[string]bool{adminID: true}
	participants := []domain.Participant{{UserID: adminID, JoinedAt: now}}
	for _, id := range participantIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, domain.Participant{UserID: id, JoinedAt: now})
	}

	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		IsGroup:      true,
		Name:         name,
		AdminID:      adminID,
		Participants: participants,
	}
	if err := r.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create group conversation: %w", err)
	}
	return conv, nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (r *ConversationRepository) IsParticipant(conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}
	return count > 0, nil
}

// SetLastMessage updates the conversation's last-message pointer, used by
// conversation-list views.
func (r *ConversationRepository) SetLastMessage(conversationID, messageID string) error {
	result := r.db.Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_id", messageID)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to set last message: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}
