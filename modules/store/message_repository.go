package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ErrMessageNotFound is returned when a message does not exist.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository provides access to the message log. Status columns
// only move forward; the WHERE guards below are what makes concurrent
// transition requests safe to retry or replay.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists a new message.
func (r *MessageRepository) Append(msg *domain.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// FindByID retrieves a single message.
func (r *MessageRepository) FindByID(id string) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// FindByConversation returns the last `limit` messages of a conversation
// in chronological order. A non-positive limit returns all of them.
func (r *MessageRepository) FindByConversation(conversationID string, limit int) ([]domain.Message, error) {
	// rowid breaks created_at ties by insertion order; random message
	// ids would make same-instant ordering unstable
	query := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, rowid DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var msgs []domain.Message
	if err := query.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	// reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// FindUndelivered returns messages in the conversation still in `sent`
// that were not authored by the activating user.
func (r *MessageRepository) FindUndelivered(conversationID, excludeSenderID string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.
		Where("conversation_id = ? AND sender_id <> ? AND status = ?",
			conversationID, excludeSenderID, domain.StatusSent).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find undelivered messages: %w", err)
	}
	return msgs, nil
}

// MarkDelivered moves the given messages from sent to delivered. Messages
// already delivered or read are left untouched.
func (r *MessageRepository) MarkDelivered(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.Model(&domain.Message{}).
		Where("id IN ? AND status = ?", ids, domain.StatusSent).
		Update("status", domain.StatusDelivered).Error
	if err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}
	return nil
}

// MarkRead moves a message to read and records the reader. It reports
// whether anything actually changed: re-marking an already-read message by
// the same reader is a no-op.
func (r *MessageRepository) MarkRead(id, readerID string) (*domain.Message, bool, error) {
	msg, err := r.FindByID(id)
	if err != nil {
		return nil, false, err
	}

	changed := false
	if msg.Status.Rank() < domain.StatusRead.Rank() {
		msg.Status = domain.StatusRead
		changed = true
	}
	if !msg.WasReadBy(readerID) {
		msg.ReadBy = append(msg.ReadBy, readerID)
		changed = true
	}
	if !changed {
		return msg, false, nil
	}

	err = r.db.Model(&domain.Message{}).
		Where("id = ?", id).
		Select("status", "read_by").
		Updates(domain.Message{Status: msg.Status, ReadBy: msg.ReadBy}).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark read: %w", err)
	}
	return msg, true, nil
}
