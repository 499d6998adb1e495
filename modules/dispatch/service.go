package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/store"
)

// Dispatcher owns the send path: conversation resolution, persistence
// and fan-out. Fan-out happens through the event bus; the dispatcher
// never talks to sockets.
type Dispatcher struct {
	conversations *store.ConversationRepository
	messages      *store.MessageRepository
	eventBus      mono.EventBus

	// collapses concurrent first-message sends between the same pair
	// onto one conversation creation
	pairGroup singleflight.Group

	roomLocks *keyedMutex
}

// NewDispatcher creates a dispatcher over the store repositories.
func NewDispatcher(conversations *store.ConversationRepository, messages *store.MessageRepository) *Dispatcher {
	return &Dispatcher{
		conversations: conversations,
		messages:      messages,
		roomLocks:     newKeyedMutex(),
	}
}

// SetEventBus wires the event bus. Without a bus the dispatcher still
// persists but emits nothing; tests run it that way.
func (d *Dispatcher) SetEventBus(bus mono.EventBus) {
	d.eventBus = bus
}

// Send persists a message and fans it out to the conversation's
// recipients. The conversation is resolved first: an explicit id is
// validated for membership, a bare two-party recipient list resolves
// or creates the private conversation, and larger recipient lists are
// rejected because groups must be created explicitly.
func (d *Dispatcher) Send(ctx context.Context, req SendMessageRequest) (*domain.Message, *domain.Conversation, error) {
	if err := ValidateContent(req.Content, req.ContentKind, req.Attachments); err != nil {
		return nil, nil, err
	}

	conv, err := d.resolveConversation(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	kind := req.ContentKind
	if kind == "" {
		kind = domain.KindText
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		ContentKind:    kind,
		Attachments:    req.Attachments,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now().UTC(),
	}

	if err := d.messages.Append(msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// the message is durable at this point; a failed pointer update
	// must not fail the send
	if err := d.conversations.SetLastMessage(conv.ID, msg.ID); err != nil {
		log.Printf("[dispatch] Failed to update last message for conversation %s: %v", conv.ID, err)
	}

	recipients := make([]string, 0, len(conv.Participants))
	for _, id := range conv.ParticipantIDs() {
		if id != req.SenderID {
			recipients = append(recipients, id)
		}
	}

	d.publishMessageCreated(*msg, recipients)
	return msg, conv, nil
}

// resolveConversation finds or creates the conversation a send targets.
func (d *Dispatcher) resolveConversation(ctx context.Context, req SendMessageRequest) (*domain.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := d.conversations.FindByID(req.ConversationID)
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !conv.HasParticipant(req.SenderID) {
			return nil, ErrNotParticipant
		}
		return conv, nil
	}

	// dedupe recipients, drop the sender and empties
	seen := make(map[string]struct{})
	recipients := make([]string, 0, len(req.RecipientIDs))
	for _, id := range req.RecipientIDs {
		if id == "" || id == req.SenderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	switch {
	case len(recipients) == 0:
		return nil, ErrNoRecipients
	case len(recipients) > 1:
		return nil, ErrGroupRequiresID
	}

	return d.resolvePrivate(ctx, req.SenderID, recipients[0])
}

// resolvePrivate returns the private conversation for a pair, creating
// it when absent. Concurrent resolutions for the same pair share one
// flight; the unique pair key in the store catches races across
// processes.
func (d *Dispatcher) resolvePrivate(_ context.Context, senderID, recipientID string) (*domain.Conversation, error) {
	key := domain.PairKey(senderID, recipientID)
	v, err, _ := d.pairGroup.Do(key, func() (any, error) {
		conv, err := d.conversations.FindPrivateByPair(senderID, recipientID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, store.ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		conv, created, err := d.conversations.CreatePrivate(senderID, recipientID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if created {
			d.publishConversationCreated(conv)
		}
		return conv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Conversation), nil
}

// CreateGroup creates a named group conversation and announces it to
// its participants.
func (d *Dispatcher) CreateGroup(_ context.Context, req CreateGroupRequest) (*domain.Conversation, error) {
	if err := ValidateGroupName(req.Name); err != nil {
		return nil, err
	}
	if req.AdminID == "" {
		return nil, ErrNoRecipients
	}

	others := 0
	for _, id := range req.ParticipantIDs {
		if id != "" && id != req.AdminID {
			others++
		}
	}
	if others < 2 {
		return nil, ErrGroupTooSmall
	}

	conv, err := d.conversations.CreateGroup(req.Name, req.AdminID, req.ParticipantIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	d.publishConversationCreated(conv)
	return conv, nil
}

// History returns the most recent messages of a conversation in
// chronological order. Only participants may read history.
func (d *Dispatcher) History(_ context.Context, req HistoryRequest) ([]domain.Message, error) {
	if err := d.requireParticipant(req.ConversationID, req.UserID); err != nil {
		return nil, err
	}
	msgs, err := d.messages.FindByConversation(req.ConversationID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// requireParticipant validates conversation membership.
func (d *Dispatcher) requireParticipant(conversationID, userID string) error {
	ok, err := d.conversations.IsParticipant(conversationID, userID)
	if errors.Is(err, store.ErrConversationNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		// distinguish a missing conversation from a foreign one
		if _, err := d.conversations.FindByID(conversationID); errors.Is(err, store.ErrConversationNotFound) {
			return ErrConversationNotFound
		}
		return ErrNotParticipant
	}
	return nil
}

func (d *Dispatcher) publishMessageCreated(msg domain.Message, recipients []string) {
	if d.eventBus == nil {
		return
	}
	event := events.MessageCreatedEvent{
		Message:      msg,
		RecipientIDs: recipients,
	}
	if err := events.MessageCreatedV1.Publish(d.eventBus, event, nil); err != nil {
		log.Printf("[dispatch] Failed to publish MessageCreated for %s: %v", msg.ID, err)
	}
}

func (d *Dispatcher) publishStatusChanged(msg *domain.Message, readerID string) {
	if d.eventBus == nil {
		return
	}
	event := events.MessageStatusEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Status:         msg.Status,
		ReaderID:       readerID,
		Timestamp:      time.Now().UTC(),
	}
	if err := events.MessageStatusV1.Publish(d.eventBus, event, nil); err != nil {
		log.Printf("[dispatch] Failed to publish MessageStatus for %s: %v", msg.ID, err)
	}
}

func (d *Dispatcher) publishConversationCreated(conv *domain.Conversation) {
	if d.eventBus == nil {
		return
	}
	event := events.ConversationCreatedEvent{
		Conversation:   *conv,
		ParticipantIDs: conv.ParticipantIDs(),
	}
	if err := events.ConversationCreatedV1.Publish(d.eventBus, event, nil); err != nil {
		log.Printf("[dispatch] Failed to publish ConversationCreated for %s: %v", conv.ID, err)
	}
}
