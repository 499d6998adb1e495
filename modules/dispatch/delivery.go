package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/store"
)

// keyedMutex hands out one mutex per conversation so status sweeps for
// different conversations never serialize against each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	entry := k.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}

// Activate marks a user active in a conversation: every pending message
// from other senders moves to delivered, and the senders are notified.
// Runs under the conversation lock so two activations cannot double
// report the same messages.
func (d *Dispatcher) Activate(_ context.Context, req ActivateRoomRequest) (int, error) {
	if err := d.requireParticipant(req.ConversationID, req.UserID); err != nil {
		return 0, err
	}

	d.roomLocks.lock(req.ConversationID)
	defer d.roomLocks.unlock(req.ConversationID)

	pending, err := d.messages.FindUndelivered(req.ConversationID, req.UserID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, len(pending))
	for i, msg := range pending {
		ids[i] = msg.ID
	}
	if err := d.messages.MarkDelivered(ids); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for i := range pending {
		pending[i].Status = domain.StatusDelivered
		d.publishStatusChanged(&pending[i], "")
	}
	return len(pending), nil
}

// MarkRead records that a user has read messages. A read may jump a
// message straight from sent to read; the status never moves backwards
// and repeat reads by the same user change nothing. Events fire only
// for messages whose state actually changed.
func (d *Dispatcher) MarkRead(_ context.Context, req MarkReadRequest) (int, error) {
	if err := d.requireParticipant(req.ConversationID, req.UserID); err != nil {
		return 0, err
	}

	d.roomLocks.lock(req.ConversationID)
	defer d.roomLocks.unlock(req.ConversationID)

	updated := 0
	for _, id := range req.MessageIDs {
		existing, err := d.messages.FindByID(id)
		if errors.Is(err, store.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		// ids from other conversations and own messages are ignored,
		// not errors; clients batch freely
		if existing.ConversationID != req.ConversationID || existing.SenderID == req.UserID {
			continue
		}

		msg, changed, err := d.messages.MarkRead(id, req.UserID)
		if err != nil {
			return updated, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if changed {
			updated++
			d.publishStatusChanged(msg, req.UserID)
		}
	}
	return updated, nil
}
