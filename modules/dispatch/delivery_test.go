package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/example/realtime-chat/domain/chat"
)

func TestDispatcher_Activate_DeliversPending(t *testing.T) {
	d, _, messages := newTestDispatcher(t)
	ctx := context.Background()

	first, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", RecipientIDs: []string{"bob"}, Content: "one",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	second, _, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", ConversationID: conv.ID, Content: "two",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// bob opens the conversation
	count, err := d.Activate(ctx, ActivateRoomRequest{ConversationID: conv.ID, UserID: "bob"})
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Activate() delivered %d, want 2", count)
	}

	for _, id := range []string{first.ID, second.ID} {
		msg, err := messages.FindByID(id)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if msg.Status != domain.StatusDelivered {
			t.Errorf("message %s status = %q, want delivered", id, msg.Status)
		}
	}

	// a second activation finds nothing pending
	count, err = d.Activate(ctx, ActivateRoomRequest{ConversationID: conv.ID, UserID: "bob"})
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if count != 0 {
		t.Errorf("repeat Activate() delivered %d, want 0", count)
	}
}

func TestDispatcher_Activate_SkipsOwnMessages(t *testing.T) {
	d, _, messages := newTestDispatcher(t)
	ctx := context.Background()

	msg, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", RecipientIDs: []string{"bob"}, Content: "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// the sender re-opening the room must not deliver to themselves
	count, err := d.Activate(ctx, ActivateRoomRequest{ConversationID: conv.ID, UserID: "alice"})
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Activate() by sender delivered %d, want 0", count)
	}

	stored, _ := messages.FindByID(msg.ID)
	if stored.Status != domain.StatusSent {
		t.Errorf("status = %q, want sent", stored.Status)
	}
}

func TestDispatcher_Activate_Authorization(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	_, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", RecipientIDs: []string{"bob"}, Content: "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if _, err := d.Activate(ctx, ActivateRoomRequest{ConversationID: conv.ID, UserID: "mallory"}); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("Activate() error = %v, want ErrNotParticipant", err)
	}
	if _, err := d.Activate(ctx, ActivateRoomRequest{ConversationID: "nope", UserID: "alice"}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Activate() error = %v, want ErrConversationNotFound", err)
	}
}

func TestDispatcher_MarkRead_DirectFromSent(t *testing.T) {
	d, _, messages := newTestDispatcher(t)
	ctx := context.Background()

	msg, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", RecipientIDs: []string{"bob"}, Content: "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// a read receipt can arrive without a prior delivery sweep
	count, err := d.MarkRead(ctx, MarkReadRequest{
		ConversationID: conv.ID, UserID: "bob", MessageIDs: []string{msg.ID},
	})
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if count != 1 {
		t.Errorf("MarkRead() updated %d, want 1", count)
	}

	stored, _ := messages.FindByID(msg.ID)
	if stored.Status != domain.StatusRead {
		t.Errorf("status = %q, want read", stored.Status)
	}
	if !stored.WasReadBy("bob") {
		t.Error("bob missing from read-by set")
	}
}

func TestDispatcher_MarkRead_Idempotent(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	msg, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", RecipientIDs: []string{"bob"}, Content: "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	req := MarkReadRequest{ConversationID: conv.ID, UserID: "bob", MessageIDs: []string{msg.ID}}
	if count, _ := d.MarkRead(ctx, req); count != 1 {
		t.Errorf("first MarkRead() updated %d, want 1", count)
	}
	if count, _ := d.MarkRead(ctx, req); count != 0 {
		t.Errorf("repeat MarkRead() updated %d, want 0", count)
	}
}

func TestDispatcher_MarkRead_IgnoresForeignAndOwn(t *testing.T) {
	d, _, messages := newTestDispatcher(t)
	ctx := context.Background()

	own, conv, err := d.Send(ctx, SendMessageRequest{
		SenderID: "bob", RecipientIDs: []string{"alice"}, Content: "from bob",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	foreign, _, err := d.Send(ctx, SendMessageRequest{
		SenderID: "carol", RecipientIDs: []string{"dave"}, Content: "elsewhere",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	count, err := d.MarkRead(ctx, MarkReadRequest{
		ConversationID: conv.ID,
		UserID:         "bob",
		MessageIDs:     []string{own.ID, foreign.ID, "no-such-message"},
	})
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if count != 0 {
		t.Errorf("MarkRead() updated %d, want 0", count)
	}

	stored, _ := messages.FindByID(foreign.ID)
	if stored.Status != domain.StatusSent {
		t.Error("message from another conversation was touched")
	}
}

func TestDispatcher_MarkRead_GroupAccumulatesReaders(t *testing.T) {
	d, conversations, messages := newTestDispatcher(t)
	ctx := context.Background()

	conv, err := conversations.CreateGroup("team", "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	msg, _, err := d.Send(ctx, SendMessageRequest{
		SenderID: "alice", ConversationID: conv.ID, Content: "standup?",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	for _, reader := range []string{"bob", "carol"} {
		count, err := d.MarkRead(ctx, MarkReadRequest{
			ConversationID: conv.ID, UserID: reader, MessageIDs: []string{msg.ID},
		})
		if err != nil {
			t.Fatalf("MarkRead(%s) error = %v", reader, err)
		}
		if count != 1 {
			t.Errorf("MarkRead(%s) updated %d, want 1", reader, count)
		}
	}

	stored, _ := messages.FindByID(msg.ID)
	if !stored.WasReadBy("bob") || !stored.WasReadBy("carol") {
		t.Errorf("read-by = %v, want both readers", stored.ReadBy)
	}
	if stored.Status != domain.StatusRead {
		t.Errorf("status = %q, want read", stored.Status)
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	counters := map[string]int{}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				km.lock(key)
				defer km.unlock(key)
				mu.Lock()
				counters[key]++
				mu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	if counters["a"] != 50 || counters["b"] != 50 {
		t.Errorf("counters = %v, want 50 each", counters)
	}
	km.mu.Lock()
	remaining := len(km.locks)
	km.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d lock entries leaked", remaining)
	}
}
