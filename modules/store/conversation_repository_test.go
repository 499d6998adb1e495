package store

import (
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/realtime-chat/domain/chat"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestConversationRepository_CreatePrivate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	conv, created, err := repo.CreatePrivate("alice", "bob")
	if err != nil {
		t.Fatalf("CreatePrivate() error = %v", err)
	}
	if !created {
		t.Error("CreatePrivate() created = false, want true for first create")
	}
	if conv.IsGroup {
		t.Error("CreatePrivate() conversation should not be a group")
	}
	if len(conv.Participants) != 2 {
		t.Fatalf("CreatePrivate() participants = %d, want 2", len(conv.Participants))
	}
	if !conv.HasParticipant("alice") || !conv.HasParticipant("bob") {
		t.Error("CreatePrivate() missing expected participants")
	}
}

func TestConversationRepository_CreatePrivate_PairCollision(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	first, created, err := repo.CreatePrivate("alice", "bob")
	if err != nil || !created {
		t.Fatalf("first CreatePrivate() = (created=%v, err=%v)", created, err)
	}

	// Same pair in reverse order must converge on the same conversation.
	second, created, err := repo.CreatePrivate("bob", "alice")
	if err != nil {
		t.Fatalf("second CreatePrivate() error = %v", err)
	}
	if created {
		t.Error("second CreatePrivate() created = true, want false")
	}
	if second.ID != first.ID {
		t.Errorf("second CreatePrivate() id = %q, want %q", second.ID, first.ID)
	}
}

func TestConversationRepository_FindPrivateByPair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	if _, err := repo.FindPrivateByPair("alice", "bob"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("FindPrivateByPair() error = %v, want ErrConversationNotFound", err)
	}

	conv, _, err := repo.CreatePrivate("alice", "bob")
	if err != nil {
		t.Fatalf("CreatePrivate() error = %v", err)
	}

	found, err := repo.FindPrivateByPair("bob", "alice")
	if err != nil {
		t.Fatalf("FindPrivateByPair() error = %v", err)
	}
	if found.ID != conv.ID {
		t.Errorf("FindPrivateByPair() id = %q, want %q", found.ID, conv.ID)
	}
}

func TestConversationRepository_CreateGroup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	tests := []struct {
		name         string
		groupName    string
		adminID      string
		participants []string
		wantCount    int
	}{
		{
			name:         "admin plus two members",
			groupName:    "Team",
			adminID:      "alice",
			participants: []string{"bob", "carol"},
			wantCount:    3,
		},
		{
			name:         "admin deduplicated from participant list",
			groupName:    "Team2",
			adminID:      "alice",
			participants: []string{"alice", "bob", "bob", ""},
			wantCount:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := repo.CreateGroup(tt.groupName, tt.adminID, tt.participants)
			if err != nil {
				t.Fatalf("CreateGroup() error = %v", err)
			}
			if !conv.IsGroup {
				t.Error("CreateGroup() conversation should be a group")
			}
			if conv.AdminID != tt.adminID {
				t.Errorf("CreateGroup() admin = %q, want %q", conv.AdminID, tt.adminID)
			}
			if len(conv.Participants) != tt.wantCount {
				t.Errorf("CreateGroup() participants = %d, want %d", len(conv.Participants), tt.wantCount)
			}
			if conv.PairKey != nil {
				t.Error("CreateGroup() pair key should be nil for groups")
			}
		})
	}
}

func TestConversationRepository_IsParticipant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	conv, _, err := repo.CreatePrivate("alice", "bob")
	if err != nil {
		t.Fatalf("CreatePrivate() error = %v", err)
	}

	tests := []struct {
		name   string
		convID string
		userID string
		want   bool
	}{
		{"participant", conv.ID, "alice", true},
		{"other participant", conv.ID, "bob", true},
		{"outsider", conv.ID, "mallory", false},
		{"unknown conversation", "nope", "alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.IsParticipant(tt.convID, tt.userID)
			if err != nil {
				t.Fatalf("IsParticipant() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsParticipant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConversationRepository_SetLastMessage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	conv, _, err := repo.CreatePrivate("alice", "bob")
	if err != nil {
		t.Fatalf("CreatePrivate() error = %v", err)
	}

	if err := repo.SetLastMessage(conv.ID, "msg-1"); err != nil {
		t.Fatalf("SetLastMessage() error = %v", err)
	}

	found, err := repo.FindByID(conv.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.LastMessageID != "msg-1" {
		t.Errorf("LastMessageID = %q, want %q", found.LastMessageID, "msg-1")
	}

	if err := repo.SetLastMessage("unknown", "msg-1"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("SetLastMessage() error = %v, want ErrConversationNotFound", err)
	}
}
