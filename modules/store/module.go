package store

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Module owns the persistent store: the user directory, conversations with
// their participant sets, and the message log.
type Module struct {
	db     *gorm.DB
	dbPath string

	users         *UserRepository
	conversations *ConversationRepository
	messages      *MessageRepository
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule() *Module {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &Module{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the SQLite database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.users = NewUserRepository(db)
	m.conversations = NewConversationRepository(db)
	m.messages = NewMessageRepository(db)

	log.Printf("[store] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// Users returns the user directory repository. Valid after Start.
func (m *Module) Users() *UserRepository {
	return m.users
}

// Conversations returns the conversation repository. Valid after Start.
func (m *Module) Conversations() *ConversationRepository {
	return m.conversations
}

// Messages returns the message repository. Valid after Start.
func (m *Module) Messages() *MessageRepository {
	return m.messages
}
