package auth

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"

	"github.com/example/realtime-chat/modules/store"
)

// Module provides the connection gate.
type Module struct {
	store *store.Module
	jwt   *JWTManager
	gate  *Gate
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new auth module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// SetStore injects the store module, whose user repository serves as the
// directory (called from main.go).
func (m *Module) SetStore(s *store.Module) {
	m.store = s
}

// Start builds the JWT verifier and the gate. The store module must have
// been started first so the directory is available.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("store dependency not set")
	}

	m.jwt = NewJWTManager(loadJWTConfig())
	m.gate = NewGate(m.jwt, m.store.Users())

	log.Println("[auth] Module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.gate != nil,
		Message: "operational",
	}
}

// Gate returns the connection gate. Valid after Start.
func (m *Module) Gate() *Gate {
	return m.gate
}

// loadJWTConfig loads JWT configuration from environment variables.
func loadJWTConfig() JWTConfig {
	config := DefaultJWTConfig()

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.SecretKey = secret
	}

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}

	return config
}
