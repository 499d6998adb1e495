package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/registry"
	"github.com/example/realtime-chat/modules/router"
)

// Module is the HTTP and WebSocket boundary. It admits connections
// through the gate, feeds inbound frames to the dispatcher, and exposes
// the REST supplements.
type Module struct {
	app      *fiber.App
	dispatch dispatch.DispatchPort
	hub      *router.Hub
	auth     *auth.Module
	gate     *auth.Gate
	presence *registry.Module
	port     string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule() *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	return &Module{
		port: port,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"dispatch"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "dispatch":
		m.dispatch = dispatch.NewAdapter(container)
	}
}

// SetHub sets the router hub (called from main.go).
func (m *Module) SetHub(hub *router.Hub) {
	m.hub = hub
}

// SetAuth sets the auth module whose gate admits connections (called
// from main.go). The gate itself is resolved at Start, after the auth
// module has built it.
func (m *Module) SetAuth(a *auth.Module) {
	m.auth = a
}

// SetPresence sets the presence tracker (called from main.go).
func (m *Module) SetPresence(presence *registry.Module) {
	m.presence = presence
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.dispatch == nil {
		return fmt.Errorf("dispatch adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("router hub dependency not set")
	}
	if m.auth == nil {
		return fmt.Errorf("auth module dependency not set")
	}
	if m.presence == nil {
		return fmt.Errorf("presence tracker dependency not set")
	}
	m.gate = m.auth.Gate()
	if m.gate == nil {
		return fmt.Errorf("connection gate not initialized")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(cors.New())
	m.app.Use(loggerMiddleware())

	m.setupRoutes()

	// surface bind failures instead of starting half-up
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on :%s", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":              m.port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	api := m.app.Group("/api/v1")
	api.Get("/conversations/:id/messages", m.getMessages)
	api.Post("/groups", m.createGroup)
	api.Get("/presence/:user_id", m.getPresence)
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
