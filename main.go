package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/registry"
	"github.com/example/realtime-chat/modules/router"
	"github.com/example/realtime-chat/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat - messaging engine ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	storeModule := store.NewModule()
	authModule := auth.NewModule()
	registryModule := registry.NewModule()
	routerModule := router.NewModule()
	dispatchModule := dispatch.NewModule()
	apiModule := api.NewModule()

	// Manual injection for dependencies not exposed via ServiceContainer
	authModule.SetStore(storeModule)
	dispatchModule.SetStore(storeModule)
	apiModule.SetHub(routerModule.GetHub())
	apiModule.SetAuth(authModule)
	apiModule.SetPresence(registryModule)

	// Register modules with the framework.
	// Order matters: store starts first so auth and dispatch find their
	// repositories; api starts last because it calls everything else.
	app.Register(storeModule)    // persistence (gorm/sqlite)
	app.Register(authModule)     // connection gate (jwt)
	app.Register(registryModule) // presence tracker + event emitter
	app.Register(routerModule)   // websocket hub + event consumer
	app.Register(dispatchModule) // send/delivery services + event emitter
	app.Register(apiModule)      // fiber HTTP/WebSocket boundary

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Event flow:")
	log.Println("  - MessageCreated events -> router module -> recipient sockets")
	log.Println("  - MessageStatus events -> router module -> sender sockets")
	log.Println("  - PresenceChanged events -> router module -> all sockets")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                              - Health check")
	log.Println("  GET    /api/v1/conversations/:id/messages   - Message history")
	log.Println("  POST   /api/v1/groups                       - Create group conversation")
	log.Println("  GET    /api/v1/presence/:user_id            - Presence lookup")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Connect with: ws://localhost:3000/ws?token=<jwt>&device_id=<id>")
	log.Println("  Frame types: room:join, room:leave, typing:start, typing:stop,")
	log.Println("               message:send, message:read")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
