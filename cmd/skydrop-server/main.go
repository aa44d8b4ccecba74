// Package main is the entry point for the Skydrop game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/skydrop/server/internal/domain/level"
	"github.com/skydrop/server/internal/events"
	"github.com/skydrop/server/internal/infra/storage"
	"github.com/skydrop/server/internal/network"
	"github.com/skydrop/server/internal/platform/logger"
	"github.com/skydrop/server/internal/platform/metrics"
	"github.com/skydrop/server/internal/session"
)

// SQLitePersisterAdapter translates journal events to storage events.
type SQLitePersisterAdapter struct {
	repo *storage.SQLiteEventRepository
}

func (a *SQLitePersisterAdapter) Append(event events.Event) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	storageEvent := storage.SessionEvent{
		ID:           event.ID,
		Timestamp:    event.Timestamp,
		EventType:    string(event.Type),
		Generation:   event.Generation,
		LevelOrdinal: event.LevelOrdinal,
		ObjectID:     event.ObjectID,
		Payload:      payloadMap,
	}
	return a.repo.Append(context.Background(), storageEvent)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadCatalog(appLogger *logger.Logger) *level.Catalog {
	path := os.Getenv("SKYDROP_LEVELS")
	if path == "" {
		appLogger.Info("Using built-in level catalog")
		return level.Default()
	}
	cat, err := level.Load(path)
	if err != nil {
		appLogger.Error("Failed to load level catalog from %s: %v", path, err)
		os.Exit(1)
	}
	appLogger.Info("Loaded %d levels from %s", cat.Len(), path)
	return cat
}

func main() {
	log.Println("[SKYDROP] Initializing authoritative game server...")

	if err := godotenv.Load(); err != nil {
		log.Println("[SKYDROP] No .env file found, using process environment")
	}

	appLogger := logger.NewLogger()

	// The journal persister is optional; SKYDROP_DB="" runs in-memory only.
	var persister events.Persister
	dbPath := envOr("SKYDROP_DB", "skydrop.db")
	if dbPath != "" {
		appLogger.Info("Initializing SQLite database %q...", dbPath)
		db, err := storage.InitSQLite(dbPath)
		if err != nil {
			appLogger.Error("Failed to initialize SQLite: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		persister = &SQLitePersisterAdapter{repo: storage.NewSQLiteEventRepository(db)}
	}

	appLogger.Info("Bootstrapping session journal...")
	journal := events.NewLog(persister)

	catalog := loadCatalog(appLogger)

	appLogger.Info("Bootstrapping session engine...")
	engine := session.NewController(catalog, journal, appLogger)

	appLogger.Info("Bootstrapping WebSocket hub...")
	hub := network.NewHub(appLogger, engine, journal)
	engine.SetListener(hub)
	engine.SetFeedback(network.NewHapticsBridge(hub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go engine.Run(ctx)

	// Setup API Routes
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	http.HandleFunc("/metrics", metrics.Handler())
	http.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	http.HandleFunc("/api/catalog", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"levels": catalog.All(),
		})
	})

	addr := envOr("SKYDROP_ADDR", ":8080")
	go func() {
		log.Printf("[SKYDROP] HTTP API & WS server listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[SKYDROP] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[SKYDROP] Shutting down...")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients are served from a separate origin in dev
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection: %v", err)
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
