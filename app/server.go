package app

import (
	"fmt"
	"log"
	"net/http"

	"contract-editor/pkg/config"
	"contract-editor/pkg/handlers"
	"contract-editor/pkg/persist"
	"contract-editor/pkg/room"

	"github.com/gorilla/mux"
)

// Server represents the application server.
type Server struct {
	router   *mux.Router
	manager  *room.Manager
	handlers *handlers.Handlers
	gateway  persist.Gateway
	config   *config.Config
}

// NewServer wires configuration, persistence, the room manager and the
// HTTP routes.
func NewServer() (*Server, error) {
	cfg := config.Load()

	gateway, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}

	manager := room.NewManager(cfg.RoomTTL)
	seedLegacy(manager, gateway)

	h := handlers.NewHandlers(manager)

	r := mux.NewRouter()

	// WebSocket endpoint; ?session=<key> selects a keyed room.
	r.HandleFunc("/ws", h.HandleWebSocket)

	// Read-only REST endpoints.
	r.HandleFunc("/api/data", h.ExportData).Methods("GET")
	r.HandleFunc("/api/sessions", h.ListSessions).Methods("GET")

	return &Server{
		router:   r,
		manager:  manager,
		handlers: h,
		gateway:  gateway,
		config:   cfg,
	}, nil
}

func newGateway(cfg *config.Config) (persist.Gateway, error) {
	switch cfg.Persistence {
	case config.PersistFile:
		return persist.NewFileStore(cfg.DataFile)
	case config.PersistPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PERSIST=postgres requires DATABASE_URL")
		}
		return persist.NewPostgresStore(cfg.DatabaseURL)
	case config.PersistNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown PERSIST value %q", cfg.Persistence)
	}
}

// seedLegacy creates the legacy room, loading its document from the
// gateway and wiring mutation snapshots back into it. Keyed rooms stay
// ephemeral.
func seedLegacy(manager *room.Manager, gateway persist.Gateway) {
	if gateway == nil {
		manager.InitLegacy(nil, nil)
		return
	}
	doc, err := gateway.Load()
	if err != nil {
		log.Printf("could not load persisted document, starting empty: %v", err)
	}
	manager.InitLegacy(doc, gateway.Save)
}

// Start starts the server.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.ServerAddr()
	}
	log.Printf("Starting contract editor server on %s", addr)
	return http.ListenAndServe(addr, corsMiddleware(s.router))
}

// corsMiddleware handles CORS headers and responds to preflight requests
// at the outer layer so they don't get rejected by method-restricted routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close flushes and closes the persistence gateway.
func (s *Server) Close() error {
	if s.gateway != nil {
		return s.gateway.Close()
	}
	return nil
}
