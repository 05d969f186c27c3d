package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pong-arena/internal/arena"
	"pong-arena/internal/config"
	"pong-arena/internal/game"
)

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
type RouterConfig struct {
	// Gateway handles WebSocket upgrades (required)
	Gateway *Gateway

	// Registry backs the room listing endpoint (required)
	Registry *arena.Registry

	// Matchmaker backs duel room allocation (required)
	Matchmaker *arena.Matchmaker

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses defaults.
	RateLimitConfig *config.RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost-only development origins are used.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for tests).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies for the router.
type routerHandlers struct {
	gateway    *Gateway
	registry   *arena.Registry
	matchmaker *arena.Matchmaker
	limiter    *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function starts no goroutines and opens no listeners
// (the rate limiter's cleanup loop is the one exception when none is
// injected). This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := config.DefaultRateLimit()
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		gateway:    cfg.Gateway,
		registry:   cfg.Registry,
		matchmaker: cfg.Matchmaker,
		limiter:    rateLimiter,
	}

	r.Get("/healthz", h.handleHealth)
	r.Get("/ws", h.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", h.handleListRooms)
		r.Post("/duels", h.handleCreateDuel)
	})

	return r
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       h.registry.Len(),
		"connections": h.gateway.ClientCount(),
		"rate_limit":  h.limiter.GetStats(),
	})
}

func (h *routerHandlers) handleWS(w http.ResponseWriter, r *http.Request) {
	h.gateway.HandleWebSocket(w, r)
}

func (h *routerHandlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": h.registry.List(),
	})
}

// duelRequest is the POST /api/duels body.
type duelRequest struct {
	Variant game.Variant `json:"variant"`
}

func (h *routerHandlers) handleCreateDuel(w http.ResponseWriter, r *http.Request) {
	var req duelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Variant == "" {
		req.Variant = game.VariantStandard
	}

	roomID, err := h.matchmaker.CreateDuel(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"room":    roomID,
		"variant": req.Variant,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
