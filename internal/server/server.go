// Package server provides HTTP server initialization and lifecycle
// management for the avatar backend.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/civiclens/avatar/internal/config"
	"github.com/civiclens/avatar/internal/engine"
	"github.com/civiclens/avatar/internal/personality"
	"github.com/civiclens/avatar/web/handlers"
)

// Start initializes and starts the HTTP server. Returns the actual
// address being listened on (useful for testing with port 0) and the
// WebSocketHub broadcasting answer events. The server shuts down
// gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, registry *personality.Registry, pool *engine.SessionPool) (string, *handlers.WebSocketHub) {
	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	api := handlers.NewAPIHandlers(registry, pool)
	api.SetHub(wsHub)

	// Personality and conversation routes, auth-gated in production mode.
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /personalities", api.ListPersonalities)
	apiMux.HandleFunc("GET /personalities/{id}", api.GetPersonality)
	apiMux.HandleFunc("POST /personalities/{id}/ask", api.Ask)
	apiMux.HandleFunc("POST /personalities/{id}/reset", api.Reset)
	apiMux.HandleFunc("POST /ask", api.AskDefault)
	apiMux.HandleFunc("POST /reset", api.ResetDefault)

	mux := http.NewServeMux()
	mux.Handle("/personalities", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/personalities/", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/ask", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/reset", handlers.RequireAuth(apiMux, cfg))

	// Health endpoint is unauthenticated for monitoring.
	mux.HandleFunc("GET /health", api.Health)

	// WebSocket endpoint; origin validation handles access control.
	mux.Handle("/ws", wsHub)

	// Rate limiting wraps everything, then security headers.
	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub
}
