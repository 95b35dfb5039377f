// Package handler exposes the meeting hub over HTTP: the authenticated WebSocket upgrade
// and a few read-only JSON endpoints.
package handler

import (
	"context"
	"net/http"

	"meetsync/backend/internal/chathub"
	"meetsync/backend/internal/models"
	"meetsync/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Authenticator перетворює bearer-токен на ідентичність зʼєднання.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

// Options налаштовують транспортну частину хендлера.
type Options struct {
	AllowedOrigins []string
	Client         chathub.ClientOptions
}

type Handler struct {
	Hub     *chathub.ManagerService
	Auth    Authenticator
	Storage storage.Storage

	upgrader   websocket.Upgrader
	clientOpts chathub.ClientOptions
	log        zerolog.Logger
}

func NewHandler(hub *chathub.ManagerService, authn Authenticator, s storage.Storage, opts Options, log zerolog.Logger) *Handler {
	h := &Handler{
		Hub:        hub,
		Auth:       authn,
		Storage:    s,
		clientOpts: opts.Client,
		log:        log.With().Str("component", "http").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// Register реєструє всі роути на r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/ws", h.RequireAuth(), h.ServeWebSocket)

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/ice-servers", h.ICEServers)
	api.GET("/stats", h.Stats)
	api.GET("/meetings/:id/presence", h.RequireAuth(), h.MeetingPresence)
}

// originChecker пропускає запити без заголовка Origin (не браузерні клієнти) і браузери
// з дозволеного списку. "*" дозволяє все.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
