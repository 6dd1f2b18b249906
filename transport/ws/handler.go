package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/sink"
)

// Handler upgrades authenticated HTTP requests into live connections.
// Authentication happens before the upgrade: an invalid token costs a 401,
// never a registered connection.
type Handler struct {
	log         *slog.Logger
	verifier    *auth.TokenVerifier
	coordinator *runtime.Coordinator
	chat        *services.ChatService
	upgrader    websocket.Upgrader
	bufferSize  int
	sinkTimeout time.Duration
	maxFrame    int64
}

func NewHandler(log *slog.Logger, verifier *auth.TokenVerifier,
	coordinator *runtime.Coordinator, chat *services.ChatService,
	allowedOrigin string, bufferSize int, sinkTimeout time.Duration,
	maxFrame int64) *Handler {
	return &Handler{
		log:         log,
		verifier:    verifier,
		coordinator: coordinator,
		chat:        chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		bufferSize:  bufferSize,
		sinkTimeout: sinkTimeout,
		maxFrame:    maxFrame,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Verify(tokenFrom(r))
	if err != nil {
		h.log.Warn("Rejected connection attempt", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := h.coordinator.Begin()
	if err := h.coordinator.Authenticate(session, claims.UserID); err != nil {
		h.log.Error("Failed to authenticate session", "user_id", claims.UserID, "error", err)
		_ = conn.Close()
		return
	}

	connSink := sink.NewConnSink(h.bufferSize, h.sinkTimeout)
	if err := h.coordinator.Activate(session, connSink); err != nil {
		h.log.Error("Failed to activate session", "user_id", claims.UserID, "error", err)
		_ = conn.Close()
		return
	}

	client := &Client{
		log:         h.log,
		conn:        conn,
		session:     session,
		coordinator: h.coordinator,
		chat:        h.chat,
		sink:        connSink,
		userID:      claims.UserID,
		maxFrame:    h.maxFrame,
	}

	// The request context dies when ServeHTTP returns; the hijacked
	// connection outlives it.
	go client.writePump()
	go client.readPump(context.Background())
}

// tokenFrom accepts the token as ?token= (browser websocket clients cannot
// set headers) or as a bearer header.
func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ")
}

func originChecker(allowedOrigin string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if allowedOrigin == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		// Non-browser clients send no origin.
		return origin == "" || origin == allowedOrigin
	}
}
