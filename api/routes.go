package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"chat-relay/auth"
)

// NewRouter wires the REST surface plus the websocket endpoint under one
// mux. Everything under /api and /ws requires a valid token; /ws does its
// own verification because browser websocket clients cannot send headers.
func NewRouter(log *slog.Logger, handler *Handler, wsHandler http.Handler,
	verifier *auth.TokenVerifier, allowedOrigin string) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(log))
	router.Use(CORSMiddleware(allowedOrigin))

	router.Handle("/ws", wsHandler)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(verifier))
	protected.HandleFunc("/messages/direct", handler.DirectHistory).Methods(http.MethodPost)
	protected.HandleFunc("/messages/search", handler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/channel/{channelId}/messages", handler.ChannelHistory).Methods(http.MethodGet)
	protected.HandleFunc("/channel", handler.CreateChannel).Methods(http.MethodPost)
	protected.HandleFunc("/channels", handler.UserChannels).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/direct", handler.Contacts).Methods(http.MethodGet)
	protected.HandleFunc("/files", handler.Upload).Methods(http.MethodPost)

	return router
}
