package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chat-relay/errors"
	"chat-relay/services"
)

const (
	maxUploadBytes     = 32 << 20
	defaultSearchLimit = 20
)

type Handler struct {
	log  *slog.Logger
	chat *services.ChatService
}

func NewHandler(log *slog.Logger, chat *services.ChatService) *Handler {
	return &Handler{log: log, chat: chat}
}

type directHistoryRequest struct {
	ID string `json:"id"`
}

// DirectHistory returns the caller's thread with one counterpart, oldest
// first.
func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	var req directHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "missing counterpart id", http.StatusBadRequest)
		return
	}

	history, err := h.chat.DirectHistory(UserID(r), req.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, history)
}

// ChannelHistory returns a channel's messages to one of its members.
func (h *Handler) ChannelHistory(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channelId"]

	history, err := h.chat.ChannelHistory(channelID, UserID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, history)
}

// Contacts lists direct-thread counterparts, most recent first.
func (h *Handler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.chat.Contacts(UserID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, contacts)
}

type createChannelRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// CreateChannel creates a channel administered by the caller.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "missing channel name", http.StatusBadRequest)
		return
	}

	channel, err := h.chat.CreateChannel(req.Name, UserID(r), req.Members)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, channel)
}

// UserChannels lists the caller's channels, most recently updated first.
func (h *Handler) UserChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.chat.UserChannels(UserID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, channels)
}

// Upload materializes a multipart attachment and returns the opaque path a
// later send-message references.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "malformed multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	stored, err := h.chat.SaveAttachment(header.Filename, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, stored)
}

// Search runs a full-text query over message bodies, optionally restricted
// to one thread scope.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	terms := r.URL.Query().Get("q")
	if terms == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	hits, err := h.chat.Search(r.Context(), terms, r.URL.Query().Get("scope"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, hits)
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.WireKind(err) {
	case errors.KindValidation:
		status = http.StatusBadRequest
	case errors.KindForbidden:
		status = http.StatusForbidden
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
