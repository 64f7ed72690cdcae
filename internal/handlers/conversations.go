package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationSummary is the wire shape of one active group.
type ConversationSummary struct {
	ID             uuid.UUID                    `json:"id"`
	Participants   []string                     `json:"participants"`
	Topic          string                       `json:"topic,omitempty"`
	CurrentSpeaker string                       `json:"current_speaker,omitempty"`
	Mood           conversation.Mood            `json:"mood"`
	Age            float64                      `json:"age_seconds"`
	Dialogue       []conversation.DialogueEntry `json:"dialogue,omitempty"`
}

type StartConversationRequest struct {
	Actors []string `json:"actors"`
	Topic  string   `json:"topic,omitempty"`
}

type MergeConversationsRequest struct {
	With uuid.UUID `json:"with"`
}

type ParticipantRequest struct {
	Actor string `json:"actor"`
}

type ConversationHandler struct {
	controller *conversation.Controller
	logger     *slog.Logger
}

func NewConversationHandler(controller *conversation.Controller, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		controller: controller,
		logger:     logger,
	}
}

// ServeHTTP handles conversation lifecycle requests.
// Routes:
// GET /v1/conversations                        - List active conversations
// POST /v1/conversations                       - Start a conversation
// GET /v1/conversations/{id}                   - Read one conversation
// DELETE /v1/conversations/{id}                - End a conversation
// POST /v1/conversations/{id}/merge            - Merge another conversation into this one
// POST /v1/conversations/{id}/participants     - Add a participant
// DELETE /v1/conversations/{id}/participants   - Remove a participant (?actor=)
func (h *ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/conversations"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w)
		case http.MethodPost:
			h.handleStart(w, r)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, POST")
		}
		return
	}

	parts := strings.Split(path, "/")
	groupID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid conversation ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid conversation ID format")
		return
	}

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleRead(w, groupID)
	case sub == "" && r.Method == http.MethodDelete:
		h.handleEnd(w, groupID)
	case sub == "merge" && r.Method == http.MethodPost:
		h.handleMerge(w, r, groupID)
	case sub == "participants" && r.Method == http.MethodPost:
		h.handleAddParticipant(w, r, groupID)
	case sub == "participants" && r.Method == http.MethodDelete:
		h.handleRemoveParticipant(w, r, groupID)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ConversationHandler) handleList(w http.ResponseWriter) {
	snaps := h.controller.Snapshots()
	summaries := make([]ConversationSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, summarize(snap))
	}
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.logger.Error("Failed to encode conversation list", "error", err)
	}
}

func (h *ConversationHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	groupID, err := h.controller.StartConversation(req.Actors, req.Topic)
	if err != nil {
		h.logger.Warn("Failed to start conversation", "error", err, "actors", req.Actors)
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	snap, _ := h.controller.Snapshot(groupID, dialogueWindow)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(summarize(snap)); err != nil {
		h.logger.Error("Failed to encode conversation", "error", err)
	}
}

func (h *ConversationHandler) handleRead(w http.ResponseWriter, groupID uuid.UUID) {
	snap, ok := h.controller.Snapshot(groupID, dialogueWindow)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err := json.NewEncoder(w).Encode(summarize(snap)); err != nil {
		h.logger.Error("Failed to encode conversation", "error", err)
	}
}

func (h *ConversationHandler) handleEnd(w http.ResponseWriter, groupID uuid.UUID) {
	if err := h.controller.EndConversation(groupID, "external_request"); err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) handleMerge(w http.ResponseWriter, r *http.Request, groupID uuid.UUID) {
	var req MergeConversationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mergedID, err := h.controller.MergeGroups(groupID, req.With)
	if err != nil {
		h.logger.Warn("Failed to merge conversations", "error", err, "a", groupID, "b", req.With)
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	snap, _ := h.controller.Snapshot(mergedID, 0)
	if err := json.NewEncoder(w).Encode(summarize(snap)); err != nil {
		h.logger.Error("Failed to encode merged conversation", "error", err)
	}
}

func (h *ConversationHandler) handleAddParticipant(w http.ResponseWriter, r *http.Request, groupID uuid.UUID) {
	var req ParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Actor == "" {
		h.writeError(w, http.StatusBadRequest, "Actor is required")
		return
	}

	if err := h.controller.AddParticipant(groupID, req.Actor); err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request, groupID uuid.UUID) {
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		h.writeError(w, http.StatusBadRequest, "Actor query parameter is required")
		return
	}

	if err := h.controller.RemoveParticipant(groupID, actor, "external_request"); err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}

// dialogueWindow is how many recent lines single-conversation reads
// include.
const dialogueWindow = 20

func summarize(snap conversation.GroupSnapshot) ConversationSummary {
	return ConversationSummary{
		ID:             snap.ID,
		Participants:   snap.Participants,
		Topic:          snap.Topic,
		CurrentSpeaker: snap.CurrentSpeaker,
		Mood:           snap.Mood,
		Age:            snap.Age.Round(time.Millisecond).Seconds(),
		Dialogue:       snap.Dialogue,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, conversation.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrActorBusy),
		errors.Is(err, conversation.ErrGroupFull),
		errors.Is(err, conversation.ErrTooManyGroups):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrInsufficientActors),
		errors.Is(err, conversation.ErrNotParticipant):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
