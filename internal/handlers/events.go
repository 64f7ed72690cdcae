package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

// WorldEventProcessor accepts external events for the simulation,
// typically the sim loop.
type WorldEventProcessor interface {
	ProcessWorldEvent(eventType string, data map[string]any) []conversation.TopicSuggestion
}

// TopicAdmin exposes direct topic control, typically the TopicManager.
type TopicAdmin interface {
	Inject(topic string) bool
	Blacklist(topic string)
}

type WorldEventRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type WorldEventResponse struct {
	Topics []conversation.TopicSuggestion `json:"topics"`
}

type TopicInjectRequest struct {
	Topic string `json:"topic"`
}

type EventsHandler struct {
	processor WorldEventProcessor
	topics    TopicAdmin
	logger    *slog.Logger
}

func NewEventsHandler(processor WorldEventProcessor, topics TopicAdmin, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		processor: processor,
		topics:    topics,
		logger:    logger,
	}
}

// ServeHTTP accepts world events and topic administration requests.
// Routes:
// POST /v1/events                  - Inject a world event
// POST /v1/events/topics           - Inject a topic directly
// DELETE /v1/events/topics/{topic} - Blacklist a topic
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/events"), "/")
	switch {
	case path == "":
		h.handleWorldEvent(w, r)
	case path == "topics" && r.Method == http.MethodPost:
		h.handleInjectTopic(w, r)
	case strings.HasPrefix(path, "topics/") && r.Method == http.MethodDelete:
		h.handleBlacklistTopic(w, strings.TrimPrefix(path, "topics/"))
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *EventsHandler) handleWorldEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}

	var req WorldEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		h.writeError(w, http.StatusBadRequest, "Event type is required")
		return
	}

	suggestions := h.processor.ProcessWorldEvent(req.Type, req.Data)
	h.logger.Info("World event injected", "event_type", req.Type, "topics", len(suggestions))

	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(WorldEventResponse{Topics: suggestions}); err != nil {
		h.logger.Error("Failed to encode event response", "error", err)
	}
}

func (h *EventsHandler) handleInjectTopic(w http.ResponseWriter, r *http.Request) {
	var req TopicInjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		h.writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	if !h.topics.Inject(req.Topic) {
		h.writeError(w, http.StatusConflict, "Topic is blacklisted")
		return
	}
	h.logger.Info("Topic injected", "topic", req.Topic)

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(TopicInjectRequest{Topic: req.Topic}); err != nil {
		h.logger.Error("Failed to encode topic response", "error", err)
	}
}

func (h *EventsHandler) handleBlacklistTopic(w http.ResponseWriter, topic string) {
	if topic == "" {
		h.writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	h.topics.Blacklist(topic)
	h.logger.Info("Topic blacklisted", "topic", topic)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
