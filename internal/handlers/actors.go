package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/actor"
	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

// ActorSummary is the wire shape of one NPC.
type ActorSummary struct {
	ID             string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	Location       string         `json:"location,omitempty"`
	Needs          actor.Needs    `json:"needs"`
	SocialFatigue  float64        `json:"social_fatigue"`
	Mood           float64        `json:"mood"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Memories       []actor.Memory `json:"memories,omitempty"`
}

type ActorHandler struct {
	registry   *actor.Registry
	controller *conversation.Controller
	logger     *slog.Logger
}

func NewActorHandler(registry *actor.Registry, controller *conversation.Controller, logger *slog.Logger) *ActorHandler {
	return &ActorHandler{
		registry:   registry,
		controller: controller,
		logger:     logger,
	}
}

// ServeHTTP exposes NPC state and actor spawning.
// Routes:
// GET /v1/actors       - List all actors
// POST /v1/actors      - Spawn an actor from an NPC spec
// GET /v1/actors/{id}  - Read one actor with recent memories
func (h *ActorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actors"), "/")
	switch {
	case id == "" && r.Method == http.MethodGet:
		h.handleList(w)
	case id == "" && r.Method == http.MethodPost:
		h.handleSpawn(w, r)
	case id != "" && r.Method == http.MethodGet:
		h.handleRead(w, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed. Supported methods: GET, POST"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
	}
}

func (h *ActorHandler) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var spec actor.NPCSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil || spec.ID == "" {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Actor spec with an id is required"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	if _, exists := h.registry.Get(spec.ID); exists {
		w.WriteHeader(http.StatusConflict)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Actor already exists"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}

	npc, err := actor.NewNPCFromSpec(&spec)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	h.registry.Add(npc)
	h.logger.Info("Actor spawned", "actor", spec.ID, "location", spec.Location)

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(h.summarize(npc, false)); err != nil {
		h.logger.Error("Failed to encode actor", "error", err)
	}
}

func (h *ActorHandler) handleList(w http.ResponseWriter) {
	ids := h.registry.IDs()
	summaries := make([]ActorSummary, 0, len(ids))
	for _, id := range ids {
		npc, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		summaries = append(summaries, h.summarize(npc, false))
	}
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.logger.Error("Failed to encode actor list", "error", err)
	}
}

func (h *ActorHandler) handleRead(w http.ResponseWriter, id string) {
	npc, ok := h.registry.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Actor not found"}); err != nil {
			h.logger.Error("Failed to encode error response", "error", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(h.summarize(npc, true)); err != nil {
		h.logger.Error("Failed to encode actor", "error", err)
	}
}

func (h *ActorHandler) summarize(npc *actor.NPC, withMemories bool) ActorSummary {
	s := ActorSummary{
		ID:            npc.Spec.ID,
		Name:          npc.Spec.Name,
		Location:      npc.Spec.Location,
		Needs:         npc.Needs,
		SocialFatigue: npc.Status.SocialFatigue,
		Mood:          npc.Status.Mood,
	}
	if gid, ok := h.controller.GroupOf(npc.Spec.ID); ok {
		s.ConversationID = gid.String()
	}
	if withMemories {
		s.Memories = npc.Memory.Recent(10)
	}
	return s
}
