package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

func testRegistry(t *testing.T) *actor.Registry {
	t.Helper()
	registry := actor.NewRegistry()
	for _, spec := range []*actor.NPCSpec{
		{ID: "alice", Name: "Alice", Location: "market"},
		{ID: "bob", Name: "Bob", Location: "tavern"},
	} {
		npc, err := actor.NewNPCFromSpec(spec)
		require.NoError(t, err)
		registry.Add(npc)
	}
	return registry
}

func TestActorHandler_List(t *testing.T) {
	handler := NewActorHandler(testRegistry(t), testController(), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/actors", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []ActorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)

	ids := []string{summaries[0].ID, summaries[1].ID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)
}

func TestActorHandler_ReadWithConversation(t *testing.T) {
	registry := testRegistry(t)
	ctrl := testController()
	gid := startTestConversation(t, ctrl, "alice", "bob")
	handler := NewActorHandler(registry, ctrl, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/actors/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.ID)
	assert.Equal(t, "Alice", resp.Name)
	assert.Equal(t, gid.String(), resp.ConversationID)
}

func TestActorHandler_ReadUnknown(t *testing.T) {
	handler := NewActorHandler(testRegistry(t), testController(), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/actors/nobody", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActorHandler_Spawn(t *testing.T) {
	registry := testRegistry(t)
	handler := NewActorHandler(registry, testController(), testLogger())

	body := strings.NewReader(`{"id":"carol","name":"Carol","location":"market","traits":{"extroversion":14}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/actors", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ActorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "carol", resp.ID)
	assert.Equal(t, "market", resp.Location)

	npc, ok := registry.Get("carol")
	require.True(t, ok)
	assert.Equal(t, 14, npc.Trait(actor.TraitExtroversion))
}

func TestActorHandler_SpawnDuplicate(t *testing.T) {
	handler := NewActorHandler(testRegistry(t), testController(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/actors", strings.NewReader(`{"id":"alice"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActorHandler_SpawnMissingID(t *testing.T) {
	handler := NewActorHandler(testRegistry(t), testController(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/actors", strings.NewReader(`{"name":"Nameless"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActorHandler_MethodNotAllowed(t *testing.T) {
	handler := NewActorHandler(testRegistry(t), testController(), testLogger())
	req := httptest.NewRequest(http.MethodDelete, "/v1/actors", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
