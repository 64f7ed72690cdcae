package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTopicManager(clock *fakeClock) *TopicManager {
	tm := NewTopicManager()
	tm.now = clock.Now
	return tm
}

func TestTopics_ProcessWorldEvent(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)

	suggestions := tm.ProcessWorldEvent("weather", map[string]any{"subtype": "storm"})
	require.NotEmpty(t, suggestions)

	assert.InDelta(t, 0.8, tm.Relevance("weather"), 0.001)
	assert.InDelta(t, 0.8, tm.Relevance("shelter"), 0.001)
}

func TestTopics_UnknownEventIgnored(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)

	assert.Empty(t, tm.ProcessWorldEvent("meteor_shower", nil))
	assert.Empty(t, tm.ActiveTopics())
}

func TestTopics_EventIntensity(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want float64
	}{
		{name: "baseline", data: map[string]any{"subtype": "price_change"}, want: 0.7},
		{name: "high intensity", data: map[string]any{"subtype": "price_change", "intensity": "high"}, want: 0.84},
		{name: "low intensity", data: map[string]any{"subtype": "price_change", "intensity": "low"}, want: 0.56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			tm := newTestTopicManager(clock)
			tm.ProcessWorldEvent("economy", tt.data)
			assert.InDelta(t, tt.want, tm.Relevance("economy"), 0.001)
		})
	}
}

func TestTopics_WeatherMutedAtNight(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)

	tm.ProcessWorldEvent("weather", map[string]any{"subtype": "storm", "time_of_day": "night"})
	assert.InDelta(t, 0.8*0.7, tm.Relevance("weather"), 0.001)
}

func TestTopics_DecayMonotonicToRemoval(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	tm.ProcessWorldEvent("weather", map[string]any{"subtype": "storm"})

	var removed []string
	tm.Subscribe(func(evt Event) {
		if evt.Type == EventTopicRemoved {
			removed = append(removed, evt.Data["topic"].(string))
		}
	})

	prev := tm.Relevance("weather")
	for i := 0; i < 20; i++ {
		tm.Decay(10 * time.Second)
		cur := tm.Relevance("weather")
		assert.LessOrEqual(t, cur, prev, "relevance never rises during decay")
		prev = cur
	}

	assert.Zero(t, tm.Relevance("weather"))
	assert.Contains(t, removed, "weather")
	assert.Empty(t, tm.ActiveTopics())
}

func TestTopics_DecayNotificationBelowThreshold(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	tm.ProcessWorldEvent("weather", map[string]any{"subtype": "storm"})

	var decayed bool
	tm.Subscribe(func(evt Event) {
		if evt.Type == EventTopicDecayed && evt.Data["topic"] == "weather" {
			decayed = true
		}
	})

	// 0.8 - 0.006*90 = 0.26, below the 0.3 threshold but above zero.
	tm.Decay(90 * time.Second)
	assert.True(t, decayed)
	assert.Greater(t, tm.Relevance("weather"), 0.0)
}

func TestTopics_SuggestFiltersCurrentAndCooldown(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	tm.Inject("weather")
	tm.Inject("harvest")
	tm.Inject("gossip")

	suggestions := tm.SuggestForGroup("weather", 3)
	for _, s := range suggestions {
		assert.NotEqual(t, "weather", s.Topic, "the current topic is never suggested back")
	}

	tm.MarkUsed("harvest")
	suggestions = tm.SuggestForGroup("weather", 3)
	for _, s := range suggestions {
		assert.NotEqual(t, "harvest", s.Topic, "recently used topics are on cooldown")
	}

	// Cooldown expires.
	clock.Advance(121 * time.Second)
	suggestions = tm.SuggestForGroup("weather", 3)
	topics := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		topics = append(topics, s.Topic)
	}
	assert.Contains(t, topics, "harvest")
}

func TestTopics_SuggestGroupSizeBoosts(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	tm.Inject("family")      // personal
	tm.Inject("town_events") // broad

	duo := tm.SuggestForGroup("", 2)
	require.NotEmpty(t, duo)
	assert.Equal(t, "family", duo[0].Topic, "personal topics lead in duos")

	crowd := tm.SuggestForGroup("", 4)
	require.NotEmpty(t, crowd)
	assert.Equal(t, "town_events", crowd[0].Topic, "broad topics lead in crowds")
}

func TestTopics_SuggestRelatednessBoost(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	tm.Inject("comfort") // related to weather via the affinity table
	tm.Inject("gossip")

	suggestions := tm.SuggestForGroup("weather", 3)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "comfort", suggestions[0].Topic)
	assert.Greater(t, suggestions[0].Relevance, suggestions[1].Relevance)
}

func TestTopics_SuggestionCap(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)
	for _, topic := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		tm.Inject(topic)
	}

	assert.Len(t, tm.SuggestForGroup("", 3), maxSuggestions)
}

func TestTopics_InjectAndBlacklist(t *testing.T) {
	clock := newFakeClock()
	tm := newTestTopicManager(clock)

	require.True(t, tm.Inject("festival"))
	assert.InDelta(t, injectedRelevance, tm.Relevance("festival"), 0.001)

	tm.Blacklist("festival")
	assert.Zero(t, tm.Relevance("festival"))
	assert.False(t, tm.Inject("festival"), "blacklisted topics cannot be injected")

	tm.Blacklist("politics")
	tm.ProcessWorldEvent("civic", map[string]any{"subtype": "announcement"})
	for _, s := range tm.SuggestForGroup("", 3) {
		assert.NotEqual(t, "politics", s.Topic)
	}
}

func TestTopics_Related(t *testing.T) {
	assert.True(t, topicsRelated("weather", "comfort"), "affinity table, forward")
	assert.True(t, topicsRelated("comfort", "weather"), "affinity table, reverse")
	assert.True(t, topicsRelated("harvest_festival", "harvest"), "shared stem")
	assert.False(t, topicsRelated("gossip", "economy"))
}
