package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSuggestionThreshold = 0.3
	DefaultTopicCooldown       = 120 * time.Second
	maxSuggestions             = 5
	injectedRelevance          = 0.9
)

// Relevance base score per world-event category.
var eventBaseRelevance = map[string]float64{
	"weather":   0.8,
	"economy":   0.7,
	"social":    0.9,
	"civic":     0.6,
	"emergency": 1.0,
}

// Per-second relevance decay per topic category.
var categoryDecayRates = map[string]float64{
	"emergency": 0.010,
	"weather":   0.006,
	"social":    0.004,
	"economy":   0.004,
	"civic":     0.005,
	"general":   0.005,
}

// Topics that feel personal in small groups vs. broad crowd topics.
var personalTopics = map[string]bool{
	"family": true, "feelings": true, "memories": true,
	"relationships": true, "dreams": true, "health": true,
}

var broadTopics = map[string]bool{
	"weather": true, "news": true, "town_events": true,
	"economy": true, "festival": true, "harvest": true,
}

// Hardcoded topical affinities, checked both directions.
var topicAffinities = map[string][]string{
	"weather": {"mood", "activities", "comfort"},
	"food":    {"health", "cooking", "harvest"},
	"work":    {"economy", "stress"},
	"family":  {"memories", "relationships"},
}

// The fallback event-to-topic table, used when no asset is configured.
var defaultEventTopics = map[string]map[string][]string{
	"weather": {
		"storm": {"weather", "shelter", "comfort"},
		"clear": {"weather", "activities"},
	},
	"economy": {
		"price_change": {"economy", "trade", "work"},
		"shortage":     {"economy", "food"},
	},
	"social": {
		"festival": {"festival", "food", "music"},
		"argument": {"gossip", "relationships"},
	},
	"civic": {
		"announcement": {"town_events", "news"},
		"construction": {"town_events", "work"},
	},
	"emergency": {
		"fire":  {"emergency", "shelter"},
		"flood": {"emergency", "weather"},
	},
}

// TopicSuggestion is one candidate topic with its adjusted relevance.
type TopicSuggestion struct {
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason,omitempty"`
}

// TopicManager tracks topic relevance process-wide. A single instance
// is shared across all conversation groups; accessors are safe for
// concurrent use.
type TopicManager struct {
	mu          sync.Mutex
	topics      map[string]float64
	categories  map[string]string
	cooldowns   map[string]time.Time
	blacklist   map[string]bool
	eventTopics map[string]map[string][]string

	threshold      float64
	cooldown       time.Duration
	suggestionsLog []TopicSuggestion

	now    func() time.Time
	events *emitter
}

func NewTopicManager() *TopicManager {
	tm := &TopicManager{
		topics:      make(map[string]float64),
		categories:  make(map[string]string),
		cooldowns:   make(map[string]time.Time),
		blacklist:   make(map[string]bool),
		eventTopics: defaultEventTopics,
		threshold:   DefaultSuggestionThreshold,
		cooldown:    DefaultTopicCooldown,
		now:         time.Now,
	}
	tm.events = newEmitter(func() time.Time { return tm.now() })
	return tm
}

// Subscribe registers an observer for topic lifecycle events.
func (tm *TopicManager) Subscribe(fn EventFunc) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.events.subscribe(fn)
}

// LoadEventTopics replaces the event-to-topic table from a JSON asset.
// The file maps event type to subtype to topic list.
func (tm *TopicManager) LoadEventTopics(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read topic table: %w", err)
	}
	var table map[string]map[string][]string
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("failed to unmarshal topic table: %w", err)
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if len(table) > 0 {
		tm.eventTopics = table
	}
	return nil
}

// ProcessWorldEvent maps an external event to topic suggestions and
// folds sufficiently relevant topics into the active set. The data
// payload is treated as opaque apart from well-known hint keys
// ("intensity", "time_of_day").
func (tm *TopicManager) ProcessWorldEvent(eventType string, data map[string]any) []TopicSuggestion {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	subtypes, ok := tm.eventTopics[eventType]
	if !ok {
		return nil
	}
	if sub, ok := data["subtype"].(string); ok {
		if topics, found := subtypes[sub]; found {
			subtypes = map[string][]string{sub: topics}
		}
	}

	var out []TopicSuggestion
	for subtype, topics := range subtypes {
		relevance := tm.eventRelevance(eventType, data)
		if relevance <= tm.threshold {
			continue
		}
		for _, topic := range topics {
			if tm.blacklist[topic] {
				continue
			}
			if relevance > tm.topics[topic] {
				tm.topics[topic] = clampRelevance(relevance)
				tm.categories[topic] = eventCategory(eventType)
			}
			s := TopicSuggestion{
				Topic:     topic,
				Relevance: tm.topics[topic],
				Reason:    fmt.Sprintf("%s/%s", eventType, subtype),
			}
			out = append(out, s)
			tm.suggestionsLog = append(tm.suggestionsLog, s)
			tm.events.emit(Event{
				Type: EventTopicSuggested,
				Data: map[string]any{"topic": topic, "relevance": tm.topics[topic], "reason": s.Reason},
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// eventRelevance computes the base relevance of an event, adjusted
// for stated intensity and time of day. Caller holds the lock.
func (tm *TopicManager) eventRelevance(eventType string, data map[string]any) float64 {
	relevance, ok := eventBaseRelevance[eventType]
	if !ok {
		relevance = 0.5
	}

	switch data["intensity"] {
	case "high":
		relevance *= 1.2
	case "low":
		relevance *= 0.8
	}

	// Nobody discusses the weather while asleep.
	if eventType == "weather" && data["time_of_day"] == "night" {
		relevance *= 0.7
	}

	return clampRelevance(relevance)
}

// SuggestForGroup returns up to five topics for a group, filtered by
// the group's current topic, per-topic cooldowns, and the blacklist,
// with relevance adjusted for group size and topical relatedness.
func (tm *TopicManager) SuggestForGroup(currentTopic string, groupSize int) []TopicSuggestion {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := tm.now()
	var out []TopicSuggestion
	for topic, relevance := range tm.topics {
		if topic == currentTopic || tm.blacklist[topic] {
			continue
		}
		if used, ok := tm.cooldowns[topic]; ok && now.Sub(used) < tm.cooldown {
			continue
		}

		adjusted := relevance
		if groupSize == 2 && personalTopics[topic] {
			adjusted *= 1.2
		}
		if groupSize >= 4 && broadTopics[topic] {
			adjusted *= 1.2
		}
		if currentTopic != "" {
			if topicsRelated(currentTopic, topic) {
				adjusted *= 1.2
			} else {
				adjusted *= 0.8
			}
		}

		out = append(out, TopicSuggestion{Topic: topic, Relevance: clampRelevance(adjusted)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// Decay reduces every active topic's relevance by its category rate
// scaled by elapsed time. Topics reaching zero are removed along with
// their cooldown entries; topics falling below the suggestion
// threshold raise a decay notification without removal.
func (tm *TopicManager) Decay(dt time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	secs := dt.Seconds()
	for topic, relevance := range tm.topics {
		rate, ok := categoryDecayRates[tm.categories[topic]]
		if !ok {
			rate = categoryDecayRates["general"]
		}
		relevance -= rate * secs
		if relevance <= 0 {
			delete(tm.topics, topic)
			delete(tm.categories, topic)
			delete(tm.cooldowns, topic)
			tm.events.emit(Event{Type: EventTopicRemoved, Data: map[string]any{"topic": topic}})
			continue
		}
		tm.topics[topic] = relevance
		if relevance < tm.threshold {
			tm.events.emit(Event{Type: EventTopicDecayed, Data: map[string]any{"topic": topic, "relevance": relevance}})
		}
	}
}

// Inject sets a topic's relevance directly, bypassing the suggestion
// pipeline. Blacklisted topics are refused.
func (tm *TopicManager) Inject(topic string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.blacklist[topic] {
		return false
	}
	tm.topics[topic] = injectedRelevance
	if _, ok := tm.categories[topic]; !ok {
		tm.categories[topic] = "general"
	}
	return true
}

// MarkUsed records that a group adopted the topic, starting its cooldown.
func (tm *TopicManager) MarkUsed(topic string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.cooldowns[topic] = tm.now()
}

// Blacklist prevents a topic from ever being suggested or injected.
func (tm *TopicManager) Blacklist(topic string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.blacklist[topic] = true
	delete(tm.topics, topic)
	delete(tm.categories, topic)
	delete(tm.cooldowns, topic)
}

// Relevance returns the active relevance of a topic, 0 when inactive.
func (tm *TopicManager) Relevance(topic string) float64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.topics[topic]
}

// ActiveTopics returns a snapshot of the active topic set.
func (tm *TopicManager) ActiveTopics() map[string]float64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make(map[string]float64, len(tm.topics))
	for k, v := range tm.topics {
		out[k] = v
	}
	return out
}

func eventCategory(eventType string) string {
	if _, ok := eventBaseRelevance[eventType]; ok {
		return eventType
	}
	return "general"
}

// topicsRelated checks the hardcoded affinity table and falls back to
// shared word-stem overlap.
func topicsRelated(a, b string) bool {
	for _, other := range topicAffinities[a] {
		if other == b {
			return true
		}
	}
	for _, other := range topicAffinities[b] {
		if other == a {
			return true
		}
	}
	for _, wa := range strings.FieldsFunc(a, isTopicSep) {
		for _, wb := range strings.FieldsFunc(b, isTopicSep) {
			if stem(wa) == stem(wb) {
				return true
			}
		}
	}
	return false
}

func isTopicSep(r rune) bool {
	return r == '_' || r == ' ' || r == '-'
}

func stem(w string) string {
	w = strings.ToLower(w)
	if len(w) > 4 {
		w = w[:4]
	}
	return w
}

func clampRelevance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
