package actor

import (
	"encoding/json"
	"fmt"
	"os"
)

// An Action is one entry of the action table: something an NPC can do
// to satisfy a need. Outcome is decided by an attribute roll against
// Difficulty when the action completes.
type Action struct {
	Name       string  `json:"name"`
	Satisfies  string  `json:"satisfies"`        // need name
	Duration   float64 `json:"duration_seconds"` // how long the action takes
	Gain       float64 `json:"gain"`             // need recovered on success
	Difficulty int     `json:"difficulty"`       // roll target, 5e-style DC
	Attribute  string  `json:"attribute"`        // trait used for the roll
}

// The built-in table, used when no asset file is configured.
var defaultActionTable = []Action{
	{Name: "eat_meal", Satisfies: NeedHunger, Duration: 60, Gain: 0.6, Difficulty: 5, Attribute: TraitWits},
	{Name: "take_nap", Satisfies: NeedEnergy, Duration: 180, Gain: 0.5, Difficulty: 5, Attribute: TraitWits},
	{Name: "play_cards", Satisfies: NeedFun, Duration: 120, Gain: 0.4, Difficulty: 10, Attribute: TraitWits},
	{Name: "people_watch", Satisfies: NeedSocial, Duration: 90, Gain: 0.2, Difficulty: 8, Attribute: TraitEmpathy},
	{Name: "tell_story", Satisfies: NeedFun, Duration: 90, Gain: 0.35, Difficulty: 12, Attribute: TraitCharisma},
}

// LoadActionTable reads an action table from a JSON asset file.
// An empty path returns the built-in defaults.
func LoadActionTable(path string) ([]Action, error) {
	if path == "" {
		return defaultActionTable, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action table: %w", err)
	}
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action table: %w", err)
	}
	if len(actions) == 0 {
		return defaultActionTable, nil
	}
	return actions, nil
}

// Planner picks the next action for an NPC based on its needs.
type Planner struct {
	actions   []Action
	threshold float64 // needs above this level are not worth acting on
}

func NewPlanner(actions []Action) *Planner {
	if len(actions) == 0 {
		actions = defaultActionTable
	}
	return &Planner{
		actions:   actions,
		threshold: 0.6,
	}
}

// Plan returns the best action for the actor's most urgent need,
// or false when every need is comfortable.
func (p *Planner) Plan(needs *Needs) (Action, bool) {
	need, level := needs.Lowest()
	if level >= p.threshold {
		return Action{}, false
	}

	best := -1
	for i, a := range p.actions {
		if a.Satisfies != need {
			continue
		}
		if best < 0 || a.Gain > p.actions[best].Gain {
			best = i
		}
	}
	if best < 0 {
		return Action{}, false
	}
	return p.actions[best], true
}
