package actor

import "time"

// Need names used by the planner and the action table.
const (
	NeedSocial = "social"
	NeedEnergy = "energy"
	NeedHunger = "hunger"
	NeedFun    = "fun"
)

// Needs tracks the fulfillment level of each need.
// All values range from 0.0 (completely unmet) to 1.0 (fully satisfied)
// and decay toward 0 over time at per-need rates.
type Needs struct {
	Social float64 `json:"social"`
	Energy float64 `json:"energy"`
	Hunger float64 `json:"hunger"`
	Fun    float64 `json:"fun"`
}

// Per-second decay rates. Social decays fastest: idle NPCs
// should seek conversation before they seek anything else.
var needDecayRates = map[string]float64{
	NeedSocial: 0.004,
	NeedEnergy: 0.002,
	NeedHunger: 0.003,
	NeedFun:    0.0025,
}

// DefaultNeeds returns a mostly-satisfied starting state.
func DefaultNeeds() Needs {
	return Needs{
		Social: 0.8,
		Energy: 0.9,
		Hunger: 0.9,
		Fun:    0.8,
	}
}

// Decay reduces every need by its rate scaled by elapsed time.
func (n *Needs) Decay(dt time.Duration) {
	secs := dt.Seconds()
	n.Social = clamp01(n.Social - needDecayRates[NeedSocial]*secs)
	n.Energy = clamp01(n.Energy - needDecayRates[NeedEnergy]*secs)
	n.Hunger = clamp01(n.Hunger - needDecayRates[NeedHunger]*secs)
	n.Fun = clamp01(n.Fun - needDecayRates[NeedFun]*secs)
}

// Satisfy raises a need by amt, clamped to [0,1].
func (n *Needs) Satisfy(need string, amt float64) {
	switch need {
	case NeedSocial:
		n.Social = clamp01(n.Social + amt)
	case NeedEnergy:
		n.Energy = clamp01(n.Energy + amt)
	case NeedHunger:
		n.Hunger = clamp01(n.Hunger + amt)
	case NeedFun:
		n.Fun = clamp01(n.Fun + amt)
	}
}

// Level returns the current value of a named need.
func (n *Needs) Level(need string) float64 {
	switch need {
	case NeedSocial:
		return n.Social
	case NeedEnergy:
		return n.Energy
	case NeedHunger:
		return n.Hunger
	case NeedFun:
		return n.Fun
	}
	return 0
}

// Lowest returns the least satisfied need and its level.
func (n *Needs) Lowest() (string, float64) {
	lowest, level := NeedSocial, n.Social
	for _, need := range []string{NeedEnergy, NeedHunger, NeedFun} {
		if v := n.Level(need); v < level {
			lowest, level = need, v
		}
	}
	return lowest, level
}

// SocialDrive is how strongly the actor wants conversation right now.
func (n *Needs) SocialDrive() float64 {
	return clamp01(1 - n.Social)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
