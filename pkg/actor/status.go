package actor

import "time"

const (
	// Fatigue accumulated per second while holding a conversation.
	fatigueRiseRate = 0.002
	// Fatigue recovered per second while idle.
	fatigueRecoveryRate = 0.004
	// Mood drifts back toward neutral at this rate per second.
	moodDriftRate = 0.001
)

// Status tracks transient per-actor state that other systems query
// but never mutate directly: social fatigue and mood valence.
type Status struct {
	SocialFatigue float64 `json:"social_fatigue"` // 0 (rested) .. 1 (worn out)
	Mood          float64 `json:"mood"`           // -1 (miserable) .. 1 (elated)
}

// Tick advances fatigue and mood by elapsed time. Fatigue rises while
// the actor is in a conversation and recovers otherwise.
func (s *Status) Tick(dt time.Duration, inConversation bool) {
	secs := dt.Seconds()
	if inConversation {
		s.SocialFatigue = clamp01(s.SocialFatigue + fatigueRiseRate*secs)
	} else {
		s.SocialFatigue = clamp01(s.SocialFatigue - fatigueRecoveryRate*secs)
	}

	// Mood decays toward neutral.
	drift := moodDriftRate * secs
	switch {
	case s.Mood > drift:
		s.Mood -= drift
	case s.Mood < -drift:
		s.Mood += drift
	default:
		s.Mood = 0
	}
}

// AdjustMood shifts mood valence, clamped to [-1,1].
func (s *Status) AdjustMood(delta float64) {
	s.Mood += delta
	if s.Mood > 1 {
		s.Mood = 1
	}
	if s.Mood < -1 {
		s.Mood = -1
	}
}
