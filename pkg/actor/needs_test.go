package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNeeds_Decay(t *testing.T) {
	n := Needs{Social: 0.5, Energy: 0.5, Hunger: 0.5, Fun: 0.5}
	n.Decay(100 * time.Second)

	assert.InDelta(t, 0.1, n.Social, 0.001)
	assert.InDelta(t, 0.3, n.Energy, 0.001)
	assert.InDelta(t, 0.2, n.Hunger, 0.001)
	assert.InDelta(t, 0.25, n.Fun, 0.001)
}

func TestNeeds_DecayClampsAtZero(t *testing.T) {
	n := Needs{Social: 0.1}
	n.Decay(time.Hour)

	assert.Zero(t, n.Social)
	assert.Zero(t, n.Energy)
}

func TestNeeds_SatisfyClamps(t *testing.T) {
	n := Needs{Hunger: 0.8}
	n.Satisfy(NeedHunger, 0.6)
	assert.Equal(t, 1.0, n.Hunger)

	n.Satisfy("unknown", 0.5)
	assert.Equal(t, 1.0, n.Hunger, "unknown needs are ignored")
}

func TestNeeds_Lowest(t *testing.T) {
	n := Needs{Social: 0.6, Energy: 0.2, Hunger: 0.9, Fun: 0.5}
	need, level := n.Lowest()
	assert.Equal(t, NeedEnergy, need)
	assert.InDelta(t, 0.2, level, 0.001)
}

func TestNeeds_SocialDrive(t *testing.T) {
	n := Needs{Social: 0.3}
	assert.InDelta(t, 0.7, n.SocialDrive(), 0.001)

	n.Social = 1
	assert.Zero(t, n.SocialDrive())
}
