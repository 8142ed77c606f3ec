// Package world describes the read-only observations a script sees each frame.
package world

import (
	"math"

	"github.com/overmark/overmark/pkg/core"
)

// Status is a timed status effect on an actor.
type Status struct {
	ID uint32 `json:"id"`
	// Remaining is the time left in seconds.
	Remaining float32 `json:"remaining"`
}

// Actor is one observed world object.
type Actor struct {
	ID           uint64       `json:"id"`
	Name         string       `json:"name"`
	DataID       uint32       `json:"dataId"`
	ModelID      uint32       `json:"modelId"`
	Position     core.Vector3 `json:"position"`
	Rotation     float32      `json:"rotation"` // radians
	Statuses     []Status     `json:"statuses"`
	CastActionID uint32       `json:"castActionId"`
}

// HasEffect reports whether the actor carries the status. A nil actor has none.
func (a *Actor) HasEffect(id uint32) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Statuses {
		if s.ID == id {
			return true
		}
	}
	return false
}

// HasEffectWithin reports whether the actor carries the status with a
// remaining time in [min, max].
func (a *Actor) HasEffectWithin(id uint32, min, max float32) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Statuses {
		if s.ID == id && s.Remaining >= min && s.Remaining <= max {
			return true
		}
	}
	return false
}

// View is the per-frame world observation surface.
type View interface {
	// Territory identifies the current world context.
	Territory() uint32
	// Scene is the current sub-phase of the territory.
	Scene() int
	// Player is the local player; nil when not loaded.
	Player() *Actor
	// Party lists the party members, the player included.
	Party() []*Actor
	// Objects lists every observed actor.
	Objects() []*Actor
}

// FindObject returns the first object matching pred, or nil.
func FindObject(v View, pred func(*Actor) bool) *Actor {
	if v == nil {
		return nil
	}
	for _, a := range v.Objects() {
		if a != nil && pred(a) {
			return a
		}
	}
	return nil
}

// FilterObjects returns every object matching pred.
func FilterObjects(v View, pred func(*Actor) bool) []*Actor {
	if v == nil {
		return nil
	}
	var out []*Actor
	for _, a := range v.Objects() {
		if a != nil && pred(a) {
			out = append(out, a)
		}
	}
	return out
}

// AnyInParty reports whether any party member matches pred.
func AnyInParty(v View, pred func(*Actor) bool) bool {
	if v == nil {
		return false
	}
	for _, a := range v.Party() {
		if a != nil && pred(a) {
			return true
		}
	}
	return false
}

// RelativeAngle returns the bearing in degrees [0, 360) from origin to target
// on the horizontal plane.
func RelativeAngle(origin, target core.Vector3) float32 {
	deg := math.Atan2(float64(target.X-origin.X), float64(target.Z-origin.Z)) * 180 / math.Pi
	return float32(math.Mod(deg+360, 360))
}

// AngleRelativeToObject returns the angle of target as seen from source's
// facing, in degrees [0, 360). invert measures from source's back instead.
func AngleRelativeToObject(source, target *Actor, invert bool) float32 {
	if source == nil || target == nil {
		return 0
	}
	angle := float64(RelativeAngle(source.Position, target.Position))
	rot := float64(source.Rotation) * 180 / math.Pi
	offset := 360.0
	if invert {
		offset += 180
	}
	return float32(math.Mod(math.Mod(angle-rot+offset, 360)+360, 360))
}
