package omega

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmark/overmark/internal/engine"
	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/world"
	"github.com/overmark/overmark/pkg/core"
)

const playerID = 1

func withEffect(a *world.Actor, ids ...uint32) *world.Actor {
	for _, id := range ids {
		a.Statuses = append(a.Statuses, world.Status{ID: id, Remaining: 10})
	}
	return a
}

// deltaWorld builds the mechanic scene. Seen from behind the beetle the
// blue-tethered members sort as 3, 4, player, 2, so the player's partner is 2.
func deltaWorld(effects ...uint32) *world.Snapshot {
	party := []*world.Actor{
		withEffect(&world.Actor{ID: playerID, Name: "Player", Position: core.Vector3{X: 100, Z: 90}}, effects...),
		withEffect(&world.Actor{ID: 2, Position: core.Vector3{X: 110, Z: 80}}, effects...),
		withEffect(&world.Actor{ID: 3, Position: core.Vector3{X: 100, Z: 70}}, effects...),
		withEffect(&world.Actor{ID: 4, Position: core.Vector3{X: 90, Z: 80}}, effects...),
		{ID: 5, Position: core.Vector3{X: 120, Z: 120}},
		{ID: 6, Position: core.Vector3{X: 80, Z: 120}},
		{ID: 7, Position: core.Vector3{X: 120, Z: 80}},
		{ID: 8, Position: core.Vector3{X: 80, Z: 80}},
	}
	s := &world.Snapshot{
		TerritoryID: territoryOmegaProtocol,
		SceneID:     sceneDynamisDelta,
		PlayerID:    playerID,
		Actors: append(party,
			&world.Actor{ID: 100, ModelID: modelBeetle, Position: core.Vector3{X: 100, Z: 80}},
			&world.Actor{ID: 101, ModelID: modelFinalOmega, Position: core.Vector3{X: 100, Z: 120}},
		),
	}
	for _, a := range party {
		s.PartyIDs = append(s.PartyIDs, a.ID)
	}
	return s
}

func actor(s *world.Snapshot, id uint64) *world.Actor {
	for _, a := range s.Actors {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func newLoaded(t *testing.T) (*engine.Engine, *DynamisDelta) {
	t.Helper()
	e, err := engine.New(engine.Dependencies{})
	require.NoError(t, err)
	s := NewDynamisDelta()
	require.NoError(t, e.Load(s))
	return e, s
}

func element(t *testing.T, s *DynamisDelta, name string) *core.Element {
	t.Helper()
	el, ok := s.Controller().TryGetElementByName(name)
	require.True(t, ok, name)
	return el
}

func enabledNames(s *DynamisDelta) []string {
	var names []string
	for _, ne := range s.Controller().EnabledElements() {
		names = append(names, ne.Name)
	}
	return names
}

func TestDynamisDelta_Setup(t *testing.T) {
	e, s := newLoaded(t)
	e.Tick(script.Frame{Now: 0, World: &world.Snapshot{TerritoryID: territoryOmegaProtocol}})

	names := s.Controller().ElementNames()
	assert.Len(t, names, debugElements+2)
	assert.Contains(t, names, "Bait")
	assert.Contains(t, names, "Alert")

	bait := element(t, s, "Bait")
	assert.Equal(t, "BAIT", bait.OverlayText)
	assert.True(t, bait.Tether)
	alert := element(t, s, "Alert")
	assert.Equal(t, core.RefActorSelf, alert.RefActorType)
	assert.Empty(t, enabledNames(s), "nothing shows outside the mechanic")
}

func TestDynamisDelta_TetherSnapshotToMonitors(t *testing.T) {
	e, s := newLoaded(t)

	w := deltaWorld(effectUpcomingBlueTether)
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	e.Tick(script.Frame{Now: 0, World: w})

	require.Equal(t, 1, s.Stage())
	assert.True(t, s.isClose, "partner is farther from the center than the player")
	assert.Equal(t, effectUpcomingBlueTether, s.myTether)
	for i := range debugElements {
		assert.Equal(t, i < 4, element(t, s, fmt.Sprintf("Debug%d", i)).Enabled, "Debug%d", i)
	}
	assert.Equal(t, actor(w, playerID).Position, element(t, s, "Debug2").RefPosition())
	partnerMarker := element(t, s, "Debug3")
	assert.Equal(t, actor(w, 2).Position, partnerMarker.RefPosition())
	assert.Equal(t, "270 Partner", partnerMarker.OverlayText)
	for _, name := range []string{"Debug0", "Debug1", "Debug2"} {
		assert.False(t, strings.HasSuffix(element(t, s, name).OverlayText, "Partner"), name)
	}
	alert := element(t, s, "Alert")
	assert.True(t, alert.Enabled)
	assert.Equal(t, "Blue - to beetle!", alert.OverlayText)
	assert.Equal(t, colorTankBlue, alert.OverlayBGColor)

	e.Tick(script.Frame{Now: 16, World: deltaWorld()})
	assert.Equal(t, 1, s.Stage(), "stage 1 holds until a monitor shows")
	assert.Equal(t, []string{"Alert"}, enabledNames(s))
	assert.Equal(t, "STACK WITH YOUR PARTNER FAST", alert.OverlayText)

	w = deltaWorld()
	withEffect(actor(w, 6), effectMonitorLeft)
	e.Tick(script.Frame{Now: 32, World: w})
	assert.Equal(t, 2, s.Stage())
	for i := range debugElements {
		assert.False(t, element(t, s, fmt.Sprintf("Debug%d", i)).Enabled)
	}
}

func TestDynamisDelta_FullCycle(t *testing.T) {
	e, s := newLoaded(t)
	now := int64(0)
	tick := func(w *world.Snapshot) {
		now += 16
		e.Tick(script.Frame{Now: now, World: w})
	}

	w := deltaWorld(effectUpcomingBlueTether)
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	tick(w)
	w = deltaWorld()
	withEffect(actor(w, 5), effectMonitorRight)
	tick(w)
	require.Equal(t, 2, s.Stage())

	arms := func(casting bool) *world.Snapshot {
		w := deltaWorld()
		withEffect(actor(w, 5), effectMonitorRight)
		for i := range 6 {
			arm := &world.Actor{ID: uint64(300 + i), DataID: dataArmLeft, Position: core.Vector3{X: float32(90 + 4*i), Z: 100}}
			if i%2 == 1 {
				arm.DataID = dataArmRight
			}
			if casting && i == 0 {
				arm.CastActionID = actionArmCast
			}
			w.Actors = append(w.Actors, arm)
		}
		return w
	}

	tick(arms(false))
	assert.Equal(t, 2, s.Stage())
	assert.Equal(t, "Middle, bait Beyond Defense", element(t, s, "Alert").OverlayText)
	assert.False(t, element(t, s, "Bait").Enabled, "close blue player stays middle")

	tick(arms(true))
	assert.Equal(t, 3, s.Stage())

	w = deltaWorld()
	withEffect(actor(w, 5), effectMonitorRight)
	tick(w)
	assert.Equal(t, 3, s.Stage())
	assert.Equal(t, "Stack in middle", element(t, s, "Alert").OverlayText)

	w = deltaWorld()
	withEffect(actor(w, playerID), effectNearWorld)
	tick(w)
	assert.Equal(t, 4, s.Stage(), "monitors resolved")

	tick(w)
	assert.Equal(t, 4, s.Stage())
	assert.Equal(t, "NEAR WORLD", element(t, s, "Alert").OverlayText)

	tick(deltaWorld())
	assert.Equal(t, 5, s.Stage())

	w = deltaWorld()
	withEffect(actor(w, playerID), effectGreenTether)
	tick(w)
	assert.Equal(t, 5, s.Stage())
	assert.Equal(t, "Break - go CLOSE!", element(t, s, "Alert").OverlayText)

	withEffect(actor(w, 7), effectTwiceRuin)
	tick(w)
	assert.Equal(t, "Await for debuff before breaking!", element(t, s, "Alert").OverlayText)

	tick(deltaWorld())
	assert.Equal(t, 0, s.Stage())
}

func TestDynamisDelta_FarBluePlayerBaitsArm(t *testing.T) {
	e, s := newLoaded(t)
	s.stage = 2
	s.myTether = effectUpcomingBlueTether
	s.isClose = false

	w := deltaWorld()
	// The two arms nearest the beetle sit at x=100 and x=104; the player at
	// (100, 90) is nearer the first.
	for i, x := range []float32{100, 104, 60, 140, 70, 130} {
		w.Actors = append(w.Actors, &world.Actor{ID: uint64(300 + i), DataID: dataArmLeft, Position: core.Vector3{X: x, Z: 80}})
	}
	e.Tick(script.Frame{Now: 0, World: w})

	bait := element(t, s, "Bait")
	assert.True(t, bait.Enabled)
	assert.Equal(t, core.Vector3{X: 100, Z: 80}, bait.RefPosition())
	assert.Equal(t, "Bait designated arm", element(t, s, "Alert").OverlayText)
}

func TestDynamisDelta_InvalidContextResets(t *testing.T) {
	e, s := newLoaded(t)
	w := deltaWorld(effectUpcomingBlueTether)
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	e.Tick(script.Frame{Now: 0, World: w})
	require.Equal(t, 1, s.Stage())

	w = deltaWorld()
	w.SceneID = 2
	e.Tick(script.Frame{Now: 16, World: w})
	assert.Equal(t, 0, s.Stage())
	assert.Empty(t, enabledNames(s))

	e.Tick(script.Frame{Now: 32, World: w})
	assert.Equal(t, 0, s.Stage())
}

func TestDynamisDelta_LeavingTerritoryResets(t *testing.T) {
	e, s := newLoaded(t)
	w := deltaWorld(effectUpcomingBlueTether)
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	e.Tick(script.Frame{Now: 0, World: w})
	require.Equal(t, 1, s.Stage())

	e.Tick(script.Frame{Now: 16, World: &world.Snapshot{TerritoryID: 1}})
	assert.Equal(t, 0, s.Stage())
	assert.Empty(t, s.Controller().GetRegisteredElements())
}

func TestDynamisDelta_MissingBeetleResets(t *testing.T) {
	e, s := newLoaded(t)
	s.stage = 3

	w := deltaWorld()
	w.Actors = w.Actors[:8]
	e.Tick(script.Frame{Now: 0, World: w})
	assert.Equal(t, 0, s.Stage())
}

func withoutFinal(w *world.Snapshot) *world.Snapshot {
	w.Actors = slices.DeleteFunc(w.Actors, func(a *world.Actor) bool { return a.ModelID == modelFinalOmega })
	return w
}

func greenArms(w *world.Snapshot) *world.Snapshot {
	// Nearest Final Omega at (100, 120) are the arms at x=100 and x=104.
	for i, x := range []float32{100, 104, 60, 140, 70, 130} {
		w.Actors = append(w.Actors, &world.Actor{ID: uint64(300 + i), DataID: dataArmLeft, Position: core.Vector3{X: x, Z: 100}})
	}
	return w
}

func TestDynamisDelta_GreenTetherSnapshot(t *testing.T) {
	e, s := newLoaded(t)

	w := deltaWorld(effectUpcomingGreenTether)
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	e.Tick(script.Frame{Now: 0, World: w})

	assert.Equal(t, 1, s.Stage())
	assert.Equal(t, effectUpcomingGreenTether, s.myTether)
	assert.Equal(t, "Green - to final (stretch)", element(t, s, "Alert").OverlayText)
	for i := range 4 {
		assert.True(t, element(t, s, fmt.Sprintf("Debug%d", i)).Enabled, "Debug%d", i)
	}
}

func TestDynamisDelta_GreenTetherWithoutFinalOmega(t *testing.T) {
	e, s := newLoaded(t)

	w := withoutFinal(deltaWorld(effectUpcomingGreenTether))
	w.Actors = append(w.Actors, &world.Actor{ID: 200, DataID: dataTrigger})
	e.Tick(script.Frame{Now: 0, World: w})

	assert.Equal(t, 0, s.Stage())
	assert.Empty(t, enabledNames(s))
}

func TestDynamisDelta_FarGreenPlayerBaitsArm(t *testing.T) {
	e, s := newLoaded(t)
	s.stage = 2
	s.myTether = effectUpcomingGreenTether
	s.isClose = false

	e.Tick(script.Frame{Now: 0, World: greenArms(deltaWorld())})

	bait := element(t, s, "Bait")
	assert.True(t, bait.Enabled)
	assert.Equal(t, core.Vector3{X: 100, Z: 100}, bait.RefPosition())
	assert.Equal(t, 2, s.Stage())
}

func TestDynamisDelta_GreenArmsWithoutFinalOmegaReset(t *testing.T) {
	e, s := newLoaded(t)
	s.stage = 2
	s.myTether = effectUpcomingGreenTether
	s.isClose = false

	e.Tick(script.Frame{Now: 0, World: greenArms(withoutFinal(deltaWorld()))})

	assert.Equal(t, 0, s.Stage())
	assert.False(t, element(t, s, "Bait").Enabled)
	assert.Empty(t, enabledNames(s))
}

func TestDynamisDelta_BlueArmsIgnoreFinalOmega(t *testing.T) {
	e, s := newLoaded(t)
	s.stage = 2
	s.myTether = effectUpcomingBlueTether
	s.isClose = true

	e.Tick(script.Frame{Now: 0, World: greenArms(withoutFinal(deltaWorld()))})

	assert.Equal(t, 2, s.Stage())
	assert.Equal(t, "Middle, bait Beyond Defense", element(t, s, "Alert").OverlayText)
}

type settingsUI struct {
	choose string
	labels []string
}

func (u *settingsUI) Text(string) {}

func (u *settingsUI) InputInt(label string, _ *int) bool {
	u.labels = append(u.labels, label)
	return false
}

func (u *settingsUI) Checkbox(label string, v *bool) bool {
	u.labels = append(u.labels, label)
	*v = true
	return true
}

func (u *settingsUI) RadioButton(label string, _ bool) bool {
	u.labels = append(u.labels, label)
	return label == u.choose
}

func TestDynamisDelta_Settings(t *testing.T) {
	e, s := newLoaded(t)
	ui := &settingsUI{choose: "Green"}

	require.True(t, e.DrawSettings(s.Name(), ui))
	assert.Equal(t, []string{"Stage", "Green", "Blue", "Close"}, ui.labels)
	assert.Equal(t, effectUpcomingGreenTether, s.myTether)
	assert.True(t, s.isClose)
}

func TestFindPartner(t *testing.T) {
	a := &world.Actor{ID: 1}
	b := &world.Actor{ID: 2}
	c := &world.Actor{ID: 3}
	d := &world.Actor{ID: 4}

	assert.Same(t, b, findPartner([]*world.Actor{a, b, c, d}, a))
	assert.Same(t, c, findPartner([]*world.Actor{a, b, c, d}, d))
	assert.Nil(t, findPartner([]*world.Actor{b, c}, a), "no second pair")
	assert.Nil(t, findPartner(nil, a))
}

func TestGradient(t *testing.T) {
	assert.Equal(t, colorRed, gradient(colorRed, colorYellow, 0))
	assert.Equal(t, colorYellow, gradient(colorRed, colorYellow, gradientPeriod))
	assert.Equal(t, colorRed, gradient(colorRed, colorYellow, 2*gradientPeriod))

	mid := gradient(0xFF000000, 0xFF0000C8, gradientPeriod/2)
	assert.Equal(t, uint32(0xFF000064), mid)
}
