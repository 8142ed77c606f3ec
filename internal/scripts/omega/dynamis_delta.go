// Package omega holds scripts for The Omega Protocol (Ultimate).
package omega

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/world"
	"github.com/overmark/overmark/pkg/core"
)

const (
	territoryOmegaProtocol uint32 = 1122
	sceneDynamisDelta             = 6
)

// Status effect ids.
const (
	effectNearWorld           uint32 = 3442
	effectFarWorld            uint32 = 3443
	effectUpcomingBlueTether  uint32 = 3504 // Remote Code Smell
	effectUpcomingGreenTether uint32 = 3440 // Local Code Smell
	effectBlueTether          uint32 = 1673
	effectGreenTether         uint32 = 1672
	effectMonitorLeft         uint32 = 3453
	effectMonitorRight        uint32 = 3452
	effectTwiceRuin           uint32 = 2534
	effectThriceRuin          uint32 = 2530
)

const (
	modelBeetle     uint32 = 3771
	modelFinalOmega uint32 = 3775
	dataArmLeft     uint32 = 15718
	dataArmRight    uint32 = 15719
	dataTrigger     uint32 = 15710
	actionArmCast   uint32 = 31600
	debugElements          = 8
	gradientPeriod  int64  = 200
)

// Packed ABGR alert backgrounds.
const (
	colorBlack        uint32 = 0xFF000000
	colorTankBlue     uint32 = 0xFFFF9900
	colorHealerGreen  uint32 = 0xFF21CC00
	colorDPSRed       uint32 = 0xFF0000B3
	colorRed          uint32 = 0xFF0000FF
	colorOrange       uint32 = 0xFF00B5FF
	colorYellow       uint32 = 0xFF66FFFF
	colorParsedPurple uint32 = 0xFFEE33A3
	colorParsedBlue   uint32 = 0xFFFF7000
	baitElementCode          = `{"Name":"","Enabled":false,"radius":0.0,"color":3355508735,"overlayBGColor":4278190080,"overlayTextColor":4294967295,"overlayFScale":2.0,"thicc":5.0,"overlayText":"BAIT","tether":true}`
	alertElementCode         = `{"Enabled":false,"Name":"","type":1,"radius":0.0,"overlayBGColor":4278190080,"overlayTextColor":4294967295,"overlayVOffset":3.0,"overlayFScale":2.0,"thicc":0.0,"overlayText":"WARNING","refActorType":1}`
)

var arenaCenter = core.Vector3{X: 100, Y: 0, Z: 100}

// DynamisDelta calls out positions for the Dynamis Delta mechanic. It walks
// stages 0 to 5 and returns to 0 when the mechanic ends or the context is
// lost.
type DynamisDelta struct {
	script.Base

	stage    int
	myTether uint32
	isClose  bool
}

func NewDynamisDelta() *DynamisDelta {
	return &DynamisDelta{}
}

func (s *DynamisDelta) Name() string { return "DynamisDelta" }

func (s *DynamisDelta) Metadata() core.Metadata {
	return core.NewMetadata(1, "NightmareXIV")
}

func (s *DynamisDelta) ValidTerritories() []uint32 {
	return []uint32{territoryOmegaProtocol}
}

// Stage returns the current stage.
func (s *DynamisDelta) Stage() int { return s.stage }

func (s *DynamisDelta) OnSetup() {
	c := s.Controller()
	for i := range debugElements {
		e := core.NewElement(core.ElementCircleFixed)
		e.Enabled = false
		c.RegisterElement(fmt.Sprintf("Debug%d", i), e, false)
	}
	c.RegisterElementFromCode("Bait", baitElementCode, false)
	c.RegisterElementFromCode("Alert", alertElementCode, false)
}

func (s *DynamisDelta) OnDisable() {
	s.setStage(0, "script disabled")
}

func (s *DynamisDelta) OnSettingsDraw(ui script.SettingsUI) {
	ui.InputInt("Stage", &s.stage)
	if ui.RadioButton("Green", s.myTether == effectUpcomingGreenTether) {
		s.myTether = effectUpcomingGreenTether
	}
	if ui.RadioButton("Blue", s.myTether == effectUpcomingBlueTether) {
		s.myTether = effectUpcomingBlueTether
	}
	ui.Checkbox("Close", &s.isClose)
}

func (s *DynamisDelta) OnUpdate(frame script.Frame) {
	s.Controller().DisableAll()

	v := frame.World
	if v == nil || v.Scene() != sceneDynamisDelta {
		s.setStage(0, "left mechanic scene")
		return
	}
	player := v.Player()
	beetle := world.FindObject(v, func(a *world.Actor) bool { return a.ModelID == modelBeetle })
	if beetle == nil || player == nil {
		s.setStage(0, "mechanic actors missing")
		return
	}
	final := world.FindObject(v, func(a *world.Actor) bool { return a.ModelID == modelFinalOmega })
	if final == nil && s.needsFinal(player) {
		s.setStage(0, "final omega missing")
		return
	}

	switch s.stage {
	case 0:
		s.updateTethers(frame, v, player, beetle, final)
	case 1:
		s.updateStack(frame, v, player)
	case 2:
		s.updateArms(v, player, beetle, final)
	case 3:
		s.updateMonitors(frame, v, player)
	case 4:
		s.updateWorlds(frame, v, player)
	case 5:
		if player.HasEffect(effectGreenTether) {
			s.breakAlert(frame, v, "Break - go CLOSE!")
		} else {
			s.setStage(0, "mechanic finished")
		}
	}
}

// needsFinal reports whether the current stage measures against Final
// Omega: the green tether read and the green arm bait.
func (s *DynamisDelta) needsFinal(player *world.Actor) bool {
	switch s.stage {
	case 0:
		return player.HasEffect(effectUpcomingGreenTether)
	case 2:
		return s.myTether == effectUpcomingGreenTether
	}
	return false
}

func (s *DynamisDelta) updateTethers(frame script.Frame, v world.View, player, beetle, final *world.Actor) {
	green := player.HasEffect(effectUpcomingGreenTether)
	if !green && !player.HasEffect(effectUpcomingBlueTether) {
		return
	}
	mob := beetle
	s.myTether = effectUpcomingBlueTether
	if green {
		mob = final
		s.myTether = effectUpcomingGreenTether
	}

	var same []*world.Actor
	for _, a := range v.Party() {
		if a != nil && a.HasEffect(s.myTether) {
			same = append(same, a)
		}
	}
	slices.SortStableFunc(same, func(a, b *world.Actor) int {
		return cmp.Compare(world.AngleRelativeToObject(mob, a, true), world.AngleRelativeToObject(mob, b, true))
	})

	partner := findPartner(same, player)
	for i, a := range same {
		e, ok := s.Controller().TryGetElementByName(fmt.Sprintf("Debug%d", i))
		if !ok {
			continue
		}
		e.Enabled = true
		e.SetRefPosition(a.Position)
		e.OverlayText = fmt.Sprintf("%g", world.AngleRelativeToObject(mob, a, true))
		if partner != nil && a.ID == partner.ID {
			e.OverlayText += " Partner"
		}
	}
	if partner != nil {
		s.isClose = core.Distance(partner.Position, arenaCenter) > core.Distance(player.Position, arenaCenter)
	}

	if s.myTether == effectUpcomingBlueTether {
		s.alert("Blue - to beetle!", colorTankBlue)
	} else {
		s.alert("Green - to final (stretch)", colorHealerGreen)
	}

	if world.FindObject(v, func(a *world.Actor) bool { return a.DataID == dataTrigger }) != nil {
		s.Log().Info("snapshotting tether", "tether", s.tetherName(), "close", s.isClose)
		s.setStage(1, "tethers snapshotted")
	}
}

// findPartner pairs tethered players in angle order: the first two form one
// pair, the next two the other.
func findPartner(same []*world.Actor, player *world.Actor) *world.Actor {
	pair := same[:min(2, len(same))]
	if !slices.ContainsFunc(pair, func(a *world.Actor) bool { return a.ID == player.ID }) {
		pair = same[min(2, len(same)):min(4, len(same))]
	}
	for _, a := range pair {
		if a.ID != player.ID {
			return a
		}
	}
	return nil
}

func (s *DynamisDelta) updateStack(frame script.Frame, v world.View, player *world.Actor) {
	if s.myTether == effectUpcomingBlueTether {
		if player.HasEffect(effectUpcomingBlueTether) {
			s.alert("Prepare to stack!", colorBlack)
		} else {
			s.alert("STACK WITH YOUR PARTNER FAST", gradient(colorBlack, colorParsedPurple, frame.Now))
		}
		if player.HasEffect(effectBlueTether) {
			s.breakAlert(frame, v, "Break - go far!")
		}
	} else {
		s.alert("Stack together", colorBlack)
	}
	if anyMonitor(v) {
		s.setStage(2, "monitors appeared")
	}
}

func (s *DynamisDelta) updateArms(v world.View, player, beetle, final *world.Actor) {
	arms := world.FilterObjects(v, func(a *world.Actor) bool {
		return a.DataID == dataArmLeft || a.DataID == dataArmRight
	})
	if len(arms) != 6 {
		return
	}

	var myArm *world.Actor
	switch {
	case s.myTether == effectUpcomingBlueTether && s.isClose:
		s.alert("Middle, bait Beyond Defense", colorRed)
	case s.myTether == effectUpcomingBlueTether:
		s.alert("Bait designated arm", colorOrange)
		myArm = nearestOf(byDistance(arms, beetle)[0:2], player)
	case s.isClose:
		s.alert("Bait designated arm", colorOrange)
		myArm = nearestOf(byDistance(arms, final)[2:4], player)
	default:
		s.alert("Bait designated arm", colorOrange)
		myArm = nearestOf(byDistance(arms, final)[0:2], player)
	}
	if myArm != nil {
		if e, ok := s.Controller().TryGetElementByName("Bait"); ok {
			e.Enabled = true
			e.SetRefPosition(myArm.Position)
		}
	}

	if slices.ContainsFunc(arms, func(a *world.Actor) bool { return a.CastActionID == actionArmCast }) {
		s.setStage(3, "arms casting")
	}
}

func (s *DynamisDelta) updateMonitors(frame script.Frame, v world.View, player *world.Actor) {
	if player.HasEffect(effectBlueTether) {
		s.breakAlert(frame, v, "Break - go far!")
	}
	if s.myTether == effectUpcomingBlueTether {
		if !player.HasEffect(effectTwiceRuin) {
			s.alert("Stack in middle", colorHealerGreen)
		} else {
			s.alert("AVOID STACK AND MONITORS", colorDPSRed)
		}
	} else {
		s.alert("Spread for monitors baits", colorHealerGreen)
	}
	if !anyMonitor(v) {
		s.setStage(4, "monitors resolved")
	}
}

func (s *DynamisDelta) updateWorlds(frame script.Frame, v world.View, player *world.Actor) {
	switch {
	case player.HasEffect(effectNearWorld):
		s.alert("NEAR WORLD", colorHealerGreen)
	case player.HasEffect(effectFarWorld):
		s.alert("FAR WORLD", colorParsedBlue)
	case s.myTether == effectUpcomingBlueTether:
		s.alert("Baiter for near", colorBlack)
	case !s.isClose:
		s.alert("Far - maintain tether", colorHealerGreen)
	case player.HasEffect(effectGreenTether):
		s.breakAlert(frame, v, "Break - go CLOSE!")
	default:
		s.alert("Chill spot", colorBlack)
	}
	if !world.AnyInParty(v, func(a *world.Actor) bool { return a.HasEffect(effectNearWorld) }) {
		s.setStage(5, "near world resolved")
	}
}

// breakAlert tells the player to break their tether unless a party member
// still carries a ruin debuff.
func (s *DynamisDelta) breakAlert(frame script.Frame, v world.View, text string) {
	unsafe := world.AnyInParty(v, func(a *world.Actor) bool {
		return a.HasEffect(effectThriceRuin) || a.HasEffect(effectTwiceRuin)
	})
	if unsafe {
		s.alert("Await for debuff before breaking!", colorRed)
		return
	}
	s.alert(text, gradient(colorRed, colorYellow, frame.Now))
}

func (s *DynamisDelta) alert(text string, bg uint32) {
	e, ok := s.Controller().TryGetElementByName("Alert")
	if !ok {
		return
	}
	e.Enabled = true
	e.OverlayBGColor = bg
	e.OverlayText = text
}

func (s *DynamisDelta) setStage(stage int, reason string) {
	if s.stage == stage {
		return
	}
	s.Log().Info("dynamis delta stage", "from", s.stage, "to", stage, "reason", reason)
	s.stage = stage
}

func (s *DynamisDelta) tetherName() string {
	if s.myTether == effectUpcomingGreenTether {
		return "green"
	}
	return "blue"
}

func anyMonitor(v world.View) bool {
	return world.AnyInParty(v, func(a *world.Actor) bool {
		return a.HasEffect(effectMonitorLeft) || a.HasEffect(effectMonitorRight)
	})
}

// byDistance returns actors sorted by distance to origin. A nil origin keeps
// the input order.
func byDistance(actors []*world.Actor, origin *world.Actor) []*world.Actor {
	out := slices.Clone(actors)
	if origin == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b *world.Actor) int {
		return cmp.Compare(core.Distance(a.Position, origin.Position), core.Distance(b.Position, origin.Position))
	})
	return out
}

func nearestOf(actors []*world.Actor, to *world.Actor) *world.Actor {
	sorted := byDistance(actors, to)
	if len(sorted) == 0 {
		return nil
	}
	return sorted[0]
}

// gradient oscillates between two packed colors, one full swing every
// 2*gradientPeriod milliseconds.
func gradient(from, to uint32, now int64) uint32 {
	phase := now % (2 * gradientPeriod)
	if phase < 0 {
		phase += 2 * gradientPeriod
	}
	if phase > gradientPeriod {
		phase = 2*gradientPeriod - phase
	}
	t := float64(phase) / float64(gradientPeriod)

	var out uint32
	for shift := 0; shift < 32; shift += 8 {
		a := float64((from >> shift) & 0xFF)
		b := float64((to >> shift) & 0xFF)
		out |= uint32(a+(b-a)*t+0.5) << shift
	}
	return out
}
