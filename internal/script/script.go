// Package script defines the contract between the engine and the scripts it
// drives. Scripts are plain Go types; the engine only sees the Script
// interface.
package script

import (
	"github.com/overmark/overmark/internal/controller"
	"github.com/overmark/overmark/internal/world"
	"github.com/overmark/overmark/pkg/core"
)

// Frame is the input to a single update pass.
type Frame struct {
	// Now is a monotonic clock reading in milliseconds.
	Now int64
	// World is the observation view for this frame. It may be nil.
	World world.View
}

// Territory returns the frame's world context, or 0 without a view.
func (f Frame) Territory() uint32 {
	if f.World == nil {
		return 0
	}
	return f.World.Territory()
}

// SettingsUI is the immediate-mode widget surface a script draws its
// settings with. Each call returns true when the user changed the value.
type SettingsUI interface {
	Text(text string)
	InputInt(label string, value *int) bool
	Checkbox(label string, value *bool) bool
	RadioButton(label string, active bool) bool
}

// Logger is the key-value logger handed to scripts and used by the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Script is a unit of overlay behaviour.
type Script interface {
	// Name is the unique name the engine and manifests know the script by.
	Name() string
	Metadata() core.Metadata
	// ValidTerritories lists the world contexts the script runs in. Empty
	// means every territory.
	ValidTerritories() []uint32

	// OnSetup registers elements and layouts. Called once per activation.
	OnSetup()
	// OnUpdate runs once per frame while the script is active.
	OnUpdate(frame Frame)
	OnSettingsDraw(ui SettingsUI)
	OnEnable()
	// OnDisable runs after the controller has been cleared.
	OnDisable()

	Controller() *controller.Controller
	Bind(c *controller.Controller, log Logger)
}

// Base supplies the controller binding and no-op hooks. Concrete scripts
// embed it and override what they need.
type Base struct {
	ctrl *controller.Controller
	log  Logger
}

// Controller returns the bound controller.
func (b *Base) Controller() *controller.Controller {
	return b.ctrl
}

// Bind attaches the controller the engine allocated for this script and the
// logger its diagnostics go to.
func (b *Base) Bind(c *controller.Controller, log Logger) {
	b.ctrl = c
	b.log = log
}

// Log returns the bound logger, or a no-op one before binding.
func (b *Base) Log() Logger {
	if b.log == nil {
		return nopLogger{}
	}
	return b.log
}

func (b *Base) ValidTerritories() []uint32 { return nil }

func (b *Base) OnSetup() {}

func (b *Base) OnUpdate(Frame) {}

func (b *Base) OnSettingsDraw(SettingsUI) {}

func (b *Base) OnEnable() {}

func (b *Base) OnDisable() {}

// IsValidIn reports whether s may run in territory.
func IsValidIn(s Script, territory uint32) bool {
	valid := s.ValidTerritories()
	if len(valid) == 0 {
		return true
	}
	for _, t := range valid {
		if t == territory {
			return true
		}
	}
	return false
}
