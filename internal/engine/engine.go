// Package engine drives scripts: it owns one controller per script, decides
// each frame which scripts are active, runs their hooks, and keeps the
// freeze list the renderer draws alongside script elements.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/overmark/overmark/internal/codec"
	"github.com/overmark/overmark/internal/controller"
	"github.com/overmark/overmark/internal/manifest"
	"github.com/overmark/overmark/internal/script"
	"github.com/overmark/overmark/internal/storage"
	"github.com/overmark/overmark/pkg/core"
)

var (
	ErrScriptExists   = errors.New("script already loaded")
	ErrScriptNotFound = errors.New("script not found")
)

// UpdateObserver receives the duration of every OnUpdate call.
type UpdateObserver interface {
	ObserveUpdate(scriptName string, territory uint32, d time.Duration)
}

// ManifestFetcher is the part of the manifest client the engine uses.
type ManifestFetcher interface {
	FetchUpdates(ctx context.Context, url string) (map[string]manifest.UpdateInfo, error)
	FetchBlacklist(ctx context.Context, url string) (manifest.Blacklist, error)
}

// Dependencies are the collaborators of an Engine. Only Logger is required
// to get useful output; nil Store, Manifests or Observer disable persistence,
// manifest checks and update observation respectively.
type Dependencies struct {
	Logger    script.Logger
	Store     storage.Store
	Manifests ManifestFetcher
	Observer  UpdateObserver
}

// Status is one row of the script listing.
type Status struct {
	Name        string
	Version     uint
	Author      string
	Enabled     bool
	Active      bool
	Blacklisted bool
}

// UpdateCandidate is a script with a newer version available upstream.
type UpdateCandidate struct {
	Script         string
	CurrentVersion uint
	LatestVersion  uint
	// AutoApply is set for trusted manifest entries.
	AutoApply bool
}

type entry struct {
	script      script.Script
	meta        core.Metadata
	ctrl        *controller.Controller
	enabled     bool
	blacklisted bool
	setUp       bool
	active      bool
}

// Engine is not safe for concurrent use; all calls are expected from the
// frame loop goroutine. Only the metric callbacks read it from elsewhere.
type Engine struct {
	log       script.Logger
	store     storage.Store
	manifests ManifestFetcher
	observer  UpdateObserver

	entries []*entry
	freezes []*core.FreezeInfo

	activeCount atomic.Int64

	// OTEL metrics
	updates     metric.Int64Counter
	updateTime  metric.Float64Histogram
	panics      metric.Int64Counter
	activeGauge metric.Int64ObservableGauge
}

// New creates an Engine. Uses the global OTel meter for metrics (no-op if
// not configured).
func New(deps Dependencies) (*Engine, error) {
	e := &Engine{
		log:       deps.Logger,
		store:     deps.Store,
		manifests: deps.Manifests,
		observer:  deps.Observer,
	}
	if e.log == nil {
		e.log = nopLogger{}
	}

	m := meter()
	var err error

	e.updates, err = m.Int64Counter(
		"engine.script.updates",
		metric.WithDescription("Total script update calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating updates counter: %w", err)
	}

	e.updateTime, err = m.Float64Histogram(
		"engine.script.update.duration",
		metric.WithDescription("Duration of script update calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating update duration histogram: %w", err)
	}

	e.panics, err = m.Int64Counter(
		"engine.script.panics",
		metric.WithDescription("Script hooks that panicked and were disabled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating panics counter: %w", err)
	}

	e.activeGauge, err = m.Int64ObservableGauge(
		"engine.scripts.active",
		metric.WithDescription("Scripts active in the current territory"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(e.activeGauge, e.activeCount.Load())
			return nil
		},
		e.activeGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering active callback: %w", err)
	}

	return e, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func (e *Engine) find(name string) (int, *entry) {
	for i, en := range e.entries {
		if en.script.Name() == name {
			return i, en
		}
	}
	return -1, nil
}

// Load registers s, allocates its controller and restores its persisted
// enable flag. Scripts start enabled when nothing was persisted.
func (e *Engine) Load(s script.Script) error {
	name := s.Name()
	if name == "" {
		return errors.New("load script: empty name")
	}
	if _, en := e.find(name); en != nil {
		return fmt.Errorf("load %s: %w", name, ErrScriptExists)
	}

	ctrl := controller.New(name, e.log)
	s.Bind(ctrl, e.log)

	en := &entry{
		script:  s,
		meta:    s.Metadata().WithDefaults(),
		ctrl:    ctrl,
		enabled: true,
	}
	if e.store != nil {
		enabled, found, err := e.store.ScriptState(name)
		if err != nil {
			e.log.Warn("failed to read script state", "script", name, "error", err)
		} else if found {
			en.enabled = enabled
		}
	}

	e.entries = append(e.entries, en)

	e.log.Info("script loaded", "script", name, "version", en.meta.Version, "enabled", en.enabled)
	return nil
}

// Unload deactivates and removes the named script.
func (e *Engine) Unload(name string) bool {
	i, en := e.find(name)
	if en == nil {
		return false
	}
	if en.active {
		e.deactivate(en)
	}

	e.entries = slices.Delete(e.entries, i, i+1)

	e.log.Info("script unloaded", "script", name)
	return true
}

// Reload replaces the loaded script of the same name with s. Persisted
// element overrides are re-applied when s is next set up.
func (e *Engine) Reload(s script.Script) error {
	e.Unload(s.Name())
	return e.Load(s)
}

// Enable turns a script on and lifts a blacklist auto-disable. The change
// takes effect on the next Tick.
func (e *Engine) Enable(name string) error {
	return e.setEnabled(name, true)
}

// Disable turns a script off. The change takes effect on the next Tick.
func (e *Engine) Disable(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	_, en := e.find(name)
	if en == nil {
		return fmt.Errorf("%s: %w", name, ErrScriptNotFound)
	}
	en.enabled = enabled
	if enabled {
		en.blacklisted = false
	}
	if e.store != nil {
		if err := e.store.SaveScriptState(name, enabled); err != nil {
			return fmt.Errorf("persist state of %s: %w", name, err)
		}
	}
	return nil
}

// Tick runs one update pass over all scripts in load order.
func (e *Engine) Tick(frame script.Frame) {
	territory := frame.Territory()
	for _, en := range slices.Clone(e.entries) {
		shouldRun := en.enabled && !en.blacklisted && script.IsValidIn(en.script, territory)
		if !shouldRun {
			if en.active {
				e.deactivate(en)
			}
			continue
		}

		if !en.active {
			if !e.activate(en) {
				continue
			}
		}
		e.update(en, frame, territory)
	}
}

func (e *Engine) activate(en *entry) bool {
	name := en.script.Name()
	if !e.safeCall(en, "OnEnable", en.script.OnEnable) {
		return false
	}
	if !en.setUp {
		if !e.safeCall(en, "OnSetup", en.script.OnSetup) {
			en.ctrl.Clear()
			return false
		}
		en.setUp = true
		e.applyOverrides(en)
	}
	en.active = true
	e.activeCount.Add(1)
	e.log.Debug("script activated", "script", name)
	return true
}

func (e *Engine) deactivate(en *entry) {
	en.ctrl.Clear()
	if en.active {
		en.active = false
		e.activeCount.Add(-1)
	}
	en.setUp = false
	e.safeCall(en, "OnDisable", en.script.OnDisable)
	e.log.Debug("script deactivated", "script", en.script.Name())
}

func (e *Engine) update(en *entry, frame script.Frame, territory uint32) {
	name := en.script.Name()
	start := time.Now()
	ok := e.safeCall(en, "OnUpdate", func() { en.script.OnUpdate(frame) })
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("script", name))
	e.updates.Add(context.Background(), 1, attrs)
	e.updateTime.Record(context.Background(), float64(elapsed.Microseconds())/1000, attrs)
	if e.observer != nil {
		e.observer.ObserveUpdate(name, territory, elapsed)
	}
	if !ok && en.active {
		e.deactivate(en)
	}
}

// safeCall runs a script hook. A panic is logged, counted, and disables the
// script; the return value reports whether fn completed.
func (e *Engine) safeCall(en *entry, hook string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			en.enabled = false
			e.panics.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("script", en.script.Name()), attribute.String("hook", hook)))
			e.log.Error("script panicked, disabling", "script", en.script.Name(), "hook", hook, "panic", fmt.Sprint(r))
		}
	}()
	fn()
	return true
}

// applyOverrides replaces registered elements with their persisted codes.
// The element pointer is kept so scripts holding it see the override.
func (e *Engine) applyOverrides(en *entry) {
	if e.store == nil {
		return
	}
	name := en.script.Name()
	overrides, err := e.store.ElementOverrides(name)
	if err != nil {
		e.log.Warn("failed to read element overrides", "script", name, "error", err)
		return
	}
	for elementName, code := range overrides {
		el, ok := en.ctrl.TryGetElementByName(elementName)
		if !ok {
			continue
		}
		decoded, err := codec.DecodeElement(code)
		if err != nil {
			e.log.Warn("ignoring malformed element override", "script", name, "element", elementName, "error", err)
			continue
		}
		*el = *decoded
	}
}

// SaveElementOverride persists the current state of a script's element so
// it replaces the script's default on every later setup.
func (e *Engine) SaveElementOverride(scriptName, elementName string) error {
	if e.store == nil {
		return errors.New("save element override: no settings store")
	}
	_, en := e.find(scriptName)
	if en == nil {
		return fmt.Errorf("%s: %w", scriptName, ErrScriptNotFound)
	}
	el, ok := en.ctrl.TryGetElementByName(elementName)
	if !ok {
		return fmt.Errorf("element %s of %s not registered", elementName, scriptName)
	}
	code, err := codec.EncodeElement(el)
	if err != nil {
		return err
	}
	return e.store.SaveElementOverride(scriptName, elementName, code)
}

// ResetElementOverride drops a persisted override. The script's own
// element is restored on its next setup.
func (e *Engine) ResetElementOverride(scriptName, elementName string) error {
	if e.store == nil {
		return errors.New("reset element override: no settings store")
	}
	return e.store.DeleteElementOverride(scriptName, elementName)
}

// Scripts lists loaded scripts in load order.
func (e *Engine) Scripts() []Status {
	out := make([]Status, 0, len(e.entries))
	for _, en := range e.entries {
		out = append(out, Status{
			Name:        en.script.Name(),
			Version:     en.meta.Version,
			Author:      en.meta.Author,
			Enabled:     en.enabled,
			Active:      en.active,
			Blacklisted: en.blacklisted,
		})
	}
	return out
}

// Controllers returns the controllers of active scripts in load order.
func (e *Engine) Controllers() []*controller.Controller {
	var out []*controller.Controller
	for _, en := range e.entries {
		if en.active {
			out = append(out, en.ctrl)
		}
	}
	return out
}

// Freeze keeps objects on screen until now+duration.
func (e *Engine) Freeze(now int64, duration time.Duration, objects ...*core.DisplayObject) *core.FreezeInfo {
	f := core.NewFreezeInfo(now+duration.Milliseconds(), objects...)
	e.freezes = append(e.freezes, f)
	return f
}

// FreezeScript pins the script's currently enabled elements for duration.
// Elements are captured at their reference coordinates; actor-relative
// elements are not resolved against the world.
func (e *Engine) FreezeScript(name string, now int64, duration time.Duration) (*core.FreezeInfo, error) {
	_, en := e.find(name)
	if en == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrScriptNotFound)
	}
	enabled := en.ctrl.EnabledElements()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%s has no enabled elements to freeze", name)
	}
	objects := make([]*core.DisplayObject, 0, len(enabled))
	for _, ne := range enabled {
		objects = append(objects, displayObject(ne.Element))
	}
	return e.Freeze(now, duration, objects...), nil
}

func displayObject(el *core.Element) *core.DisplayObject {
	obj := &core.DisplayObject{
		Kind:     core.DisplayCircle,
		Position: el.RefPosition(),
		Radius:   el.Radius,
		Color:    el.Color,
		Text:     el.OverlayText,
	}
	switch el.Type {
	case core.ElementLineFixed, core.ElementLineRelative:
		obj.Kind = core.DisplayLine
		obj.End = core.Vector3{X: el.OffX, Y: el.OffY, Z: el.OffZ}
	case core.ElementConeRelative, core.ElementConeFixed:
		obj.Kind = core.DisplayCone
	}
	return obj
}

// ActiveFreezes returns the freezes still showing at now and drops the
// expired ones.
func (e *Engine) ActiveFreezes(now int64) []*core.FreezeInfo {
	e.freezes = slices.DeleteFunc(e.freezes, func(f *core.FreezeInfo) bool {
		return !f.IsActive(now)
	})
	return slices.Clone(e.freezes)
}

// DrawSettings lets the named script draw its settings. It reports false
// when the script is unknown or its hook panicked.
func (e *Engine) DrawSettings(name string, ui script.SettingsUI) bool {
	_, en := e.find(name)
	if en == nil {
		return false
	}
	return e.safeCall(en, "OnSettingsDraw", func() { en.script.OnSettingsDraw(ui) })
}

// CheckManifests fetches every distinct blacklist and update manifest the
// loaded scripts point at. Blacklisted versions are disabled until the user
// enables them again; newer versions are returned as candidates in load
// order. A manifest that cannot be fetched is logged and contributes nothing.
func (e *Engine) CheckManifests(ctx context.Context) []UpdateCandidate {
	if e.manifests == nil {
		return nil
	}

	blacklists := make(map[string]manifest.Blacklist)
	updates := make(map[string]map[string]manifest.UpdateInfo)
	for _, en := range e.entries {
		if url := en.meta.BlacklistURL; url != "" {
			if _, seen := blacklists[url]; !seen {
				bl, err := e.manifests.FetchBlacklist(ctx, url)
				if err != nil {
					e.log.Warn("failed to fetch blacklist", "url", url, "error", err)
				}
				blacklists[url] = bl
			}
		}
		if url := en.meta.UpdateURL; url != "" {
			if _, seen := updates[url]; !seen {
				u, err := e.manifests.FetchUpdates(ctx, url)
				if err != nil {
					e.log.Warn("failed to fetch update manifest", "url", url, "error", err)
				}
				updates[url] = u
			}
		}
	}

	var candidates []UpdateCandidate
	for _, en := range e.entries {
		name := en.script.Name()
		if blacklists[en.meta.BlacklistURL].Contains(name, en.meta.Version) {
			if !en.blacklisted {
				e.log.Warn("script version is blacklisted, disabling", "script", name, "version", en.meta.Version)
			}
			en.blacklisted = true
		}
		info, ok := updates[en.meta.UpdateURL][name]
		if ok && info.Version > en.meta.Version {
			candidates = append(candidates, UpdateCandidate{
				Script:         name,
				CurrentVersion: en.meta.Version,
				LatestVersion:  info.Version,
				AutoApply:      info.Trusted,
			})
		}
	}
	return candidates
}
