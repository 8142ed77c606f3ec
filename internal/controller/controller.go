// Package controller holds the per-script registry of named elements and
// layouts. A script owns exactly one Controller; the renderer only reads it.
package controller

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/overmark/overmark/internal/codec"
	"github.com/overmark/overmark/pkg/core"
)

// Logger receives collision warnings.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Controller maps unique names to layouts and elements. Layouts and elements
// are separate namespaces. Not safe for concurrent use; all access happens
// on the frame thread.
type Controller struct {
	owner    string
	layouts  map[string]*core.Layout
	elements map[string]*core.Element

	autoIncrement int
	logger        Logger
}

// New creates an empty controller for the named script.
func New(owner string, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		owner:    owner,
		layouts:  make(map[string]*core.Layout),
		elements: make(map[string]*core.Element),
		logger:   logger,
	}
}

// Owner returns the name of the script this controller belongs to.
func (c *Controller) Owner() string {
	return c.owner
}

func (c *Controller) nextName() string {
	c.autoIncrement++
	return fmt.Sprintf("unnamed-%d", c.autoIncrement)
}

// RegisterLayout stores layout under name. An empty name is replaced with a
// generated unique one. Returns false without changes if the name is taken
// and overwrite is not set.
func (c *Controller) RegisterLayout(name string, layout *core.Layout, overwrite bool) bool {
	if name == "" {
		name = c.nextName()
	}
	if _, exists := c.layouts[name]; exists && !overwrite {
		c.logger.Warn("layout name already registered", "script", c.owner, "name", name)
		return false
	}
	c.layouts[name] = layout
	return true
}

// RegisterElement stores element under name with the same rules as RegisterLayout.
func (c *Controller) RegisterElement(name string, element *core.Element, overwrite bool) bool {
	if name == "" {
		name = c.nextName()
	}
	if _, exists := c.elements[name]; exists && !overwrite {
		c.logger.Warn("element name already registered", "script", c.owner, "name", name)
		return false
	}
	c.elements[name] = element
	return true
}

// RegisterLayoutFromCode decodes an exported layout and registers it. The
// decoded layout is returned whenever decoding succeeded; a decode failure
// leaves the registry untouched.
func (c *Controller) RegisterLayoutFromCode(name, code string, overwrite bool) (*core.Layout, bool) {
	layout, err := codec.DecodeLayout(code)
	if err != nil {
		return nil, false
	}
	return layout, c.RegisterLayout(name, layout, overwrite)
}

// RegisterElementFromCode decodes an exported element and registers it.
func (c *Controller) RegisterElementFromCode(name, code string, overwrite bool) (*core.Element, bool) {
	element, err := codec.DecodeElement(code)
	if err != nil {
		return nil, false
	}
	return element, c.RegisterElement(name, element, overwrite)
}

// TryGetLayoutByName looks up a registered layout.
func (c *Controller) TryGetLayoutByName(name string) (*core.Layout, bool) {
	l, ok := c.layouts[name]
	return l, ok
}

// TryGetElementByName looks up a registered element.
func (c *Controller) TryGetElementByName(name string) (*core.Element, bool) {
	e, ok := c.elements[name]
	return e, ok
}

// UnregisterLayout removes a layout and reports whether it was present.
func (c *Controller) UnregisterLayout(name string) bool {
	if _, ok := c.layouts[name]; !ok {
		return false
	}
	delete(c.layouts, name)
	return true
}

// UnregisterElement removes an element and reports whether it was present.
func (c *Controller) UnregisterElement(name string) bool {
	if _, ok := c.elements[name]; !ok {
		return false
	}
	delete(c.elements, name)
	return true
}

// GetRegisteredLayouts returns a snapshot of the layout registry. Changing the
// returned map does not change membership.
func (c *Controller) GetRegisteredLayouts() map[string]*core.Layout {
	return maps.Clone(c.layouts)
}

// GetRegisteredElements returns a snapshot of the element registry. The
// element pointers are shared, so field updates through them are visible.
func (c *Controller) GetRegisteredElements() map[string]*core.Element {
	return maps.Clone(c.elements)
}

// ElementNames returns the registered element names in sorted order.
func (c *Controller) ElementNames() []string {
	return slices.Sorted(maps.Keys(c.elements))
}

// LayoutNames returns the registered layout names in sorted order.
func (c *Controller) LayoutNames() []string {
	return slices.Sorted(maps.Keys(c.layouts))
}

// NamedElement pairs an element with its registry key.
type NamedElement struct {
	Name    string
	Element *core.Element
}

// EnabledElements returns the enabled elements ordered by name.
func (c *Controller) EnabledElements() []NamedElement {
	var out []NamedElement
	for _, name := range c.ElementNames() {
		if e := c.elements[name]; e != nil && e.Enabled {
			out = append(out, NamedElement{Name: name, Element: e})
		}
	}
	return out
}

// LayoutElements returns the enabled elements of every enabled layout that
// is valid in territory, ordered by layout name then position. Each is named
// "<layout>/<index>".
func (c *Controller) LayoutElements(territory uint32) []NamedElement {
	var out []NamedElement
	for _, name := range c.LayoutNames() {
		l := c.layouts[name]
		if l == nil || !l.Enabled || !layoutValidIn(l, territory) {
			continue
		}
		for i, e := range l.Elements {
			if e != nil && e.Enabled {
				out = append(out, NamedElement{Name: fmt.Sprintf("%s/%d", name, i), Element: e})
			}
		}
	}
	return out
}

func layoutValidIn(l *core.Layout, territory uint32) bool {
	if territory > math.MaxUint16 {
		return len(l.ZoneLock) == 0
	}
	return l.IsValidIn(uint16(territory))
}

// DisableAll turns every registered element off.
func (c *Controller) DisableAll() {
	for _, e := range c.elements {
		if e != nil {
			e.Enabled = false
		}
	}
}

// ClearRegisteredLayouts removes all layouts.
func (c *Controller) ClearRegisteredLayouts() {
	clear(c.layouts)
}

// ClearRegisteredElements removes all elements.
func (c *Controller) ClearRegisteredElements() {
	clear(c.elements)
}

// Clear removes all elements and layouts.
func (c *Controller) Clear() {
	c.ClearRegisteredElements()
	c.ClearRegisteredLayouts()
}
