// pkg/core/layout.go
package core

import "slices"

// Layout is a named, ordered group of elements toggled as a unit.
type Layout struct {
	Name     string     `json:"Name"`
	Group    string     `json:"Group"`
	Enabled  bool       `json:"Enabled"`
	ZoneLock []uint16   `json:"ZoneLockH"`
	Elements []*Element `json:"ElementsL"`
}

// NewLayout returns an enabled, empty layout.
func NewLayout(name string) *Layout {
	return &Layout{
		Name:     name,
		Enabled:  true,
		ZoneLock: []uint16{},
		Elements: []*Element{},
	}
}

// IsValidIn reports whether the layout may be shown in the given territory.
// An empty zone lock means every territory.
func (l *Layout) IsValidIn(territory uint16) bool {
	return len(l.ZoneLock) == 0 || slices.Contains(l.ZoneLock, territory)
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	c := *l
	c.ZoneLock = slices.Clone(l.ZoneLock)
	c.Elements = make([]*Element, len(l.Elements))
	for i, e := range l.Elements {
		if e != nil {
			c.Elements[i] = e.Clone()
		}
	}
	return &c
}
