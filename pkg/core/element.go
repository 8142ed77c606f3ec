// pkg/core/element.go
package core

// ElementType selects the geometry an Element is drawn with.
type ElementType int

const (
	ElementCircleFixed ElementType = iota
	ElementCircleRelative
	ElementLineFixed
	ElementLineRelative
	ElementConeRelative
	ElementConeFixed
)

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	return t >= ElementCircleFixed && t <= ElementConeFixed
}

// RefActorType filters which actor a relative element attaches to.
type RefActorType int

const (
	RefActorByName RefActorType = iota
	RefActorSelf
	RefActorTarget
)

// Valid reports whether t is a known reference actor type.
func (t RefActorType) Valid() bool {
	return t >= RefActorByName && t <= RefActorTarget
}

// Packed ABGR colors used as element defaults.
const (
	DefaultColor            uint32 = 0xC80000FF
	DefaultOverlayBGColor   uint32 = 0x70000000
	DefaultOverlayTextColor uint32 = 0xC8FFFFFF
)

// Element is a single drawable annotation. The JSON tags are the exported
// field names of the user-editable element code and must stay stable.
type Element struct {
	Name    string      `json:"Name"`
	Enabled bool        `json:"Enabled"`
	Type    ElementType `json:"type"`

	RefX float32 `json:"refX"`
	RefY float32 `json:"refY"`
	RefZ float32 `json:"refZ"`
	OffX float32 `json:"offX"`
	OffY float32 `json:"offY"`
	OffZ float32 `json:"offZ"`

	Radius    float32 `json:"radius"`
	Thickness float32 `json:"thicc"`
	Color     uint32  `json:"color"`

	OverlayBGColor   uint32  `json:"overlayBGColor"`
	OverlayTextColor uint32  `json:"overlayTextColor"`
	OverlayFScale    float32 `json:"overlayFScale"`
	OverlayVOffset   float32 `json:"overlayVOffset"`
	OverlayText      string  `json:"overlayText"`

	Tether       bool         `json:"tether"`
	RefActorType RefActorType `json:"refActorType"`
	RefActorName string       `json:"refActorName"`
}

// NewElement returns an element of the given type with default styling.
func NewElement(t ElementType) *Element {
	return &Element{
		Enabled:          true,
		Type:             t,
		Radius:           0.35,
		Thickness:        2,
		Color:            DefaultColor,
		OverlayBGColor:   DefaultOverlayBGColor,
		OverlayTextColor: DefaultOverlayTextColor,
		OverlayFScale:    1,
	}
}

// SetRefPosition rebinds the reference point without re-registering the element.
func (e *Element) SetRefPosition(p Vector3) {
	e.RefX = p.X
	e.RefY = p.Y
	e.RefZ = p.Z
}

// RefPosition returns the current reference point.
func (e *Element) RefPosition() Vector3 {
	return Vector3{X: e.RefX, Y: e.RefY, Z: e.RefZ}
}

// Clone returns an independent copy of the element.
func (e *Element) Clone() *Element {
	c := *e
	return &c
}
