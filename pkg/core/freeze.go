// pkg/core/freeze.go
package core

// DisplayObjectKind identifies what the renderer computed for a display object.
type DisplayObjectKind int

const (
	DisplayCircle DisplayObjectKind = iota
	DisplayLine
	DisplayCone
	DisplayText
)

// DisplayObject is one computed drawable produced by the rendering backend.
type DisplayObject struct {
	Kind     DisplayObjectKind `json:"kind"`
	Position Vector3           `json:"position"`
	End      Vector3           `json:"end"`
	Radius   float32           `json:"radius"`
	Color    uint32            `json:"color"`
	Text     string            `json:"text,omitempty"`
}

// FreezeInfo pins a set of display objects until ShowUntil, a monotonic
// clock reading in milliseconds. Objects are held by reference.
type FreezeInfo struct {
	Objects   map[*DisplayObject]struct{}
	ShowUntil int64
}

// NewFreezeInfo pins objects until showUntil.
func NewFreezeInfo(showUntil int64, objects ...*DisplayObject) *FreezeInfo {
	set := make(map[*DisplayObject]struct{}, len(objects))
	for _, o := range objects {
		if o != nil {
			set[o] = struct{}{}
		}
	}
	return &FreezeInfo{Objects: set, ShowUntil: showUntil}
}

// IsActive reports whether now precedes the expiry.
func (f *FreezeInfo) IsActive(now int64) bool {
	return now < f.ShowUntil
}
