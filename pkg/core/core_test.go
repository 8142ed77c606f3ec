package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeInfo_IsActiveBoundary(t *testing.T) {
	f := NewFreezeInfo(1000, &DisplayObject{Kind: DisplayCircle})

	assert.True(t, f.IsActive(0))
	assert.True(t, f.IsActive(999))
	assert.False(t, f.IsActive(1000), "expiry reading itself is inactive")
	assert.False(t, f.IsActive(1001))
}

func TestFreezeInfo_HoldsObjectsByReference(t *testing.T) {
	a := &DisplayObject{Kind: DisplayText, Text: "a"}
	b := &DisplayObject{Kind: DisplayText, Text: "a"}
	f := NewFreezeInfo(10, a, b, nil)

	require.Len(t, f.Objects, 2)
	_, ok := f.Objects[a]
	assert.True(t, ok)

	a.Text = "changed"
	for o := range f.Objects {
		if o == a {
			assert.Equal(t, "changed", o.Text)
		}
	}
}

func TestElement_Defaults(t *testing.T) {
	e := NewElement(ElementCircleRelative)

	assert.True(t, e.Enabled)
	assert.Equal(t, ElementCircleRelative, e.Type)
	assert.Equal(t, float32(0.35), e.Radius)
	assert.Equal(t, float32(2), e.Thickness)
	assert.Equal(t, DefaultColor, e.Color)
	assert.Equal(t, float32(1), e.OverlayFScale)
}

func TestElement_SetRefPosition(t *testing.T) {
	e := NewElement(ElementCircleFixed)
	e.SetRefPosition(Vector3{X: 100, Y: 0, Z: 95.5})

	assert.Equal(t, Vector3{X: 100, Y: 0, Z: 95.5}, e.RefPosition())
}

func TestElement_CloneIsIndependent(t *testing.T) {
	e := NewElement(ElementCircleFixed)
	c := e.Clone()
	c.OverlayText = "copy"

	assert.Empty(t, e.OverlayText)
}

func TestElementType_Valid(t *testing.T) {
	assert.True(t, ElementConeFixed.Valid())
	assert.False(t, ElementType(6).Valid())
	assert.False(t, ElementType(-1).Valid())
	assert.True(t, RefActorTarget.Valid())
	assert.False(t, RefActorType(3).Valid())
}

func TestLayout_IsValidIn(t *testing.T) {
	l := NewLayout("any")
	assert.True(t, l.IsValidIn(1122))

	l.ZoneLock = []uint16{1122}
	assert.True(t, l.IsValidIn(1122))
	assert.False(t, l.IsValidIn(1))
}

func TestLayout_CloneDeep(t *testing.T) {
	l := NewLayout("l")
	l.Elements = append(l.Elements, NewElement(ElementCircleFixed))
	c := l.Clone()
	c.Elements[0].Radius = 9

	assert.Equal(t, float32(0.35), l.Elements[0].Radius)
}

func TestMetadata_WithDefaults(t *testing.T) {
	m := Metadata{Version: 3}.WithDefaults()
	assert.Equal(t, DefaultUpdateURL, m.UpdateURL)
	assert.Equal(t, DefaultBlacklistURL, m.BlacklistURL)

	m = Metadata{UpdateURL: "http://x"}.WithDefaults()
	assert.Equal(t, "http://x", m.UpdateURL)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Vector3{}, Vector3{X: 3, Z: 4}), 1e-6)
}
