package engine

import (
	"github.com/overmark/overmark/internal/codec"
	"github.com/overmark/overmark/pkg/core"
)

// TryDecodeElement parses an exported element code. It never panics; any
// malformed or unrecognized input yields (nil, false).
func TryDecodeElement(text string) (*core.Element, bool) {
	e, err := codec.DecodeElement(text)
	if err != nil {
		return nil, false
	}
	return e, true
}

// TryDecodeLayout parses an exported layout code, with or without the
// versioned prefix.
func TryDecodeLayout(text string) (*core.Layout, bool) {
	l, err := codec.DecodeLayout(text)
	if err != nil {
		return nil, false
	}
	return l, true
}

// EncodeElement renders an element as its exported code.
func EncodeElement(e *core.Element) (string, error) {
	return codec.EncodeElement(e)
}

// EncodeLayout renders a layout as its exported code, prefixed with the
// layout format marker.
func EncodeLayout(l *core.Layout) (string, error) {
	return codec.EncodeLayout(l)
}
