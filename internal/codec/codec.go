// Package codec converts elements and layouts to and from their exported
// string form, a flat JSON record with stable field names. Decoding fills
// missing keys with defaults and ignores keys it does not recognize.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/overmark/overmark/pkg/core"
)

// LayoutPrefix marks the current layout export format.
const LayoutPrefix = "~Lv2~"

var (
	// ErrUnknownSchema is returned for input that is not an element/layout record.
	ErrUnknownSchema = errors.New("unknown schema")
)

// DecodeElement parses an exported element string.
func DecodeElement(text string) (*core.Element, error) {
	return decodeElement([]byte(strings.TrimSpace(text)))
}

func decodeElement(data []byte) (*core.Element, error) {
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrUnknownSchema
	}
	e := core.NewElement(core.ElementCircleFixed)
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("element type %d: %w", e.Type, ErrUnknownSchema)
	}
	if !e.RefActorType.Valid() {
		return nil, fmt.Errorf("ref actor type %d: %w", e.RefActorType, ErrUnknownSchema)
	}
	return e, nil
}

// EncodeElement renders every recognized element field.
func EncodeElement(e *core.Element) (string, error) {
	if e == nil {
		return "", errors.New("encode element: nil element")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode element: %w", err)
	}
	return string(data), nil
}

// layoutRecord defers element decoding so each element gets its defaults.
type layoutRecord struct {
	Name     string            `json:"Name"`
	Group    string            `json:"Group"`
	Enabled  *bool             `json:"Enabled"`
	ZoneLock []uint16          `json:"ZoneLockH"`
	Elements []json.RawMessage `json:"ElementsL"`
}

// DecodeLayout parses an exported layout string, with or without LayoutPrefix.
func DecodeLayout(text string) (*core.Layout, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, LayoutPrefix)
	data := []byte(strings.TrimSpace(text))
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrUnknownSchema
	}

	var rec layoutRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}

	l := core.NewLayout(rec.Name)
	l.Group = rec.Group
	if rec.Enabled != nil {
		l.Enabled = *rec.Enabled
	}
	if rec.ZoneLock != nil {
		l.ZoneLock = rec.ZoneLock
	}
	for i, raw := range rec.Elements {
		e, err := decodeElement(bytes.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("layout element %d: %w", i, err)
		}
		l.Elements = append(l.Elements, e)
	}
	return l, nil
}

// EncodeLayout renders a layout with LayoutPrefix. Nil elements are skipped.
func EncodeLayout(l *core.Layout) (string, error) {
	if l == nil {
		return "", errors.New("encode layout: nil layout")
	}
	out := *l
	out.Elements = make([]*core.Element, 0, len(l.Elements))
	for _, e := range l.Elements {
		if e != nil {
			out.Elements = append(out.Elements, e)
		}
	}
	if out.ZoneLock == nil {
		out.ZoneLock = []uint16{}
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("encode layout: %w", err)
	}
	return LayoutPrefix + string(data), nil
}
