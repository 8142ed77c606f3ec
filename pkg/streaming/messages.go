// Package streaming defines the wire messages the overlay host publishes to
// external viewers over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/overmark/overmark/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello   = "hello"
	TypeFrame   = "frame"
	TypeScripts = "scripts"
	TypeBye     = "bye"

	// TypeCommand flows from the viewer to the host.
	TypeCommand = "command"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// ScriptInfo is the public status of one loaded script.
type ScriptInfo struct {
	Name        string `json:"name"`
	Version     uint   `json:"version"`
	Author      string `json:"author,omitempty"`
	Enabled     bool   `json:"enabled"`
	Active      bool   `json:"active"`
	Blacklisted bool   `json:"blacklisted"`
}

// HelloPayload opens a session. It is replayed after a reconnect.
type HelloPayload struct {
	Host    string       `json:"host"`
	Scripts []ScriptInfo `json:"scripts"`
}

// ElementView is one enabled element of an active script.
type ElementView struct {
	Script  string       `json:"script"`
	Name    string       `json:"name"`
	Element core.Element `json:"element"`
}

// FreezeView is one active freeze with its objects.
type FreezeView struct {
	ShowUntil int64                `json:"showUntil"`
	Objects   []core.DisplayObject `json:"objects"`
}

// FramePayload is everything the renderer would draw for one frame.
type FramePayload struct {
	Now       int64         `json:"now"`
	Territory uint32        `json:"territory"`
	Elements  []ElementView `json:"elements"`
	Freezes   []FreezeView  `json:"freezes"`
}

// CommandPayload asks the host to run a control command, e.g.
// {"name":"disable","args":["DynamisDelta"]}.
type CommandPayload struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}
