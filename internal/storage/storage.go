// Package storage persists user-edited settings: element overrides (the
// exported code of an element the user changed) and script enable flags.
package storage

// Store is the interface all settings backends satisfy.
type Store interface {
	Init() error
	Close() error

	// SaveElementOverride stores code for the named element of script,
	// replacing any previous override.
	SaveElementOverride(script, element, code string) error
	// ElementOverrides returns element name → code for script.
	ElementOverrides(script string) (map[string]string, error)
	DeleteElementOverride(script, element string) error

	SaveScriptState(script string, enabled bool) error
	// ScriptState reports the persisted enable flag; found is false when
	// nothing was stored.
	ScriptState(script string) (enabled bool, found bool, err error)
}
