package scripts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltin_UniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Builtin() {
		assert.NotEmpty(t, s.Name())
		assert.False(t, seen[s.Name()], "duplicate script %s", s.Name())
		seen[s.Name()] = true
	}
	assert.NotEmpty(t, seen)
}

func TestBuiltin_FreshInstances(t *testing.T) {
	a, b := Builtin(), Builtin()
	assert.NotSame(t, a[0], b[0])
}
