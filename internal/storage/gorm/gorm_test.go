package gormstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit_NoDB(t *testing.T) {
	b := New(nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}
