package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmark/overmark/internal/engine"
	"github.com/overmark/overmark/internal/logging"
	"github.com/overmark/overmark/internal/scripts/omega"
	"github.com/overmark/overmark/internal/world"
)

func TestLoadFeed(t *testing.T) {
	feed, err := loadFeed("")
	require.NoError(t, err)
	assert.Len(t, feed, 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"territory":1122,"scene":6},{"territory":1}]`), 0644))
	feed, err = loadFeed(path)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, uint32(1122), feed[0].Territory())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0644))
	_, err = loadFeed(empty)
	assert.Error(t, err)

	_, err = loadFeed(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRunLoop_StopsAfterMaxFrames(t *testing.T) {
	e, err := engine.New(engine.Dependencies{})
	require.NoError(t, err)
	s := omega.NewDynamisDelta()
	require.NoError(t, e.Load(s))

	svc := &services{slog: logging.NewSlogManager(), engine: e}
	feed := []*world.Snapshot{{TerritoryID: 1122}, {TerritoryID: 1}}

	frames := runLoop(context.Background(), svc, feed, time.Millisecond, 3)
	assert.Equal(t, 3, frames)
	assert.Equal(t, int64(3), svc.frame.Load())
	assert.Equal(t, uint32(1122), svc.territory.Load(), "third frame wraps to the first snapshot")
	assert.True(t, e.Scripts()[0].Active)
}

func TestRunLoop_StopsOnCancel(t *testing.T) {
	e, err := engine.New(engine.Dependencies{})
	require.NoError(t, err)
	svc := &services{slog: logging.NewSlogManager(), engine: e}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, runLoop(ctx, svc, []*world.Snapshot{{}}, time.Hour, 0))
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, zerologLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, zerologLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel(""))
}
