package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmark/overmark/internal/config"
)

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.Error(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
}

func TestUpdatePoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := UpdatePoint("DynamisDelta", 1122, 1500*time.Microsecond, at)

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "script_update,script=DynamisDelta,territory=1122 duration_ms=1.5")
}

func TestWritePoint_Uninitialized(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{}, "")
	assert.Error(t, m.WritePoint(UpdatePoint("x", 1, time.Millisecond, time.Now())))
}

func TestObserveUpdate_FallsBackToBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "overmark",
		Bucket:   "overlay_performance",
	}, path)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	m.ObserveUpdate("DynamisDelta", 1122, 2*time.Millisecond)
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.Equal(t, "script_update,script=DynamisDelta,territory=1122 duration_ms=2 1700000000000000000\n", string(data))
}
