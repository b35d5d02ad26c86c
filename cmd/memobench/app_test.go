package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/IvanBrykalov/memocache/internal/config"
	"github.com/IvanBrykalov/memocache/keys"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"memobench"}, args...))
	return out.String(), err
}

func TestApp_RunAndSnapshotRoundTrip(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "bench.snap")

	out, err := runApp(t,
		"--duration", "50ms", "--workers", "2", "--keys", "100",
		"--capacity", "1000", "--guard", "--snapshot-out", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "policy=lru")
	assert.Contains(t, out, "guard=true")
	assert.Contains(t, out, "hit-rate=")

	f, err := os.Open(snap)
	require.NoError(t, err)
	defer f.Close()
	c := cache.New(cache.Options[keys.Key, uint64]{Capacity: cache.Unbounded})
	require.NoError(t, cache.ReadSnapshot(f, c))
	assert.Positive(t, c.Len())
	assert.LessOrEqual(t, c.Len(), 100)

	out, err = runApp(t,
		"--duration", "20ms", "--workers", "1", "--keys", "100",
		"--capacity", "1000", "--snapshot-in", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "Len()=")
}

func TestApp_ConfigFileSuppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  capacity: 500
  policy: lfu
memo:
  typed: true
bench:
  workers: 3
  keys: 50
`), 0o600))

	out, err := runApp(t, "--config", path, "--duration", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "policy=lfu")
	assert.Contains(t, out, "workers=3")
	assert.Contains(t, out, "keys=50")
	assert.Contains(t, out, "typed=true")

	// Flags win over the file.
	out, err = runApp(t, "--config", path, "--duration", "20ms", "--policy", "2q")
	require.NoError(t, err)
	assert.Contains(t, out, "policy=2q")
}

func TestApp_InvalidSettings(t *testing.T) {
	_, err := runApp(t, "--duration", "10ms", "--zipf-s", "0.5")
	assert.Error(t, err)

	_, err = runApp(t, "--duration", "10ms", "--policy", "ttl")
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cache.ttl", cerr.Field)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  policy: mru\n"), 0o600))
	_, err = runApp(t, "--config", path, "--duration", "10ms")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cache.policy", cerr.Field)
}

func TestDigest_Memoized(t *testing.T) {
	c := cache.New(cache.Options[keys.Key, uint64]{Capacity: 10})
	d := &digester{cache: c, work: 4}
	m := newDigest(config.Memo{})

	a, err := m.Call(context.Background(), d, uint64(7))
	require.NoError(t, err)
	b, err := m.Call(context.Background(), d, uint64(7))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, uint64(1), d.computed.Load())
	assert.Equal(t, 1, c.Len())
}
