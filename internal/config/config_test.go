package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/memocache/cache"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		wantField string
		checkFunc func(*testing.T, Config)
	}{
		{
			name:     "full file",
			testFile: "lfu.yaml",
			checkFunc: func(t *testing.T, cfg Config) {
				assert.Equal(t, 500, cfg.Cache.Capacity)
				assert.Equal(t, PolicyLFU, cfg.Cache.Policy)
				assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
				assert.True(t, cfg.Memo.Typed)
				assert.True(t, cfg.Memo.Guard)
			},
		},
		{
			name:     "missing keys keep defaults",
			testFile: "partial.yaml",
			checkFunc: func(t *testing.T, cfg Config) {
				assert.Equal(t, Default().Cache, cfg.Cache)
				assert.True(t, cfg.Memo.Guard)
			},
		},
		{
			name:      "unknown policy",
			testFile:  "bad_policy.yaml",
			wantField: "cache.policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join("testdata", tt.testFile))
			if tt.wantField != "" {
				var cerr *Error
				require.True(t, errors.As(err, &cerr), "want *Error, got %v", err)
				assert.Equal(t, tt.wantField, cerr.Field)
				return
			}
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Cache)
		field  string
	}{
		"capacity":    {func(c *Cache) { c.Capacity = -2 }, "cache.capacity"},
		"shards":      {func(c *Cache) { c.Shards = -1 }, "cache.shards"},
		"ttl":         {func(c *Cache) { c.TTL = -time.Second }, "cache.ttl"},
		"ttl policy":  {func(c *Cache) { c.Policy = PolicyTTL }, "cache.ttl"},
		"max cost":    {func(c *Cache) { c.MaxCost = -1 }, "cache.max_cost"},
		"policy name": {func(c *Cache) { c.Policy = "mru" }, "cache.policy"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Cache)
			err := cfg.Validate()
			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, cerr.Error(), tt.field)
		})
	}

	assert.NoError(t, Default().Validate())
	unbounded := Default()
	unbounded.Cache.Capacity = cache.Unbounded
	assert.NoError(t, unbounded.Validate())
}

func TestBuildOptions(t *testing.T) {
	for _, p := range []string{"", PolicyLRU, PolicyLFU, PolicyRandom, Policy2Q, PolicyTTL} {
		t.Run("policy="+p, func(t *testing.T) {
			c := Cache{Capacity: 4, Policy: p, TTL: time.Minute, Seed: 3}
			opt, err := BuildOptions[string, int](c)
			require.NoError(t, err)
			assert.Equal(t, time.Minute, opt.DefaultTTL)
			require.NotNil(t, opt.Policy)

			cc := cache.New(opt)
			for i, k := range []string{"a", "b", "c", "d", "e", "f"} {
				cc.Set(k, i)
			}
			assert.LessOrEqual(t, cc.Len(), 4)
		})
	}

	_, err := BuildOptions[string, int](Cache{Capacity: 1, Policy: PolicyTTL})
	var cerr *Error
	assert.True(t, errors.As(err, &cerr))
}
