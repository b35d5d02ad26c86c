// Package config loads cache and memoizer settings from YAML.
//
// A file looks like:
//
//	cache:
//	  capacity: 10000
//	  shards: 0
//	  policy: lfu        # lru | lfu | random | 2q | ttl
//	  ttl: 5m
//	  seed: 1
//	  max_cost: 0
//	memo:
//	  typed: false
//	  guard: true
//
// The memobench command reads the same keys as flag defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/IvanBrykalov/memocache/internal/util"
	"github.com/IvanBrykalov/memocache/policy"
	"github.com/IvanBrykalov/memocache/policy/lfu"
	"github.com/IvanBrykalov/memocache/policy/lru"
	"github.com/IvanBrykalov/memocache/policy/random"
	"github.com/IvanBrykalov/memocache/policy/twoq"
)

// Policy names accepted in Cache.Policy.
const (
	PolicyLRU    = "lru"
	PolicyLFU    = "lfu"
	PolicyRandom = "random"
	Policy2Q     = "2q"
	// PolicyTTL is LRU with a mandatory TTL.
	PolicyTTL = "ttl"
)

// Config is the whole file.
type Config struct {
	Cache Cache `yaml:"cache"`
	Memo  Memo  `yaml:"memo"`
}

// Cache mirrors cache.Options.
type Cache struct {
	// Capacity is the entry limit; -1 means unbounded.
	Capacity int           `yaml:"capacity"`
	Shards   int           `yaml:"shards"`
	Policy   string        `yaml:"policy"`
	TTL      time.Duration `yaml:"ttl"`
	// Seed drives the random policy.
	Seed    uint64 `yaml:"seed"`
	MaxCost int64  `yaml:"max_cost"`
}

// Memo holds memoizer settings.
type Memo struct {
	// Typed selects keys.Typed over keys.Hash.
	Typed bool `yaml:"typed"`
	// Guard serializes lookups and writes through a memo.Semaphore.
	Guard bool `yaml:"guard"`
}

// Default returns a 10k-entry LRU configuration.
func Default() Config {
	return Config{Cache: Cache{Capacity: 10_000, Policy: PolicyLRU}}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Error reports an invalid field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Validate checks every field and returns the first *Error found.
func (c Config) Validate() error {
	cc := c.Cache
	if cc.Capacity < cache.Unbounded {
		return &Error{Field: "cache.capacity", Message: "must be >= 0, or -1 for unbounded"}
	}
	if cc.Shards < 0 {
		return &Error{Field: "cache.shards", Message: "must be non-negative"}
	}
	if cc.TTL < 0 {
		return &Error{Field: "cache.ttl", Message: "must be non-negative"}
	}
	if cc.MaxCost < 0 {
		return &Error{Field: "cache.max_cost", Message: "must be non-negative"}
	}
	switch strings.ToLower(cc.Policy) {
	case "", PolicyLRU, PolicyLFU, PolicyRandom, Policy2Q:
	case PolicyTTL:
		if cc.TTL == 0 {
			return &Error{Field: "cache.ttl", Message: "required by the ttl policy"}
		}
	default:
		return &Error{Field: "cache.policy", Message: fmt.Sprintf("unknown policy %q", cc.Policy)}
	}
	return nil
}

// BuildOptions turns a validated Cache section into cache.Options.
// Metrics, Loader and the like are left for the caller.
func BuildOptions[K comparable, V any](c Cache) (cache.Options[K, V], error) {
	if err := (Config{Cache: c}).Validate(); err != nil {
		return cache.Options[K, V]{}, err
	}
	return cache.Options[K, V]{
		Capacity:   c.Capacity,
		Shards:     c.Shards,
		Policy:     NewPolicy[K, V](c),
		DefaultTTL: c.TTL,
		MaxCost:    c.MaxCost,
	}, nil
}

// NewPolicy returns the factory named by c.Policy (LRU if empty).
func NewPolicy[K comparable, V any](c Cache) policy.Policy[K, V] {
	switch strings.ToLower(c.Policy) {
	case PolicyLFU:
		return lfu.New[K, V]()
	case PolicyRandom:
		return random.New[K, V](c.Seed)
	case Policy2Q:
		n := util.LimitByCost(util.ShardsFor(c.Capacity, c.Shards), c.MaxCost)
		perShard := util.SplitCapacity(c.Capacity, n, 0)
		if perShard < 0 {
			perShard = util.MinShardCapacity
		}
		return twoq.ForCapacity[K, V](perShard)
	default:
		return lru.New[K, V]()
	}
}
