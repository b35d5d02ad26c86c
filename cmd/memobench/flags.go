package main

import (
	"runtime"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/IvanBrykalov/memocache/internal/config"
)

// sources resolves a flag from $MEMOBENCH_<NAME>, then from key in the
// file named by --config. cfgPath is read lazily, after --config is parsed.
func sources(name, key string, cfgPath *string) cli.ValueSourceChain {
	env := "MEMOBENCH_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return cli.NewValueSourceChain(
		cli.EnvVar(env),
		yaml.YAML(key, altsrc.NewStringPtrSourcer(cfgPath)),
	)
}

func flags(cfgPath *string) []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "YAML config file supplying flag defaults",
			Destination: cfgPath,
			Sources:     cli.EnvVars("MEMOBENCH_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug | info | warn | error (default $MEMOCACHE_LOG or info)",
			Sources: sources("log-level", "log_level", cfgPath),
		},

		// cache
		&cli.IntFlag{
			Name:    "capacity",
			Usage:   "cache capacity in entries (-1 = unbounded)",
			Value:   def.Cache.Capacity,
			Sources: sources("capacity", "cache.capacity", cfgPath),
		},
		&cli.IntFlag{
			Name:    "shards",
			Usage:   "shard count (0 = auto)",
			Sources: sources("shards", "cache.shards", cfgPath),
		},
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "eviction policy: lru | lfu | random | 2q | ttl",
			Value:   def.Cache.Policy,
			Sources: sources("policy", "cache.policy", cfgPath),
		},
		&cli.DurationFlag{
			Name:    "ttl",
			Usage:   "entry TTL (0 = none; required by --policy ttl)",
			Sources: sources("ttl", "cache.ttl", cfgPath),
		},
		&cli.Int64Flag{
			Name:    "max-cost",
			Usage:   "cost budget, one unit per entry (0 = disabled)",
			Sources: sources("max-cost", "cache.max_cost", cfgPath),
		},

		// memo
		&cli.BoolFlag{
			Name:    "typed",
			Usage:   "build typed keys",
			Sources: sources("typed", "memo.typed", cfgPath),
		},
		&cli.BoolFlag{
			Name:    "guard",
			Usage:   "serialize lookups and writes through a shared semaphore",
			Sources: sources("guard", "memo.guard", cfgPath),
		},

		// workload
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "concurrent callers",
			Value:   2 * runtime.GOMAXPROCS(0),
			Sources: sources("workers", "bench.workers", cfgPath),
		},
		&cli.DurationFlag{
			Name:    "duration",
			Usage:   "run time",
			Value:   5 * time.Second,
			Sources: sources("duration", "bench.duration", cfgPath),
		},
		&cli.Uint64Flag{
			Name:    "keys",
			Usage:   "distinct arguments",
			Value:   1_000_000,
			Sources: sources("keys", "bench.keys", cfgPath),
		},
		&cli.FloatFlag{
			Name:    "zipf-s",
			Usage:   "Zipf skew, > 1",
			Value:   1.1,
			Sources: sources("zipf-s", "bench.zipf_s", cfgPath),
		},
		&cli.FloatFlag{
			Name:    "zipf-v",
			Usage:   "Zipf v, >= 1",
			Value:   1.0,
			Sources: sources("zipf-v", "bench.zipf_v", cfgPath),
		},
		&cli.Uint64Flag{
			Name:    "seed",
			Usage:   "seed for the workload and the random policy",
			Value:   1,
			Sources: sources("seed", "bench.seed", cfgPath),
		},
		&cli.Uint64Flag{
			Name:    "work",
			Usage:   "hash rounds per uncached call",
			Value:   64,
			Sources: sources("work", "bench.work", cfgPath),
		},

		// outputs
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "serve Prometheus /metrics at addr (e.g. :8080); empty = disabled",
			Sources: sources("metrics-addr", "bench.metrics_addr", cfgPath),
		},
		&cli.StringFlag{
			Name:    "snapshot-in",
			Usage:   "restore the cache from this snapshot before the run",
			Sources: sources("snapshot-in", "bench.snapshot_in", cfgPath),
		},
		&cli.StringFlag{
			Name:    "snapshot-out",
			Usage:   "write a cache snapshot here after the run",
			Sources: sources("snapshot-out", "bench.snapshot_out", cfgPath),
		},
	}
}
