package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/IvanBrykalov/memocache/internal/config"
	applog "github.com/IvanBrykalov/memocache/internal/log"
	"github.com/IvanBrykalov/memocache/keys"
	"github.com/IvanBrykalov/memocache/memo"
	pmet "github.com/IvanBrykalov/memocache/metrics/prom"
)

func newApp(out io.Writer) *cli.Command {
	var cfgPath string
	return &cli.Command{
		Name:   "memobench",
		Usage:  "run a Zipf workload against a memoized function",
		Writer: out,
		Flags:  flags(&cfgPath),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := applog.Init(cmd.String("log-level")); err != nil {
				return err
			}
			if cfgPath != "" {
				// Surface file errors with field names before flags mask them.
				if _, err := config.Load(cfgPath); err != nil {
					return err
				}
			}
			return run(ctx, cmd.Writer, settingsFrom(cmd))
		},
	}
}

// settings is the resolved flag set.
type settings struct {
	cfg config.Config

	workers     int
	duration    time.Duration
	keys        uint64
	zipfS       float64
	zipfV       float64
	seed        uint64
	work        uint64
	metricsAddr string
	snapshotIn  string
	snapshotOut string
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		cfg: config.Config{
			Cache: config.Cache{
				Capacity: cmd.Int("capacity"),
				Shards:   cmd.Int("shards"),
				Policy:   cmd.String("policy"),
				TTL:      cmd.Duration("ttl"),
				Seed:     cmd.Uint64("seed"),
				MaxCost:  cmd.Int64("max-cost"),
			},
			Memo: config.Memo{
				Typed: cmd.Bool("typed"),
				Guard: cmd.Bool("guard"),
			},
		},
		workers:     cmd.Int("workers"),
		duration:    cmd.Duration("duration"),
		keys:        cmd.Uint64("keys"),
		zipfS:       cmd.Float("zipf-s"),
		zipfV:       cmd.Float("zipf-v"),
		seed:        cmd.Uint64("seed"),
		work:        cmd.Uint64("work"),
		metricsAddr: cmd.String("metrics-addr"),
		snapshotIn:  cmd.String("snapshot-in"),
		snapshotOut: cmd.String("snapshot-out"),
	}
}

func (s settings) validate() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	switch {
	case s.workers <= 0:
		return errors.New("--workers must be positive")
	case s.duration <= 0:
		return errors.New("--duration must be positive")
	case s.keys == 0:
		return errors.New("--keys must be positive")
	case s.zipfS <= 1:
		return errors.New("--zipf-s must be > 1")
	case s.zipfV < 1:
		return errors.New("--zipf-v must be >= 1")
	}
	return nil
}

func run(ctx context.Context, out io.Writer, s settings) error {
	if err := s.validate(); err != nil {
		return err
	}

	opt, err := config.BuildOptions[keys.Key, uint64](s.cfg.Cache)
	if err != nil {
		return err
	}
	if opt.MaxCost > 0 {
		opt.Cost = func(uint64) int { return 1 }
	}

	var srv *http.Server
	if s.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opt.Metrics = pmet.New(reg, "memocache", "bench", prometheus.Labels{"policy": s.cfg.Cache.Policy})
		srv = serveMetrics(s.metricsAddr, reg)
		defer shutdown(srv)
	}

	c := cache.New(opt)
	defer func() { _ = c.Close() }()

	if s.snapshotIn != "" {
		if err := readSnapshot(s.snapshotIn, c); err != nil {
			return err
		}
		log.WithFields(log.Fields{"file": s.snapshotIn, "entries": c.Len()}).Info("restored snapshot")
	}

	d := &digester{cache: c, work: s.work}
	if s.cfg.Memo.Guard {
		d.guard = memo.NewSemaphore()
	}

	log.WithFields(log.Fields{
		"policy":   s.cfg.Cache.Policy,
		"capacity": c.Cap(),
		"workers":  s.workers,
		"duration": s.duration,
	}).Info("starting workload")

	res, err := runWorkload(ctx, newDigest(s.cfg.Memo), d, s)
	if err != nil {
		return err
	}
	report(out, s, res, c)

	if s.snapshotOut != "" {
		if err := writeSnapshot(s.snapshotOut, c); err != nil {
			return err
		}
		log.WithFields(log.Fields{"file": s.snapshotOut, "entries": c.Len()}).Info("wrote snapshot")
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func readSnapshot(path string, c cache.Cache[keys.Key, uint64]) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := cache.ReadSnapshot(f, c); err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	return nil
}

func writeSnapshot(path string, c cache.Cache[keys.Key, uint64]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cache.WriteSnapshot(f, c); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	return f.Close()
}

func report(w io.Writer, s settings, r result, c cache.Cache[keys.Key, uint64]) {
	st := c.Stats()
	hitRate := 0.0
	if st.Hits+st.Misses > 0 {
		hitRate = float64(st.Hits) / float64(st.Hits+st.Misses) * 100
	}
	fmt.Fprintf(w, "policy=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d typed=%t guard=%t\n",
		s.cfg.Cache.Policy, c.Cap(), s.cfg.Cache.Shards, s.workers, s.keys, r.elapsed.Round(time.Millisecond),
		s.seed, s.cfg.Memo.Typed, s.cfg.Memo.Guard)
	fmt.Fprintf(w, "calls=%d (%.0f calls/s)  computed=%d\n",
		r.calls, float64(r.calls)/r.elapsed.Seconds(), r.computed)
	fmt.Fprintf(w, "hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d\n",
		st.Hits, st.Misses, hitRate, st.Evictions)
	fmt.Fprintf(w, "Len()=%d\n", c.Len())
}
