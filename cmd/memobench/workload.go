package main

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/memocache/cache"
	"github.com/IvanBrykalov/memocache/internal/config"
	"github.com/IvanBrykalov/memocache/keys"
	"github.com/IvanBrykalov/memocache/memo"
)

// digester is the receiver of the memoized method. computed counts calls
// that reached the body.
type digester struct {
	cache    cache.Cache[keys.Key, uint64]
	guard    *memo.Semaphore
	work     uint64
	computed atomic.Uint64
}

// digest hashes n through d.work rounds of xxhash.
func digest(_ context.Context, d *digester, args ...any) (uint64, error) {
	d.computed.Add(1)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], args[0].(uint64))
	h := xxhash.Sum64(buf[:])
	for i := uint64(0); i < d.work; i++ {
		binary.LittleEndian.PutUint64(buf[:], h)
		h = xxhash.Sum64(buf[:])
	}
	return h, nil
}

func newDigest(mc config.Memo) *memo.Method[*digester, uint64] {
	opt := memo.Options[*digester, uint64]{
		Name:  "digest",
		Cache: func(d *digester) memo.Store[uint64] { return d.cache },
	}
	if mc.Typed {
		opt.Key = keys.Typed
	}
	if mc.Guard {
		opt.Guard = func(d *digester) memo.Guard { return d.guard }
	}
	return memo.New(digest, opt)
}

type result struct {
	calls    uint64
	computed uint64
	elapsed  time.Duration
}

// runWorkload calls m from s.workers goroutines with Zipf-distributed
// arguments until s.duration elapses or ctx is done.
func runWorkload(ctx context.Context, m *memo.Method[*digester, uint64], d *digester, s settings) (result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.duration)
	defer cancel()

	var calls atomic.Uint64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < s.workers; w++ {
		id := uint64(w)
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one per worker.
			r := rand.New(rand.NewPCG(s.seed, id))
			z := rand.NewZipf(r, s.zipfS, s.zipfV, s.keys-1)
			for ctx.Err() == nil {
				if _, err := m.Call(ctx, d, z.Uint64()); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				calls.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, err
	}
	return result{
		calls:    calls.Load(),
		computed: d.computed.Load(),
		elapsed:  time.Since(start),
	}, nil
}
