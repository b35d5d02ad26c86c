package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanBrykalov/memocache/policy/lfu"
	"github.com/IvanBrykalov/memocache/policy/random"
	"github.com/IvanBrykalov/memocache/policy/twoq"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// Per-entry TTL with a fake clock.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, string](Options[string, string]{Capacity: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.SetWithTTL("x", "v", 100*time.Millisecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("fresh miss")
	}
	clk.add(200 * time.Millisecond)
	if _, ok := c.Peek("x"); ok {
		t.Fatal("Peek must not see an expired entry")
	}
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired hit")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be dropped on access, len=%d", c.Len())
	}
}

// Reads never extend a deadline; overwrites reset it.
func TestCache_TTL_MeasuredFromWrite(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, int](Options[string, int]{Capacity: 4, Clock: clk, DefaultTTL: time.Second})

	c.Set("a", 1)
	clk.add(600 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a must still be live")
	}
	clk.add(600 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a read must not have extended its TTL")
	}

	c.Set("b", 1)
	clk.add(600 * time.Millisecond)
	c.Set("b", 2)
	clk.add(600 * time.Millisecond)
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("overwrite must reset the deadline, got %v ok=%v", v, ok)
	}
}

// Expired entries are evicted before the policy is asked for a victim.
func TestCache_TTL_ExpiredGoFirst(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	var reasons []EvictReason
	c := New[string, int](Options[string, int]{
		Capacity: 2,
		Clock:    clk,
		OnEvict:  func(_ string, _ int, r EvictReason) { reasons = append(reasons, r) },
	})

	c.Set("old", 1)
	c.SetWithTTL("short", 2, time.Second)
	clk.add(2 * time.Second)
	c.Set("new", 3)

	if _, ok := c.Get("old"); !ok {
		t.Fatal("LRU entry must survive while an expired one can be dropped")
	}
	if len(reasons) != 1 || reasons[0] != EvictTTL {
		t.Fatalf("want one TTL eviction, got %v", reasons)
	}
}

func TestCache_Purge(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[int, int](Options[int, int]{Capacity: 100, Clock: clk})
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			c.SetWithTTL(i, i, time.Second)
		} else {
			c.Set(i, i)
		}
	}
	if n := c.Purge(); n != 0 {
		t.Fatalf("nothing expired yet, purged %d", n)
	}
	clk.add(2 * time.Second)
	if n := c.Purge(); n != 5 {
		t.Fatalf("want 5 purged, got %d", n)
	}
	if c.Len() != 5 {
		t.Fatalf("want 5 left, got %d", c.Len())
	}
}

// Add inserts only if key is absent; Set updates; Remove deletes.
func TestCache_BasicAddSetGetRemove(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 8})
	t.Cleanup(func() { _ = c.Close() })

	if !c.Add("a", 1) {
		t.Fatal("Add a=1 must be true")
	}
	if c.Add("a", 2) {
		t.Fatal("Add duplicate must be false")
	}

	c.Set("a", 11)
	if v, ok := c.Get("a"); !ok || v != 11 {
		t.Fatalf("Get a want 11, got %v ok=%v", v, ok)
	}

	if !c.Remove("a") {
		t.Fatal("Remove a must be true")
	}
	if c.Remove("a") {
		t.Fatal("second Remove must be false")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Remove")
	}
}

// Accessing "a" promotes it; inserting "c" evicts LRU ("b").
func TestCache_EvictionLRU(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Set("b", 2)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("expect hit for a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a must survive (promoted)")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatal("c must be present")
	}
}

// Peek neither promotes nor counts.
func TestCache_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Peek("a"); !ok || v != 1 {
		t.Fatalf("Peek a: %v %v", v, ok)
	}
	c.Set("c", 3)
	if _, ok := c.Peek("a"); ok {
		t.Fatal("a must be evicted: Peek is not a use")
	}
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Peek must not count, got %+v", st)
	}
}

// Capacity 0 keeps nothing and Clear on it is harmless.
func TestCache_ZeroCapacity(t *testing.T) {
	t.Parallel()

	var evicted int
	c := New[string, int](Options[string, int]{
		Capacity: 0,
		OnEvict:  func(string, int, EvictReason) { evicted++ },
	})
	if c.Cap() != 0 {
		t.Fatalf("Cap=%d", c.Cap())
	}
	for i := 0; i < 3; i++ {
		c.Set("k", i)
		if _, ok := c.Get("k"); ok {
			t.Fatal("zero-capacity cache must never hit")
		}
		if c.Len() != 0 {
			t.Fatalf("Len=%d", c.Len())
		}
	}
	if !c.Add("k", 1) {
		t.Fatal("Add on absent key reports true even if rejected")
	}
	if evicted != 4 {
		t.Fatalf("every write must be rejected, evicted=%d", evicted)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("Clear must leave an empty cache")
	}
}

func TestCache_Unbounded(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: Unbounded})
	for i := 0; i < 10_000; i++ {
		c.Set(i, i)
	}
	if c.Len() != 10_000 {
		t.Fatalf("unbounded cache must keep everything, len=%d", c.Len())
	}
	if c.Cap() != Unbounded {
		t.Fatalf("Cap=%d", c.Cap())
	}
}

func TestCache_NegativeCapacityPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("Capacity -2 must panic")
		}
	}()
	New[int, int](Options[int, int]{Capacity: -2})
}

// Len never exceeds Cap, whatever the shard layout.
func TestCache_CapacityBoundAcrossShards(t *testing.T) {
	t.Parallel()

	for _, shards := range []int{0, 1, 4, 16} {
		c := New[int, int](Options[int, int]{Capacity: 100, Shards: shards})
		for i := 0; i < 1_000; i++ {
			c.Set(i, i)
			if c.Len() > c.Cap() {
				t.Fatalf("shards=%d: len %d > cap %d", shards, c.Len(), c.Cap())
			}
		}
	}
}

// Clear empties the cache without reporting evictions.
func TestCache_Clear(t *testing.T) {
	t.Parallel()

	var evicted atomic.Int64
	c := New[int, int](Options[int, int]{
		Capacity: 1_000,
		Shards:   4,
		OnEvict:  func(int, int, EvictReason) { evicted.Add(1) },
	})
	for i := 0; i < 500; i++ {
		c.Set(i, i)
	}
	c.Clear()
	if c.Len() != 0 || c.Stats().Entries != 0 {
		t.Fatalf("len=%d stats=%+v", c.Len(), c.Stats())
	}
	if evicted.Load() != 0 {
		t.Fatal("Clear must not call OnEvict")
	}
	c.Set(1, 1)
	if v, ok := c.Get(1); !ok || v != 1 {
		t.Fatal("cache must be usable after Clear")
	}
}

// Cost budget: heavy values push out older entries with EvictCapacity.
func TestCache_MaxCost(t *testing.T) {
	t.Parallel()

	var reasons []EvictReason
	c := New[string, string](Options[string, string]{
		Capacity: 100,
		MaxCost:  10,
		Cost:     func(v string) int { return len(v) },
		OnEvict:  func(_ string, _ string, r EvictReason) { reasons = append(reasons, r) },
	})
	c.Set("a", "aaaa")
	c.Set("b", "bbbb")
	c.Set("c", "cccc")

	if _, ok := c.Peek("a"); ok {
		t.Fatal("a must be evicted to satisfy MaxCost")
	}
	if st := c.Stats(); st.Cost != 8 || st.Entries != 2 {
		t.Fatalf("stats %+v", st)
	}
	if len(reasons) != 1 || reasons[0] != EvictCapacity {
		t.Fatalf("reasons %v", reasons)
	}
}

// A full LFU cache admits a new key by evicting its least used resident,
// even once every resident has been used more than the newcomer.
// The cost budget holds across shards, even with more shards than units.
func TestCache_MaxCostAcrossShards(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{
		Capacity: 1000,
		Shards:   8,
		MaxCost:  3,
		Cost:     func(int) int { return 1 },
	})
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
		if st := c.Stats(); st.Cost > 3 {
			t.Fatalf("after %d inserts resident cost %d > 3", i+1, st.Cost)
		}
	}
	if c.Len() == 0 {
		t.Fatal("unit-cost entries must fit")
	}
}

// An entry heavier than the whole budget is turned away without flushing
// the residents.
func TestCache_MaxCostOversizedEntry(t *testing.T) {
	t.Parallel()

	var reasons []EvictReason
	c := New[string, string](Options[string, string]{
		Capacity: 10,
		MaxCost:  5,
		Cost:     func(v string) int { return len(v) },
		OnEvict:  func(_ string, _ string, r EvictReason) { reasons = append(reasons, r) },
	})
	c.Set("a", "aa")
	c.Set("big", "bbbbbb")
	if _, ok := c.Peek("big"); ok {
		t.Fatal("big exceeds MaxCost on its own")
	}
	if _, ok := c.Peek("a"); !ok {
		t.Fatal("a must survive")
	}
	if len(reasons) != 1 || reasons[0] != EvictCapacity {
		t.Fatalf("reasons %v", reasons)
	}
}

func TestCache_LFUPolicy(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2, Policy: lfu.New[string, int]()})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("a")
	c.Get("b")
	c.Set("c", 3)
	if _, ok := c.Peek("c"); !ok {
		t.Fatal("c must be admitted")
	}
	if _, ok := c.Peek("b"); ok {
		t.Fatal("b has the fewest uses and must be the victim")
	}

	c.Get("c")
	for _, k := range []string{"d", "e", "f"} {
		c.Set(k, 0)
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s must be admitted", k)
		}
	}
	if _, ok := c.Peek("a"); !ok {
		t.Fatal("the most used entry must survive")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d", c.Len())
	}
}

// Random victims are drawn from the residents, never the key being added.
func TestCache_RandomPolicyAdmitsNewKeys(t *testing.T) {
	t.Parallel()

	for seed := uint64(0); seed < 50; seed++ {
		c := New[int, int](Options[int, int]{Capacity: 4, Policy: random.New[int, int](seed)})
		for i := 0; i < 20; i++ {
			c.Set(i, i)
			if _, ok := c.Peek(i); !ok {
				t.Fatalf("seed %d: key %d rejected on insert", seed, i)
			}
		}
	}
}

func TestCache_RandomPolicy(t *testing.T) {
	t.Parallel()

	run := func() []int {
		var gone []int
		c := New[int, int](Options[int, int]{
			Capacity: 8,
			Policy:   random.New[int, int](7),
			OnEvict:  func(k, _ int, _ EvictReason) { gone = append(gone, k) },
		})
		for i := 0; i < 32; i++ {
			c.Set(i, i)
		}
		if c.Len() != 8 {
			t.Fatalf("len=%d", c.Len())
		}
		return gone
	}
	a, b := run(), run()
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Fatalf("same seed, different evictions:\n%v\n%v", a, b)
	}
}

func TestCache_TwoQPolicy(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: 8, Policy: twoq.ForCapacity[int, int](8)})
	for i := 0; i < 100; i++ {
		c.Set(i, i)
		if c.Len() > 8 {
			t.Fatalf("len=%d", c.Len())
		}
	}
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 1})
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Set("b", 2)
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Evictions != 1 || st.Entries != 1 {
		t.Fatalf("stats %+v", st)
	}
}

// sizeMetrics records the last reported entry count.
type sizeMetrics struct {
	NoopMetrics
	entries atomic.Int64
}

func (m *sizeMetrics) Size(entries int, _ int64) { m.entries.Store(int64(entries)) }

func TestCache_RemoveReportsSize(t *testing.T) {
	t.Parallel()

	m := &sizeMetrics{}
	c := New[string, int](Options[string, int]{Capacity: 4, Metrics: m})
	c.Set("a", 1)
	c.Set("b", 2)
	if got := m.entries.Load(); got != 2 {
		t.Fatalf("size %d after two writes", got)
	}
	c.Remove("a")
	if got := m.entries.Load(); got != 1 {
		t.Fatalf("size %d after Remove", got)
	}
}

func TestCache_ClosedIgnoresWrites(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	c.Set("a", 1)
	_ = c.Close()
	c.Set("b", 2)
	if c.Add("c", 3) {
		t.Fatal("Add on closed cache must be false")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("closed cache must miss")
	}
}

// Concurrent GetOrLoad calls for the same key run the Loader once.
func TestCache_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Capacity: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond)
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}

	if v, err := c.GetOrLoad(context.Background(), "k"); err != nil || v != "v:k" {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}

func TestCache_GetOrLoad_Errors(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	if _, err := c.GetOrLoad(context.Background(), "x"); !errors.Is(err, ErrNoLoader) {
		t.Fatalf("want ErrNoLoader, got %v", err)
	}

	boom := errors.New("boom")
	c = New[string, int](Options[string, int]{
		Capacity: 4,
		Loader:   func(context.Context, string) (int, error) { return 0, boom },
	})
	if _, err := c.GetOrLoad(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed loads must not be cached")
	}
}
