package cache

import (
	"strings"
	"testing"
)

// Fuzz Set/Get/Remove semantics under arbitrary string inputs, plus the
// capacity bound under a short burst of writes derived from the input.
func FuzzCache_SetGetRemove(f *testing.F) {
	f.Add("", "", uint8(0))
	f.Add("a", "1", uint8(1))
	f.Add("b", "2", uint8(3))
	f.Add("αβγ", "δ", uint8(16))
	f.Add("emoji🙂", "🙂🙂", uint8(200))
	f.Add("long", strings.Repeat("x", 1024), uint8(64))

	f.Fuzz(func(t *testing.T, k, v string, capacity uint8) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string, string](Options[string, string]{Capacity: 16})
		t.Cleanup(func() { _ = c.Close() })

		c.Set(k, v)
		got, ok := c.Get(k)
		if !ok || got != v {
			t.Fatalf("after Set/Get: want %q, got %q ok=%v", v, got, ok)
		}

		if ok := c.Add(k, "other"); ok {
			t.Fatalf("Add duplicate returned true")
		}
		if got2, ok := c.Get(k); !ok || got2 != v {
			t.Fatalf("after duplicate Add: want %q, got %q ok=%v", v, got2, ok)
		}

		if !c.Remove(k) {
			t.Fatalf("Remove must return true")
		}
		if _, ok := c.Get(k); ok {
			t.Fatalf("key must be absent after Remove")
		}
		if ok := c.Add(k, v); !ok {
			t.Fatalf("Add after Remove must return true")
		}

		b := New[string, string](Options[string, string]{Capacity: int(capacity)})
		for i := 0; i <= len(k); i++ {
			b.Set(k[:i], v)
			if b.Len() > b.Cap() {
				t.Fatalf("len %d > cap %d", b.Len(), b.Cap())
			}
		}
	})
}
