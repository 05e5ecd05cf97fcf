// ABOUTME: Tests for the O(1) LRU verdict cache
// ABOUTME: Validates LRU ordering, eviction, metrics, and arena reuse under churn

package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func testVerdict(tag string) (*types.Verdict, types.Fingerprint) {
	fp := types.ComputeFingerprint([]byte(tag), "")
	return types.NewKnownMaliciousVerdict(fp), fp
}

func TestVerdictCache_PutGet(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(4)
	v, fp := testVerdict("a")

	c.Put(fp, v)

	got, ok := c.Get(fp)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != v {
		t.Error("Get() returned a different verdict")
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 0 || m.Size != 1 {
		t.Errorf("metrics = %+v, want hits=1 misses=0 size=1", m)
	}
}

func TestVerdictCache_Miss(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(4)
	_, fp := testVerdict("missing")

	if _, ok := c.Get(fp); ok {
		t.Error("Get() ok = true for missing key")
	}
	if m := c.Metrics(); m.Misses != 1 {
		t.Errorf("misses = %d, want 1", m.Misses)
	}
}

func TestVerdictCache_EvictsLRU(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(3)

	va, fpa := testVerdict("a")
	vb, fpb := testVerdict("b")
	vc, fpc := testVerdict("c")
	vd, fpd := testVerdict("d")

	c.Put(fpa, va)
	c.Put(fpb, vb)
	c.Put(fpc, vc)

	// Touch a so b becomes LRU.
	if _, ok := c.Get(fpa); !ok {
		t.Fatal("a missing before eviction")
	}

	c.Put(fpd, vd)

	if _, ok := c.Get(fpb); ok {
		t.Error("b survived eviction, want evicted as LRU")
	}
	for name, fp := range map[string]types.Fingerprint{"a": fpa, "c": fpc, "d": fpd} {
		if _, ok := c.Get(fp); !ok {
			t.Errorf("%s evicted, want retained", name)
		}
	}

	if m := c.Metrics(); m.Evictions != 1 || m.Size != 3 {
		t.Errorf("metrics = %+v, want evictions=1 size=3", m)
	}
}

func TestVerdictCache_PutReplacesAndPromotes(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(2)

	v1, fpa := testVerdict("a")
	vb, fpb := testVerdict("b")
	v2 := types.NewKnownMaliciousVerdict(fpa)

	c.Put(fpa, v1)
	c.Put(fpb, vb)
	c.Put(fpa, v2) // replace + promote; b is now LRU

	vx, fpx := testVerdict("x")
	c.Put(fpx, vx)

	if got, ok := c.Get(fpa); !ok || got != v2 {
		t.Error("replaced verdict not retained or not updated")
	}
	if _, ok := c.Get(fpb); ok {
		t.Error("b survived, want evicted after a's promotion")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestVerdictCache_Invalidate(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(4)
	v, fp := testVerdict("a")

	c.Put(fp, v)
	c.Invalidate(fp)

	if _, ok := c.Get(fp); ok {
		t.Error("Get() ok = true after Invalidate()")
	}

	// Invalidating an absent key is a no-op.
	c.Invalidate(fp)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestVerdictCache_CapacityBound(t *testing.T) {
	t.Parallel()

	const capacity = 8
	c := NewVerdictCache(capacity)

	// Heavy churn: far more distinct keys than capacity, interleaved with
	// gets, exercising arena slot reuse.
	fps := make([]types.Fingerprint, 0, 100)
	for i := 0; i < 100; i++ {
		v, fp := testVerdict(fmt.Sprintf("key-%d", i))
		c.Put(fp, v)
		fps = append(fps, fp)
		if i%3 == 0 {
			c.Get(fps[i/2])
		}
	}

	if c.Len() > capacity {
		t.Errorf("Len() = %d, want <= %d", c.Len(), capacity)
	}

	// The most recent insert must always be present.
	if _, ok := c.Get(fps[99]); !ok {
		t.Error("most recent insert missing")
	}
	// The oldest untouched keys must be gone.
	if _, ok := c.Get(fps[0]); ok {
		t.Error("ancient key survived churn")
	}
}

func TestVerdictCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(32)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v, fp := testVerdict(fmt.Sprintf("g%d-i%d", g, i%40))
				c.Put(fp, v)
				c.Get(fp)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 32 {
		t.Errorf("Len() = %d, want <= 32", c.Len())
	}
}

func TestVerdictCache_DefaultCapacity(t *testing.T) {
	t.Parallel()

	c := NewVerdictCache(0)
	if m := c.Metrics(); m.Capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", m.Capacity, DefaultCapacity)
	}
}
