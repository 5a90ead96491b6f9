package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/biasaudit/internal/domain/model"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// checkTreap verifies BST order, heap order and subtree sizes.
func checkTreap(t *testing.T, n *node) int {
	t.Helper()
	if n == nil {
		return 0
	}
	if n.left != nil {
		if !before(n.left.key, n.key) {
			t.Fatalf("left child %v not before %v", n.left.key, n.key)
		}
		if n.left.prio > n.prio {
			t.Fatalf("heap order violated at %v", n.key)
		}
	}
	if n.right != nil {
		if before(n.right.key, n.key) {
			t.Fatalf("right child %v before %v", n.right.key, n.key)
		}
		if n.right.prio > n.prio {
			t.Fatalf("heap order violated at %v", n.key)
		}
	}
	size := 1 + checkTreap(t, n.left) + checkTreap(t, n.right)
	if size != n.size {
		t.Fatalf("size of %v: expected %d, got %d", n.key, size, n.size)
	}
	return size
}

func TestIndex_Ordering(t *testing.T) {
	var ix index
	keys := make([]indexKey, 0, 200)
	for i := 0; i < 200; i++ {
		// Ten reports share each timestamp so ids break ties.
		k := keyOf(fmt.Sprintf("r%03d", i), base.Add(time.Duration(i/10)*time.Second))
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		ix.put(k)
	}
	checkTreap(t, ix.root)

	if got := ix.len(); got != 200 {
		t.Fatalf("expected 200 keys, got %d", got)
	}

	got := ix.first(200)
	want := slices.Clone(got)
	slices.SortFunc(want, func(a, b string) int { return strings.Compare(b, a) })
	if !slices.Equal(got, want) {
		t.Fatalf("index order is not newest first: %v", got[:10])
	}
	if got[0] != "r199" {
		t.Errorf("expected r199 first, got %s", got[0])
	}

	top := ix.first(3)
	if !slices.Equal(top, []string{"r199", "r198", "r197"}) {
		t.Errorf("unexpected top 3: %v", top)
	}
}

func TestIndex_Remove(t *testing.T) {
	var ix index
	for i := 0; i < 50; i++ {
		ix.put(keyOf(fmt.Sprintf("r%02d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 50; i += 2 {
		ix.remove(keyOf(fmt.Sprintf("r%02d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	checkTreap(t, ix.root)

	if got := ix.len(); got != 25 {
		t.Fatalf("expected 25 keys, got %d", got)
	}
	for _, id := range ix.first(100) {
		var n int
		if _, err := fmt.Sscanf(id, "r%d", &n); err != nil || n%2 == 0 {
			t.Errorf("unexpected id %s after removal", id)
		}
	}

	// Removing a missing key is a no-op.
	ix.remove(keyOf("nope", base))
	if got := ix.len(); got != 25 {
		t.Errorf("expected 25 keys, got %d", got)
	}
}

func TestIndex_EmptyAndSingleElement(t *testing.T) {
	var ix index
	if got := ix.first(10); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	ix.remove(keyOf("r1", base))

	ix.put(keyOf("r1", base))
	if got := ix.first(10); !slices.Equal(got, []string{"r1"}) {
		t.Errorf("expected [r1], got %v", got)
	}
	ix.remove(keyOf("r1", base))
	if ix.root != nil {
		t.Error("expected empty treap")
	}
}

func TestMemoryStore_ResaveMovesReport(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 3; i++ {
		r := model.Report{ID: fmt.Sprintf("r%d", i), Status: model.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// A completed report keeps its id but carries a new CreatedAt here.
	moved := model.Report{ID: "r0", Status: model.StatusCompleted, CreatedAt: base.Add(time.Hour)}
	if err := s.Save(ctx, moved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(got))
	}
	if got[0].ID != "r0" || got[0].Status != model.StatusCompleted {
		t.Errorf("expected updated r0 first, got %s/%s", got[0].ID, got[0].Status)
	}
	if s.order.len() != s.Count(ctx) {
		t.Errorf("index size %d does not match count %d", s.order.len(), s.Count(ctx))
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("w%d-%d", w, i%20)
				r := model.Report{ID: id, Status: model.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Millisecond)}
				if err := s.Save(ctx, r); err != nil {
					t.Errorf("save: %v", err)
					return
				}
				if _, err := s.List(ctx, 5); err != nil {
					t.Errorf("list: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := s.Count(ctx); got != 160 {
		t.Errorf("expected 160 reports, got %d", got)
	}
	checkTreap(t, s.order.root)
	if s.order.len() != 160 {
		t.Errorf("expected 160 index keys, got %d", s.order.len())
	}
}

func populate(b *testing.B, s *MemoryStore, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		r := model.Report{ID: fmt.Sprintf("r%d", i), CreatedAt: base.Add(time.Duration(rand.IntN(n)) * time.Second)}
		if err := s.Save(ctx, r); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_Save(b *testing.B) {
	ctx := context.Background()
	s := NewMemoryStore()
	populate(b, s, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := model.Report{ID: fmt.Sprintf("r%d", i%100_000), CreatedAt: base.Add(time.Duration(i) * time.Millisecond)}
		if err := s.Save(ctx, r); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_List(b *testing.B) {
	ctx := context.Background()
	s := NewMemoryStore()
	populate(b, s, 100_000)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.List(ctx, 100); err != nil {
				b.Fatal(err)
			}
		}
	})
}
