package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestUUID(t *testing.T) {
	gen := UUID{}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.New()
		if len(id) != 36 {
			t.Fatalf("uuid length = %d: %q", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate uuid %q", id)
		}
		seen[id] = true
	}
}

func TestCUID(t *testing.T) {
	gen := NewCUID()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.New()
		if !strings.HasPrefix(id, "c") {
			t.Fatalf("cuid prefix missing: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate cuid %q", id)
		}
		seen[id] = true
	}
}

func TestCUIDConcurrent(t *testing.T) {
	gen := NewCUID()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := gen.New()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate cuid %q", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestSequential(t *testing.T) {
	gen := NewSequential("row_")

	if id := gen.New(); id != "row_1" {
		t.Errorf("first id = %q", id)
	}
	if id := gen.New(); id != "row_2" {
		t.Errorf("second id = %q", id)
	}

	gen.Reset()
	if id := gen.New(); id != "row_1" {
		t.Errorf("id after reset = %q", id)
	}
}
