package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryRepository_Contract(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) Repository { return NewMemoryRepository() })
}

// TestMemoryRepository_ConcurrentSaves verifies that concurrent writers for one location
// each keep their own row.
func TestMemoryRepository_ConcurrentSaves(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Save(ctx, snapshotAt(fmt.Sprintf("id-%d", i), "Paris", i, 18))
		}(i)
	}
	wg.Wait()

	recent, err := repo.GetRecent(ctx, 100)
	if err != nil {
		t.Fatalf("GetRecent() error = %v", err)
	}
	if len(recent) != 20 {
		t.Errorf("len(GetRecent()) = %d, want 20", len(recent))
	}
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := repo.GetByCity(ctx, "Paris"); err == nil {
		t.Error("GetByCity() with cancelled context error = nil")
	}
	if err := repo.Save(ctx, snapshotAt("x", "Paris", 1, 1)); err == nil {
		t.Error("Save() with cancelled context error = nil")
	}
}
