package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ds := NewDataset("d1", []Transaction{{EntityID: "a"}})
	if err := s.Put(ctx, ds); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "d1" {
		t.Errorf("id = %s, want d1", got.ID())
	}
	if s.Count(ctx) != 1 {
		t.Errorf("count = %d, want 1", s.Count(ctx))
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("err = %v, want ErrDatasetNotFound", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("d%d", i)
			if err := s.Put(ctx, NewDataset(id, []Transaction{{EntityID: "a"}})); err != nil {
				t.Error(err)
				return
			}
			if _, err := s.Get(ctx, id); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if s.Count(ctx) != 20 {
		t.Errorf("count = %d, want 20", s.Count(ctx))
	}
}
