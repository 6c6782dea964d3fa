package tiered_test

import (
	"context"
	"testing"
	"time"

	"github.com/taskfolio/autoassess/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l1.data["resolve:consolidator:acme:"] = []byte("rows")

	val, found, err := c.Get(ctx, "resolve:consolidator:acme:")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L1 hit")
	}
	if string(val) != "rows" {
		t.Fatalf("expected rows, got %s", val)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	l2.data["resolve:role_analysis:acme:analyst"] = []byte("tasks")

	val, found, err := c.Get(ctx, "resolve:role_analysis:acme:analyst")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected L2 hit")
	}
	if string(val) != "tasks" {
		t.Fatalf("expected tasks, got %s", val)
	}

	if _, ok := l1.data["resolve:role_analysis:acme:analyst"]; !ok {
		t.Fatal("expected L1 backfill")
	}
}

func TestTiered_Miss(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), 5*time.Minute)

	_, found, err := c.Get(context.Background(), "resolve:workflow::")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss")
	}
}

func TestTiered_ObserverSeesLevels(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()

	type outcome struct {
		level string
		hit   bool
	}
	var seen []outcome
	c := tiered.New(l1, l2, 5*time.Minute).WithObserver(func(_ context.Context, level string, hit bool) {
		seen = append(seen, outcome{level, hit})
	})
	ctx := context.Background()

	l1.data["resolve:consolidator:acme:"] = []byte("rows")
	l2.data["resolve:role_analysis:acme:analyst"] = []byte("tasks")

	c.Get(ctx, "resolve:consolidator:acme:")         //nolint:errcheck
	c.Get(ctx, "resolve:role_analysis:acme:analyst") //nolint:errcheck
	c.Get(ctx, "resolve:workflow::")                 //nolint:errcheck

	want := []outcome{{"l1", true}, {"l2", true}, {"", false}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(seen))
	}
	for i, w := range want {
		if seen[i] != w {
			t.Fatalf("outcome %d: expected %+v, got %+v", i, w, seen[i])
		}
	}
}

func TestTiered_SetAndDeleteBothLevels(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; !ok {
		t.Fatal("expected L1 write")
	}
	if _, ok := l2.data["k"]; !ok {
		t.Fatal("expected L2 write")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Fatal("expected L1 delete")
	}
	if _, ok := l2.data["k"]; ok {
		t.Fatal("expected L2 delete")
	}
}
