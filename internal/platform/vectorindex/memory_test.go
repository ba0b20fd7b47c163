package vectorindex

import (
	"context"
	"math"
	"testing"
)

func TestMemoryQueryOrdersByDistanceThenID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	err := m.Upsert(ctx, "text", []Datapoint{
		{ID: "b", Values: []float32{1, 0}},
		{ID: "a", Values: []float32{1, 0}},
		{ID: "c", Values: []float32{0, 1}},
		{ID: "d", Values: []float32{-1, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := m.Query(ctx, "text", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("order[%d]: want=%s got=%s", i, want[i], got[i].ID)
		}
	}
	if math.Abs(got[2].Distance-1) > 1e-9 {
		t.Fatalf("orthogonal distance: want=1 got=%v", got[2].Distance)
	}
}

func TestMemoryNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Upsert(ctx, "text", []Datapoint{{ID: "p1", Values: []float32{1}}})
	_ = m.Upsert(ctx, "images", []Datapoint{{ID: "p1_0", Values: []float32{1}}})

	if err := m.Delete(ctx, "text", []string{"p1", "missing"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Len("text") != 0 {
		t.Fatalf("text len: want=0 got=%d", m.Len("text"))
	}
	if !m.Has("images", "p1_0") {
		t.Fatalf("images namespace lost p1_0")
	}
}

func TestMemoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Upsert(ctx, "text", []Datapoint{{ID: "p", Values: []float32{1, 0}}})
	_ = m.Upsert(ctx, "text", []Datapoint{{ID: "p", Values: []float32{0, 1}}})
	got, _ := m.Query(ctx, "text", []float32{0, 1}, 1)
	if len(got) != 1 || got[0].Distance > 1e-9 {
		t.Fatalf("replaced vector: got=%+v", got)
	}
}

func TestMemoryZeroKAndCanceled(t *testing.T) {
	m := NewMemory()
	got, err := m.Query(context.Background(), "text", []float32{1}, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("k=0: want empty got=%v err=%v", got, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Query(ctx, "text", []float32{1}, 5); err == nil {
		t.Fatalf("canceled: expected error")
	}
}

func TestChunk(t *testing.T) {
	pts := make([]Datapoint, 7)
	chunks := Chunk(pts, 3)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("Chunk: want 3 chunks ending in 1, got %d", len(chunks))
	}
	if Chunk(nil, 3) != nil {
		t.Fatalf("Chunk(nil): want nil")
	}
}
