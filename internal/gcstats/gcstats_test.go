package gcstats

import (
	"bytes"
	"testing"

	"ovum/internal/gc"
)

func TestSnapshotReflectsOccupancy(t *testing.T) {
	g, err := gc.New(gc.Config{Gen0Size: 64 * 1024})
	if err != nil {
		t.Fatalf("gc.New: %v", err)
	}
	defer g.Close()

	p := Snapshot(g)
	if len(p.Sample) != 3 {
		t.Fatalf("want 3 generation samples, got %d", len(p.Sample))
	}
	for _, s := range p.Sample {
		if len(s.Value) != 2 {
			t.Fatalf("want 2 values (bytes, objects) per sample, got %d", len(s.Value))
		}
	}
}

func TestWriteProducesNonEmptyProfile(t *testing.T) {
	g, err := gc.New(gc.Config{Gen0Size: 64 * 1024})
	if err != nil {
		t.Fatalf("gc.New: %v", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a non-empty encoded profile")
	}
}
