package db

import (
	"path/filepath"
	"testing"

	"github.com/originfall/core/internal/entity"
)

func TestSaveQueueEnqueueDrain(t *testing.T) {
	dir := t.TempDir()
	q, err := OpenSaveQueue(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("OpenSaveQueue: %v", err)
	}
	defer q.Close()

	p1 := entity.NewPlayer(1, 101, 1)
	p1.SetTaros(10)
	p2 := entity.NewPlayer(2, 102, 1)
	p2.SetTaros(20)

	if err := q.Enqueue(p1); err != nil {
		t.Fatalf("Enqueue p1: %v", err)
	}
	if err := q.Enqueue(p2); err != nil {
		t.Fatalf("Enqueue p2: %v", err)
	}

	n, err := q.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}

	batch, err := q.DrainBatch(10)
	if err != nil {
		t.Fatalf("DrainBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("DrainBatch returned %d entries, want 2", len(batch))
	}
	if batch[0].UID != 101 || batch[1].UID != 102 {
		t.Fatalf("DrainBatch order = [%d, %d], want [101, 102]", batch[0].UID, batch[1].UID)
	}
	if batch[0].Taros != 10 || batch[1].Taros != 20 {
		t.Fatalf("DrainBatch did not preserve Taros: got %d, %d", batch[0].Taros, batch[1].Taros)
	}

	n, err = q.Len()
	if err != nil {
		t.Fatalf("Len after drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("Len() after drain = %d, want 0", n)
	}
}

func TestSaveQueueDrainBatchLimit(t *testing.T) {
	dir := t.TempDir()
	q, err := OpenSaveQueue(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("OpenSaveQueue: %v", err)
	}
	defer q.Close()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(entity.NewPlayer(int32(i), int64(i), 1)); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	batch, err := q.DrainBatch(2)
	if err != nil {
		t.Fatalf("DrainBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("DrainBatch(2) returned %d, want 2", len(batch))
	}
	n, _ := q.Len()
	if n != 3 {
		t.Fatalf("Len() after partial drain = %d, want 3", n)
	}
}
