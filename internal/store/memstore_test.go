package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kapu/chess-insight/internal/analysis"
)

func sampleReport(id string, createdAt time.Time) *analysis.GameReport {
	return &analysis.GameReport{
		ID:      id,
		BaseFEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Moves:   []string{"e2e4", "e7e5"},
		Depth:   10,
		Records: []analysis.PlyRecord{
			{Ply: 1, Side: "white", Move: "e2e4", Class: analysis.ClassGood, Best: true},
			{Ply: 2, Side: "black", Move: "e7e5", Class: analysis.ClassGood},
		},
		White:     analysis.SideSummary{Moves: 1, Good: 1, Best: 1, Accuracy: 100},
		Black:     analysis.SideSummary{Moves: 1, Good: 1, Accuracy: 90},
		CreatedAt: createdAt,
	}
}

func TestMemorySaveAndGet(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	report := sampleReport("r1", time.Now())
	if err := repo.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	got, err := repo.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.ID != "r1" || len(got.Records) != 2 || got.White.Accuracy != 100 {
		t.Fatalf("got %+v", got)
	}

	// Mutating the saved report must not leak into the store.
	report.Records[0].Class = analysis.ClassBlunder
	again, err := repo.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if again.Records[0].Class != analysis.ClassGood {
		t.Fatal("stored report was mutated through the caller's copy")
	}
}

func TestMemoryGetMissing(t *testing.T) {
	repo := NewMemory()
	if _, err := repo.GetReport(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryListRecentOrdersAndLimits(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"old", "mid", "new"} {
		if err := repo.SaveReport(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveReport(%s): %v", id, err)
		}
	}

	recent, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "new" || recent[1].ID != "mid" {
		t.Fatalf("recent = %v", []string{recent[0].ID, recent[1].ID})
	}
}
