package engine

import (
	"context"
	"testing"

	"github.com/kapu/chess-insight/internal/position"
)

func startedNative(t *testing.T) *Native {
	t.Helper()
	n := NewNative(nil)
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return n
}

func TestNativeReturnsLegalBestMove(t *testing.T) {
	n := startedNative(t)
	defer n.Quit()

	res, err := n.Search(context.Background(), Limits{Depth: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.BestMove == "" {
		t.Fatal("no bestmove from the starting position")
	}
	if !position.NewStart().IsLegal(res.BestMove) {
		t.Fatalf("bestmove %q is not legal", res.BestMove)
	}
	if res.Nodes == 0 || res.Depth != 2 {
		t.Fatalf("nodes=%d depth=%d", res.Nodes, res.Depth)
	}
}

func TestNativeFindsMateInOne(t *testing.T) {
	n := startedNative(t)
	defer n.Quit()

	// Back-rank ladder: Rh1-h8 mates the cornered king.
	if err := n.SetPosition("k7/8/1K6/8/8/8/8/7R w - - 0 1", nil); err != nil {
		t.Fatalf("set position: %v", err)
	}
	res, err := n.Search(context.Background(), Limits{Depth: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.BestMove != "h1h8" {
		t.Fatalf("bestmove = %q, want h1h8", res.BestMove)
	}
	if len(res.Lines) == 0 || !res.Lines[0].IsMate || res.Lines[0].Mate != 1 {
		t.Fatalf("top line = %+v, want mate in 1", res.Lines)
	}
}

func TestNativePrefersWinningCapture(t *testing.T) {
	n := startedNative(t)
	defer n.Quit()

	// White queen takes the undefended rook on d5.
	if err := n.SetPosition("k7/8/8/3r4/8/3Q4/8/K7 w - - 0 1", nil); err != nil {
		t.Fatalf("set position: %v", err)
	}
	res, err := n.Search(context.Background(), Limits{Depth: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.BestMove != "d3d5" {
		t.Fatalf("bestmove = %q, want d3d5", res.BestMove)
	}
}

func TestNativeMultiPVOrdering(t *testing.T) {
	n := startedNative(t)
	defer n.Quit()

	if err := n.SetOption("MultiPV", "3"); err != nil {
		t.Fatalf("set option: %v", err)
	}
	res, err := n.Search(context.Background(), Limits{Depth: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(res.Lines))
	}
	for i := 1; i < len(res.Lines); i++ {
		prev, cur := res.Lines[i-1], res.Lines[i]
		if !prev.IsMate && !cur.IsMate && cur.ScoreCP > prev.ScoreCP {
			t.Fatalf("line %d outscores line %d", i, i-1)
		}
	}
}

func TestMateDistanceEncoding(t *testing.T) {
	if moves, ok := mateDistance(mateValue - 1); !ok || moves != 1 {
		t.Fatalf("mate in 1 ply = %d, %v", moves, ok)
	}
	if moves, ok := mateDistance(mateValue - 3); !ok || moves != 2 {
		t.Fatalf("mate in 3 plies = %d, %v", moves, ok)
	}
	if moves, ok := mateDistance(-(mateValue - 2)); !ok || moves != -1 {
		t.Fatalf("mated in 2 plies = %d, %v", moves, ok)
	}
	if _, ok := mateDistance(150); ok {
		t.Fatal("ordinary score misread as mate")
	}
}
