package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kapu/chess-insight/internal/position"
)

func startedStub(t *testing.T) *Stub {
	t.Helper()
	s := NewStub()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestStubIsDeterministic(t *testing.T) {
	s := startedStub(t)
	defer s.Quit()

	first, err := s.Search(context.Background(), Limits{Depth: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	second, err := s.Search(context.Background(), Limits{Depth: 10})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("stub results differ:\n%+v\n%+v", first, second)
	}
	if first.BestMove != "a2a3" {
		t.Fatalf("bestmove = %q", first.BestMove)
	}
	if first.Depth != 10 {
		t.Fatalf("depth = %d, want echo of request", first.Depth)
	}
}

func TestStubBestMoveIsLegal(t *testing.T) {
	s := startedStub(t)
	defer s.Quit()

	fen := "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"
	if err := s.SetPosition(fen, nil); err != nil {
		t.Fatalf("set position: %v", err)
	}
	res, err := s.Search(context.Background(), Limits{MoveTimeMillis: 50})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	pos, err := position.New(fen)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.IsLegal(res.BestMove) {
		t.Fatalf("bestmove %q is not legal in %s", res.BestMove, fen)
	}
}

func TestStubMultiPVLinesStrictlyDescending(t *testing.T) {
	s := startedStub(t)
	defer s.Quit()

	if err := s.SetOption("MultiPV", "3"); err != nil {
		t.Fatalf("set option: %v", err)
	}
	res, err := s.Search(context.Background(), Limits{Depth: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(res.Lines))
	}
	for i := 1; i < len(res.Lines); i++ {
		if res.Lines[i].ScoreCP >= res.Lines[i-1].ScoreCP {
			t.Fatalf("line %d score %d not below line %d score %d",
				i, res.Lines[i].ScoreCP, i-1, res.Lines[i-1].ScoreCP)
		}
	}
}

func TestStubRejectsOverlappingSearches(t *testing.T) {
	s := startedStub(t)
	defer s.Quit()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), Limits{Depth: 1})
		errCh <- err
	}()
	time.Sleep(2 * time.Millisecond)
	_, err := s.Search(context.Background(), Limits{Depth: 1})
	if !errors.Is(err, ErrConcurrentSearch) {
		t.Fatalf("overlapping search err = %v, want ErrConcurrentSearch", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("first search err = %v", err)
	}
}

func TestStubRejectsIllegalMoves(t *testing.T) {
	s := startedStub(t)
	defer s.Quit()

	err := s.SetPosition("startpos", []string{"z9z9"})
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
}
