package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapu/chess-insight/internal/position"
	"github.com/kapu/chess-insight/internal/uci"
)

const stubSearchDelay = 10 * time.Millisecond

// Stub is the terminal fallback tier. It never fails to start and returns
// fixed, syntactically valid results: the lexicographically first legal
// moves with a mildly decaying score, after a small simulated delay.
// Everything about it is deterministic, which is what the tests lean on.
type Stub struct {
	mu         sync.Mutex
	ready      bool
	terminated bool
	pos        position.Position
	multiPV    int

	searching atomic.Bool
}

func NewStub() *Stub {
	return &Stub{multiPV: 1}
}

func (s *Stub) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	s.ready = true
	s.pos = position.NewStart()
	return nil
}

func (s *Stub) SetOption(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	if !s.ready {
		return uci.ErrNotReady
	}
	if k, ok := parseMultiPVOption(name, value); ok {
		s.multiPV = k
	}
	return nil
}

func (s *Stub) SetPosition(fen string, moves []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	if !s.ready {
		return uci.ErrNotReady
	}
	pos, err := position.NewWithMoves(fen, moves)
	if err != nil {
		return err
	}
	s.pos = pos
	return nil
}

func (s *Stub) Search(ctx context.Context, limits Limits) (Result, error) {
	if err := limits.Validate(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return Result{}, ErrTerminated
	}
	if !s.ready {
		s.mu.Unlock()
		return Result{}, uci.ErrNotReady
	}
	pos := s.pos
	k := s.multiPV
	s.mu.Unlock()

	if !s.searching.CompareAndSwap(false, true) {
		return Result{}, ErrConcurrentSearch
	}
	defer s.searching.Store(false)

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(stubSearchDelay):
	}

	legal := pos.LegalMoves()
	sort.Strings(legal)

	depth := limits.Depth
	if depth <= 0 {
		depth = 1
	}
	res := Result{
		Depth:  depth,
		Nodes:  int64(len(legal)),
		NPS:    int64(len(legal)) * 100,
		TimeMS: int(stubSearchDelay.Milliseconds()),
	}
	if len(legal) == 0 {
		return res, nil
	}

	if k > len(legal) {
		k = len(legal)
	}
	for i := 0; i < k; i++ {
		res.Lines = append(res.Lines, Line{
			MultiPV: i + 1,
			Depth:   depth,
			ScoreCP: 20 - 10*i,
			PV:      []string{legal[i]},
		})
	}
	res.BestMove = legal[0]
	return res, nil
}

func (s *Stub) Cancel() error {
	if !s.searching.Load() {
		return uci.ErrNotSearching
	}
	return nil
}

func (s *Stub) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.terminated = true
	return nil
}

func (s *Stub) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Stub) Tier() Tier { return TierStub }
