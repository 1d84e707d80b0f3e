package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"github.com/kapu/chess-insight/internal/position"
	"github.com/kapu/chess-insight/internal/uci"
	"go.uber.org/zap"
)

const (
	mateValue      = 32000
	maxNativeDepth = 5
)

// Native is the in-process tier: a shallow alpha-beta search over material
// and mobility. It is not a strong engine; it exists so analysis works
// without any external binary and with real (non-stub) variety in its
// output.
type Native struct {
	logger *zap.Logger

	mu         sync.Mutex
	ready      bool
	terminated bool
	pos        position.Position
	multiPV    int

	searching atomic.Bool
	stopFlag  atomic.Bool
}

func NewNative(logger *zap.Logger) *Native {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Native{logger: logger, multiPV: 1}
}

func (n *Native) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return ErrTerminated
	}
	n.ready = true
	n.pos = position.NewStart()
	return nil
}

// SetOption understands MultiPV; process-oriented options (Threads, Hash)
// have no in-process equivalent and are accepted silently.
func (n *Native) SetOption(name, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return ErrTerminated
	}
	if !n.ready {
		return uci.ErrNotReady
	}
	if strings.EqualFold(strings.TrimSpace(name), "multipv") {
		k, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || k < 1 {
			return fmt.Errorf("multipv value %q out of range", value)
		}
		n.multiPV = k
	}
	return nil
}

func (n *Native) SetPosition(fen string, moves []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminated {
		return ErrTerminated
	}
	if !n.ready {
		return uci.ErrNotReady
	}
	pos, err := position.NewWithMoves(fen, moves)
	if err != nil {
		return err
	}
	n.pos = pos
	return nil
}

func (n *Native) Search(ctx context.Context, limits Limits) (Result, error) {
	if err := limits.Validate(); err != nil {
		return Result{}, err
	}
	n.mu.Lock()
	if n.terminated {
		n.mu.Unlock()
		return Result{}, ErrTerminated
	}
	if !n.ready {
		n.mu.Unlock()
		return Result{}, uci.ErrNotReady
	}
	pos := n.pos
	k := n.multiPV
	n.mu.Unlock()

	if !n.searching.CompareAndSwap(false, true) {
		return Result{}, ErrConcurrentSearch
	}
	defer n.searching.Store(false)
	n.stopFlag.Store(false)

	game, err := gameFromFEN(pos.FEN())
	if err != nil {
		return Result{}, err
	}

	s := &nativeSearch{ctx: ctx, stop: &n.stopFlag}
	targetDepth := maxNativeDepth
	switch {
	case limits.Depth > 0:
		targetDepth = limits.Depth
		if targetDepth > maxNativeDepth {
			targetDepth = maxNativeDepth
		}
	case limits.MoveTimeMillis > 0:
		s.deadline = time.Now().Add(time.Duration(limits.MoveTimeMillis) * time.Millisecond)
	case limits.Nodes > 0:
		s.nodeCap = limits.Nodes
	}

	start := time.Now()
	var (
		scored       []scoredRoot
		reachedDepth int
	)
	for depth := 1; depth <= targetDepth; depth++ {
		iteration := s.searchRoot(game, depth)
		if len(iteration) == 0 {
			break
		}
		if s.interrupted() && depth > 1 {
			// Keep the last fully completed iteration.
			break
		}
		scored = iteration
		reachedDepth = depth
		if s.interrupted() {
			break
		}
	}

	elapsed := time.Since(start)
	res := Result{
		Depth:  reachedDepth,
		Nodes:  s.nodes,
		TimeMS: int(elapsed.Milliseconds()),
	}
	if elapsed > 0 {
		res.NPS = int64(float64(s.nodes) / elapsed.Seconds())
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 0 {
		res.BestMove = scored[0].move
		if len(scored[0].pv) > 1 {
			res.Ponder = scored[0].pv[1]
		}
	}
	if k > len(scored) {
		k = len(scored)
	}
	for i := 0; i < k; i++ {
		line := Line{
			MultiPV: i + 1,
			Depth:   reachedDepth,
			PV:      scored[i].pv,
		}
		if mate, plies := mateDistance(scored[i].score); plies {
			line.IsMate = true
			line.Mate = mate
		} else {
			line.ScoreCP = scored[i].score
		}
		res.Lines = append(res.Lines, line)
	}
	return res, nil
}

// Cancel is cooperative: the running search notices the flag and returns
// its best-so-far result through the pending Search call.
func (n *Native) Cancel() error {
	if !n.searching.Load() {
		return uci.ErrNotSearching
	}
	n.stopFlag.Store(true)
	return nil
}

func (n *Native) Quit() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopFlag.Store(true)
	n.ready = false
	n.terminated = true
	return nil
}

func (n *Native) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

func (n *Native) Tier() Tier { return TierNative }

type scoredRoot struct {
	move  string
	score int
	pv    []string
}

type nativeSearch struct {
	ctx      context.Context
	stop     *atomic.Bool
	deadline time.Time
	nodeCap  int64
	nodes    int64
}

func (s *nativeSearch) interrupted() bool {
	if s.stop.Load() {
		return true
	}
	if s.ctx != nil && s.ctx.Err() != nil {
		return true
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return true
	}
	if s.nodeCap > 0 && s.nodes >= s.nodeCap {
		return true
	}
	return false
}

func (s *nativeSearch) searchRoot(game *chesslib.Game, depth int) []scoredRoot {
	moves := orderMoves(game.ValidMoves())
	out := make([]scoredRoot, 0, len(moves))
	for _, mv := range moves {
		child := game.Clone()
		child.Move(&mv, nil)
		score, reply := s.negamax(child, depth-1, 1, -2*mateValue, 2*mateValue)
		score = -score
		pv := []string{mv.String()}
		if reply != "" {
			pv = append(pv, reply)
		}
		out = append(out, scoredRoot{move: mv.String(), score: score, pv: pv})
		if s.interrupted() {
			break
		}
	}
	return out
}

func (s *nativeSearch) negamax(game *chesslib.Game, depth, ply, alpha, beta int) (int, string) {
	s.nodes++
	if game.Outcome() != chesslib.NoOutcome {
		if game.Method() == chesslib.Checkmate {
			return -(mateValue - ply), ""
		}
		return 0, ""
	}
	if depth <= 0 || s.interrupted() {
		return evaluatePosition(game), ""
	}

	best := -2 * mateValue
	bestMove := ""
	for _, mv := range orderMoves(game.ValidMoves()) {
		child := game.Clone()
		child.Move(&mv, nil)
		score, _ := s.negamax(child, depth-1, ply+1, -beta, -alpha)
		score = -score
		if score > best {
			best = score
			bestMove = mv.String()
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break
		}
	}
	if bestMove == "" {
		return evaluatePosition(game), ""
	}
	return best, bestMove
}

var nativePieceValues = map[chesslib.PieceType]int{
	chesslib.Pawn:   100,
	chesslib.Knight: 320,
	chesslib.Bishop: 330,
	chesslib.Rook:   500,
	chesslib.Queen:  900,
}

// evaluatePosition scores material plus a small mobility bonus, from the
// perspective of the side to move.
func evaluatePosition(game *chesslib.Game) int {
	board := game.Position().Board()
	score := 0
	for file := chesslib.FileA; file <= chesslib.FileH; file++ {
		for rank := chesslib.Rank1; rank <= chesslib.Rank8; rank++ {
			piece := board.Piece(chesslib.NewSquare(file, rank))
			if piece == chesslib.NoPiece {
				continue
			}
			value := nativePieceValues[piece.Type()]
			if piece.Color() == chesslib.White {
				score += value
			} else {
				score -= value
			}
		}
	}
	if game.Position().Turn() == chesslib.Black {
		score = -score
	}
	score += 2 * len(game.ValidMoves())
	return score
}

func orderMoves(moves []chesslib.Move) []chesslib.Move {
	ordered := append([]chesslib.Move(nil), moves...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].HasTag(chesslib.Capture) && !ordered[j].HasTag(chesslib.Capture)
	})
	return ordered
}

// mateDistance converts an internal mate-encoded score to signed moves to
// mate; ok is false for ordinary scores.
func mateDistance(score int) (moves int, ok bool) {
	const window = 1000
	if score > mateValue-window {
		plies := mateValue - score
		return (plies + 1) / 2, true
	}
	if score < -(mateValue - window) {
		plies := mateValue + score
		return -((plies + 1) / 2), true
	}
	return 0, false
}

func gameFromFEN(fen string) (*chesslib.Game, error) {
	if strings.TrimSpace(fen) == "" || fen == "startpos" || fen == position.StartFEN {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chesslib.NewGame(option), nil
}
