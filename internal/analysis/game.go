package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/chess-insight/internal/engine"
	"github.com/kapu/chess-insight/internal/position"
	"go.uber.org/zap"
)

// Move-quality classes, ordered from best to worst.
const (
	ClassGood       = "good"
	ClassInaccuracy = "inaccuracy"
	ClassMistake    = "mistake"
	ClassBlunder    = "blunder"
)

// Classification thresholds on the evaluation delta from the mover's
// perspective, in pawns.
const (
	blunderBound    = -2.0
	mistakeBound    = -0.5
	inaccuracyBound = -0.2
)

// Classify maps an evaluation delta to a quality class. The mapping is
// monotonic: a larger loss never classifies better than a smaller one.
func Classify(delta float64) string {
	switch {
	case delta < blunderBound:
		return ClassBlunder
	case delta < mistakeBound:
		return ClassMistake
	case delta < inaccuracyBound:
		return ClassInaccuracy
	default:
		return ClassGood
	}
}

// PlyRecord is the verdict on one played move. Before and After are both
// from the mover's perspective.
type PlyRecord struct {
	Ply      int        `json:"ply"`
	Side     string     `json:"side"`
	Move     string     `json:"move"`
	SAN      string     `json:"san"`
	Before   Evaluation `json:"before"`
	After    Evaluation `json:"after"`
	Delta    float64    `json:"delta"`
	Class    string     `json:"class"`
	Best     bool       `json:"best,omitempty"`
	BestMove string     `json:"best_move"`
}

// SideSummary aggregates one side's move classes.
type SideSummary struct {
	Moves      int     `json:"moves"`
	Best       int     `json:"best"`
	Good       int     `json:"good"`
	Inaccuracy int     `json:"inaccuracy"`
	Mistake    int     `json:"mistake"`
	Blunder    int     `json:"blunder"`
	Accuracy   float64 `json:"accuracy"`
}

// GameReport is the complete outcome of a game analysis.
type GameReport struct {
	ID        string      `json:"id"`
	BaseFEN   string      `json:"base_fen"`
	Moves     []string    `json:"moves"`
	Depth     int         `json:"depth"`
	Records   []PlyRecord `json:"records"`
	White     SideSummary `json:"white"`
	Black     SideSummary `json:"black"`
	CreatedAt time.Time   `json:"created_at"`
}

// GameConfig parameterizes a GameAnalyzer.
type GameConfig struct {
	Analyzer *Analyzer
	Depth    int
	Logger   *zap.Logger
}

const defaultGameDepth = 15

// GameAnalyzer replays a full game through the Analyzer at a fixed depth.
type GameAnalyzer struct {
	analyzer *Analyzer
	depth    int
	logger   *zap.Logger
}

func NewGameAnalyzer(cfg GameConfig) *GameAnalyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = defaultGameDepth
	}
	return &GameAnalyzer{analyzer: cfg.Analyzer, depth: depth, logger: logger}
}

// AnalyzeGame replays moves from baseFEN and classifies every ply. The
// whole move list is legality-checked up front; any illegal move rejects
// the analysis outright, no partial result is returned.
func (g *GameAnalyzer) AnalyzeGame(ctx context.Context, baseFEN string, moves []string) (GameReport, error) {
	start, err := position.New(baseFEN)
	if err != nil {
		return GameReport{}, err
	}
	if _, err := start.WithMoves(moves...); err != nil {
		return GameReport{}, err
	}
	if len(moves) == 0 {
		return GameReport{}, fmt.Errorf("no moves to analyze")
	}

	limits := engine.Limits{Depth: g.depth}
	report := GameReport{
		ID:        uuid.NewString(),
		BaseFEN:   start.FEN(),
		Moves:     append([]string(nil), moves...),
		Depth:     g.depth,
		Records:   make([]PlyRecord, 0, len(moves)),
		CreatedAt: time.Now().UTC(),
	}

	g.logger.Info("game analysis started",
		zap.String("id", report.ID),
		zap.Int("plies", len(moves)),
		zap.Int("depth", g.depth))

	if err := g.analyzer.ResetGame(ctx); err != nil {
		return GameReport{}, fmt.Errorf("reset engine game state: %w", err)
	}

	pos := start
	before, err := g.analyzer.Analyze(ctx, pos, Options{Limits: limits})
	if err != nil {
		return GameReport{}, fmt.Errorf("analyze ply 1: %w", err)
	}

	for i, mv := range moves {
		san := pos.SAN(mv)
		side := pos.SideToMove()

		next, err := pos.WithMoves(mv)
		if err != nil {
			return GameReport{}, err
		}

		// The after-move evaluation is the next position's evaluation
		// negated back to the mover's perspective. That next-position
		// analysis doubles as the before-move analysis of the following
		// ply, so each position is searched once.
		var after Evaluation
		var nextReport Report
		switch {
		case next.IsCheckmate():
			after = MateEvaluation(0)
		case next.IsStalemate():
			after = PawnEvaluation(0)
		default:
			nextReport, err = g.analyzer.Analyze(ctx, next, Options{Limits: limits})
			if err != nil {
				return GameReport{}, fmt.Errorf("analyze ply %d: %w", i+2, err)
			}
			after = nextReport.Eval.Negate()
		}

		delta := after.Numeric() - before.Eval.Numeric()
		rec := PlyRecord{
			Ply:      i + 1,
			Side:     side,
			Move:     mv,
			SAN:      san,
			Before:   before.Eval,
			After:    after,
			Delta:    delta,
			Class:    Classify(delta),
			Best:     mv == before.BestMove,
			BestMove: before.BestMove,
		}
		report.Records = append(report.Records, rec)

		pos = next
		before = nextReport
	}

	report.White = summarize(report.Records, AdvantageWhite)
	report.Black = summarize(report.Records, AdvantageBlack)
	return report, nil
}

// Accuracy weights per class; a best-tagged move always scores full.
var classWeights = map[string]float64{
	ClassGood:       0.9,
	ClassInaccuracy: 0.6,
	ClassMistake:    0.3,
	ClassBlunder:    0.0,
}

func summarize(records []PlyRecord, side string) SideSummary {
	var s SideSummary
	var total float64
	for _, rec := range records {
		if rec.Side != side {
			continue
		}
		s.Moves++
		switch rec.Class {
		case ClassGood:
			s.Good++
		case ClassInaccuracy:
			s.Inaccuracy++
		case ClassMistake:
			s.Mistake++
		case ClassBlunder:
			s.Blunder++
		}
		weight := classWeights[rec.Class]
		if rec.Best {
			s.Best++
			weight = 1.0
		}
		total += weight
	}
	if s.Moves > 0 {
		s.Accuracy = total / float64(s.Moves) * 100
	}
	return s
}
