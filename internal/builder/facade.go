package builder

import (
	"context"
	"errors"

	"github.com/kapu/chess-insight/internal/analysis"
	"github.com/kapu/chess-insight/internal/book"
	"github.com/kapu/chess-insight/internal/engine"
	"github.com/kapu/chess-insight/internal/position"
	"github.com/kapu/chess-insight/pkg/insightdto"
	"go.uber.org/zap"
)

// Insight is the outward-facing service: it takes positions and games,
// runs them through the wired core, and hands back DTOs.
type Insight struct {
	deps *Deps
}

func NewInsight(deps *Deps) *Insight { return &Insight{deps: deps} }

// PositionOptions parameterize one position analysis. Zero limit fields
// fall back to the given depth default at the call site.
type PositionOptions struct {
	Depth          int
	MoveTimeMillis int
	Nodes          int64
	MultiPV        int
	WithHint       bool
}

// AnalyzePosition analyzes the position reached from fen after moves.
func (s *Insight) AnalyzePosition(ctx context.Context, fen string, moves []string, opts PositionOptions) (*insightdto.PositionAnalysis, error) {
	pos, err := position.NewWithMoves(fen, moves)
	if err != nil {
		return nil, err
	}

	// Each call is an independent analysis; per-game engine state from a
	// previous caller must not bleed into it.
	if err := s.deps.Analyzer.ResetGame(ctx); err != nil {
		return nil, err
	}

	report, err := s.deps.Analyzer.Analyze(ctx, pos, analysis.Options{
		Limits: engine.Limits{
			Depth:          opts.Depth,
			MoveTimeMillis: opts.MoveTimeMillis,
			Nodes:          opts.Nodes,
		},
		MultiPV: opts.MultiPV,
	})
	if err != nil {
		return nil, err
	}

	out := toPositionAnalysis(report)
	if entry := s.deps.Book.Lookup(pos.Moves()); entry.Known {
		out.Opening = toOpeningInfo(entry)
	}
	if opts.WithHint {
		hint := s.deps.Coach.Explain(pos, report)
		out.Hint = &insightdto.HintInfo{
			Phase:      string(hint.Phase),
			Summary:    hint.Summary,
			Suggestion: hint.Suggestion,
			BestMove:   hint.BestMove,
			BestSAN:    hint.BestSAN,
			Warnings:   hint.Warnings,
		}
	}
	return out, nil
}

// AnalyzeGame replays a whole game, persists the report, and returns it.
func (s *Insight) AnalyzeGame(ctx context.Context, fen string, moves []string) (*insightdto.GameAnalysis, error) {
	report, err := s.deps.GameAnalyzer.AnalyzeGame(ctx, fen, moves)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Repo.SaveReport(ctx, &report); err != nil {
		// Persistence is best effort; the analysis itself succeeded.
		s.deps.Logger.Warn("persist game report failed",
			zap.String("id", report.ID), zap.Error(err))
	}
	return toGameAnalysis(report), nil
}

// AnalyzeGameRecord accepts PGN movetext or a plain move list as text.
func (s *Insight) AnalyzeGameRecord(ctx context.Context, record string) (*insightdto.GameAnalysis, error) {
	moves, err := position.ParseRecord(record)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeGame(ctx, "", moves)
}

// Opening looks up the played move sequence.
func (s *Insight) Opening(moves []string) *insightdto.OpeningInfo {
	entry := s.deps.Book.Lookup(moves)
	if !entry.Known {
		return nil
	}
	return toOpeningInfo(entry)
}

// EngineInfo reports the active tier and the fallback trail.
func (s *Insight) EngineInfo() insightdto.EngineInfo {
	sel := s.deps.Selection
	info := insightdto.EngineInfo{
		Tier:     sel.Tier.String(),
		Fallback: sel.Fallback(),
	}
	if ext, ok := sel.Engine.(*engine.External); ok {
		id := ext.Identity()
		info.Name = id.Name
		info.Author = id.Author
	}
	for _, a := range sel.Attempts {
		attempt := insightdto.TierAttempt{Tier: a.Tier.String()}
		if a.Err != nil {
			attempt.Error = a.Err.Error()
		}
		info.Attempts = append(info.Attempts, attempt)
	}
	return info
}

// MapError translates core errors into transport-neutral domain errors.
func MapError(err error) insightdto.DomainError {
	switch {
	case errors.Is(err, engine.ErrIllegalMove):
		return insightdto.DomainError{Code: insightdto.CodeIllegalMove, Message: err.Error()}
	case errors.Is(err, engine.ErrProcessSpawn):
		return insightdto.DomainError{Code: insightdto.CodeProcessSpawn, Message: err.Error()}
	case errors.Is(err, engine.ErrProtocolTimeout):
		return insightdto.DomainError{Code: insightdto.CodeProtocolTimeout, Message: err.Error(), Retryable: true}
	case errors.Is(err, engine.ErrEngineCrash):
		return insightdto.DomainError{Code: insightdto.CodeEngineCrash, Message: err.Error()}
	case errors.Is(err, engine.ErrConcurrentSearch):
		return insightdto.DomainError{Code: insightdto.CodeConcurrentSearch, Message: err.Error(), Retryable: true}
	default:
		return insightdto.DomainError{Code: insightdto.CodeInternal, Message: err.Error()}
	}
}

func toEvaluation(e analysis.Evaluation) insightdto.Evaluation {
	return insightdto.Evaluation{Pawns: e.Pawns, Mate: e.Mate, IsMate: e.IsMate, Display: e.Display}
}

func toPositionAnalysis(report analysis.Report) *insightdto.PositionAnalysis {
	out := &insightdto.PositionAnalysis{
		FEN:        report.FEN,
		SideToMove: report.SideToMove,
		Eval:       toEvaluation(report.Eval),
		Assessment: insightdto.Assessment{
			Advantage: report.Assessment.Advantage,
			Magnitude: report.Assessment.Magnitude,
			Winning:   report.Assessment.Winning,
			Losing:    report.Assessment.Losing,
			Critical:  report.Assessment.Critical,
		},
		BestMove: report.BestMove,
		Ponder:   report.Ponder,
		Depth:    report.Depth,
		SelDepth: report.SelDepth,
		Nodes:    report.Nodes,
		NPS:      report.NPS,
		TimeMS:   report.TimeMS,
		Cached:   report.Cached,
	}
	for _, c := range report.Candidates {
		out.Candidates = append(out.Candidates, insightdto.CandidateLine{
			Rank:  c.Rank,
			Move:  c.Move,
			SAN:   c.SAN,
			Eval:  toEvaluation(c.Eval),
			Label: c.Label,
			Depth: c.Depth,
			PV:    c.PV,
		})
	}
	return out
}

func toOpeningInfo(entry book.Entry) *insightdto.OpeningInfo {
	info := &insightdto.OpeningInfo{Name: entry.Name, ECO: entry.ECO}
	for _, c := range entry.Continuations {
		info.Continuations = append(info.Continuations, insightdto.WeightedMove{Move: c.Move, Weight: c.Weight})
	}
	return info
}

func toGameAnalysis(report analysis.GameReport) *insightdto.GameAnalysis {
	out := &insightdto.GameAnalysis{
		ID:        report.ID,
		BaseFEN:   report.BaseFEN,
		Moves:     report.Moves,
		Depth:     report.Depth,
		White:     toSideTotals(report.White),
		Black:     toSideTotals(report.Black),
		CreatedAt: report.CreatedAt,
	}
	for _, rec := range report.Records {
		out.Verdicts = append(out.Verdicts, insightdto.PlyVerdict{
			Ply:      rec.Ply,
			Side:     rec.Side,
			Move:     rec.Move,
			SAN:      rec.SAN,
			Before:   toEvaluation(rec.Before),
			After:    toEvaluation(rec.After),
			Delta:    rec.Delta,
			Class:    rec.Class,
			Best:     rec.Best,
			BestMove: rec.BestMove,
		})
	}
	return out
}

func toSideTotals(s analysis.SideSummary) insightdto.SideTotals {
	return insightdto.SideTotals{
		Moves:      s.Moves,
		Best:       s.Best,
		Good:       s.Good,
		Inaccuracy: s.Inaccuracy,
		Mistake:    s.Mistake,
		Blunder:    s.Blunder,
		Accuracy:   s.Accuracy,
	}
}
