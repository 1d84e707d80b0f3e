package analysis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kapu/chess-insight/internal/engine"
	"github.com/kapu/chess-insight/internal/position"
	"go.uber.org/zap"
)

// Candidate labels relative to the top line.
const (
	LabelEqual       = "equal"
	LabelGood        = "good"
	LabelAlternative = "alternative"
	LabelInferior    = "inferior"
)

// Label thresholds on the absolute score difference to the top line, in
// pawns.
const (
	labelEqualBound       = 0.2
	labelGoodBound        = 0.5
	labelAlternativeBound = 1.0
)

// Candidate is one ranked engine line.
type Candidate struct {
	Rank  int        `json:"rank"`
	Move  string     `json:"move"`
	SAN   string     `json:"san,omitempty"`
	Eval  Evaluation `json:"eval"`
	Label string     `json:"label"`
	Depth int        `json:"depth"`
	PV    []string   `json:"pv,omitempty"`
}

// Report is the structured outcome of analyzing one position.
type Report struct {
	FEN        string      `json:"fen"`
	SideToMove string      `json:"side_to_move"`
	Eval       Evaluation  `json:"eval"`
	Assessment Assessment  `json:"assessment"`
	BestMove   string      `json:"best_move"`
	Ponder     string      `json:"ponder,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Depth      int         `json:"depth"`
	SelDepth   int         `json:"sel_depth,omitempty"`
	Nodes      int64       `json:"nodes"`
	NPS        int64       `json:"nps,omitempty"`
	TimeMS     int         `json:"time_ms"`
	Cached     bool        `json:"cached,omitempty"`
}

// Cache stores finished reports keyed by position and search parameters.
// Implementations must treat misses as (Report{}, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (Report, bool, error)
	Put(ctx context.Context, key string, report Report) error
}

// Options parameterize one analysis call. MultiPV defaults to 1 and is
// clamped to the analyzer's configured maximum.
type Options struct {
	Limits  engine.Limits
	MultiPV int
}

// Config parameterizes an Analyzer.
type Config struct {
	Engine     engine.Engine
	Cache      Cache
	MaxMultiPV int
	Logger     *zap.Logger
}

// Analyzer turns a position plus search limits into a Report.
type Analyzer struct {
	eng        engine.Engine
	cache      Cache
	maxMultiPV int
	logger     *zap.Logger
}

const defaultMaxMultiPV = 5

func New(cfg Config) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxMultiPV := cfg.MaxMultiPV
	if maxMultiPV <= 0 {
		maxMultiPV = defaultMaxMultiPV
	}
	return &Analyzer{eng: cfg.Engine, cache: cfg.Cache, maxMultiPV: maxMultiPV, logger: logger}
}

// gameResetter is the optional engine surface for discarding per-game
// state (hash tables, history heuristics) between independent analyses.
type gameResetter interface {
	NewGame(ctx context.Context) error
}

// ResetGame tells the engine a fresh, unrelated analysis is starting.
// Engines without per-game state are a no-op.
func (a *Analyzer) ResetGame(ctx context.Context) error {
	if r, ok := a.eng.(gameResetter); ok {
		return r.NewGame(ctx)
	}
	return nil
}

// Analyze runs one search over pos and converts the outcome. A cache hit
// short-circuits the engine entirely.
func (a *Analyzer) Analyze(ctx context.Context, pos position.Position, opts Options) (Report, error) {
	if err := opts.Limits.Validate(); err != nil {
		return Report{}, err
	}
	k := opts.MultiPV
	if k < 1 {
		k = 1
	}
	if k > a.maxMultiPV {
		k = a.maxMultiPV
	}

	key := cacheKey(pos.FEN(), opts.Limits, k)
	if a.cache != nil {
		cached, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("analysis cache read failed", zap.Error(err))
		} else if ok {
			cached.Cached = true
			return cached, nil
		}
	}

	if err := a.eng.SetOption("MultiPV", strconv.Itoa(k)); err != nil {
		return Report{}, fmt.Errorf("set multipv: %w", err)
	}
	if err := a.eng.SetPosition(pos.BaseFEN(), pos.Moves()); err != nil {
		return Report{}, err
	}
	result, err := a.eng.Search(ctx, opts.Limits)
	if err != nil {
		return Report{}, err
	}

	report := buildReport(pos, result)
	if a.cache != nil {
		if err := a.cache.Put(ctx, key, report); err != nil {
			a.logger.Warn("analysis cache write failed", zap.Error(err))
		}
	}
	return report, nil
}

func buildReport(pos position.Position, result engine.Result) Report {
	candidates := rankLines(result.Lines)
	for i := range candidates {
		candidates[i].SAN = pos.SAN(candidates[i].Move)
	}

	report := Report{
		FEN:        pos.FEN(),
		SideToMove: pos.SideToMove(),
		BestMove:   result.BestMove,
		Ponder:     result.Ponder,
		Candidates: candidates,
		Depth:      result.Depth,
		SelDepth:   result.SelDepth,
		Nodes:      result.Nodes,
		NPS:        result.NPS,
		TimeMS:     result.TimeMS,
	}
	if len(candidates) > 0 {
		report.Eval = candidates[0].Eval
	} else {
		report.Eval = PawnEvaluation(0)
	}
	report.Assessment = Assess(report.Eval, report.SideToMove)
	return report
}

// rankLines orders lines best-first by the numeric evaluation (mates for
// the mover dominate every finite score, mates against sink below) and
// labels each relative to the top line.
func rankLines(lines []engine.Line) []Candidate {
	out := make([]Candidate, 0, len(lines))
	for _, line := range lines {
		if len(line.PV) == 0 {
			continue
		}
		out = append(out, Candidate{
			Move:  line.PV[0],
			Eval:  FromLine(line),
			Depth: line.Depth,
			PV:    append([]string(nil), line.PV...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Eval.Numeric() > out[j].Eval.Numeric()
	})
	if len(out) == 0 {
		return out
	}
	top := out[0].Eval.Numeric()
	for i := range out {
		out[i].Rank = i + 1
		out[i].Label = labelFor(top - out[i].Eval.Numeric())
	}
	return out
}

func labelFor(diff float64) string {
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < labelEqualBound:
		return LabelEqual
	case diff < labelGoodBound:
		return LabelGood
	case diff < labelAlternativeBound:
		return LabelAlternative
	default:
		return LabelInferior
	}
}

func cacheKey(fen string, limits engine.Limits, multiPV int) string {
	var b strings.Builder
	b.WriteString("analysis:")
	b.WriteString(fen)
	b.WriteString("|d=")
	b.WriteString(strconv.Itoa(limits.Depth))
	b.WriteString("|mt=")
	b.WriteString(strconv.Itoa(limits.MoveTimeMillis))
	b.WriteString("|n=")
	b.WriteString(strconv.FormatInt(limits.Nodes, 10))
	b.WriteString("|k=")
	b.WriteString(strconv.Itoa(multiPV))
	return b.String()
}
