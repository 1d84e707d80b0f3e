// Package coach derives natural-language guidance from analysis output:
// evaluation narratives, phase-based suggestions, and warnings. It never
// touches the engine; everything here is a pure function of reports plus
// an accumulating history kept for later review.
package coach

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kapu/chess-insight/internal/analysis"
	"github.com/kapu/chess-insight/internal/book"
	"github.com/kapu/chess-insight/internal/position"
	"go.uber.org/zap"
)

// Phase is the coarse game phase a suggestion is keyed by.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

// endgameMaterial is the combined material (pawns included, kings not)
// at or below which the position counts as an endgame. The full starting
// material is 78.
const endgameMaterial = 30

// Hint is one explanation produced for a position.
type Hint struct {
	Ply        int      `json:"ply"`
	Phase      Phase    `json:"phase"`
	Opening    string   `json:"opening,omitempty"`
	Summary    string   `json:"summary"`
	Suggestion string   `json:"suggestion"`
	BestMove   string   `json:"best_move,omitempty"`
	BestSAN    string   `json:"best_san,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Coach accumulates hints for later review. Safe for concurrent use.
type Coach struct {
	book   *book.Book
	logger *zap.Logger

	mu      sync.Mutex
	history []Hint
}

func New(openings *book.Book, logger *zap.Logger) *Coach {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coach{book: openings, logger: logger}
}

// Explain derives a hint for pos from its analysis report and records it
// in the history.
func (c *Coach) Explain(pos position.Position, report analysis.Report) Hint {
	var entry book.Entry
	if c.book != nil {
		entry = c.book.Lookup(pos.Moves())
	}
	phase := c.phase(pos, entry)

	hint := Hint{
		Ply:        pos.Ply(),
		Phase:      phase,
		Opening:    entry.Name,
		Summary:    summarize(pos, report),
		Suggestion: suggest(phase, report.Assessment),
		BestMove:   report.BestMove,
		Warnings:   warnings(report),
	}
	if report.BestMove != "" {
		hint.BestSAN = pos.SAN(report.BestMove)
	}

	c.mu.Lock()
	c.history = append(c.history, hint)
	c.mu.Unlock()
	return hint
}

// History returns a copy of every hint produced so far, oldest first.
func (c *Coach) History() []Hint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Hint(nil), c.history...)
}

// Reset clears the review history.
func (c *Coach) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

func (c *Coach) phase(pos position.Position, entry book.Entry) Phase {
	white, black := pos.Material()
	if white+black <= endgameMaterial {
		return PhaseEndgame
	}
	if entry.Known {
		return PhaseOpening
	}
	if c.book != nil && pos.Ply() <= c.book.MaxPly() {
		return PhaseOpening
	}
	return PhaseMiddlegame
}

func summarize(pos position.Position, report analysis.Report) string {
	if pos.IsCheckmate() {
		return fmt.Sprintf("Checkmate. %s wins.", title(opponentOf(pos.SideToMove())))
	}
	if pos.IsStalemate() {
		return "Stalemate. The game is drawn."
	}
	if pos.IsDraw() {
		return "The game is drawn."
	}

	a := report.Assessment
	mover := report.SideToMove
	switch {
	case report.Eval.IsMate && report.Eval.Mate > 0:
		return fmt.Sprintf("%s has a forced mate in %d (%s).",
			title(mover), report.Eval.Mate, report.Eval.Display)
	case report.Eval.IsMate:
		return fmt.Sprintf("%s is getting mated in %d (%s).",
			title(mover), -report.Eval.Mate, report.Eval.Display)
	case a.Advantage == analysis.AdvantageEqual:
		return fmt.Sprintf("The position is balanced (%s).", report.Eval.Display)
	case a.Magnitude == analysis.MagnitudeDecisive:
		return fmt.Sprintf("%s has a decisive advantage (%s).", title(a.Advantage), report.Eval.Display)
	case a.Magnitude == analysis.MagnitudeSignificant:
		return fmt.Sprintf("%s is clearly better (%s).", title(a.Advantage), report.Eval.Display)
	default:
		return fmt.Sprintf("%s is slightly better (%s).", title(a.Advantage), report.Eval.Display)
	}
}

func suggest(phase Phase, a analysis.Assessment) string {
	switch phase {
	case PhaseOpening:
		return "Develop your pieces toward the center and get your king castled before opening the position."
	case PhaseEndgame:
		if a.Winning {
			return "Activate your king, push your passed pawns, and trade pieces but not pawns."
		}
		return "Activate your king and create counterplay before the stronger side consolidates."
	default:
		if a.Winning {
			return "Convert your advantage: improve your worst-placed piece and avoid unnecessary complications."
		}
		if a.Losing {
			return "Seek active counterplay and complications rather than passive defense."
		}
		return "Look for pawn breaks and piece maneuvers that improve your position."
	}
}

func warnings(report analysis.Report) []string {
	var out []string
	a := report.Assessment

	if report.Eval.IsMate {
		if report.Eval.Mate > 0 {
			out = append(out, fmt.Sprintf("Mate in %d is available.", report.Eval.Mate))
		} else {
			out = append(out, fmt.Sprintf("Your opponent threatens mate in %d.", -report.Eval.Mate))
		}
	}
	if a.Critical && !report.Eval.IsMate {
		out = append(out, "The position is critical; calculate carefully.")
	}
	if a.Losing && !report.Eval.IsMate {
		out = append(out, "You are losing material or position; look for the most stubborn defense.")
	}
	if gap := candidateGap(report); gap > 1.5 {
		out = append(out, fmt.Sprintf("Tactical opportunity: the best move is worth %.1f pawns more than the alternative.", gap))
	}
	return out
}

// candidateGap is the numeric distance between the top two candidate
// lines, or zero when fewer than two exist.
func candidateGap(report analysis.Report) float64 {
	if len(report.Candidates) < 2 {
		return 0
	}
	return report.Candidates[0].Eval.Numeric() - report.Candidates[1].Eval.Numeric()
}

// title uppercases the first letter of a side name.
func title(side string) string {
	if side == "" {
		return side
	}
	return strings.ToUpper(side[:1]) + side[1:]
}

func opponentOf(side string) string {
	if side == analysis.AdvantageWhite {
		return analysis.AdvantageBlack
	}
	return analysis.AdvantageWhite
}
