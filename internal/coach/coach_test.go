package coach

import (
	"strings"
	"testing"

	"github.com/kapu/chess-insight/internal/analysis"
	"github.com/kapu/chess-insight/internal/book"
	"github.com/kapu/chess-insight/internal/position"
)

func newTestCoach(t *testing.T) *Coach {
	t.Helper()
	b, err := book.New(book.Config{})
	if err != nil {
		t.Fatalf("book.New: %v", err)
	}
	return New(b, nil)
}

func reportFor(pos position.Position, eval analysis.Evaluation, best string) analysis.Report {
	return analysis.Report{
		FEN:        pos.FEN(),
		SideToMove: pos.SideToMove(),
		Eval:       eval,
		Assessment: analysis.Assess(eval, pos.SideToMove()),
		BestMove:   best,
		Candidates: []analysis.Candidate{{Rank: 1, Move: best, Eval: eval, Label: analysis.LabelEqual}},
	}
}

func TestExplainNamesOpeningPhase(t *testing.T) {
	c := newTestCoach(t)
	pos, err := position.NewWithMoves("", []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	hint := c.Explain(pos, reportFor(pos, analysis.PawnEvaluation(0.2), "b8c6"))
	if hint.Phase != PhaseOpening {
		t.Fatalf("phase = %q, want opening", hint.Phase)
	}
	if hint.Opening != "King's Knight Opening" {
		t.Fatalf("opening = %q", hint.Opening)
	}
	if hint.BestSAN != "Nc6" {
		t.Fatalf("best san = %q", hint.BestSAN)
	}
	if !strings.Contains(hint.Summary, "balanced") {
		t.Fatalf("summary = %q", hint.Summary)
	}
}

func TestExplainEndgamePhaseByMaterial(t *testing.T) {
	c := newTestCoach(t)
	pos, err := position.New("8/5k2/8/8/8/3K4/4P3/8 w - - 0 1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	hint := c.Explain(pos, reportFor(pos, analysis.PawnEvaluation(1.8), "d3e4"))
	if hint.Phase != PhaseEndgame {
		t.Fatalf("phase = %q, want endgame", hint.Phase)
	}
	if !strings.Contains(hint.Suggestion, "king") {
		t.Fatalf("suggestion = %q", hint.Suggestion)
	}
}

func TestExplainWarnsAboutMateThreat(t *testing.T) {
	c := newTestCoach(t)
	pos := position.NewStart()

	hint := c.Explain(pos, reportFor(pos, analysis.MateEvaluation(-2), "g1f3"))
	if len(hint.Warnings) == 0 {
		t.Fatal("expected warnings")
	}
	found := false
	for _, w := range hint.Warnings {
		if strings.Contains(w, "mate in 2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", hint.Warnings)
	}
	if !strings.Contains(hint.Summary, "mated") {
		t.Fatalf("summary = %q", hint.Summary)
	}
}

func TestExplainFlagsTacticalGap(t *testing.T) {
	c := newTestCoach(t)
	pos := position.NewStart()

	report := reportFor(pos, analysis.PawnEvaluation(2.1), "d1h5")
	report.Candidates = append(report.Candidates, analysis.Candidate{
		Rank: 2, Move: "e2e4", Eval: analysis.PawnEvaluation(0.2), Label: analysis.LabelInferior,
	})

	hint := c.Explain(pos, report)
	found := false
	for _, w := range hint.Warnings {
		if strings.Contains(w, "Tactical opportunity") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", hint.Warnings)
	}
}

func TestHistoryAccumulatesAndResets(t *testing.T) {
	c := newTestCoach(t)
	pos := position.NewStart()

	c.Explain(pos, reportFor(pos, analysis.PawnEvaluation(0.1), "e2e4"))
	c.Explain(pos, reportFor(pos, analysis.PawnEvaluation(0.3), "d2d4"))

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("history = %d entries", len(history))
	}
	history[0].Summary = "mutated"
	if c.History()[0].Summary == "mutated" {
		t.Fatal("History must return a copy")
	}

	c.Reset()
	if len(c.History()) != 0 {
		t.Fatal("Reset should clear history")
	}
}

func TestExplainCheckmateSummary(t *testing.T) {
	c := newTestCoach(t)
	// Fool's mate.
	pos, err := position.NewWithMoves("", []string{"f2f3", "e7e5", "g2g4", "d8h4"})
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	hint := c.Explain(pos, analysis.Report{SideToMove: pos.SideToMove()})
	if !strings.Contains(hint.Summary, "Checkmate") || !strings.Contains(hint.Summary, "Black") {
		t.Fatalf("summary = %q", hint.Summary)
	}
}
