// Package analysis turns raw engine search output into evaluations,
// ranked candidate lines, qualitative assessments, and whole-game move
// classifications.
package analysis

import (
	"fmt"

	"github.com/kapu/chess-insight/internal/engine"
)

// Evaluation is a single numeric verdict about a position, always from
// the perspective of the side to move. It is either a pawn-unit score or
// a signed mate distance, never both.
type Evaluation struct {
	Pawns   float64 `json:"pawns"`
	Mate    int     `json:"mate,omitempty"`
	IsMate  bool    `json:"is_mate,omitempty"`
	Display string  `json:"display"`
}

// FromLine converts one raw engine line.
func FromLine(line engine.Line) Evaluation {
	if line.IsMate {
		return MateEvaluation(line.Mate)
	}
	return PawnEvaluation(float64(line.ScoreCP) / 100)
}

// PawnEvaluation builds a numeric evaluation in pawn units.
func PawnEvaluation(pawns float64) Evaluation {
	return Evaluation{Pawns: pawns, Display: fmt.Sprintf("%+.2f", pawns)}
}

// MateEvaluation builds a mate evaluation. Positive means the side to
// move mates in that many moves; negative means it is being mated.
func MateEvaluation(moves int) Evaluation {
	return Evaluation{Mate: moves, IsMate: true, Display: fmt.Sprintf("#%d", moves)}
}

// mateNumericBase dominates any realistic centipawn score so mates sort
// and subtract correctly against finite evaluations.
const mateNumericBase = 99.0

// Numeric collapses the evaluation to one comparable float. Mates map
// just inside ±mateNumericBase, closer mates more extreme.
func (e Evaluation) Numeric() float64 {
	if !e.IsMate {
		return e.Pawns
	}
	if e.Mate >= 0 {
		return mateNumericBase - float64(e.Mate)
	}
	return -mateNumericBase - float64(e.Mate)
}

// Negate flips the perspective to the other side.
func (e Evaluation) Negate() Evaluation {
	if e.IsMate {
		return MateEvaluation(-e.Mate)
	}
	return PawnEvaluation(-e.Pawns)
}

// Magnitude buckets and advantage sides for Assessment.
const (
	MagnitudeSmall       = "small"
	MagnitudeClear       = "clear"
	MagnitudeSignificant = "significant"
	MagnitudeDecisive    = "decisive"

	AdvantageWhite = "white"
	AdvantageBlack = "black"
	AdvantageEqual = "equal"
)

// Assessment thresholds, in pawns.
const (
	smallBound       = 0.3
	clearBound       = 1.0
	significantBound = 1.5
	winningBound     = 3.0
	criticalBound    = 5.0
)

// Assessment is the qualitative reading of an Evaluation.
type Assessment struct {
	Advantage string `json:"advantage"`
	Magnitude string `json:"magnitude"`
	Winning   bool   `json:"winning,omitempty"`
	Losing    bool   `json:"losing,omitempty"`
	Critical  bool   `json:"critical,omitempty"`
}

// Assess derives the assessment for the given mover. Winning and Losing
// stay from the side to move's perspective; Advantage names the color.
func Assess(eval Evaluation, sideToMove string) Assessment {
	score := eval.Numeric()
	abs := score
	if abs < 0 {
		abs = -abs
	}

	a := Assessment{
		Winning:  score > winningBound,
		Losing:   score < -winningBound,
		Critical: abs > criticalBound || eval.IsMate,
	}

	switch {
	case abs < smallBound:
		a.Magnitude = MagnitudeSmall
	case abs < clearBound:
		a.Magnitude = MagnitudeClear
	case abs < significantBound:
		a.Magnitude = MagnitudeSignificant
	default:
		a.Magnitude = MagnitudeDecisive
	}

	switch {
	case abs < smallBound:
		a.Advantage = AdvantageEqual
	case score > 0:
		a.Advantage = sideToMove
	default:
		a.Advantage = opposite(sideToMove)
	}
	return a
}

func opposite(side string) string {
	if side == AdvantageWhite {
		return AdvantageBlack
	}
	return AdvantageWhite
}
