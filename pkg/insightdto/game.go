package insightdto

import "time"

type PlyVerdict struct {
	Ply      int
	Side     string
	Move     string
	SAN      string
	Before   Evaluation
	After    Evaluation
	Delta    float64
	Class    string
	Best     bool
	BestMove string
}

type SideTotals struct {
	Moves      int
	Best       int
	Good       int
	Inaccuracy int
	Mistake    int
	Blunder    int
	Accuracy   float64
}

type GameAnalysis struct {
	ID        string
	BaseFEN   string
	Moves     []string
	Depth     int
	Verdicts  []PlyVerdict
	White     SideTotals
	Black     SideTotals
	CreatedAt time.Time
}
