// Package insightdto holds the transport-neutral shapes handed to
// presentation layers. It deliberately depends on nothing internal.
package insightdto

type Evaluation struct {
	Pawns   float64
	Mate    int
	IsMate  bool
	Display string
}

type Assessment struct {
	Advantage string
	Magnitude string
	Winning   bool
	Losing    bool
	Critical  bool
}

type CandidateLine struct {
	Rank  int
	Move  string
	SAN   string
	Eval  Evaluation
	Label string
	Depth int
	PV    []string
}

type PositionAnalysis struct {
	FEN        string
	SideToMove string
	Eval       Evaluation
	Assessment Assessment
	BestMove   string
	Ponder     string
	Candidates []CandidateLine
	Depth      int
	SelDepth   int
	Nodes      int64
	NPS        int64
	TimeMS     int
	Cached     bool
	Opening    *OpeningInfo
	Hint       *HintInfo
}

type OpeningInfo struct {
	Name          string
	ECO           string
	Continuations []WeightedMove
}

type WeightedMove struct {
	Move   string
	Weight int
}

type HintInfo struct {
	Phase      string
	Summary    string
	Suggestion string
	BestMove   string
	BestSAN    string
	Warnings   []string
}

// EngineInfo reports which tier is active and why, so callers can tell a
// real analysis from a stub fallback.
type EngineInfo struct {
	Tier     string
	Name     string
	Author   string
	Fallback bool
	Attempts []TierAttempt
}

type TierAttempt struct {
	Tier  string
	Error string
}
