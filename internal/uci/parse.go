package uci

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func buildGoTokens(l Limits) []string {
	args := []string{"go"}
	switch {
	case l.Depth > 0:
		args = append(args, "depth", strconv.Itoa(l.Depth))
	case l.MoveTimeMillis > 0:
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	case l.Nodes > 0:
		args = append(args, "nodes", strconv.FormatInt(l.Nodes, 10))
	}
	return args
}

// computeSearchTimeout bounds the wait for the terminal bestmove line.
// Generous relative to the requested limit; a hang means forced
// termination, not an indefinite wait.
var searchTimeoutMargin = 5 * time.Second

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond + searchTimeoutMargin
	}
	if l.Depth > 0 {
		d := time.Duration(l.Depth) * 2 * time.Second
		if d < 10*time.Second {
			d = 10 * time.Second
		}
		if d > 180*time.Second {
			d = 180 * time.Second
		}
		return d
	}
	return 60 * time.Second
}

// parseInfo extracts one candidate line from an "info" line. Lines without
// a pv (currmove reports, string lines) yield ok=false but may still carry
// progress counters, returned via the stats struct.
type searchStats struct {
	Depth    int
	SelDepth int
	Nodes    int64
	NPS      int64
	TimeMS   int
}

func parseInfo(line string, stats *searchStats) (Line, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return Line{}, false
	}

	out := Line{MultiPV: 1}
	pvIdx := -1

	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					out.Depth = v
					if v > stats.Depth {
						stats.Depth = v
					}
				}
				i++
			}
		case "seldepth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil && v > stats.SelDepth {
					stats.SelDepth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					out.MultiPV = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						out.ScoreCP = v
					}
				case "mate":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						out.Mate = v
						out.IsMate = true
					}
				}
				i += 2
			}
		case "nodes":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil && v > stats.Nodes {
					stats.Nodes = v
				}
				i++
			}
		case "nps":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
					stats.NPS = v
				}
				i++
			}
		case "time":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					stats.TimeMS = v
				}
				i++
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return Line{}, false
	}
	out.PV = append([]string(nil), parts[pvIdx:]...)
	return out, true
}

func parseBestMove(line string) (best, ponder string) {
	parts := strings.Fields(line)
	if len(parts) >= 2 {
		best = parts[1]
	}
	if len(parts) >= 4 && parts[2] == "ponder" {
		ponder = parts[3]
	}
	return best, ponder
}

// collapseLines orders the per-multipv map into a slice sorted by multipv
// index, which is the engine's own best-first ordering.
func collapseLines(m map[int]Line) []Line {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Line, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
