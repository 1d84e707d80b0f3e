package position

import (
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// ParseRecord turns a serialized game record into the ordered coordinate
// move list it contains. The record may be a plain space-separated move
// list (coordinate or SAN), or PGN movetext; tag pairs, comments, move
// numbers and result markers are skipped. Each move is validated while
// replaying from the starting position.
func ParseRecord(text string) ([]string, error) {
	game := chesslib.NewGame()
	moves := make([]string, 0, 64)

	for _, token := range tokenizeRecord(text) {
		if err := game.PushNotationMove(strings.ToLower(token), chesslib.UCINotation{}, nil); err == nil {
			last := lastMove(game)
			if last == nil {
				return nil, fmt.Errorf("move %q applied but not recorded", token)
			}
			moves = append(moves, last.String())
			continue
		}
		if err := game.PushNotationMove(token, chesslib.AlgebraicNotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: %q at ply %d", ErrIllegalMove, token, len(moves)+1)
		}
		last := lastMove(game)
		if last == nil {
			return nil, fmt.Errorf("move %q applied but not recorded", token)
		}
		moves = append(moves, last.String())
	}

	return moves, nil
}

func tokenizeRecord(text string) []string {
	var (
		tokens    []string
		inBrace   bool
		inBracket bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			switch {
			case inBrace:
				if strings.HasSuffix(field, "}") {
					inBrace = false
				}
				continue
			case inBracket:
				if strings.HasSuffix(field, "]") {
					inBracket = false
				}
				continue
			case strings.HasPrefix(field, "{"):
				if !strings.HasSuffix(field, "}") {
					inBrace = true
				}
				continue
			case strings.HasPrefix(field, "["):
				if !strings.HasSuffix(field, "]") {
					inBracket = true
				}
				continue
			}

			token := stripMoveNumber(field)
			if token == "" || isResultMarker(token) {
				continue
			}
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func stripMoveNumber(field string) string {
	// "12.e4" and "12...Nf6" carry the move inline after the dots.
	if idx := strings.LastIndex(field, "."); idx >= 0 {
		lead := field[:idx]
		if strings.Trim(lead, "0123456789.") == "" {
			return strings.TrimSpace(field[idx+1:])
		}
	}
	if strings.Trim(field, "0123456789.") == "" {
		return ""
	}
	return field
}

func isResultMarker(token string) bool {
	switch token {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

func lastMove(game *chesslib.Game) *chesslib.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
