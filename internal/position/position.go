package position

import (
	"errors"
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is returned when a move fails legality validation. It is
// raised before any engine traffic is generated.
var ErrIllegalMove = errors.New("illegal move")

// Position is an immutable chess position: a base FEN plus the ordered
// moves applied to it. The final FEN is derived by replay at construction,
// so the two can never drift apart. Deriving a new position always returns
// a fresh value.
type Position struct {
	baseFEN string
	moves   []string
	fen     string
}

// NewStart returns the standard starting position.
func NewStart() Position {
	return Position{baseFEN: StartFEN, fen: StartFEN}
}

// New validates fen and returns a position with no moves applied. The
// literal "startpos" and an empty string map to the starting position.
func New(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return NewStart(), nil
	}
	game, err := gameFromFEN(fen)
	if err != nil {
		return Position{}, err
	}
	return Position{baseFEN: fen, fen: game.FEN()}, nil
}

// NewWithMoves validates fen and applies moves in order.
func NewWithMoves(fen string, moves []string) (Position, error) {
	p, err := New(fen)
	if err != nil {
		return Position{}, err
	}
	return p.WithMoves(moves...)
}

// WithMoves returns a new position with the given coordinate moves applied
// on top of the receiver. Every move is legality-checked; the first illegal
// one aborts with ErrIllegalMove and the receiver is left untouched.
func (p Position) WithMoves(moves ...string) (Position, error) {
	if len(moves) == 0 {
		return p, nil
	}
	game, err := p.game()
	if err != nil {
		return Position{}, err
	}

	applied := append([]string(nil), p.moves...)
	for _, mv := range moves {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return Position{}, fmt.Errorf("%w: %q at ply %d", ErrIllegalMove, mv, len(applied)+1)
		}
		applied = append(applied, mv)
	}

	return Position{
		baseFEN: p.baseFEN,
		moves:   applied,
		fen:     game.FEN(),
	}, nil
}

// BaseFEN returns the FEN the move list is applied to.
func (p Position) BaseFEN() string { return p.baseFEN }

// FEN returns the FEN after all moves have been applied.
func (p Position) FEN() string { return p.fen }

// Moves returns a copy of the applied coordinate moves.
func (p Position) Moves() []string {
	return append([]string(nil), p.moves...)
}

// Ply returns the number of applied half-moves.
func (p Position) Ply() int { return len(p.moves) }

// SideToMove reports "white" or "black".
func (p Position) SideToMove() string {
	game, err := p.game()
	if err != nil {
		return "white"
	}
	if game.Position().Turn() == chesslib.Black {
		return "black"
	}
	return "white"
}

// IsLegal reports whether a single coordinate move is legal here. The move
// is pushed onto a throwaway game because notation decoding alone accepts
// any well-formed coordinate pair.
func (p Position) IsLegal(move string) bool {
	game, err := p.game()
	if err != nil {
		return false
	}
	move = strings.ToLower(strings.TrimSpace(move))
	return game.PushNotationMove(move, chesslib.UCINotation{}, nil) == nil
}

// LegalMoves lists every legal move in coordinate notation.
func (p Position) LegalMoves() []string {
	game, err := p.game()
	if err != nil {
		return nil
	}
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, mv.String())
	}
	return out
}

// Terminal state queries used by the teaching layer.

func (p Position) IsCheckmate() bool {
	game, err := p.game()
	if err != nil {
		return false
	}
	return game.Outcome() != chesslib.NoOutcome && game.Method() == chesslib.Checkmate
}

func (p Position) IsStalemate() bool {
	game, err := p.game()
	if err != nil {
		return false
	}
	return game.Outcome() == chesslib.Draw && game.Method() == chesslib.Stalemate
}

func (p Position) IsDraw() bool {
	game, err := p.game()
	if err != nil {
		return false
	}
	return game.Outcome() == chesslib.Draw
}

func (p Position) IsGameOver() bool {
	game, err := p.game()
	if err != nil {
		return false
	}
	return game.Outcome() != chesslib.NoOutcome
}

var pieceValues = map[chesslib.PieceType]int{
	chesslib.Pawn:   1,
	chesslib.Knight: 3,
	chesslib.Bishop: 3,
	chesslib.Rook:   5,
	chesslib.Queen:  9,
}

// Material sums piece values (kings excluded) per side. The teaching layer
// uses it for phase detection.
func (p Position) Material() (white, black int) {
	game, err := p.game()
	if err != nil {
		return 0, 0
	}
	board := game.Position().Board()
	for file := chesslib.FileA; file <= chesslib.FileH; file++ {
		for rank := chesslib.Rank1; rank <= chesslib.Rank8; rank++ {
			piece := board.Piece(chesslib.NewSquare(file, rank))
			if piece == chesslib.NoPiece {
				continue
			}
			value := pieceValues[piece.Type()]
			if value == 0 {
				continue
			}
			if piece.Color() == chesslib.White {
				white += value
			} else {
				black += value
			}
		}
	}
	return white, black
}

// SAN encodes a coordinate move in standard algebraic notation, or returns
// the move unchanged when it is not legal here. The move is resolved
// through ValidMoves so castling and capture tags survive the encoding.
func (p Position) SAN(move string) string {
	game, err := p.game()
	if err != nil {
		return move
	}
	move = strings.ToLower(strings.TrimSpace(move))
	pos := game.Position()
	for _, mv := range game.ValidMoves() {
		if mv.String() == move {
			return chesslib.AlgebraicNotation{}.Encode(pos, &mv)
		}
	}
	return move
}

// IsLegal is the package-level legality oracle: isLegal(fen, move).
func IsLegal(fen, move string) bool {
	p, err := New(fen)
	if err != nil {
		return false
	}
	return p.IsLegal(move)
}

// Key joins a move sequence into the canonical book key.
func Key(moves []string) string {
	parts := make([]string, 0, len(moves))
	for _, mv := range moves {
		parts = append(parts, strings.ToLower(strings.TrimSpace(mv)))
	}
	return strings.Join(parts, " ")
}

func (p Position) game() (*chesslib.Game, error) {
	game, err := gameFromFEN(p.baseFEN)
	if err != nil {
		return nil, err
	}
	for _, mv := range p.moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return game, nil
}

func gameFromFEN(fen string) (*chesslib.Game, error) {
	if strings.TrimSpace(fen) == "" || fen == "startpos" || fen == StartFEN {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chesslib.NewGame(option), nil
}
