// Package book answers "what opening is this, and what is usually played
// next" from the ordered coordinate moves of a game. The core catalog is
// embedded; a Polyglot binary book can be layered on top for extra
// continuation weights. Lookups are pure functions of the move sequence.
package book

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/kapu/chess-insight/internal/position"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// DefaultMaxPly bounds how deep into a game the book keeps answering.
const DefaultMaxPly = 8

// Continuation is one suggested next move with its relative weight. The
// book itself performs no sampling; consumers may weight-pick at random.
type Continuation struct {
	Move   string
	Weight int
}

// Entry is a lookup result. Known is false past book depth or for move
// sequences the catalog has never seen; that is a normal answer, not an
// error.
type Entry struct {
	Known         bool
	Name          string
	ECO           string
	Continuations []Continuation
}

// Config parameterizes a Book.
type Config struct {
	MaxPly       int
	PolyglotPath string
	Logger       *zap.Logger
}

type catalogLine struct {
	ECO    string `yaml:"eco"`
	Name   string `yaml:"name"`
	Moves  string `yaml:"moves"`
	Weight int    `yaml:"weight"`
}

type catalogFile struct {
	Openings []catalogLine `yaml:"openings"`
}

type bookLine struct {
	eco    string
	name   string
	moves  []string
	key    string
	weight int
}

// Book is an immutable opening catalog.
type Book struct {
	maxPly int
	lines  []bookLine
	poly   *chesslib.PolyglotBook
	eco    *opening.BookECO
	logger *zap.Logger
}

// New loads the embedded catalog and, when configured, the Polyglot book.
// A missing Polyglot file is an error; no Polyglot path is not.
func New(cfg Config) (*Book, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPly := cfg.MaxPly
	if maxPly <= 0 {
		maxPly = DefaultMaxPly
	}

	var payload catalogFile
	if err := yaml.Unmarshal(embeddedCatalog, &payload); err != nil {
		return nil, fmt.Errorf("decode embedded opening catalog: %w", err)
	}
	lines := make([]bookLine, 0, len(payload.Openings))
	for _, raw := range payload.Openings {
		moves := strings.Fields(strings.ToLower(raw.Moves))
		if len(moves) == 0 {
			continue
		}
		weight := raw.Weight
		if weight <= 0 {
			weight = 1
		}
		lines = append(lines, bookLine{
			eco:    strings.TrimSpace(raw.ECO),
			name:   strings.TrimSpace(raw.Name),
			moves:  moves,
			key:    strings.Join(moves, " "),
			weight: weight,
		})
	}

	b := &Book{maxPly: maxPly, lines: lines, eco: opening.NewBookECO(), logger: logger}

	if path := strings.TrimSpace(cfg.PolyglotPath); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
		}
		defer file.Close()
		poly, err := chesslib.LoadFromReader(file)
		if err != nil {
			return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
		}
		b.poly = poly
		logger.Info("polyglot book loaded", zap.String("path", path))
	}

	return b, nil
}

// MaxPly returns the configured book depth.
func (b *Book) MaxPly() int { return b.maxPly }

// Lookup resolves the played move sequence. Sequences longer than the
// book depth always come back unknown.
func (b *Book) Lookup(moves []string) Entry {
	if len(moves) > b.maxPly {
		return Entry{}
	}
	key := position.Key(moves)

	var (
		entry      Entry
		deepestLen = -1
	)
	weights := make(map[string]int)

	for _, line := range b.lines {
		if line.key == key || (key != "" && strings.HasPrefix(key, line.key+" ")) {
			// Known ancestor (or exact match): the deepest one names the
			// opening.
			if len(line.moves) > deepestLen {
				deepestLen = len(line.moves)
				entry.Known = true
				entry.Name = line.name
				entry.ECO = line.eco
			}
			continue
		}
		if key == "" || strings.HasPrefix(line.key, key+" ") {
			entry.Known = true
			next := line.moves[len(moves)]
			weights[next] += line.weight
		}
	}

	if b.poly != nil && entry.Known {
		b.addPolyglotWeights(moves, weights)
	}
	if !entry.Known {
		if name, eco, ok := b.ecoName(moves); ok {
			entry.Known = true
			entry.Name = name
			entry.ECO = eco
		} else {
			return Entry{}
		}
	}

	entry.Continuations = collapseWeights(weights)
	return entry
}

func (b *Book) addPolyglotWeights(moves []string, weights map[string]int) {
	pos, err := position.NewWithMoves(position.StartFEN, moves)
	if err != nil {
		return
	}
	hashStr, err := chesslib.NewZobristHasher().HashPosition(pos.FEN())
	if err != nil {
		b.logger.Debug("polyglot hash failed", zap.Error(err))
		return
	}
	for _, pe := range b.poly.FindMoves(chesslib.ZobristHashToUint64(hashStr)) {
		mv := chesslib.DecodeMove(pe.Move).ToMove()
		weights[mv.String()] += int(pe.Weight)
	}
}

// ecoName falls back to ECO classification for sequences the embedded
// catalog does not cover.
func (b *Book) ecoName(moves []string) (name, eco string, ok bool) {
	if len(moves) == 0 {
		return "", "", false
	}
	game := chesslib.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return "", "", false
		}
	}
	found := b.eco.Find(game.Moves())
	if found == nil {
		return "", "", false
	}
	return found.Title(), found.Code(), true
}

func collapseWeights(weights map[string]int) []Continuation {
	if len(weights) == 0 {
		return nil
	}
	out := make([]Continuation, 0, len(weights))
	for mv, w := range weights {
		out = append(out, Continuation{Move: mv, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight == out[j].Weight {
			return out[i].Move < out[j].Move
		}
		return out[i].Weight > out[j].Weight
	})
	return out
}
