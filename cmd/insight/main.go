// insight analyzes chess positions and games from the command line and
// prints JSON reports. Engine, cache, and storage wiring comes from the
// environment; see internal/config.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kapu/chess-insight/internal/builder"
	appcfg "github.com/kapu/chess-insight/internal/config"
	"github.com/kapu/chess-insight/internal/obslog"
	"go.uber.org/zap"
)

type options struct {
	fen      string
	moves    string
	pgn      string
	game     bool
	depth    int
	movetime int
	nodes    int64
	multipv  int
	hint     bool
	opening  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.fen, "fen", "", "base position FEN (default: standard start)")
	flag.StringVar(&opts.moves, "moves", "", "space-separated coordinate moves applied to the base position")
	flag.StringVar(&opts.pgn, "pgn", "", "PGN movetext or file path; analyzes the whole game")
	flag.BoolVar(&opts.game, "game", false, "treat -moves as a full game and classify every ply")
	flag.IntVar(&opts.depth, "depth", 0, "search depth limit")
	flag.IntVar(&opts.movetime, "movetime", 0, "search movetime limit in milliseconds")
	flag.Int64Var(&opts.nodes, "nodes", 0, "search node count limit")
	flag.IntVar(&opts.multipv, "multipv", 0, "number of candidate lines")
	flag.BoolVar(&opts.hint, "hint", false, "include a teaching hint")
	flag.BoolVar(&opts.opening, "opening", false, "only look up the opening, no engine search")
	flag.Parse()

	obslog.InitFromEnv()
	defer obslog.L().Sync() //nolint:errcheck

	if err := run(opts); err != nil {
		domain := builder.MapError(err)
		fmt.Fprintf(os.Stderr, "error [%s]: %s\n", domain.Code, domain.Message)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := builder.New(ctx, cfg, obslog.L())
	if err != nil {
		return err
	}
	defer deps.Close()

	ins := builder.NewInsight(deps)
	obslog.L().Info("engine ready", zap.String("tier", deps.Selection.Tier.String()))

	moveList := strings.Fields(opts.moves)

	switch {
	case opts.opening:
		entry := ins.Opening(moveList)
		if entry == nil {
			return emit(map[string]string{"opening": "unknown"})
		}
		return emit(entry)

	case opts.pgn != "":
		record := opts.pgn
		if raw, err := os.ReadFile(record); err == nil {
			record = string(raw)
		}
		out, err := ins.AnalyzeGameRecord(ctx, record)
		if err != nil {
			return err
		}
		return emit(out)

	case opts.game:
		out, err := ins.AnalyzeGame(ctx, opts.fen, moveList)
		if err != nil {
			return err
		}
		return emit(out)

	default:
		search := builder.PositionOptions{
			Depth:          opts.depth,
			MoveTimeMillis: opts.movetime,
			Nodes:          opts.nodes,
			MultiPV:        opts.multipv,
			WithHint:       opts.hint,
		}
		if search.Depth == 0 && search.MoveTimeMillis == 0 && search.Nodes == 0 {
			search.Depth = cfg.AnalysisDepth
		}
		if search.MultiPV == 0 {
			search.MultiPV = cfg.AnalysisMultiPV
		}
		out, err := ins.AnalyzePosition(ctx, opts.fen, moveList, search)
		if err != nil {
			return err
		}
		return emit(out)
	}
}

func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode output: %v", err)
		return err
	}
	return nil
}
