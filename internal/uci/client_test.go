package uci

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kapu/chess-insight/internal/position"
)

// fakeEngine scripts the far side of the protocol over in-memory pipes, so
// the client's state machine can be exercised without a real binary.
type fakeEngine struct {
	in  *io.PipeReader
	out *io.PipeWriter

	mu       sync.Mutex
	commands []string

	// onGo emits the response to a go command. Defaults to a depth-10
	// single-line search.
	onGo func(e *fakeEngine)
	// crashOnGo closes the output stream instead of answering.
	crashOnGo bool
	// holdUntilStop delays bestmove until a stop command arrives.
	holdUntilStop bool
	// muteHandshake swallows uci, never answering uciok.
	muteHandshake bool
	// muteGo swallows go commands, never emitting bestmove.
	muteGo bool
	// dropReadyCount swallows this many isready commands before
	// answering again. Guarded by mu; tests set it after the handshake.
	dropReadyCount int

	stopCh chan struct{}
}

func newFakeEngine(t *testing.T) (*fakeEngine, *Client) {
	t.Helper()
	return newFakeEngineWith(t, Config{HandshakeTimeout: 2 * time.Second, QuitGrace: 100 * time.Millisecond})
}

func newFakeEngineWith(t *testing.T, cfg Config) (*fakeEngine, *Client) {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	respR, respW := io.Pipe()

	e := &fakeEngine{in: cmdR, out: respW, stopCh: make(chan struct{}, 1)}
	go e.serve()

	c := NewClient(cfg)
	c.attach(cmdW, respR, nil)
	c.setState(StateStarting)
	return e, c
}

func (e *fakeEngine) serve() {
	scanner := bufio.NewScanner(e.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		e.mu.Lock()
		e.commands = append(e.commands, line)
		e.mu.Unlock()

		switch {
		case line == "uci":
			if e.muteHandshake {
				continue
			}
			e.write("id name FakeFish 1.0\nid author Pipe Harness\nuciok\n")
		case line == "isready":
			e.mu.Lock()
			drop := e.dropReadyCount > 0
			if drop {
				e.dropReadyCount--
			}
			e.mu.Unlock()
			if drop {
				continue
			}
			e.write("readyok\n")
		case line == "stop":
			select {
			case e.stopCh <- struct{}{}:
			default:
			}
		case line == "quit":
			e.out.Close()
			return
		case strings.HasPrefix(line, "go"):
			if e.crashOnGo {
				e.out.Close()
				return
			}
			if e.muteGo {
				continue
			}
			if e.holdUntilStop {
				go func() {
					<-e.stopCh
					e.write("info depth 4 score cp 12 nodes 900 nps 4500 time 200 pv e2e4\nbestmove e2e4\n")
				}()
				continue
			}
			if e.onGo != nil {
				e.onGo(e)
				continue
			}
			e.write("info depth 10 seldepth 14 multipv 1 score cp 31 nodes 48213 nps 120000 time 400 pv e2e4 e7e5 g1f3\nbestmove e2e4 ponder e7e5\n")
		}
	}
}

func (e *fakeEngine) write(s string) {
	_, _ = io.WriteString(e.out, s)
}

func (e *fakeEngine) setDropReadyCount(n int) {
	e.mu.Lock()
	e.dropReadyCount = n
	e.mu.Unlock()
}

func (e *fakeEngine) sawCommand(prefix string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cmd := range e.commands {
		if strings.HasPrefix(cmd, prefix) {
			return true
		}
	}
	return false
}

func TestHandshakeCollectsIdentity(t *testing.T) {
	_, c := newFakeEngine(t)
	defer c.Quit()

	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if !c.Ready() {
		t.Fatalf("state = %s, want ready", c.State())
	}
	id := c.Identity()
	if id.Name != "FakeFish 1.0" || id.Author != "Pipe Harness" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestSearchParsesTerminalResult(t *testing.T) {
	e, c := newFakeEngine(t)
	defer c.Quit()
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	e.onGo = func(e *fakeEngine) {
		e.write("info depth 8 multipv 2 score cp -15 nodes 20000 nps 100000 time 150 pv d2d4 d7d5\n")
		e.write("info depth 10 seldepth 13 multipv 1 score cp 42 nodes 51000 nps 110000 time 420 pv e2e4 e7e5\n")
		e.write("info depth 10 multipv 2 score mate -3 nodes 52000 pv d2d4 d7d5 c2c4\n")
		e.write("bestmove e2e4 ponder e7e5\n")
	}

	if err := c.SetPosition("startpos", []string{"e2e4", "e7e5"}); err != nil {
		t.Fatalf("set position: %v", err)
	}
	res, err := c.Search(context.Background(), Limits{Depth: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if res.BestMove != "e2e4" || res.Ponder != "e7e5" {
		t.Fatalf("bestmove=%q ponder=%q", res.BestMove, res.Ponder)
	}
	if res.Depth != 10 || res.SelDepth != 13 || res.Nodes != 52000 {
		t.Fatalf("stats: depth=%d seldepth=%d nodes=%d", res.Depth, res.SelDepth, res.Nodes)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(res.Lines))
	}
	if res.Lines[0].MultiPV != 1 || res.Lines[0].ScoreCP != 42 {
		t.Fatalf("first line = %+v", res.Lines[0])
	}
	if !res.Lines[1].IsMate || res.Lines[1].Mate != -3 {
		t.Fatalf("second line = %+v", res.Lines[1])
	}
	if !c.Ready() {
		t.Fatalf("state after search = %s", c.State())
	}
}

func TestConcurrentSearchRejectedAndCancelCompletes(t *testing.T) {
	e, c := newFakeEngine(t)
	defer c.Quit()
	e.holdUntilStop = true
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	type outcome struct {
		res Result
		err error
	}
	results := make(chan outcome, 1)
	go func() {
		res, err := c.Search(context.Background(), Limits{MoveTimeMillis: 2000})
		results <- outcome{res, err}
	}()

	// Let the first search reach the engine.
	deadline := time.Now().Add(time.Second)
	for !e.sawCommand("go") {
		if time.Now().After(deadline) {
			t.Fatal("first go command never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := c.Search(context.Background(), Limits{Depth: 5}); !errors.Is(err, ErrConcurrentSearch) {
		t.Fatalf("second search err = %v, want ErrConcurrentSearch", err)
	}

	if err := c.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	select {
	case out := <-results:
		if out.err != nil {
			t.Fatalf("cancelled search err = %v, want terminal bestmove", out.err)
		}
		if out.res.BestMove != "e2e4" {
			t.Fatalf("bestmove = %q", out.res.BestMove)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled search never resolved")
	}

	if err := c.Cancel(); !errors.Is(err, ErrNotSearching) {
		t.Fatalf("cancel after completion err = %v, want ErrNotSearching", err)
	}
}

func TestIllegalMoveNeverReachesProcess(t *testing.T) {
	e, c := newFakeEngine(t)
	defer c.Quit()
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	err := c.SetPosition("startpos", []string{"z9z9"})
	if !errors.Is(err, position.ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if e.sawCommand("position") {
		t.Fatal("position command was written despite illegal move")
	}
}

func TestCrashMidSearchFailsPendingOperation(t *testing.T) {
	e, c := newFakeEngine(t)
	e.crashOnGo = true
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	_, err := c.Search(context.Background(), Limits{Depth: 10})
	if !errors.Is(err, ErrEngineCrash) {
		t.Fatalf("err = %v, want ErrEngineCrash", err)
	}
	if got := c.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
	if _, err := c.Search(context.Background(), Limits{Depth: 4}); err == nil {
		t.Fatal("search on failed client must error")
	}
}

func TestQuitIsIdempotentAndTerminal(t *testing.T) {
	_, c := newFakeEngine(t)
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	if err := c.Quit(); err != nil {
		t.Fatalf("quit: %v", err)
	}
	if err := c.Quit(); err != nil {
		t.Fatalf("second quit: %v", err)
	}
	if got := c.State(); got != StateTerminated {
		t.Fatalf("state = %s, want terminated", got)
	}
	if err := c.SetPosition("startpos", nil); !errors.Is(err, ErrTerminated) {
		t.Fatalf("set position after quit err = %v, want ErrTerminated", err)
	}
}

func TestStartMissingBinaryIsSpawnError(t *testing.T) {
	c := NewClient(Config{BinaryPath: "/nonexistent/engine-binary"})
	err := c.Start(context.Background())
	if !errors.Is(err, ErrProcessSpawn) {
		t.Fatalf("err = %v, want ErrProcessSpawn", err)
	}
}

func TestHandshakeTimeoutFails(t *testing.T) {
	e, c := newFakeEngineWith(t, Config{HandshakeTimeout: 100 * time.Millisecond, QuitGrace: 100 * time.Millisecond})
	e.muteHandshake = true
	defer c.Quit()

	err := c.handshake(context.Background())
	if !errors.Is(err, ErrProtocolTimeout) {
		t.Fatalf("err = %v, want ErrProtocolTimeout", err)
	}
	if got := c.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
}

func TestSearchTimeoutTerminatesAndFails(t *testing.T) {
	restore := searchTimeoutMargin
	searchTimeoutMargin = 100 * time.Millisecond
	defer func() { searchTimeoutMargin = restore }()

	e, c := newFakeEngine(t)
	e.muteGo = true
	defer c.Quit()
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	_, err := c.Search(context.Background(), Limits{MoveTimeMillis: 1})
	if !errors.Is(err, ErrProtocolTimeout) {
		t.Fatalf("err = %v, want ErrProtocolTimeout", err)
	}
	if got := c.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
}

func TestNewGameRetriesReadiness(t *testing.T) {
	restore := defaultReadyTimeout
	defaultReadyTimeout = 100 * time.Millisecond
	defer func() { defaultReadyTimeout = restore }()

	e, c := newFakeEngine(t)
	defer c.Quit()
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	e.setDropReadyCount(1)

	if err := c.NewGame(context.Background()); err != nil {
		t.Fatalf("new game: %v", err)
	}
	if !e.sawCommand("ucinewgame") {
		t.Fatal("ucinewgame was never sent")
	}
	if got := c.State(); got != StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
}

func TestNewGameExhaustedRetriesFails(t *testing.T) {
	restore := defaultReadyTimeout
	defaultReadyTimeout = 50 * time.Millisecond
	defer func() { defaultReadyTimeout = restore }()

	e, c := newFakeEngine(t)
	defer c.Quit()
	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	e.setDropReadyCount(3)

	err := c.NewGame(context.Background())
	if !errors.Is(err, ErrProtocolTimeout) {
		t.Fatalf("err = %v, want ErrProtocolTimeout", err)
	}
	if got := c.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
}
