package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kapu/chess-insight/internal/position"
	"go.uber.org/zap"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultQuitGrace        = 2 * time.Second
	newGameRetryAttempts    = 3
	newGameRetryDelay       = 150 * time.Millisecond
	lineBuffer              = 64
)

var defaultReadyTimeout = 4 * time.Second

// Config parameterizes one protocol client.
type Config struct {
	BinaryPath       string
	Options          Options
	HandshakeTimeout time.Duration
	QuitGrace        time.Duration
	Logger           *zap.Logger

	// Validate is the move-legality oracle consulted before any position
	// command touches the process. Defaults to replay validation over the
	// internal position package.
	Validate func(fen string, moves []string) error
}

// Client owns one spawned engine process and speaks the UCI line protocol
// with it. Lifecycle: Uninitialized → Starting → Ready ⇄ Searching, with
// Failed reachable from anywhere on crash or timeout and Terminated as the
// final state after Quit. At most one search is in flight at a time; a
// concurrent attempt fails fast with ErrConcurrentSearch.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state State

	wmu   sync.Mutex
	stdin io.WriteCloser

	cmd      *exec.Cmd
	lines    chan string
	waitOnce sync.Once
	waitErr  error

	identity Identity
}

// NewClient returns a client in the Uninitialized state. Nothing is
// spawned until Start.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Validate == nil {
		cfg.Validate = func(fen string, moves []string) error {
			_, err := position.NewWithMoves(fen, moves)
			return err
		}
	}
	return &Client{cfg: cfg, logger: logger, state: StateUninitialized}
}

// Start spawns the engine process and completes the UCI handshake within
// the configured bound. On timeout or early process exit the process is
// torn down and the client moves to Failed.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("start from state %s: %w", state, ErrNotReady)
	}
	c.state = StateStarting
	c.mu.Unlock()

	cmd := exec.Command(c.cfg.BinaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("%w: create stdin pipe: %v", ErrProcessSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		c.setState(StateFailed)
		return fmt.Errorf("%w: create stdout pipe: %v", ErrProcessSpawn, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		c.setState(StateFailed)
		return fmt.Errorf("%w: %v", ErrProcessSpawn, err)
	}

	c.attach(stdin, stdout, cmd)
	return c.handshake(ctx)
}

// attach wires the byte streams and starts the reader pump. Split from
// Start so tests can drive the protocol over in-memory pipes.
func (c *Client) attach(stdin io.WriteCloser, stdout io.Reader, cmd *exec.Cmd) {
	c.stdin = stdin
	c.cmd = cmd
	c.lines = make(chan string, lineBuffer)

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 16*1024), 256*1024)
		for scanner.Scan() {
			c.lines <- strings.TrimSpace(scanner.Text())
		}
		close(c.lines)
	}()
}

func (c *Client) handshake(ctx context.Context) error {
	timeout := c.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	if err := c.send("uci\n"); err != nil {
		return c.crashed(fmt.Errorf("send uci: %w", err))
	}
	if err := c.await(ctx, "uciok", timeout, true); err != nil {
		return err
	}
	if err := c.applyOptions(c.cfg.Options); err != nil {
		return c.crashed(fmt.Errorf("apply options: %w", err))
	}
	if err := c.send("isready\n"); err != nil {
		return c.crashed(fmt.Errorf("send isready: %w", err))
	}
	if err := c.await(ctx, "readyok", timeout, false); err != nil {
		return err
	}

	c.setState(StateReady)
	c.logger.Debug("engine handshake complete",
		zap.String("name", c.identity.Name),
		zap.String("author", c.identity.Author))
	return nil
}

func (c *Client) applyOptions(opt Options) error {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	if opt.MultiPV > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV))
	}
	for _, cmd := range cmds {
		if err := c.send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetOption sends a configuration command. Fire-and-forget per protocol;
// valid only in Ready.
func (c *Client) SetOption(name, value string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.send(fmt.Sprintf("setoption name %s value %s\n", name, value))
}

// SetPosition validates every move against the legality oracle and only
// then sends the position command. An illegal move aborts before any bytes
// reach the process.
func (c *Client) SetPosition(fen string, moves []string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.cfg.Validate(fen, moves); err != nil {
		return err
	}
	if err := c.send(buildPositionCommand(fen, moves)); err != nil {
		return c.crashed(fmt.Errorf("send position: %w", err))
	}
	return nil
}

// Search runs one search with exactly one active limit and blocks until
// the terminal bestmove line. A second concurrent call fails immediately
// with ErrConcurrentSearch.
func (c *Client) Search(ctx context.Context, limits Limits) (Result, error) {
	if err := limits.Validate(); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	switch c.state {
	case StateSearching:
		c.mu.Unlock()
		return Result{}, ErrConcurrentSearch
	case StateReady:
		c.state = StateSearching
		c.mu.Unlock()
	case StateTerminated:
		c.mu.Unlock()
		return Result{}, ErrTerminated
	default:
		state := c.state
		c.mu.Unlock()
		return Result{}, fmt.Errorf("search from state %s: %w", state, ErrNotReady)
	}

	goCmd := strings.Join(buildGoTokens(limits), " ") + "\n"
	if err := c.send(goCmd); err != nil {
		return Result{}, c.crashed(fmt.Errorf("send go: %w", err))
	}

	timer := time.NewTimer(computeSearchTimeout(limits))
	defer timer.Stop()

	byPV := make(map[int]Line)
	var stats searchStats
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.terminate()
			c.setFailedUnlessTerminated()
			return Result{}, ctx.Err()
		case <-timer.C:
			c.terminate()
			c.setFailedUnlessTerminated()
			return Result{}, fmt.Errorf("search (%s): %w", strings.TrimSpace(goCmd), ErrProtocolTimeout)
		case line, ok := <-c.lines:
			if !ok {
				return Result{}, c.crashed(fmt.Errorf("stream closed during search"))
			}
			switch {
			case strings.HasPrefix(line, "info"):
				if ln, parsed := parseInfo(line, &stats); parsed {
					byPV[ln.MultiPV] = ln
				}
			case strings.HasPrefix(line, "bestmove"):
				best, ponder := parseBestMove(line)
				res := Result{
					BestMove: best,
					Ponder:   ponder,
					Depth:    stats.Depth,
					SelDepth: stats.SelDepth,
					Nodes:    stats.Nodes,
					NPS:      stats.NPS,
					TimeMS:   stats.TimeMS,
					Lines:    collapseLines(byPV),
				}
				if res.TimeMS == 0 {
					res.TimeMS = int(time.Since(start).Milliseconds())
				}
				c.mu.Lock()
				if c.state == StateSearching {
					c.state = StateReady
				}
				c.mu.Unlock()
				return res, nil
			}
		}
	}
}

// Cancel requests cooperative termination of the in-flight search. The
// engine still emits exactly one bestmove line, which completes the
// pending Search call normally.
func (c *Client) Cancel() error {
	c.mu.Lock()
	searching := c.state == StateSearching
	c.mu.Unlock()
	if !searching {
		return ErrNotSearching
	}
	return c.send("stop\n")
}

// NewGame resets engine state between independent analyses and waits for
// the engine to confirm readiness, retrying briefly; some engines need a
// moment after ucinewgame.
func (c *Client) NewGame(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.send("ucinewgame\n"); err != nil {
		return c.crashed(fmt.Errorf("send ucinewgame: %w", err))
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		// Only the final attempt's timeout is terminal; earlier ones
		// leave the process alive so the retry can reach it.
		err := c.ensureReady(ctx, attempt == newGameRetryAttempts)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		c.logger.Debug("ensure ready retry after ucinewgame",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// EnsureReady performs an isready/readyok round trip.
func (c *Client) EnsureReady(ctx context.Context) error {
	return c.ensureReady(ctx, true)
}

func (c *Client) ensureReady(ctx context.Context, failOnTimeout bool) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.send("isready\n"); err != nil {
		return c.crashed(fmt.Errorf("send isready: %w", err))
	}
	return c.awaitToken(ctx, "readyok", defaultReadyTimeout, false, failOnTimeout)
}

// Quit shuts the engine down gracefully: the quit command first, a forced
// kill if the process outlives the grace period. Idempotent; callable from
// any state.
func (c *Client) Quit() error {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StateTerminated
	c.mu.Unlock()

	if prev == StateUninitialized {
		return nil
	}

	_ = c.send("quit\n")
	c.closeStdin()

	done := make(chan error, 1)
	go func() { done <- c.wait() }()

	grace := c.cfg.QuitGrace
	if grace <= 0 {
		grace = defaultQuitGrace
	}
	select {
	case <-done:
	case <-time.After(grace):
		c.logger.Warn("engine ignored quit, killing process")
		c.kill()
		<-done
	}
	return nil
}

// Ready reports whether the client accepts position/search commands.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the engine's self-reported name and author, available
// after a successful Start.
func (c *Client) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) requireReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateReady:
		return nil
	case StateTerminated:
		return ErrTerminated
	default:
		return fmt.Errorf("state %s: %w", c.state, ErrNotReady)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setFailedUnlessTerminated() {
	c.mu.Lock()
	if c.state != StateTerminated {
		c.state = StateFailed
	}
	c.mu.Unlock()
}

// crashed records an unexpected process exit or stream failure. During a
// deliberate Quit the pending operation rejects with ErrTerminated
// instead.
func (c *Client) crashed(cause error) error {
	c.mu.Lock()
	terminated := c.state == StateTerminated
	if !terminated {
		c.state = StateFailed
	}
	c.mu.Unlock()

	c.terminate()
	if terminated {
		return fmt.Errorf("%v: %w", cause, ErrTerminated)
	}
	c.logger.Error("engine crashed", zap.Error(cause))
	return fmt.Errorf("%v: %w", cause, ErrEngineCrash)
}

// await consumes lines until token arrives or the bound expires. Timeout
// forcibly terminates the process; the client never stays ambiguously
// running.
func (c *Client) await(ctx context.Context, token string, timeout time.Duration, collectIdentity bool) error {
	return c.awaitToken(ctx, token, timeout, collectIdentity, true)
}

func (c *Client) awaitToken(ctx context.Context, token string, timeout time.Duration, collectIdentity, failOnTimeout bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.terminate()
			c.setFailedUnlessTerminated()
			return ctx.Err()
		case <-timer.C:
			if failOnTimeout {
				c.terminate()
				c.setFailedUnlessTerminated()
			}
			return fmt.Errorf("waiting for %q: %w", token, ErrProtocolTimeout)
		case line, ok := <-c.lines:
			if !ok {
				return c.crashed(fmt.Errorf("stream closed waiting for %q", token))
			}
			if collectIdentity {
				if rest, found := strings.CutPrefix(line, "id name "); found {
					c.mu.Lock()
					c.identity.Name = rest
					c.mu.Unlock()
					continue
				}
				if rest, found := strings.CutPrefix(line, "id author "); found {
					c.mu.Lock()
					c.identity.Author = rest
					c.mu.Unlock()
					continue
				}
			}
			if line == token {
				return nil
			}
		}
	}
}

func (c *Client) send(msg string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.stdin == nil {
		return fmt.Errorf("engine stdin not attached")
	}
	_, err := io.WriteString(c.stdin, msg)
	return err
}

func (c *Client) closeStdin() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
}

// terminate tears the process down on error paths. Safe to call more than
// once; the sole cmd.Wait is funneled through waitOnce so no zombie is
// left behind.
func (c *Client) terminate() {
	c.closeStdin()
	c.kill()
	_ = c.wait()
}

func (c *Client) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func (c *Client) wait() error {
	c.waitOnce.Do(func() {
		if c.cmd != nil {
			c.waitErr = c.cmd.Wait()
		}
	})
	return c.waitErr
}
