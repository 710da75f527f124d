// Package syncer decides what clipboard content moves between peers.
//
// Local changes are debounced and pushed to every selected, active peer
// through a bounded worker pool. Remote updates are applied under a simple
// last-write-wins rule with self-echo suppression: content we just received
// is never pushed straight back out. Updates older than the newest one seen
// from the same origin process are rejected as stale.
package syncer

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"go.klb.dev/lanclip/internal/clip"
	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/registry"
)

const (
	DefaultDebounce    = 250 * time.Millisecond
	DefaultPushTimeout = 2 * time.Second
	DefaultWorkers     = 8

	// maxEchoes bounds the remote contents remembered for echo suppression.
	maxEchoes = 16
)

// Rejection reasons reported by Apply.
const (
	ReasonSelf      = "self-origin"
	ReasonDisabled  = "disabled"
	ReasonDuplicate = "duplicate"
	ReasonStale     = "stale"
)

// Transport carries clipboard state to and from a peer's API address.
type Transport interface {
	Push(ctx context.Context, addr string, st message.ClipboardState) (message.ApplyResponse, error)
	Fetch(ctx context.Context, addr string) (message.ClipboardState, error)
}

// Peers is the view of the registry the coordinator needs.
type Peers interface {
	Targets() []registry.Peer
	Touch(hostname string)
}

// Config tunes a Coordinator. Zero values select the defaults.
type Config struct {
	// Self is this instance's hostname, used as originHost.
	Self string
	// Instance is this process's nonce, stamped on local changes.
	Instance string
	// Debounce is the quiet period before a local change is committed.
	Debounce time.Duration
	// PushTimeout bounds each individual push or pull.
	PushTimeout time.Duration
	// Workers bounds concurrent pushes and pulls across all peers.
	Workers int
	// PullInterval enables periodic pulls from targets when positive.
	PullInterval time.Duration
	// Disabled starts with sync turned off.
	Disabled bool
}

// Result is the outcome of Apply.
type Result struct {
	Accepted bool
	Reason   string
	Version  uint64
}

// originMark is the newest version accepted directly from one origin process.
type originMark struct {
	instance string
	version  uint64
}

// Coordinator owns the ClipboardState.
type Coordinator struct {
	cfg   Config
	clip  clip.Backend
	peers Peers
	tr    Transport

	mu      sync.RWMutex
	state   message.ClipboardState
	seen    map[string]originMark
	echoes  []string
	enabled bool

	debounceMu sync.Mutex
	timer      *time.Timer
	pending    string

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Coordinator whose initial state is the current clipboard
// content at version 0.
func New(cfg Config, b clip.Backend, peers Peers, tr Transport) *Coordinator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPushTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	initial, err := b.Read()
	if err != nil {
		slog.Warn("initial clipboard read failed", "backend", b.Name(), "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		clip:    b,
		peers:   peers,
		tr:      tr,
		state:   message.ClipboardState{Content: initial, OriginHost: cfg.Self, Instance: cfg.Instance},
		seen:    make(map[string]originMark),
		enabled: !cfg.Disabled,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns a snapshot of the current clipboard state.
func (c *Coordinator) State() message.ClipboardState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Enabled reports whether sync is on.
func (c *Coordinator) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled turns sync on or off. While off nothing is pushed or pulled
// and remote updates are rejected.
func (c *Coordinator) SetEnabled(on bool) {
	c.mu.Lock()
	changed := c.enabled != on
	c.enabled = on
	c.mu.Unlock()
	if changed {
		slog.Info("sync toggled", "enabled", on)
	}
}

// Apply handles a clipboard state pushed by its origin.
func (c *Coordinator) Apply(in message.ClipboardState) Result {
	return c.apply(in, true)
}

// apply accepts or rejects in. direct is set when in came from its origin
// rather than being relayed by another peer; only direct updates are checked
// against and advance the origin's high-water version, because relayed
// states carry the relaying peer's version.
func (c *Coordinator) apply(in message.ClipboardState, direct bool) Result {
	c.mu.Lock()
	cur := c.state
	var reason string
	switch {
	case in.OriginHost == c.cfg.Self:
		reason = ReasonSelf
	case !c.enabled:
		reason = ReasonDisabled
	case direct && c.staleLocked(in):
		reason = ReasonStale
	case in.Content == cur.Content && (in.Version == cur.Version || in.OriginHost == cur.OriginHost):
		reason = ReasonDuplicate
	}
	if reason == ReasonDuplicate && direct {
		c.markLocked(in)
	}
	if reason != "" {
		c.mu.Unlock()
		metricApplied.WithLabelValues(reason).Inc()
		slog.Debug("remote update rejected", "origin", in.OriginHost, "version", in.Version, "reason", reason)
		return Result{Reason: reason, Version: cur.Version}
	}

	if err := c.clip.Write(in.Content); err != nil {
		slog.Warn("clipboard write failed", "backend", c.clip.Name(), "err", err)
	}
	next := max(cur.Version+1, in.Version)
	c.state = message.ClipboardState{
		Content:    in.Content,
		OriginHost: in.OriginHost,
		Version:    next,
		Instance:   in.Instance,
	}
	if direct {
		c.markLocked(in)
	}
	c.rememberEchoLocked(in.Content)
	st := c.state
	c.mu.Unlock()

	// The clipboard now holds the remote content; a local change still
	// waiting for its debounce window is gone from it.
	c.dropPending()

	metricApplied.WithLabelValues("accepted").Inc()
	logState("remote clipboard applied", st)
	return Result{Accepted: true, Version: next}
}

// staleLocked reports whether in is older than an update already accepted
// from the same origin process.
func (c *Coordinator) staleLocked(in message.ClipboardState) bool {
	m, ok := c.seen[in.OriginHost]
	return ok && m.instance == in.Instance && in.Version < m.version
}

func (c *Coordinator) markLocked(in message.ClipboardState) {
	m, ok := c.seen[in.OriginHost]
	if !ok || m.instance != in.Instance || in.Version > m.version {
		c.seen[in.OriginHost] = originMark{instance: in.Instance, version: in.Version}
	}
}

func (c *Coordinator) rememberEchoLocked(content string) {
	if slices.Contains(c.echoes, content) {
		return
	}
	if len(c.echoes) == maxEchoes {
		c.echoes = slices.Delete(c.echoes, 0, 1)
	}
	c.echoes = append(c.echoes, content)
}

func (c *Coordinator) dropPending() {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = ""
}

// LocalChanged reports new local clipboard content. Changes arriving within
// the debounce window collapse into one commit of the final content.
func (c *Coordinator) LocalChanged(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()
	c.pending = content
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.Debounce, c.flush)
		return
	}
	c.timer.Reset(c.cfg.Debounce)
}

func (c *Coordinator) flush() {
	c.debounceMu.Lock()
	content := c.pending
	c.pending = ""
	c.debounceMu.Unlock()
	if content == "" {
		return
	}

	if st, ok := c.commit(content); ok {
		c.pushAsync(st)
	}
}

// commit records content as a local change unless it is already current or
// is the echo of a remote update applied since the last local change. Each
// remembered remote content suppresses one echo.
func (c *Coordinator) commit(content string) (message.ClipboardState, bool) {
	c.mu.Lock()
	if content == c.state.Content {
		c.mu.Unlock()
		return message.ClipboardState{}, false
	}
	if i := slices.Index(c.echoes, content); i >= 0 {
		c.echoes = slices.Delete(c.echoes, i, i+1)
		c.mu.Unlock()
		metricEchoes.Inc()
		slog.Debug("echo suppressed", "preview", message.Preview(content, 40))
		return message.ClipboardState{}, false
	}
	c.echoes = c.echoes[:0]
	c.state = message.ClipboardState{
		Content:    content,
		OriginHost: c.cfg.Self,
		Version:    c.state.Version + 1,
		Instance:   c.cfg.Instance,
	}
	st := c.state
	enabled := c.enabled
	c.mu.Unlock()

	metricLocalChanges.Inc()
	logState("local clipboard changed", st)
	return st, enabled
}

// pushAsync fans st out to the current targets without blocking the caller.
func (c *Coordinator) pushAsync(st message.ClipboardState) {
	targets := c.targets()
	if len(targets) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.push(c.ctx, st, targets)
	}()
}

// push sends st to every target, each with its own timeout. Failures are
// logged and not retried. Concurrency is bounded by the semaphore shared
// with every other push and pull.
func (c *Coordinator) push(ctx context.Context, st message.ClipboardState, targets []registry.Peer) {
	var g errgroup.Group
	for _, p := range targets {
		g.Go(func() error {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer c.sem.Release(1)
			pctx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
			defer cancel()
			resp, err := c.tr.Push(pctx, p.APIAddr(), st)
			if err != nil {
				metricPushes.WithLabelValues(resultError).Inc()
				slog.Info("push failed", "peer", p.Hostname, "addr", p.APIAddr(), "err", err)
				return nil
			}
			metricPushes.WithLabelValues(resultOK).Inc()
			c.peers.Touch(p.Hostname)
			slog.Debug("pushed",
				"peer", p.Hostname,
				"version", st.Version,
				"accepted", resp.Accepted,
				"reason", resp.Reason,
			)
			return nil
		})
	}
	_ = g.Wait()
}

// pull fetches the state of every target and applies what it gets.
func (c *Coordinator) pull(ctx context.Context, targets []registry.Peer) {
	var g errgroup.Group
	for _, p := range targets {
		g.Go(func() error {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer c.sem.Release(1)
			pctx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
			defer cancel()
			st, err := c.tr.Fetch(pctx, p.APIAddr())
			if err != nil {
				metricPulls.WithLabelValues(resultError).Inc()
				slog.Info("pull failed", "peer", p.Hostname, "addr", p.APIAddr(), "err", err)
				return nil
			}
			metricPulls.WithLabelValues(resultOK).Inc()
			c.peers.Touch(p.Hostname)
			if strings.TrimSpace(st.Content) == "" || st.Validate() != nil {
				return nil
			}
			c.apply(st, st.OriginHost == p.Hostname)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) targets() []registry.Peer {
	all := c.peers.Targets()
	out := all[:0]
	for _, p := range all {
		if p.Hostname != c.cfg.Self {
			out = append(out, p)
		}
	}
	return out
}

// SyncNow reads the clipboard, commits it if it changed, pushes the current
// state to every target when it originated here and then pulls from them.
// It returns the resulting state. Nothing is sent while sync is disabled.
func (c *Coordinator) SyncNow(ctx context.Context) message.ClipboardState {
	content, err := c.clip.Read()
	if err != nil {
		slog.Warn("clipboard read failed", "backend", c.clip.Name(), "err", err)
	} else if strings.TrimSpace(content) != "" {
		c.commit(content)
	}

	if !c.Enabled() {
		return c.State()
	}
	targets := c.targets()
	if st := c.State(); st.OriginHost == c.cfg.Self && strings.TrimSpace(st.Content) != "" {
		c.push(ctx, st, targets)
	}
	c.pull(ctx, targets)

	st := c.State()
	logState("manual sync complete", st, "peers", len(targets))
	return st
}

// Serve runs the periodic pull loop until ctx is cancelled. With pulls
// disabled it only waits for cancellation.
func (c *Coordinator) Serve(ctx context.Context) error {
	if c.cfg.PullInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(c.cfg.PullInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if c.Enabled() {
				c.pull(ctx, c.targets())
			}
		}
	}
}

func (c *Coordinator) String() string { return "sync coordinator" }

// Wait blocks until in-flight pushes finish.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Close stops the debounce timer, cancels in-flight pushes and waits for
// them to return.
func (c *Coordinator) Close() {
	c.debounceMu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.debounceMu.Unlock()
	c.cancel()
	c.wg.Wait()
}
