// Package registry holds the in-memory table of peers discovered on the LAN.
//
// The registry is keyed by hostname. Announcements refresh an entry in place;
// entries that stop announcing first drop out of the active set (staleness
// window) and are only removed later by an explicit sweep.
package registry

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.klb.dev/lanclip/internal/message"
)

const (
	// DefaultStaleAfter is three missed announcements at the default interval.
	DefaultStaleAfter = 90 * time.Second
	// ExpiryFactor scales the staleness window into the sweep threshold.
	ExpiryFactor = 10
)

// Peer is a snapshot of one registry entry.
type Peer struct {
	Hostname     string
	Address      string
	APIPort      int
	Capabilities []string
	LastSeen     time.Time
	Selected     bool
	Instance     string
	User         string
}

// APIAddr returns the host:port of the peer's clipboard API.
func (p Peer) APIAddr() string {
	port := p.APIPort
	if port == 0 {
		port = message.APIPort
	}
	return net.JoinHostPort(p.Address, strconv.Itoa(port))
}

// Device converts the peer for the /devices listing.
func (p Peer) Device(active bool) message.Device {
	return message.Device{
		Hostname:     p.Hostname,
		Address:      p.Address,
		LastSeen:     p.LastSeen,
		Selected:     p.Selected,
		APIPort:      p.APIPort,
		Capabilities: slices.Clone(p.Capabilities),
		User:         p.User,
		Active:       active,
	}
}

// Options configures a Registry. Zero values select the defaults.
type Options struct {
	// StaleAfter is the staleness window.
	StaleAfter time.Duration
	// Preselect lists hostnames that start selected when first discovered.
	Preselect []string
	// AutoSelect selects every newly discovered peer.
	AutoSelect bool
	// Now overrides the clock.
	Now func() time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer

	staleAfter time.Duration
	preselect  map[string]struct{}
	autoSelect bool
	now        func() time.Time
}

// New returns an empty Registry.
func New(opts Options) *Registry {
	r := &Registry{
		peers:      make(map[string]*Peer),
		staleAfter: opts.StaleAfter,
		preselect:  make(map[string]struct{}, len(opts.Preselect)),
		autoSelect: opts.AutoSelect,
		now:        opts.Now,
	}
	if r.staleAfter <= 0 {
		r.staleAfter = DefaultStaleAfter
	}
	if r.now == nil {
		r.now = time.Now
	}
	for _, h := range opts.Preselect {
		r.preselect[h] = struct{}{}
	}
	return r
}

// StaleAfter returns the staleness window.
func (r *Registry) StaleAfter() time.Duration { return r.staleAfter }

// Upsert inserts or refreshes the peer with the given hostname and sets its
// lastSeen to now.
func (r *Registry) Upsert(hostname, address string, capabilities []string) Peer {
	return r.upsert(Peer{
		Hostname:     hostname,
		Address:      address,
		Capabilities: capabilities,
	})
}

// Observe records an announcement received from address.
func (r *Registry) Observe(a *message.Announcement, address string) Peer {
	return r.upsert(Peer{
		Hostname:     a.Hostname,
		Address:      address,
		APIPort:      a.APIPort,
		Capabilities: a.Capabilities,
		Instance:     a.Instance,
		User:         a.User,
	})
}

func (r *Registry) upsert(in Peer) Peer {
	now := r.now()

	r.mu.Lock()
	p, ok := r.peers[in.Hostname]
	if !ok {
		p = &Peer{Hostname: in.Hostname, Selected: r.autoSelect}
		if _, pre := r.preselect[in.Hostname]; pre {
			p.Selected = true
		}
		r.peers[in.Hostname] = p
	}
	restarted := ok && in.Instance != "" && p.Instance != "" && in.Instance != p.Instance
	p.Address = in.Address
	p.Capabilities = slices.Clone(in.Capabilities)
	p.LastSeen = now
	if in.APIPort != 0 {
		p.APIPort = in.APIPort
	}
	if in.Instance != "" {
		p.Instance = in.Instance
	}
	if in.User != "" {
		p.User = in.User
	}
	out := *p
	total := len(r.peers)
	r.mu.Unlock()

	switch {
	case !ok:
		slog.Info("peer discovered",
			"peer", out.Hostname,
			"addr", out.Address,
			"selected", out.Selected,
			"total", total,
		)
	case restarted:
		slog.Info("peer restarted", "peer", out.Hostname, "addr", out.Address)
	}
	return out
}

// Touch refreshes lastSeen after a successful exchange with hostname.
func (r *Registry) Touch(hostname string) {
	now := r.now()
	r.mu.Lock()
	if p, ok := r.peers[hostname]; ok {
		p.LastSeen = now
	}
	r.mu.Unlock()
}

// Get returns the peer with the given hostname.
func (r *Registry) Get(hostname string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[hostname]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// IsActive reports whether p was seen within the staleness window.
func (r *Registry) IsActive(p Peer) bool {
	return r.now().Sub(p.LastSeen) <= r.staleAfter
}

// List returns peers sorted by hostname, optionally only the active ones.
func (r *Registry) List(activeOnly bool) []Peer {
	cutoff := r.now().Add(-r.staleAfter)

	r.mu.RLock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if activeOnly && p.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// Targets returns the selected, active peers: the sync targets.
func (r *Registry) Targets() []Peer {
	active := r.List(true)
	out := active[:0]
	for _, p := range active {
		if p.Selected {
			out = append(out, p)
		}
	}
	return out
}

// SetSelected opts hostname in or out of sync. Unknown hostnames are a no-op
// and report false.
func (r *Registry) SetSelected(hostname string, selected bool) bool {
	r.mu.Lock()
	p, ok := r.peers[hostname]
	if ok {
		p.Selected = selected
	}
	r.mu.Unlock()

	if ok {
		slog.Info("peer selection changed", "peer", hostname, "selected", selected)
	}
	return ok
}

// SweepStale removes peers whose lastSeen is more than threshold before now
// and returns how many were removed.
func (r *Registry) SweepStale(now time.Time, threshold time.Duration) int {
	cutoff := now.Add(-threshold)

	r.mu.Lock()
	var removed []string
	for h, p := range r.peers {
		if p.LastSeen.Before(cutoff) {
			delete(r.peers, h)
			removed = append(removed, h)
		}
	}
	total := len(r.peers)
	r.mu.Unlock()

	for _, h := range removed {
		slog.Info("peer expired", "peer", h, "total", total)
	}
	return len(removed)
}

// Sweeper periodically expires peers that have been stale for
// ExpiryFactor staleness windows.
type Sweeper struct {
	r        *Registry
	interval time.Duration
}

// NewSweeper returns a Sweeper that runs once per staleness window.
func NewSweeper(r *Registry) *Sweeper {
	return &Sweeper{r: r, interval: r.staleAfter}
}

// Serve runs until ctx is cancelled.
func (s *Sweeper) Serve(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.r.SweepStale(s.r.now(), ExpiryFactor*s.r.staleAfter)
		}
	}
}

func (s *Sweeper) String() string { return "registry sweeper" }
