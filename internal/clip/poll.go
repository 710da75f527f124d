package clip

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPollInterval is how often Changes samples the clipboard.
const DefaultPollInterval = 500 * time.Millisecond

// Poller detects clipboard changes by comparing successive reads.
type Poller struct {
	b        Backend
	interval time.Duration

	mu   sync.Mutex
	last string

	errLog rate.Sometimes
}

// NewPoller returns a Poller over b. A non-positive interval selects
// DefaultPollInterval.
func NewPoller(b Backend, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		b:        b,
		interval: interval,
		errLog:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Reset records content as the last observed value without reporting it.
func (p *Poller) Reset(content string) {
	p.mu.Lock()
	p.last = content
	p.mu.Unlock()
}

// PollChanged reads the clipboard once and reports whether it differs from
// the previous read. Blank content is never reported as a change.
func (p *Poller) PollChanged() (string, bool, error) {
	content, err := p.b.Read()
	if err != nil {
		return "", false, err
	}

	p.mu.Lock()
	changed := content != p.last
	p.last = content
	p.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return content, false, nil
	}
	return content, changed, nil
}

// Changes yields the clipboard content every time it changes, polling on
// the configured interval until ctx is done or the consumer stops. Each
// range over the sequence starts a fresh ticker, so it may be iterated
// more than once.
func (p *Poller) Changes(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			content, changed, err := p.PollChanged()
			if err != nil {
				p.errLog.Do(func() {
					slog.Warn("clipboard read failed", "backend", p.b.Name(), "err", err)
				})
				continue
			}
			if changed && !yield(content) {
				return
			}
		}
	}
}
