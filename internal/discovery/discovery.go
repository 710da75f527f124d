// Package discovery announces this instance on the LAN and records the
// announcements of others in a registry.
//
// Announcements are single JSON datagrams broadcast on a fixed UDP port.
// A broadcaster and a listener run as independent suture services under a
// small supervisor, so a listener that cannot bind is restarted with
// back-off without disturbing the broadcaster.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"go.klb.dev/lanclip/internal/logging"
	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/registry"
)

// DefaultInterval is the pause between announcements.
const DefaultInterval = 30 * time.Second

const writeTimeout = 2 * time.Second

// State is the lifecycle state of a Service.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Config describes what this instance announces and where.
type Config struct {
	// Hostname identifies this instance; announcements carrying it are
	// treated as our own.
	Hostname string
	// Instance is the per-process nonce. Generated when empty.
	Instance string
	// Port is the UDP port announcements are sent to. Default 8720.
	Port int
	// ListenAddr is the UDP address to receive on. Default ":<Port>".
	ListenAddr string
	// Targets replaces interface broadcast addresses when set. Entries are
	// host or host:port.
	Targets []string
	// Interval between announcements. Default 30s.
	Interval time.Duration

	// Announced fields.
	Address      string
	APIPort      int
	User         string
	Capabilities []string
}

// Service runs the broadcaster and the listener.
type Service struct {
	*suture.Supervisor

	cfg   Config
	reg   *registry.Registry
	state atomic.Int32
	bound atomic.Pointer[net.UDPAddr]

	errLog rate.Sometimes
}

// New returns a stopped Service feeding reg.
func New(cfg Config, reg *registry.Registry) *Service {
	if cfg.Port == 0 {
		cfg.Port = message.DiscoveryPort
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":" + strconv.Itoa(cfg.Port)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Instance == "" {
		cfg.Instance = uuid.NewString()
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = message.APIPort
	}
	if len(cfg.Capabilities) == 0 {
		cfg.Capabilities = []string{message.CapClipboardSync}
	}

	s := &Service{
		Supervisor: suture.New("discovery", suture.Spec{
			// Failing to open a socket is usually permanent or slow to clear.
			FailureThreshold: 2,
			FailureBackoff:   15 * time.Second,
			EventHook:        logging.SupervisorHook,
		}),
		cfg:    cfg,
		reg:    reg,
		errLog: rate.Sometimes{First: 1, Interval: 5 * time.Minute},
	}
	s.Add(&broadcaster{s: s})
	s.Add(&listener{s: s})
	return s
}

// Serve runs both loops until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	s.state.Store(int32(Running))
	defer s.state.Store(int32(Stopped))
	slog.Info("discovery started",
		"hostname", s.cfg.Hostname,
		"instance", s.cfg.Instance,
		"listen", s.cfg.ListenAddr,
		"interval", s.cfg.Interval,
	)
	return s.Supervisor.Serve(ctx)
}

// State reports whether the service is running.
func (s *Service) State() State { return State(s.state.Load()) }

// Instance returns the per-process nonce carried in announcements.
func (s *Service) Instance() string { return s.cfg.Instance }

// ListenAddr returns the address the listener is bound to, or nil before
// the first successful bind.
func (s *Service) ListenAddr() *net.UDPAddr { return s.bound.Load() }

// Announcement builds the message this instance broadcasts.
func (s *Service) Announcement() *message.Announcement {
	addr := s.cfg.Address
	if addr == "" {
		addr = localIPv4()
	}
	return &message.Announcement{
		Hostname:     s.cfg.Hostname,
		Address:      addr,
		Capabilities: s.cfg.Capabilities,
		Timestamp:    time.Now().UTC(),
		Instance:     s.cfg.Instance,
		APIPort:      s.cfg.APIPort,
		User:         s.cfg.User,
	}
}

// destinations returns where announcements go this round.
func (s *Service) destinations() []*net.UDPAddr {
	if len(s.cfg.Targets) > 0 {
		return resolveTargets(s.cfg.Targets, s.cfg.Port)
	}
	ips := broadcastAddrs()
	out := make([]*net.UDPAddr, len(ips))
	for i, ip := range ips {
		out[i] = &net.UDPAddr{IP: ip, Port: s.cfg.Port}
	}
	return out
}

// announce sends one announcement to every destination. Send failures are
// counted and logged, never returned.
func (s *Service) announce(conn *net.UDPConn) {
	bs, err := s.Announcement().Encode()
	if err != nil {
		slog.Error("discovery: cannot encode announcement", "err", err)
		return
	}
	for _, dst := range s.destinations() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.WriteToUDP(bs, dst); err != nil {
			metricSendErrors.Inc()
			s.errLog.Do(func() {
				slog.Warn("discovery: announcement send failed", "addr", dst.String(), "err", err)
			})
			continue
		}
		metricSent.Inc()
		slog.Debug("announcement sent", "addr", dst.String(), "bytes", len(bs))
	}
}

// Ingest handles one received datagram from src and reports whether it was
// recorded in the registry.
func (s *Service) Ingest(data []byte, src net.Addr) bool {
	a, err := message.DecodeAnnouncement(data)
	if err != nil {
		metricReceived.WithLabelValues(resultMalformed).Inc()
		slog.Debug("discovery: dropping datagram", "src", addrString(src), "err", err)
		return false
	}
	if a.Hostname == s.cfg.Hostname || (a.Instance != "" && a.Instance == s.cfg.Instance) {
		metricReceived.WithLabelValues(resultSelf).Inc()
		return false
	}

	addr := a.Address
	if u, ok := src.(*net.UDPAddr); ok && u != nil && u.IP != nil && !u.IP.IsUnspecified() {
		addr = u.IP.String()
	}
	if addr == "" {
		metricReceived.WithLabelValues(resultMalformed).Inc()
		slog.Debug("discovery: announcement without usable address", "peer", a.Hostname)
		return false
	}

	metricReceived.WithLabelValues(resultAccepted).Inc()
	s.reg.Observe(a, addr)
	return true
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

type broadcaster struct {
	s *Service
}

func (b *broadcaster) Serve(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("broadcaster: %w", err)
	}
	defer conn.Close()

	b.s.announce(conn)
	t := time.NewTicker(b.s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			b.s.announce(conn)
		}
	}
}

func (b *broadcaster) String() string { return "discovery broadcaster" }

type listener struct {
	s *Service
}

func (l *listener) Serve(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", l.s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listener: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		slog.Warn("discovery: cannot listen, will retry", "addr", l.s.cfg.ListenAddr, "err", err)
		return fmt.Errorf("listener: %w", err)
	}
	defer conn.Close()
	l.s.bound.Store(conn.LocalAddr().(*net.UDPAddr))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// One byte over the limit so oversized datagrams are detected, not truncated.
	buf := make([]byte, message.MaxAnnouncementSize+1)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener: %w", err)
			}
			l.s.errLog.Do(func() {
				slog.Warn("discovery: read failed", "err", err)
			})
			continue
		}
		l.s.Ingest(buf[:n], src)
	}
}

func (l *listener) String() string { return "discovery listener" }
