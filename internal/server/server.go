// Package server exposes the clipboard state and the peer list over HTTP.
//
// The same handler serves two listeners: the LAN listener peers push to,
// and the local IPC socket, which additionally carries the control routes
// (peer selection, manual sync, sync toggle). Handlers never call out to
// peers; they only read and write through the coordinator and registry,
// except POST /sync which asks the coordinator to run a manual sync.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.klb.dev/lanclip/internal/message"
	"go.klb.dev/lanclip/internal/registry"
	"go.klb.dev/lanclip/internal/syncer"
)

// Coordinator is the sync state the handlers operate on.
type Coordinator interface {
	State() message.ClipboardState
	Apply(message.ClipboardState) syncer.Result
	SyncNow(ctx context.Context) message.ClipboardState
	Enabled() bool
	SetEnabled(bool)
}

// Registry is the peer table the handlers read and update.
type Registry interface {
	List(activeOnly bool) []registry.Peer
	IsActive(registry.Peer) bool
	SetSelected(hostname string, selected bool) bool
}

// Options configures a Server.
type Options struct {
	// Name labels the server in logs and supervisor events.
	Name string
	// Control enables the routes reserved for the local user.
	Control bool
	// Listen opens the listener each time the service starts.
	Listen func() (net.Listener, error)
}

// Server is a suture service serving the HTTP API.
type Server struct {
	coord Coordinator
	reg   Registry
	opts  Options

	handler http.Handler
	addr    atomic.Value // net.Addr
}

// New returns a Server. Listen may be nil when only Handler is used.
func New(c Coordinator, r Registry, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "http api"
	}
	s := &Server{coord: c, reg: r, opts: opts}
	s.handler = s.routes()
	return s
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the bound address, or nil before the first bind.
func (s *Server) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

func (s *Server) routes() http.Handler {
	r := httprouter.New()
	r.HandleMethodNotAllowed = false
	r.HandleOPTIONS = false
	r.NotFound = http.HandlerFunc(notFound)

	r.Handler(http.MethodGet, "/clipboard", instrument("clipboard", s.getClipboard))
	r.Handler(http.MethodPost, "/clipboard", instrument("clipboard", s.postClipboard))
	r.Handler(http.MethodGet, "/devices", instrument("devices", s.getDevices))
	r.Handler(http.MethodGet, "/health", instrument("health", getHealth))
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	if s.opts.Control {
		r.Handler(http.MethodPut, "/devices/:hostname/selected", instrument("select", s.putSelected))
		r.Handler(http.MethodPost, "/sync", instrument("sync", s.postSync))
		r.Handler(http.MethodGet, "/sync/enabled", instrument("enabled", s.getEnabled))
		r.Handler(http.MethodPut, "/sync/enabled", instrument("enabled", s.putEnabled))
	}
	return corsMiddleware(r)
}

// Serve listens and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.opts.Listen()
	if err != nil {
		return fmt.Errorf("%s: %w", s.opts.Name, err)
	}
	defer ln.Close()
	s.addr.Store(ln.Addr())

	srv := http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		// The things we care about we log ourselves from the handlers.
		ErrorLog: log.New(io.Discard, "", 0),
	}
	slog.Info("http listening", "server", s.opts.Name, "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-serveErr:
		slog.Warn("http server failed, restarting", "server", s.opts.Name, "err", err)
	}

	timeout, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if serr := srv.Shutdown(timeout); errors.Is(serr, context.DeadlineExceeded) {
		_ = srv.Close()
	}
	return err
}

func (s *Server) String() string { return s.opts.Name }

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(bs, '\n'))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func getHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) getClipboard(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, s.coord.State())
}

func (s *Server) postClipboard(w http.ResponseWriter, r *http.Request) {
	var in message.ClipboardState
	if err := decodeBody(w, r, &in); err != nil {
		slog.Debug("rejecting clipboard post", "remote", r.RemoteAddr, "err", err)
		sendJSON(w, http.StatusBadRequest, message.ApplyResponse{Error: err.Error()})
		return
	}
	if err := in.Validate(); err != nil {
		sendJSON(w, http.StatusBadRequest, message.ApplyResponse{Error: err.Error()})
		return
	}

	res := s.coord.Apply(in)
	sendJSON(w, http.StatusOK, message.ApplyResponse{
		Accepted: res.Accepted,
		Version:  res.Version,
		Reason:   res.Reason,
	})
}

func (s *Server) getDevices(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	peers := s.reg.List(activeOnly)
	out := make([]message.Device, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Device(s.reg.IsActive(p)))
	}
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) putSelected(w http.ResponseWriter, r *http.Request) {
	host := httprouter.ParamsFromContext(r.Context()).ByName("hostname")
	var in message.SelectRequest
	if err := decodeBody(w, r, &in); err != nil {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	found := s.reg.SetSelected(host, in.Selected)
	sendJSON(w, http.StatusOK, message.SelectResponse{
		Hostname: host,
		Selected: found && in.Selected,
		Found:    found,
	})
}

func (s *Server) postSync(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, s.coord.SyncNow(r.Context()))
}

func (s *Server) getEnabled(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, message.EnabledBody{Enabled: s.coord.Enabled()})
}

func (s *Server) putEnabled(w http.ResponseWriter, r *http.Request) {
	var in message.EnabledBody
	if err := decodeBody(w, r, &in); err != nil {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.coord.SetEnabled(in.Enabled)
	sendJSON(w, http.StatusOK, message.EnabledBody{Enabled: s.coord.Enabled()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, message.MaxStateSize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return message.ErrTooLarge
		}
		return fmt.Errorf("%w: %v", message.ErrMalformed, err)
	}
	return nil
}
