// Package web serves the cached view: a plain text summary, the JSON view, a
// live WebSocket stream, health and metrics.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ghostwatch/pkg/domain"
)

// DefaultListenAddr is the address the server binds when none is configured.
const DefaultListenAddr = "[::]:10204"

// Views exposes the presentation cache.
type Views interface {
	Current() (domain.View, bool)
	Subscribe() (<-chan struct{}, func())
}

// Logger is the logging surface used by the handler.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// Config holds the handler's dependencies. State and Gatherer are optional.
type Config struct {
	Views    Views
	State    func() string
	Gatherer prometheus.Gatherer
	Clock    clock.Clock
	Logger   Logger
	Language language.Tag
}

// Handler routes the public endpoints.
type Handler struct {
	cfg     Config
	printer *message.Printer
	metrics http.Handler

	closeOnce sync.Once
	done      chan struct{}
}

// NewHandler constructs the HTTP handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Language == language.Und {
		cfg.Language = language.English
	}
	h := &Handler{
		cfg:     cfg,
		printer: message.NewPrinter(cfg.Language),
		done:    make(chan struct{}),
	}
	if cfg.Gatherer != nil {
		h.metrics = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}
	return h
}

// Close ends open streams.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Views == nil {
		writeError(w, http.StatusInternalServerError, "view cache not configured")
		return
	}
	path := r.URL.Path
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch path {
	case "/":
		h.handleSummary(w, r)
	case "/api/v1/view":
		h.handleView(w, r)
	case "/api/v1/stream":
		h.handleStream(w, r)
	case "/healthz":
		h.handleHealth(w, r)
	case "/metrics":
		if h.metrics == nil {
			http.NotFound(w, r)
			return
		}
		h.metrics.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, _ *http.Request) {
	view, ok := h.cfg.Views.Current()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("No snapshot published yet.\n"))
		return
	}
	_, _ = w.Write([]byte(h.summaryText(view.Summary())))
}

func (h *Handler) summaryText(s domain.Summary) string {
	var b strings.Builder
	b.WriteString(h.printer.Sprintf("Ghost towns appeared: %d\n", s.Appeared))
	b.WriteString(h.printer.Sprintf("Ghost towns conquered: %d\n", s.Conquered))
	b.WriteString(h.printer.Sprintf("Players departed: %d\n", s.Departed))
	b.WriteString("Last refresh: " + humanize.RelTime(s.RefreshedAt, h.cfg.Clock.Now(), "ago", "from now") + "\n")
	return b.String()
}

func (h *Handler) handleView(w http.ResponseWriter, _ *http.Request) {
	view, ok := h.cfg.Views.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type health struct {
	State       string     `json:"state"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := health{State: "unknown"}
	if h.cfg.State != nil {
		resp.State = h.cfg.State()
	}
	if view, ok := h.cfg.Views.Current(); ok {
		at := view.RefreshedAt
		resp.RefreshedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
