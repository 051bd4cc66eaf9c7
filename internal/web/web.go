package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"todaycal/internal/agenda"
	"todaycal/internal/feed"
	appLog "todaycal/internal/log"
	"todaycal/internal/refresh"
)

// proxyErrorMessage is the only failure detail the proxy exposes.
const proxyErrorMessage = "Failed to fetch calendar data"

// StateSource provides the latest refresh snapshot. *refresh.Refresher
// implements it.
type StateSource interface {
	State() refresh.State
}

// Options wires a Server.
type Options struct {
	// Fetcher backs GET /api/calendar. Required.
	Fetcher *feed.Fetcher
	// Agenda backs GET / and GET /api/agenda. Required.
	Agenda StateSource
	// Formatter selects locale and display timezone.
	Formatter agenda.Formatter
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// Now is the clock used to bucket events; time.Now when nil.
	Now func() time.Time
	// ReloadInterval is how often the page reloads itself, normally the
	// refresh interval. DefaultReloadInterval when zero.
	ReloadInterval time.Duration
}

// Server exposes the calendar proxy, the agenda page and its JSON view.
type Server struct {
	fetcher   *feed.Fetcher
	agenda    StateSource
	formatter agenda.Formatter
	metrics   http.Handler
	now       func() time.Time
	reload    time.Duration
	mux       *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = DefaultReloadInterval
	}
	s := &Server{
		fetcher:   opts.Fetcher,
		agenda:    opts.Agenda,
		formatter: opts.Formatter,
		metrics:   opts.Metrics,
		now:       opts.Now,
		reload:    opts.ReloadInterval,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("/api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar is the same-origin proxy for the upstream ICS document.
//
// GET /api/calendar
//   - 200 with the upstream body byte-for-byte
//   - 500 {"error": "Failed to fetch calendar data"} on any failure; the
//     cause is only logged
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp, err := s.fetcher.Fetch(r.Context())
	if err != nil {
		logFetchError(err, s.fetcher.Redacted())
		writeError(w, http.StatusInternalServerError, proxyErrorMessage)
		return
	}

	ct := resp.ContentType
	if ct == "" {
		ct = "text/calendar; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		appLog.Error("calendar proxy write failed", err)
	}
}

func logFetchError(err error, url string) {
	var ferr *feed.FetchError
	switch {
	case errors.Is(err, feed.ErrNotConfigured):
		appLog.Error("calendar fetch error: upstream URL not configured", err)
	case errors.As(err, &ferr):
		appLog.Error("calendar fetch error", err, "kind", ferr.Kind, "status", ferr.StatusCode, "url", url)
	default:
		appLog.Error("calendar fetch error", err, "url", url)
	}
}

// agendaResponse is the JSON shape for /api/agenda.
type agendaResponse struct {
	Loading   bool         `json:"loading"`
	Message   string       `json:"message,omitempty"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
	Agenda    *agenda.View `json:"agenda,omitempty"`
}

// handleAgenda returns the grouped view model built from the last refresh.
//
//   - 200 {"loading": true, ...} before the first refresh finished
//   - 500 {"error": "<localized message>"} when the last refresh failed
//   - 200 {"loading": false, "agenda": {...}} otherwise
func (s *Server) handleAgenda(w http.ResponseWriter, _ *http.Request) {
	st := s.agenda.State()
	f := s.formatter

	switch {
	case st.Loading:
		writeJSON(w, http.StatusOK, agendaResponse{Loading: true, Message: f.Text(agenda.MsgLoading)})
	case st.Err != nil:
		writeError(w, http.StatusInternalServerError, f.Text(agenda.MsgFetchFailed))
	default:
		view := agenda.Build(st.Events, s.now(), f)
		updated := st.UpdatedAt.In(f.Location())
		writeJSON(w, http.StatusOK, agendaResponse{UpdatedAt: &updated, Agenda: &view})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
