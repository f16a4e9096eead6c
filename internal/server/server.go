package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/aggregate"
	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/metrics"
	"github.com/SkylerRankin/netcheck/internal/types"
	websocket_client "github.com/SkylerRankin/netcheck/internal/websocket"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 10000
	shutdownTimeout    = 5 * time.Second
)

type Server interface {
	Listen() error
	Handler() http.Handler
	Shutdown(ctx context.Context) error
}

type Options struct {
	Log         *slog.Logger
	Clock       clockwork.Clock
	Addr        string
	Store       database.Store
	Broadcaster websocket_client.Broadcaster
	Metrics     *metrics.Metrics
	IssueWindow time.Duration
}

var _ Server = &server{}

type server struct {
	log         *slog.Logger
	clock       clockwork.Clock
	addr        string
	store       database.Store
	broadcaster websocket_client.Broadcaster
	metrics     *metrics.Metrics
	issueWindow time.Duration
	router      *mux.Router
	server      *http.Server
}

func NewServer(opts Options) Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	s := &server{
		log:         opts.Log,
		clock:       opts.Clock,
		addr:        opts.Addr,
		store:       opts.Store,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		issueWindow: opts.IssueWindow,
		router:      mux.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/issues", s.handleIssues).Methods(http.MethodGet)
	api.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.broadcaster != nil {
		s.router.HandleFunc("/ws", s.handleWebsocket)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
		api.Use(s.observe)
	}
}

func (s *server) Handler() http.Handler {
	return s.router
}

// Listen serves until Shutdown is called.
func (s *server) Listen() error {
	s.log.Info("http server listening", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server exited with error")
	}
	s.log.Info("http server exited")
	return nil
}

func (s *server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type summaryResponse struct {
	types.Report
	LastSeen string `json:"last_seen,omitempty"`
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	report, err := aggregate.Summarize(s.store.Scan(r.Context()))
	if err != nil {
		s.fail(w, "failed to summarize records", err)
		return
	}

	response := summaryResponse{Report: report}
	if !report.Empty() {
		response.LastSeen = humanize.RelTime(report.Last, s.clock.Now(), "ago", "from now")
	}
	s.writeJSON(w, response)
}

type issuesResponse struct {
	Since  time.Time     `json:"since"`
	Issues []types.Issue `json:"issues"`
}

func (s *server) handleIssues(w http.ResponseWriter, r *http.Request) {
	window := s.issueWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	since := s.clock.Now().Add(-window)
	issues, err := aggregate.SummarizeSince(s.store.Scan(r.Context()), since)
	if err != nil {
		s.fail(w, "failed to list issues", err)
		return
	}
	if issues == nil {
		issues = []types.Issue{}
	}
	s.writeJSON(w, issuesResponse{Since: since, Issues: issues})
}

// handleRecords returns the newest records, oldest first.
func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRecordLimit {
			http.Error(w, "limit must be between 1 and "+strconv.Itoa(maxRecordLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	ring := make([]types.Record, 0, limit)
	next := 0
	for record, err := range s.store.Scan(r.Context()) {
		var rowErr *database.RowError
		if errors.As(err, &rowErr) {
			continue
		}
		if err != nil {
			s.fail(w, "failed to read records", err)
			return
		}
		if len(ring) < limit {
			ring = append(ring, record)
		} else {
			ring[next] = record
		}
		next = (next + 1) % limit
	}

	records := ring
	if len(ring) == limit {
		records = append(slices.Clone(ring[next:]), ring[:next]...)
	}
	s.writeJSON(w, records)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status": "ok",
		"time":   s.clock.Now().UTC(),
	})
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if err := s.broadcaster.HandleConnection(w, r); err != nil {
		// The upgrader has already answered the client.
		s.log.Error("failed to handle websocket connection", "err", err)
	}
}

func (s *server) fail(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "err", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.fail(w, "failed to marshal response", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Debug("failed to write response", "err", err)
	}
}
