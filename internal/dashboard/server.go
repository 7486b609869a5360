package dashboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"studiopipe/internal/observability"
	"studiopipe/internal/pipeline"
	"studiopipe/internal/snowflake"
	"studiopipe/pkg/errors"
)

// Querier runs a query and buffers the result.
type Querier interface {
	QueryTable(ctx context.Context, query string, args ...interface{}) (*snowflake.Table, error)
}

// Source is an open warehouse connection.
type Source interface {
	Querier
	Close() error
}

// Opener connects to the warehouse. It is called lazily on the first
// request and again after a refresh that dropped the connection.
type Opener func(ctx context.Context) (Source, error)

// Page is the data handed to the HTML template.
type Page struct {
	Profile   Profile
	Tabs      []TabLink
	Active    string
	Data      interface{}
	UpdatedAt time.Time
	Schemas   string
}

// Server renders the monitoring dashboard. Results are cached per tab until
// a refresh; the cache and the connection are guarded by one mutex.
type Server struct {
	profile Profile
	graph   *pipeline.Graph
	open    Opener
	logger  *observability.Logger
	health  *observability.HealthManager
	tmpl    *template.Template
	clock   func() time.Time

	mu      sync.Mutex
	src     Source
	cache   map[string]interface{}
	updated time.Time
}

// NewServer builds a dashboard for profile over the pipeline graph.
func NewServer(profile Profile, graph *pipeline.Graph, open Opener, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	if graph == nil {
		graph = pipeline.Default()
	}
	s := &Server{
		profile: profile,
		graph:   graph,
		open:    open,
		logger:  logger.WithField("component", "dashboard"),
		tmpl:    loadTemplates(),
		clock:   time.Now,
		cache:   map[string]interface{}{},
	}
	s.health = observability.NewHealthManager(10*time.Second, s.logger)
	s.health.RegisterCheck(observability.NewPingCheck("warehouse", s.ping))
	return s
}

// Health exposes the health manager so callers can register more checks.
func (s *Server) Health() *observability.HealthManager {
	return s.health
}

// Handler returns the HTTP routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, TabOverview)
	})
	mux.HandleFunc("GET /tab/{name}", func(w http.ResponseWriter, r *http.Request) {
		s.servePage(w, r, r.PathValue("name"))
	})
	mux.HandleFunc("GET /api/{name}", s.serveAPI)
	mux.HandleFunc("POST /refresh", s.serveRefresh)
	mux.Handle("GET /healthz", s.health.HealthHandler())
	return mux
}

// Tab returns the data of one tab, querying the warehouse unless a cached
// copy exists. Tabs that hit an error are returned but not cached.
func (s *Server) Tab(ctx context.Context, name string) (interface{}, error) {
	if !knownTab(name) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "Unknown dashboard tab").
			WithContext("tab", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.cache[name]; ok {
		return data, nil
	}

	switch name {
	case TabLineage:
		return s.store(name, s.buildLineage()), nil
	case TabTests:
		return s.store(name, testResults()), nil
	}

	q, err := s.source(ctx)
	if err != nil {
		return s.unavailable(name, err), nil
	}

	var (
		data interface{}
		ok   bool
	)
	switch name {
	case TabOverview:
		data, ok = s.buildOverview(ctx, q)
	case TabQuality:
		data, ok = s.buildQuality(ctx, q)
	case TabHealth:
		data, ok = s.buildHealth(ctx, q)
	}
	if !ok {
		s.logger.WarnWithFields("Dashboard tab rendered with errors", map[string]interface{}{"tab": name})
		return data, nil
	}
	return s.store(name, data), nil
}

// Refresh drops cached results, and the connection when the profile
// reconnects on refresh.
func (s *Server) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = map[string]interface{}{}
	s.updated = time.Time{}
	if !s.profile.ReconnectOnRefresh || s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

// Close releases the warehouse connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

// UpdatedAt returns when the oldest cached result was fetched, or the
// current time when nothing is cached.
func (s *Server) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updated.IsZero() {
		return s.clock()
	}
	return s.updated
}

func (s *Server) store(name string, data interface{}) interface{} {
	if len(s.cache) == 0 {
		s.updated = s.clock()
	}
	s.cache[name] = data
	return data
}

// source returns the open connection, opening it if needed. Callers hold mu.
func (s *Server) source(ctx context.Context) (Source, error) {
	if s.src != nil {
		return s.src, nil
	}
	if s.open == nil {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "No warehouse connection configured")
	}
	src, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.src = src
	return src, nil
}

func (s *Server) ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.source(ctx)
	if err != nil {
		return err
	}
	_, err = q.QueryTable(ctx, "SELECT 1")
	return err
}

// unavailable builds the tab value shown when no connection could be
// opened: every panel carries the connection error.
func (s *Server) unavailable(name string, err error) interface{} {
	msg := errorText(err)
	s.logger.ErrorWithFields("Dashboard cannot reach the warehouse", map[string]interface{}{
		"tab":   name,
		"error": err,
	})
	switch name {
	case TabOverview:
		return Overview{Layers: LayerTotals(nil, s.profile.Layers), Error: msg}
	case TabQuality:
		return Quality{Error: msg}
	default:
		return Health{StreamError: msg, TaskError: msg, DynamicTablesError: msg}
	}
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, name string) {
	data, err := s.Tab(r.Context(), name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	page := Page{
		Profile:   s.profile,
		Tabs:      Tabs,
		Active:    name,
		Data:      data,
		UpdatedAt: s.UpdatedAt(),
		Schemas:   strings.Join(s.profile.Schemas, ", "),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "page", page); err != nil {
		s.logger.ErrorWithFields("Failed to render dashboard", map[string]interface{}{
			"tab":   name,
			"error": err.Error(),
		})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.Tab(r.Context(), name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(map[string]interface{}{
		"profile":    s.profile.Name,
		"database":   s.profile.Database,
		"tab":        name,
		"updated_at": s.UpdatedAt(),
		"data":       data,
	})
}

func (s *Server) serveRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(); err != nil {
		s.logger.WarnWithFields("Failed to close warehouse connection on refresh", map[string]interface{}{
			"error": err,
		})
	}

	target := "/"
	if tab := r.FormValue("tab"); knownTab(tab) && tab != TabOverview {
		target = "/tab/" + tab
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// errorText is the message shown on an inline error card.
func errorText(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Cause != nil {
			msg += ": " + rootCause(appErr.Cause).Error()
		}
		return msg
	}
	return err.Error()
}

func rootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
