// Package server exposes the form and table engines over HTTP.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/internal/metrics"
	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/renderers/vanilla"
	"github.com/goliatone/go-formdesk/pkg/table"
)

// Option configures a Server.
type Option func(*Server)

// WithRequester sets the backend client used for saves, record loads and
// table fetches.
func WithRequester(requester client.Requester) Option {
	return func(s *Server) { s.requester = requester }
}

// WithUploader sets the upload boundary handed to every editor.
func WithUploader(uploader client.Uploader) Option {
	return func(s *Server) { s.uploader = uploader }
}

// WithRecordLoader overrides how editors are seeded for existing records.
func WithRecordLoader(loader RecordLoader) Option {
	return func(s *Server) { s.loader = loader }
}

// WithVisibilityStore persists table column visibility.
func WithVisibilityStore(store table.VisibilityStore) Option {
	return func(s *Server) { s.visibility = store }
}

// WithRenderer replaces the HTML renderer.
func WithRenderer(renderer *vanilla.Renderer) Option {
	return func(s *Server) { s.renderer = renderer }
}

// WithMetrics enables save and table instrumentation plus /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, origins...) }
}

// WithLocation sets the time zone dates are formatted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Server holds the loaded definitions and the collaborators shared by every
// request. Editors are built per request; table engines are cached so click
// events resolve against the rows of the last load.
type Server struct {
	store      *definition.Store
	dict       *options.Dictionary
	requester  client.Requester
	uploader   client.Uploader
	loader     RecordLoader
	visibility table.VisibilityStore
	renderer   *vanilla.Renderer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	origins    []string
	loc        *time.Location

	mu     sync.Mutex
	tables map[string]*table.Engine
}

// New builds a server over store. A nil dict means no option lists.
func New(store *definition.Store, dict *options.Dictionary, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("server: definition store is nil")
	}
	if dict == nil {
		dict = options.Empty()
	}
	s := &Server{
		store:  store,
		dict:   dict,
		logger: zap.NewNop(),
		loc:    time.Local,
		tables: map[string]*table.Engine{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.renderer == nil {
		renderer, err := vanilla.New()
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.renderer = renderer
	}
	if s.loader == nil && s.requester != nil {
		s.loader = RequesterLoader(s.requester)
	}
	return s, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServerFS(formdesk.AssetsFS())))
	r.Method(http.MethodGet, "/api/options/{key}", options.NewHandler(s.dict, func(r *http.Request) string {
		return chi.URLParam(r, "key")
	}))

	r.Get("/forms", s.listDefinitions)
	r.Route("/forms/{formID}", func(r chi.Router) {
		r.Get("/", s.showForm)
		r.Post("/", s.submitForm)
		r.Get("/{recordID}", s.showForm)
		r.Post("/{recordID}", s.submitForm)
	})
	r.Route("/tables/{tableID}", func(r chi.Router) {
		r.Get("/", s.showTable)
		r.Post("/columns", s.setColumns)
		r.Post("/click", s.click)
	})
	return r
}

func (s *Server) listDefinitions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string][]string{
		"forms":  s.store.FormIDs(),
		"tables": s.store.TableIDs(),
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func isMultipartBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

func writeHTML(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	render.Status(r, status)
	render.HTML(w, r, string(body))
}
