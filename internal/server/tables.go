package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/pkg/table"
)

type columnsRequest struct {
	Key     string `json:"key"`
	Visible bool   `json:"visible"`
	Reset   bool   `json:"reset,omitempty"`
}

type columnsResponse struct {
	Hidden []string `json:"hidden"`
}

type clickResponse struct {
	Consumed bool       `json:"consumed"`
	Handled  table.Area `json:"handled,omitempty"`
	Action   string     `json:"action,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// engine returns the cached engine for the requested table, building it on
// first use.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*table.Engine, bool) {
	id := chi.URLParam(r, "tableID")
	def, ok := s.store.Table(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("table %q not found", id))
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.tables[id]; ok {
		return engine, true
	}
	opts := []formdesk.Option{
		formdesk.WithOptions(s.dict),
		formdesk.WithLogger(s.logger),
		formdesk.WithLocation(s.loc),
	}
	if s.requester != nil {
		opts = append(opts, formdesk.WithRequester(s.requester))
	}
	if s.visibility != nil {
		opts = append(opts, formdesk.WithVisibilityStore(s.visibility))
	}
	engine, err := formdesk.NewTable(r.Context(), def, opts...)
	if err != nil {
		s.logger.Error("build table", zap.String("table", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	s.tables[id] = engine
	return engine, true
}

func (s *Server) showTable(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	cfg := engine.Config()
	start := time.Now()
	result, err := engine.Load(r.Context(), parseQuery(r.URL.Query(), cfg))
	if s.metrics != nil {
		s.metrics.ObserveTableLoad(cfg.ID, time.Since(start), err)
	}
	if err != nil {
		s.logger.Warn("load table", zap.String("table", cfg.ID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err)
		return
	}

	if wantsJSON(r) {
		render.JSON(w, r, result)
		return
	}
	body, err := s.renderer.RenderTable(r.Context(), cfg, result)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeHTML(w, r, http.StatusOK, body)
}

// parseQuery reads the list parameters the table renderer links with:
// page, pageSize, keyword, sortField, sortOrder and one parameter per
// filter section, comma separated for multi-select sections.
func parseQuery(params url.Values, cfg table.Config) table.Query {
	q := table.Query{
		Search:    strings.TrimSpace(params.Get("keyword")),
		SortField: params.Get("sortField"),
		SortOrder: params.Get("sortOrder"),
		Page:      atoi(params.Get("page")),
		PageSize:  atoi(params.Get("pageSize")),
	}
	for _, section := range cfg.Filters {
		raw, ok := params[section.Key]
		if !ok {
			continue
		}
		var selected []any
		for _, entry := range raw {
			for _, part := range strings.Split(entry, ",") {
				if part = strings.TrimSpace(part); part != "" {
					selected = append(selected, part)
				}
			}
		}
		if len(selected) == 0 {
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string][]any{}
		}
		q.Filters[section.Key] = selected
	}
	return q
}

func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) setColumns(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	visibility := engine.Visibility()
	if visibility == nil {
		writeError(w, r, http.StatusConflict, errors.New("column visibility is not configured"))
		return
	}

	var req columnsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	var err error
	if req.Reset {
		err = visibility.Reset(r.Context())
	} else {
		err = visibility.Set(r.Context(), req.Key, req.Visible)
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, columnsResponse{Hidden: visibility.Hidden()})
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	var event table.ClickEvent
	if err := render.DecodeJSON(r.Body, &event); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	result := engine.Dispatch(r.Context(), event)
	resp := clickResponse{Consumed: result.Consumed, Handled: result.Handled, Action: result.Action}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		status := http.StatusUnprocessableEntity
		if errors.Is(result.Err, table.ErrUnknownRow) {
			status = http.StatusNotFound
		}
		render.Status(r, status)
	}
	render.JSON(w, r, resp)
}
