package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/render"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

// maxUploadMemory bounds the multipart parts kept in memory per request.
const maxUploadMemory = 32 << 20

// submission is the JSON body accepted by form posts.
type submission struct {
	Values model.Values `json:"values"`
	Status string       `json:"status,omitempty"`
	Action string       `json:"action,omitempty"`
}

type formResponse struct {
	ID     string       `json:"id"`
	Record string       `json:"record,omitempty"`
	Values model.Values `json:"values"`
	Dirty  bool         `json:"dirty"`
	Notice string       `json:"notice,omitempty"`
	View   render.View  `json:"view"`
}

type saveResponse struct {
	Endpoint string       `json:"endpoint"`
	Data     model.Values `json:"data"`
	Notice   string       `json:"notice,omitempty"`
}

type feedbackResponse struct {
	Errors     map[string][]string `json:"errors,omitempty"`
	FormErrors []string            `json:"formErrors,omitempty"`
	Notice     string              `json:"notice,omitempty"`
}

// notices collects the save pipeline toasts of one request.
type notices struct {
	mu   sync.Mutex
	last string
}

func (n *notices) set(message string) {
	n.mu.Lock()
	n.last = message
	n.mu.Unlock()
}

func (n *notices) Success(message string) { n.set(message) }
func (n *notices) Error(message string)   { n.set(message) }

func (n *notices) Notify(title, description string) {
	if description != "" {
		title += ": " + description
	}
	n.set(title)
}

func (n *notices) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func (s *Server) form(w http.ResponseWriter, r *http.Request) (definition.Form, bool) {
	id := chi.URLParam(r, "formID")
	def, ok := s.store.Form(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("form %q not found", id))
	}
	return def, ok
}

// editor seeds a fresh editor for the requested record.
func (s *Server) editor(ctx context.Context, def definition.Form, recordID string, sink *notices) (*formdesk.Editor, error) {
	var seed model.Values
	if recordID != "" {
		if s.loader == nil {
			return nil, errors.New("server: no record loader configured")
		}
		values, err := s.loader.Load(ctx, def, recordID)
		if err != nil {
			return nil, err
		}
		seed = values
	}

	pipeline := []orchestrator.Option{orchestrator.WithNotifier(sink)}
	if s.metrics != nil {
		pipeline = append(pipeline, orchestrator.WithObserver(s.metrics.Observer(def.ID)))
	}
	opts := []formdesk.Option{
		formdesk.WithOptions(s.dict),
		formdesk.WithLogger(s.logger),
		formdesk.WithLocation(s.loc),
		formdesk.WithOrchestratorOptions(pipeline...),
	}
	if s.requester != nil {
		opts = append(opts, formdesk.WithRequester(s.requester))
	}
	if s.uploader != nil {
		opts = append(opts, formdesk.WithUploader(s.uploader))
	}
	return formdesk.NewEditor(def, seed, opts...)
}

func (s *Server) showForm(w http.ResponseWriter, r *http.Request) {
	def, ok := s.form(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordID")
	editor, err := s.editor(r.Context(), def, recordID, &notices{})
	if err != nil {
		s.logger.Warn("open editor", zap.String("form", def.ID), zap.String("record", recordID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	s.respondEditor(w, r, editor, recordID, http.StatusOK, formdesk.RenderOptions{})
}

func (s *Server) submitForm(w http.ResponseWriter, r *http.Request) {
	def, ok := s.form(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "recordID")
	sink := &notices{}
	editor, err := s.editor(r.Context(), def, recordID, sink)
	if err != nil {
		s.logger.Warn("open editor", zap.String("form", def.ID), zap.String("record", recordID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err)
		return
	}

	sub, err := s.decodeSubmission(r, editor)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.uploadFiles(r, editor, sub.Values); err != nil {
		s.logger.Warn("upload file", zap.String("form", def.ID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err)
		return
	}

	if action, isList, err := parseListAction(sub.Action); isList {
		if err == nil {
			err = editor.Apply(sub.Values)
		}
		if err == nil {
			err = action.apply(editor.Lists())
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		s.respondEditor(w, r, editor, recordID, http.StatusOK, formdesk.RenderOptions{})
		return
	}

	status := sub.Status
	if sub.Action == orchestrator.ButtonSaveDraft {
		status = model.StatusDraft
	}
	result, err := editor.Submit(r.Context(), sub.Values, status)
	if err != nil {
		s.respondFailure(w, r, editor, recordID, sink, err)
		return
	}

	if wantsJSON(r) || isJSONBody(r) {
		chirender.JSON(w, r, saveResponse{Endpoint: result.Endpoint, Data: result.Data, Notice: sink.String()})
		return
	}
	s.respondEditor(w, r, editor, recordID, http.StatusOK, formdesk.RenderOptions{Notice: sink.String()})
}

func (s *Server) decodeSubmission(r *http.Request, editor *formdesk.Editor) (submission, error) {
	var sub submission
	if isJSONBody(r) {
		if err := chirender.DecodeJSON(r.Body, &sub); err != nil {
			return sub, fmt.Errorf("decode body: %w", err)
		}
		return sub, nil
	}
	if isMultipartBody(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return sub, fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return sub, fmt.Errorf("parse form: %w", err)
	}
	sub.Action = r.PostForm.Get("action")
	sub.Values = editor.Decode(r.PostForm)
	return sub, nil
}

// uploadFiles sends every posted file to the upload boundary and records the
// returned URL under its field name. Empty file inputs are skipped.
func (s *Server) uploadFiles(r *http.Request, editor *formdesk.Editor, values model.Values) error {
	if r.MultipartForm == nil {
		return nil
	}
	for name, headers := range r.MultipartForm.File {
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			return fmt.Errorf("open %q: %w", name, err)
		}
		url, err := editor.Upload(r.Context(), name, client.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		file.Close()
		if err != nil {
			return err
		}
		values[name] = url
	}
	return nil
}

// listAction is a structured list mutation posted by the list controls:
// add:<panel>, remove:<panel>:<id>, duplicate:<panel>:<id> and
// move:<panel>:<id>:up|down.
type listAction struct {
	verb  string
	panel string
	id    string
	dir   string
}

func parseListAction(raw string) (listAction, bool, error) {
	verb, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return listAction{}, false, nil
	}
	parts := strings.Split(rest, ":")
	action := listAction{verb: verb, panel: parts[0]}
	switch verb {
	case "add":
		if len(parts) != 1 {
			return action, true, fmt.Errorf("malformed list action %q", raw)
		}
	case "remove", "duplicate":
		if len(parts) != 2 {
			return action, true, fmt.Errorf("malformed list action %q", raw)
		}
		action.id = parts[1]
	case "move":
		if len(parts) != 3 || (parts[2] != "up" && parts[2] != "down") {
			return action, true, fmt.Errorf("malformed list action %q", raw)
		}
		action.id, action.dir = parts[1], parts[2]
	default:
		return listAction{}, false, nil
	}
	return action, true, nil
}

func (a listAction) apply(lists *structure.Controller) error {
	switch a.verb {
	case "add":
		_, err := lists.AddItem(a.panel)
		return err
	case "remove":
		return lists.RemoveItem(a.panel, a.id)
	case "duplicate":
		_, err := lists.Duplicate(a.panel, a.id)
		return err
	}
	from := -1
	for idx, item := range lists.Items(a.panel) {
		if item.ID() == a.id {
			from = idx
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("panel %q has no item %q", a.panel, a.id)
	}
	to := from + 1
	if a.dir == "up" {
		to = from - 1
	}
	return lists.Reorder(a.panel, from, to)
}

func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, editor *formdesk.Editor, recordID string, sink *notices, err error) {
	status := http.StatusUnprocessableEntity
	_, isSave := validation.AsSaveError(err)
	_, isNotice := validation.AsNotification(err)
	if !validation.IsFieldErrors(err) && !isSave && !isNotice {
		status = http.StatusBadGateway
		s.logger.Error("save form", zap.String("form", editor.Definition().ID), zap.Error(err))
	}

	feedback := editor.Feedback(err)
	feedback.Notice = sink.String()
	if wantsJSON(r) || isJSONBody(r) {
		chirender.Status(r, status)
		chirender.JSON(w, r, feedbackResponse{
			Errors:     feedback.Errors,
			FormErrors: feedback.FormErrors,
			Notice:     feedback.Notice,
		})
		return
	}
	s.respondEditor(w, r, editor, recordID, status, feedback)
}

func (s *Server) respondEditor(w http.ResponseWriter, r *http.Request, editor *formdesk.Editor, recordID string, status int, opts formdesk.RenderOptions) {
	if wantsJSON(r) {
		view, err := editor.View()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		chirender.Status(r, status)
		chirender.JSON(w, r, formResponse{
			ID:     editor.Definition().ID,
			Record: recordID,
			Values: editor.Form().GetValues(true),
			Dirty:  editor.Form().Dirty(),
			Notice: opts.Notice,
			View:   view,
		})
		return
	}
	body, err := editor.Render(r.Context(), s.renderer, opts)
	if err != nil {
		s.logger.Error("render form", zap.String("form", editor.Definition().ID), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeHTML(w, r, status, body)
}
