// Package formdesk wires the form and table engines into editor screens and
// list tables built from definition documents.
package formdesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/expr"
	"github.com/goliatone/go-formdesk/pkg/form"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/options"
	"github.com/goliatone/go-formdesk/pkg/orchestrator"
	"github.com/goliatone/go-formdesk/pkg/render"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/table"
	"github.com/goliatone/go-formdesk/pkg/validation"
	"github.com/goliatone/go-formdesk/pkg/widgets"
)

// RenderOptions aliases render.RenderOptions for callers that only import
// the root package.
type RenderOptions = render.RenderOptions

// Option configures editors and tables built by this package.
type Option func(*settings)

type settings struct {
	dict       *options.Dictionary
	requester  client.Requester
	uploader   client.Uploader
	logger     *zap.Logger
	store      table.VisibilityStore
	loc        *time.Location
	validators *validation.Registry
	isShow     table.IsShowFunc
	hooks      map[string]model.ChangeHook
	extra      []orchestrator.Option
}

// WithOptions sets the options dictionary shared by selects, filters and
// table columns.
func WithOptions(dict *options.Dictionary) Option {
	return func(s *settings) {
		if dict != nil {
			s.dict = dict
		}
	}
}

// WithRequester sets the backend client for saves and table fetches.
func WithRequester(requester client.Requester) Option {
	return func(s *settings) { s.requester = requester }
}

// WithUploader sets the upload boundary used by upload fields.
func WithUploader(uploader client.Uploader) Option {
	return func(s *settings) { s.uploader = uploader }
}

// WithLogger attaches a logger to every controller.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVisibilityStore persists table column visibility.
func WithVisibilityStore(store table.VisibilityStore) Option {
	return func(s *settings) { s.store = store }
}

// WithLocation sets the time zone dates are formatted in.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithValidators sets the registry that `validator` rules resolve from.
// Editors use validation.Validators by default.
func WithValidators(registry *validation.Registry) Option {
	return func(s *settings) {
		if registry != nil {
			s.validators = registry
		}
	}
}

// WithIsShow sets the row action predicate of tables. It runs after the
// declarative showWhen rules of the action column.
func WithIsShow(fn table.IsShowFunc) Option {
	return func(s *settings) { s.isShow = fn }
}

// WithChangeHook runs hook after a file is uploaded for the named field,
// unless the field already carries its own OnChange.
func WithChangeHook(name string, hook model.ChangeHook) Option {
	return func(s *settings) {
		if name == "" || hook == nil {
			return
		}
		if s.hooks == nil {
			s.hooks = make(map[string]model.ChangeHook)
		}
		s.hooks[name] = hook
	}
}

// WithOrchestratorOptions forwards options to every editor's save pipeline,
// for example an observer or a notifier.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(s *settings) { s.extra = append(s.extra, opts...) }
}

func newSettings(opts []Option) settings {
	s := settings{
		dict:       options.Empty(),
		logger:     zap.NewNop(),
		loc:        time.Local,
		validators: validation.Validators,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Editor is one editor screen: the form state, its structured lists and the
// header actions with their save pipeline.
type Editor struct {
	def          definition.Form
	widgets      *widgets.Registry
	form         *form.Controller
	lists        *structure.Controller
	orchestrator *orchestrator.Orchestrator
	validator    *validation.Evaluator
	fields       map[string]model.Field
	hooks        map[string]model.ChangeHook
}

// NewEditor builds an editor for def seeded with the backend record. Group
// lists in the record are expanded into their suffixed form fields.
func NewEditor(def definition.Form, seed model.Values, opts ...Option) (*Editor, error) {
	s := newSettings(opts)
	if len(seed) > 0 {
		seed = structure.GetDataAfter(seed, structure.Groups(def.Fields))
	}

	eval := expr.New()
	validator := validation.NewEvaluator(s.validators)
	registry := widgets.NewRegistry(
		widgets.WithOptions(s.dict),
		widgets.WithEvaluator(eval),
		widgets.WithUploader(s.uploader),
	)
	ctrl := form.New(def.Fields,
		form.WithEvaluator(eval),
		form.WithDefaults(registry),
		form.WithValidator(validator),
		form.WithLogger(s.logger.Named("form")),
	)
	ctrl.Connect()
	ctrl.SetInitialValues(seed)

	lists := structure.NewController(def.Fields, structure.WithForm(ctrl))
	if err := lists.LoadValues(ctrl.GetValues(true)); err != nil {
		return nil, fmt.Errorf("formdesk: editor %s: %w", def.ID, err)
	}

	orchestratorOptions := []orchestrator.Option{
		orchestrator.WithStructure(lists),
		orchestrator.WithLogger(s.logger.Named("orchestrator")),
		orchestrator.WithLocation(s.loc),
	}
	if s.requester != nil {
		orchestratorOptions = append(orchestratorOptions, orchestrator.WithRequester(s.requester))
	}
	orchestratorOptions = append(orchestratorOptions, s.extra...)

	header := def.Header
	if header.Path == "" {
		header.Path = "/" + def.ID
	}

	return &Editor{
		def:          def,
		widgets:      registry,
		form:         ctrl,
		lists:        lists,
		orchestrator: orchestrator.New(header, ctrl, orchestratorOptions...),
		validator:    validator,
		fields:       indexFields(def.Fields),
		hooks:        s.hooks,
	}, nil
}

// Definition returns the form definition behind the editor.
func (e *Editor) Definition() definition.Form { return e.def }

// Form returns the form state controller.
func (e *Editor) Form() *form.Controller { return e.form }

// Lists returns the structured list controller.
func (e *Editor) Lists() *structure.Controller { return e.lists }

// Orchestrator returns the header action orchestrator.
func (e *Editor) Orchestrator() *orchestrator.Orchestrator { return e.orchestrator }

// View renders the current state into a renderer independent tree.
func (e *Editor) View() (render.View, error) {
	nodes, err := e.widgets.RenderAll(e.def.Fields, widgets.Context{
		Values:   e.form.GetValues(true),
		Errors:   e.form.Errors(),
		Visible:  e.form.Visible,
		Expanded: e.lists.Expanded,
	})
	if err != nil {
		return render.View{}, fmt.Errorf("formdesk: editor %s: %w", e.def.ID, err)
	}
	title := e.def.Title
	if title == "" {
		title = e.def.ID
	}
	return render.View{
		ID:      e.def.ID,
		Title:   title,
		Nodes:   nodes,
		Actions: e.orchestrator.CurrentButtons(),
	}, nil
}

// Render draws the current view with renderer.
func (e *Editor) Render(ctx context.Context, renderer render.Renderer, opts RenderOptions) ([]byte, error) {
	view, err := e.View()
	if err != nil {
		return nil, err
	}
	return renderer.Render(ctx, view, opts)
}

// Apply merges values into the form and reloads the structured list panels
// they carry.
func (e *Editor) Apply(values model.Values) error {
	if len(values) == 0 {
		return nil
	}
	e.form.SetValues(values)
	if err := e.lists.LoadValues(values); err != nil {
		return fmt.Errorf("formdesk: editor %s: %w", e.def.ID, err)
	}
	return nil
}

// Submit merges values into the form and runs the save pipeline. status is
// written into the payload when set; DRAFT saves a draft.
func (e *Editor) Submit(ctx context.Context, values model.Values, status string) (orchestrator.Result, error) {
	if err := e.Apply(values); err != nil {
		return orchestrator.Result{}, err
	}
	return e.orchestrator.Save(ctx, orchestrator.SaveOptions{Status: status})
}

// Upload hands file to the upload boundary for the upload field name, stores
// the returned URL as its value and fires the field's change hook. Group
// instance names (cover1) resolve to their base field. It matches
// tui.UploadFunc.
func (e *Editor) Upload(ctx context.Context, name string, file client.File) (string, error) {
	field, ok := e.lookup(name)
	if !ok || field.Type != model.FieldTypeUpload {
		return "", fmt.Errorf("formdesk: %q is not an upload field of %s", name, e.def.ID)
	}
	if field.OnChange == nil {
		field.OnChange = e.hooks[field.Name]
	}
	field.Name = name
	return e.widgets.Uploaded(ctx, field, file, e.form)
}

// Check validates one answer against the rules of its field. Unknown names
// pass. It matches tui.CheckFunc so prompt renderers re-ask until valid.
func (e *Editor) Check(ctx context.Context, name string, value any, values model.Values) error {
	field, ok := e.lookup(name)
	if !ok {
		return nil
	}
	if messages := e.validator.Field(ctx, field, value, values); len(messages) > 0 {
		return errors.New(messages[0])
	}
	return nil
}

// Feedback turns a failed save into render options: inline field errors,
// form level messages or a mapped backend payload. Mapped backend messages
// are also attached to the form state.
func (e *Editor) Feedback(err error) RenderOptions {
	if err == nil {
		return RenderOptions{}
	}
	if fieldErrs, ok := validation.AsFieldErrors(err); ok {
		errs := fieldErrs.Map()
		var formErrs []string
		if custom, ok := errs[validation.CustomFieldName]; ok {
			formErrs = custom
			delete(errs, validation.CustomFieldName)
		}
		return RenderOptions{Errors: errs, FormErrors: formErrs}
	}
	if notice, ok := validation.AsNotification(err); ok {
		message := notice.Title
		if notice.Description != "" {
			message += ": " + notice.Description
		}
		return RenderOptions{FormErrors: []string{message}}
	}
	if saveErr, ok := validation.AsSaveError(err); ok {
		mapping := render.MapErrorPayload(e.def.Fields, saveErr.Fields)
		if len(mapping.Fields) > 0 {
			e.form.SetErrors(mapping.Fields)
		}
		return RenderOptions{
			Errors:     mapping.Fields,
			FormErrors: render.MergeFormErrors([]string{saveErr.Message}, mapping.Form...),
		}
	}
	return RenderOptions{FormErrors: []string{orchestrator.GenericFailureMessage}}
}

// Decode converts a posted HTML form into typed values using the field
// descriptors. Multi value controls become lists, switches become 0/1,
// number steppers become numbers and date ranges are rebuilt from their two
// inputs. Structured lists arrive as the JSON item array the renderer embeds;
// blank or malformed lists are skipped and keep their current items.
func (e *Editor) Decode(posted url.Values) model.Values {
	out := model.Values{}
	ranges := map[string][]any{}
	for key, raw := range posted {
		if key == "action" || len(raw) == 0 {
			continue
		}
		if base, idx, ok := rangePart(key); ok {
			if field, known := e.fields[base]; known && field.Type == model.FieldTypeDateRange {
				setBound(ranges, base, idx, raw[0])
				continue
			}
		}
		field, ok := e.lookup(key)
		if !ok {
			if owner, idx, isKey := e.rangeKey(key); isKey {
				setBound(ranges, owner, idx, raw[0])
				continue
			}
			out[key] = raw[0]
			continue
		}
		switch {
		case field.Type == model.FieldTypeStructureList:
			if items, ok := decodeItems(raw[len(raw)-1]); ok {
				out[key] = items
			}
		case field.Type == model.FieldTypeTransfer, field.Type == model.FieldTypeSelect && field.Mode == model.ModeMultiple:
			list := make([]any, 0, len(raw))
			for _, v := range raw {
				if strings.TrimSpace(v) != "" {
					list = append(list, v)
				}
			}
			out[key] = list
		default:
			out[key] = e.widgets.Normalize(field, raw[len(raw)-1])
		}
	}
	for name, bounds := range ranges {
		out[name] = bounds
	}
	return out
}

// lookup resolves a posted key to its field, matching group instance names
// (exerciseName2) to the base field.
func (e *Editor) lookup(key string) (model.Field, bool) {
	if field, ok := e.fields[key]; ok {
		return field, true
	}
	base := strings.TrimRightFunc(key, unicode.IsDigit)
	if base == key {
		return model.Field{}, false
	}
	field, ok := e.fields[base]
	return field, ok
}

func (e *Editor) rangeKey(key string) (string, int, bool) {
	for name, field := range e.fields {
		if field.Type != model.FieldTypeDateRange || len(field.Keys) != 2 {
			continue
		}
		for idx, candidate := range field.Keys {
			if candidate == key {
				return name, idx, true
			}
		}
	}
	return "", 0, false
}

func rangePart(key string) (string, int, bool) {
	switch {
	case strings.HasSuffix(key, "[0]"):
		return strings.TrimSuffix(key, "[0]"), 0, true
	case strings.HasSuffix(key, "[1]"):
		return strings.TrimSuffix(key, "[1]"), 1, true
	}
	return "", 0, false
}

func setBound(ranges map[string][]any, name string, idx int, value string) {
	bounds, ok := ranges[name]
	if !ok {
		bounds = []any{nil, nil}
		ranges[name] = bounds
	}
	if strings.TrimSpace(value) != "" {
		bounds[idx] = value
	}
}

func decodeItems(raw string) ([]any, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []any{}
	}
	return items, true
}

func indexFields(fields []model.Field) map[string]model.Field {
	out := make(map[string]model.Field)
	var walk func([]model.Field)
	walk = func(list []model.Field) {
		for _, field := range list {
			if field.IsGroup || field.Type == model.FieldTypeInputGroup {
				walk(field.Fields)
				if field.IsGroup {
					continue
				}
			}
			out[field.Name] = field
		}
	}
	walk(fields)
	return out
}

// NewTable builds a table engine for def. Records are fetched from the
// definition endpoint through the configured requester; column visibility
// is restored from the visibility store when one is set.
func NewTable(ctx context.Context, def definition.Table, opts ...Option) (*table.Engine, error) {
	s := newSettings(opts)
	engineOptions := []table.Option{
		table.WithOptions(s.dict),
		table.WithLocation(s.loc),
		table.WithLogger(s.logger.Named("table")),
	}
	if s.isShow != nil {
		engineOptions = append(engineOptions, table.WithIsShow(s.isShow))
	}
	if s.requester != nil && def.Endpoint != "" {
		engineOptions = append(engineOptions, table.WithFetcher(table.RequesterFetcher(s.requester, def.Endpoint)))
	}
	if s.store != nil {
		visibility, err := table.NewColumnVisibility(ctx, def.ID, def.Columns, s.store)
		if err != nil {
			return nil, fmt.Errorf("formdesk: table %s: %w", def.ID, err)
		}
		engineOptions = append(engineOptions, table.WithVisibility(visibility))
	}
	engine, err := table.New(def.Config, engineOptions...)
	if err != nil {
		return nil, fmt.Errorf("formdesk: %w", err)
	}
	return engine, nil
}
