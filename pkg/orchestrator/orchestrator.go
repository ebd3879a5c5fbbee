package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/form"
	"github.com/goliatone/go-formdesk/pkg/model"
	"github.com/goliatone/go-formdesk/pkg/structure"
	"github.com/goliatone/go-formdesk/pkg/validation"
)

// GenericFailureMessage is shown when a save fails with an error that has no
// user facing shape.
const GenericFailureMessage = "Please check the form"

// ErrSaveInProgress is returned when Save runs while another save is active.
var ErrSaveInProgress = errors.New("orchestrator: save already in progress")

// DraftConfig enables the draft save action.
type DraftConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Fields are validated instead of the whole form when saving a draft.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Labels overrides header button texts.
type Labels struct {
	Back      string `json:"back,omitempty" yaml:"back,omitempty"`
	Save      string `json:"save,omitempty" yaml:"save,omitempty"`
	SaveDraft string `json:"saveDraft,omitempty" yaml:"saveDraft,omitempty"`
	Saved     string `json:"saved,omitempty" yaml:"saved,omitempty"`
}

// Config is the declarative part of an editor header.
type Config struct {
	// Path is the screen route, e.g. /exercise/edit/12.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Module and Operation override the conventional endpoint parts.
	Module        string       `json:"module,omitempty" yaml:"module,omitempty"`
	Operation     string       `json:"operation,omitempty" yaml:"operation,omitempty"`
	SystemModules []string     `json:"systemModules,omitempty" yaml:"systemModules,omitempty"`
	Draft         DraftConfig  `json:"draft,omitempty" yaml:"draft,omitempty"`
	StatusRules   []StatusRule `json:"statusRules,omitempty" yaml:"statusRules,omitempty"`
	StatusModal   bool         `json:"statusModal,omitempty" yaml:"statusModal,omitempty"`
	// DisableBackConfirm skips the unsaved changes dialog.
	DisableBackConfirm bool   `json:"disableBackConfirm,omitempty" yaml:"disableBackConfirm,omitempty"`
	BackAfterSave      bool   `json:"backAfterSave,omitempty" yaml:"backAfterSave,omitempty"`
	BackPath           string `json:"backPath,omitempty" yaml:"backPath,omitempty"`
	Labels             Labels `json:"labels,omitempty" yaml:"labels,omitempty"`
}

func (c Config) text(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// State is a save pipeline phase.
type State string

// Save pipeline phases.
const (
	StateIdle         State = "idle"
	StateValidating   State = "validating"
	StateTransforming State = "transforming"
	StateSaving       State = "saving"
	StateSuccess      State = "success"
	StateFailed       State = "failed"
)

// Observer is told about every phase change. err is set on the transition
// into StateFailed.
type Observer interface {
	Transition(from, to State, err error)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(from, to State, err error)

// Transition implements Observer.
func (fn ObserverFunc) Transition(from, to State, err error) {
	fn(from, to, err)
}

// ValidateFunc is a form level check run after field validation. A non-empty
// message rejects the save.
type ValidateFunc func(ctx context.Context, values model.Values) string

// SaveFunc replaces the conventional POST.
type SaveFunc func(ctx context.Context, data model.Values) (client.Envelope, error)

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithRequester sets the backend client used for the conventional POST.
func WithRequester(requester client.Requester) Option {
	return func(o *Orchestrator) { o.requester = requester }
}

// WithNotifier sets the toast sink.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithNavigator sets the router.
func WithNavigator(n Navigator) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.navigator = n
		}
	}
}

// WithConfirmer sets the dialog used by Back.
func WithConfirmer(c Confirmer) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.confirmer = c
		}
	}
}

// WithStructure sets the structured list controller checked for emptiness.
func WithStructure(c *structure.Controller) Option {
	return func(o *Orchestrator) { o.structure = c }
}

// WithFormatters sets the structured list formatter registry.
func WithFormatters(f *structure.Formatters) Option {
	return func(o *Orchestrator) { o.formatters = f }
}

// WithValidate installs the form level validator.
func WithValidate(fn ValidateFunc) Option {
	return func(o *Orchestrator) { o.validate = fn }
}

// WithSaveBeforeTransform installs the caller hook that runs after the
// built-in transforms and before the default status.
func WithSaveBeforeTransform(t Transformer) Option {
	return func(o *Orchestrator) { o.beforeSave = t }
}

// WithOnSave replaces the conventional POST.
func WithOnSave(fn SaveFunc) Option {
	return func(o *Orchestrator) { o.onSave = fn }
}

// WithObserver registers a phase observer. Observers run synchronously.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocation sets the time zone dates are formatted in.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithHashCost overrides the bcrypt cost for hashed password fields.
func WithHashCost(cost int) Option {
	return func(o *Orchestrator) { o.hashCost = cost }
}

// Orchestrator owns the header actions of one editor.
type Orchestrator struct {
	cfg    Config
	fields []model.Field
	form   *form.Controller

	requester  client.Requester
	notifier   Notifier
	navigator  Navigator
	confirmer  Confirmer
	structure  *structure.Controller
	formatters *structure.Formatters
	validate   ValidateFunc
	beforeSave Transformer
	onSave     SaveFunc
	observers  []Observer
	logger     *zap.Logger
	loc        *time.Location
	hashCost   int

	mu    sync.Mutex
	state State
}

// New creates an orchestrator for the form behind ctrl.
func New(cfg Config, ctrl *form.Controller, options ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		fields:     ctrl.Fields(),
		form:       ctrl,
		notifier:   nopNotifier{},
		navigator:  nopNavigator{},
		confirmer:  alwaysConfirm{},
		formatters: structure.NewFormatters(),
		logger:     zap.NewNop(),
		state:      StateIdle,
	}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Config returns the header configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// State returns the current pipeline phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SaveOptions selects the save flavour.
type SaveOptions struct {
	// Status is written into the payload when set; DRAFT with draft mode
	// enabled restricts validation to the draft fields.
	Status string
}

// Result is the outcome of a successful save.
type Result struct {
	Endpoint string
	Data     model.Values
	Response client.Envelope
}

// Save runs validate, transform and persist in order. Field and
// notification errors come back as *validation.FieldErrors and
// *validation.NotificationError; a backend rejection as
// *validation.SaveError. The form stays dirty on failure and nothing is
// retried.
func (o *Orchestrator) Save(ctx context.Context, opts SaveOptions) (Result, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return Result{}, ErrSaveInProgress
	}
	o.state = StateValidating
	o.mu.Unlock()
	o.notify(StateIdle, StateValidating, nil)

	result, err := o.run(ctx, opts)
	if err != nil {
		o.transition(StateFailed, err)
		o.report(err)
		o.transition(StateIdle, nil)
		return Result{}, err
	}

	o.transition(StateSuccess, nil)
	o.form.MarkClean()
	o.notifier.Success(o.cfg.text(o.cfg.Labels.Saved, "Saved successfully"))
	o.logger.Info("form saved", zap.String("endpoint", result.Endpoint))
	o.transition(StateIdle, nil)

	if o.cfg.BackAfterSave {
		if err := o.navigate(ctx); err != nil {
			o.logger.Warn("navigate after save", zap.Error(err))
		}
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, opts SaveOptions) (Result, error) {
	values, err := o.validateValues(ctx, opts)
	if err != nil {
		return Result{}, err
	}

	o.transition(StateTransforming, nil)
	data := values
	for _, step := range o.transformers() {
		if data, err = step.Transform(ctx, data); err != nil {
			return Result{}, fmt.Errorf("orchestrator: transform: %w", err)
		}
	}

	o.transition(StateSaving, nil)
	endpoint := o.cfg.Endpoint(data)
	envelope, err := o.persist(ctx, endpoint, data)
	if err != nil {
		return Result{}, err
	}
	if !envelope.Success {
		return Result{}, rejection(envelope)
	}
	return Result{Endpoint: endpoint, Data: data, Response: envelope}, nil
}

// rejection builds the save error of an unsuccessful envelope. A data
// payload of the form {"errors": {path: [messages]}} is kept for mapping
// back onto fields.
func rejection(envelope client.Envelope) *validation.SaveError {
	saveErr := &validation.SaveError{Message: envelope.FailureMessage()}
	var payload struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := envelope.Decode(&payload); err == nil && len(payload.Errors) > 0 {
		saveErr.Fields = payload.Errors
	}
	return saveErr
}

func (o *Orchestrator) validateValues(ctx context.Context, opts SaveOptions) (model.Values, error) {
	draft := o.cfg.Draft.Enabled && opts.Status == model.StatusDraft

	var (
		values model.Values
		err    error
	)
	switch {
	case draft && len(o.cfg.Draft.Fields) == 0:
		values = o.form.GetValues(false)
	case draft:
		values, err = o.form.ValidateFields(ctx, o.cfg.Draft.Fields...)
	default:
		values, err = o.form.ValidateFields(ctx)
	}
	if err != nil {
		return nil, err
	}

	if o.structure != nil {
		for _, field := range model.Flatten(o.fields) {
			if draft && !contains(o.cfg.Draft.Fields, field.Name) {
				continue
			}
			if err := o.structure.ValidateNonEmpty(field, values); err != nil {
				return nil, err
			}
		}
	}

	if o.validate != nil {
		if msg := o.validate(ctx, values); msg != "" {
			return nil, validation.Custom(msg)
		}
	}

	if opts.Status != "" {
		values["status"] = opts.Status
	}
	return values, nil
}

func (o *Orchestrator) transformers() []Transformer {
	steps := []Transformer{
		DateTransformer(o.fields, o.loc),
		PasswordTransformer(o.fields, o.hashCost),
		SwitchTransformer(o.fields),
		StructureTransformer(o.fields, o.formatters),
	}
	if o.beforeSave != nil {
		steps = append(steps, o.beforeSave)
	}
	return append(steps, DefaultStatus())
}

func (o *Orchestrator) persist(ctx context.Context, endpoint string, data model.Values) (client.Envelope, error) {
	if o.onSave != nil {
		return o.onSave(ctx, data)
	}
	if o.requester == nil {
		return client.Envelope{}, errors.New("orchestrator: no requester or save handler configured")
	}
	return o.requester.Post(ctx, endpoint, map[string]any(data))
}

// report surfaces a failed save according to the error shape.
func (o *Orchestrator) report(err error) {
	if fieldErrs, ok := validation.AsFieldErrors(err); ok {
		o.notifier.Error(fieldErrs.First())
		return
	}
	if notice, ok := validation.AsNotification(err); ok {
		o.notifier.Notify(notice.Title, notice.Description)
		return
	}
	if saveErr, ok := validation.AsSaveError(err); ok && saveErr.Message != "" {
		o.notifier.Error(saveErr.Message)
		return
	}
	o.logger.Error("save failed", zap.Error(err))
	o.notifier.Error(GenericFailureMessage)
}

// Back leaves the editor, asking for confirmation first when there are
// unsaved changes.
func (o *Orchestrator) Back(ctx context.Context) error {
	if o.form.Dirty() && !o.cfg.DisableBackConfirm {
		ok, err := o.confirmer.Confirm(ctx, "Unsaved changes", "Leave this page? Your changes will be lost.")
		if err != nil {
			return fmt.Errorf("orchestrator: confirm back: %w", err)
		}
		if !ok {
			return nil
		}
	}
	return o.navigate(ctx)
}

// Click dispatches a header button.
func (o *Orchestrator) Click(ctx context.Context, key string) error {
	switch key {
	case ButtonBack:
		return o.Back(ctx)
	case ButtonSave:
		_, err := o.Save(ctx, SaveOptions{})
		return err
	case ButtonSaveDraft:
		if !o.cfg.Draft.Enabled {
			return fmt.Errorf("orchestrator: draft saving is disabled")
		}
		_, err := o.Save(ctx, SaveOptions{Status: model.StatusDraft})
		return err
	default:
		return fmt.Errorf("orchestrator: unknown button %q", key)
	}
}

func (o *Orchestrator) navigate(ctx context.Context) error {
	if o.cfg.BackPath != "" {
		return o.navigator.Navigate(ctx, o.cfg.BackPath)
	}
	return o.navigator.Back(ctx)
}

func (o *Orchestrator) transition(to State, err error) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	if to == StateFailed {
		o.logger.Debug("save pipeline failed", zap.String("from", string(from)), zap.Error(err))
	}
	o.notify(from, to, err)
}

func (o *Orchestrator) notify(from, to State, err error) {
	for _, obs := range o.observers {
		obs.Transition(from, to, err)
	}
}

func contains(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}
