// Package assess runs AI assessments of CV sections, on the server or, when
// server quota is exhausted, through the local runtime adapter.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/cv-editor/internal/aijson"
	"github.com/jonathan/cv-editor/internal/browserai"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/schemas"
	"github.com/jonathan/cv-editor/internal/types"
)

// API posts assessment requests.
type API interface {
	AssessSection(ctx context.Context, sectionID, entryID string) (*types.AssessResponse, error)
}

// Runtime is the local inference adapter.
type Runtime interface {
	CheckSupport(ctx context.Context) (browserai.Support, error)
	Init(ctx context.Context, modelType browserai.ModelType, modelName string, onProgress browserai.ProgressFunc) error
	Generate(ctx context.Context, prompt string, opts ...browserai.GenerateOption) (string, error)
	Cleanup(ctx context.Context) error
}

// Error is an assessment failure. Message is safe to show to the user.
type Error struct {
	SectionID string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("assessment of %s failed: %s: %v", e.SectionID, e.Message, e.Cause)
	}
	return fmt.Sprintf("assessment of %s failed: %s", e.SectionID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Orchestrator renders assessments into the guidance panel.
type Orchestrator struct {
	api     API
	runtime Runtime
	panel   editor.Pane
	notify  editor.Notifier
	timeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds a whole assessment, including local model download
// and generation.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// New creates an orchestrator. runtime may be nil when local execution
// is unavailable.
func New(api API, runtime Runtime, panel editor.Pane, notify editor.Notifier, opts ...Option) *Orchestrator {
	if notify == nil {
		notify = editor.LogNotifier{}
	}
	o := &Orchestrator{api: api, runtime: runtime, panel: panel, notify: notify}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Assess assesses sectionID, scoped to entryID when the section supports it.
// On failure the panel is restored to its previous content.
func (o *Orchestrator) Assess(ctx context.Context, sectionID, entryID string) (*types.AssessmentResult, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	previous := o.panel.HTML()
	o.panel.SetHTML(renderLoading("Analyzing your content..."))

	result, err := o.run(ctx, sectionID, entryID)
	if err != nil {
		o.panel.SetHTML(previous)
		o.notify.Notify(editor.LevelError, userMessage(err))
		log.Printf("[assess] %v", err)
		return nil, err
	}

	o.panel.SetHTML(RenderResult(sectionID, result))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, sectionID, entryID string) (*types.AssessmentResult, error) {
	resp, err := o.api.AssessSection(ctx, sectionID, entryID)
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: "Failed to assess content. Please try again.", Cause: err}
	}

	if resp.BrowserExecution {
		return o.runLocally(ctx, sectionID, resp)
	}
	if resp.Assessment == nil {
		return nil, &Error{SectionID: sectionID, Message: "The server returned no assessment."}
	}
	if err := schemas.Validate(schemas.AssessmentResult, resp.Assessment); err != nil {
		return nil, &Error{SectionID: sectionID, Message: "The assessment was in an unexpected format.", Cause: err}
	}
	return resp.Assessment, nil
}

// runLocally executes the server-provided prompt on the local runtime. The
// runtime is always cleaned up afterwards.
func (o *Orchestrator) runLocally(ctx context.Context, sectionID string, resp *types.AssessResponse) (result *types.AssessmentResult, err error) {
	if o.runtime == nil {
		return nil, &Error{SectionID: sectionID, Message: "Local AI is not available.", Cause: browserai.ErrUnsupportedEnvironment}
	}

	support, err := o.runtime.CheckSupport(ctx)
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: "Could not check local AI support.", Cause: err}
	}
	if !support.Sufficient {
		return nil, &Error{SectionID: sectionID, Message: "AI quota reached and this device cannot run AI locally.", Cause: browserai.ErrUnsupportedEnvironment}
	}

	modelType, err := browserai.ParseModelType(resp.ModelType)
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: "The server requested an unknown model.", Cause: err}
	}

	defer func() {
		if cleanupErr := o.runtime.Cleanup(context.WithoutCancel(ctx)); cleanupErr != nil {
			log.Printf("[assess] cleanup failed: %v", cleanupErr)
		}
	}()

	err = o.runtime.Init(ctx, modelType, resp.Model, func(p browserai.Progress) {
		o.panel.SetHTML(renderProgress(p))
	})
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: "Failed to load the local AI model.", Cause: err}
	}

	o.panel.SetHTML(renderLoading("Generating assessment..."))
	text, err := o.runtime.Generate(ctx, resp.Prompt)
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: "Local AI failed to generate an assessment.", Cause: err}
	}

	parsed, err := aijson.Parse(text)
	if err != nil {
		return nil, &Error{SectionID: sectionID, Message: aijson.UserMessage, Cause: err}
	}
	if err := schemas.Validate(schemas.AssessmentResult, parsed); err != nil {
		return nil, &Error{SectionID: sectionID, Message: "The assessment was in an unexpected format.", Cause: err}
	}
	return types.AssessmentResultFromMap(parsed), nil
}

func userMessage(err error) string {
	var assessErr *Error
	if errors.As(err, &assessErr) && assessErr.Message != "" {
		return assessErr.Message
	}
	return "Failed to assess content. Please try again."
}
