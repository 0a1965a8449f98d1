package editor

import (
	"context"
	"log"
	"net/url"

	"github.com/jonathan/cv-editor/internal/types"
)

// Fetcher loads server content for the controller.
type Fetcher interface {
	SectionForm(ctx context.Context, params url.Values) (string, error)
	Guidance(ctx context.Context, sectionID string) (*types.Guidance, error)
	SaveSection(ctx context.Context, form url.Values) (*types.SaveResult, error)
}

// Pane is a region whose markup is replaced wholesale.
type Pane interface {
	SetHTML(html string)
	HTML() string
}

// Nav highlights the active section in the navigation.
type Nav interface {
	SetActive(sectionID string)
}

// History exposes the location fragment. SetHash must not re-enter the
// controller synchronously.
type History interface {
	Hash() string
	SetHash(hash string)
}

// ScrollTarget names a scrollable container.
type ScrollTarget int

const (
	ScrollContentPane ScrollTarget = iota
	ScrollDocument
	ScrollWindow
)

func (t ScrollTarget) String() string {
	switch t {
	case ScrollContentPane:
		return "content"
	case ScrollDocument:
		return "document"
	case ScrollWindow:
		return "window"
	}
	return "unknown"
}

// Viewport measures and scrolls the page.
type Viewport interface {
	// HeadingTop is the absolute offset of the section heading, if rendered.
	HeadingTop(sectionID string) (float64, bool)
	ScrollTo(target ScrollTarget, top float64, smooth bool)
}

// ScriptRunner executes scripts embedded in fetched fragments.
type ScriptRunner interface {
	Run(ctx context.Context, script Script) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notifier surfaces messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// Form is a submitted form.
type Form struct {
	// SectionForm marks forms the controller should handle.
	SectionForm bool
	Values      url.Values
}

// SubmitFunc handles a submitted form.
type SubmitFunc func(ctx context.Context, form Form) error

// FormBinder delivers form submissions from the content pane to submit.
// BindForms is called at most once per controller.
type FormBinder interface {
	BindForms(submit SubmitFunc)
}

type noopNav struct{}

func (noopNav) SetActive(string) {}

type noopViewport struct{}

func (noopViewport) HeadingTop(string) (float64, bool) { return 0, false }
func (noopViewport) ScrollTo(ScrollTarget, float64, bool) {}

type noopBinder struct{}

func (noopBinder) BindForms(SubmitFunc) {}

type denyConfirmer struct{}

func (denyConfirmer) Confirm(string) bool { return false }

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(level Level, message string) {
	log.Printf("[editor] %s: %s", level, message)
}

// SkipScripts logs and skips every script.
type SkipScripts struct{}

// Run implements ScriptRunner.
func (SkipScripts) Run(_ context.Context, s Script) error {
	if s.Src != "" {
		log.Printf("[editor] skipping external script %s", s.Src)
	} else {
		log.Printf("[editor] skipping inline script (%d bytes)", len(s.Body))
	}
	return nil
}
