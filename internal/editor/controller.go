package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/cv-editor/internal/types"
)

// DefaultSection is shown when the location fragment names no section.
const DefaultSection = types.SectionProfessionalSummary

// HeadingOffset keeps the section heading clear of the viewport top when
// scrolling into edit mode.
const HeadingOffset = 70

const cancelledMessage = "Loading was cancelled."

// ErrStale means a response arrived after a newer navigation or Cancel.
var ErrStale = errors.New("section response is stale")

// LoadError reports a failed fragment fetch.
type LoadError struct {
	SectionID string
	Cause     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load section %s: %v", e.SectionID, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Config wires a controller to its environment. Fetcher, Content and
// History are required.
type Config struct {
	Fetcher  Fetcher
	Content  Pane
	Guidance Pane
	Nav      Nav
	History  History
	Viewport Viewport
	Scripts  ScriptRunner
	Confirm  Confirmer
	Notify   Notifier
	Forms    FormBinder

	Initializers *Initializers
	// FetchTimeout bounds fragment and guidance fetches. Zero means none.
	FetchTimeout time.Duration
}

// Controller routes location fragments to section fragments. One
// controller lives for the whole page session.
type Controller struct {
	cfg Config

	mu                      sync.Mutex
	currentSectionID        string
	loading                 bool
	generation              uint64
	cancel                  context.CancelFunc
	guidanceGeneration      uint64
	formHandlersInitialized bool
	// ownHash is the last fragment written by the controller.
	ownHash string

	guidanceWG sync.WaitGroup
}

// New creates a controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Fetcher == nil || cfg.Content == nil || cfg.History == nil {
		return nil, errors.New("editor: Fetcher, Content and History are required")
	}
	if cfg.Nav == nil {
		cfg.Nav = noopNav{}
	}
	if cfg.Viewport == nil {
		cfg.Viewport = noopViewport{}
	}
	if cfg.Scripts == nil {
		cfg.Scripts = SkipScripts{}
	}
	if cfg.Confirm == nil {
		cfg.Confirm = denyConfirmer{}
	}
	if cfg.Notify == nil {
		cfg.Notify = LogNotifier{}
	}
	if cfg.Forms == nil {
		cfg.Forms = noopBinder{}
	}
	if cfg.Initializers == nil {
		cfg.Initializers = NewInitializers()
	}
	return &Controller{cfg: cfg}, nil
}

// CurrentSection returns the id of the section last navigated to.
func (c *Controller) CurrentSection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSectionID
}

// Loading reports whether a fragment fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Navigate moves to hash, updating the location fragment. It is dropped
// while another fragment is loading.
func (c *Controller) Navigate(ctx context.Context, hash string) error {
	route := ParseRoute(hash)
	if route.SectionID == "" {
		route.SectionID = DefaultSection
	}
	if c.Loading() {
		log.Printf("[editor] navigation to %s dropped: section is loading", route)
		return nil
	}
	c.setHash(route)
	return c.resolve(ctx, route)
}

// setHash writes route to the location fragment. Writing the fragment it
// already holds fires no hash change, so only a real change is remembered
// as the controller's own.
func (c *Controller) setHash(route Route) {
	next := route.String()
	unchanged := strings.TrimPrefix(c.cfg.History.Hash(), "#") == strings.TrimPrefix(next, "#")
	c.mu.Lock()
	if unchanged {
		c.ownHash = ""
	} else {
		c.ownHash = next
	}
	c.mu.Unlock()
	if !unchanged {
		c.cfg.History.SetHash(next)
	}
}

// HandleHashChange reacts to a location fragment change made outside the
// controller. Changes the controller made itself are ignored.
func (c *Controller) HandleHashChange(ctx context.Context) error {
	hash := c.cfg.History.Hash()
	c.mu.Lock()
	own := c.ownHash
	c.ownHash = ""
	c.mu.Unlock()
	if own != "" && hash == own {
		return nil
	}

	route := ParseRoute(hash)
	if route.SectionID == "" {
		route.SectionID = DefaultSection
	}
	return c.resolve(ctx, route)
}

// Reload fetches the current location fragment again.
func (c *Controller) Reload(ctx context.Context) error {
	route := ParseRoute(c.cfg.History.Hash())
	if route.SectionID == "" {
		route.SectionID = DefaultSection
	}
	return c.resolve(ctx, route)
}

// Cancel aborts the in-flight fragment fetch, if any. Its response is
// discarded, the loading flag is cleared and the content pane shows a
// cancellation notice in place of the placeholder. It reports whether a
// load was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if !c.loading {
		c.mu.Unlock()
		return false
	}
	c.generation++
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	sectionID := c.currentSectionID
	c.mu.Unlock()

	log.Printf("[editor] cancelled loading of %s", sectionID)
	c.cfg.Content.SetHTML(renderError(sectionID, cancelledMessage))
	return true
}

// Wait blocks until in-flight guidance loads finish.
func (c *Controller) Wait() {
	c.guidanceWG.Wait()
}

// resolve is the single path shared by navigation, hash changes and reloads.
func (c *Controller) resolve(ctx context.Context, route Route) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		log.Printf("[editor] navigation to %s dropped: section is loading", route)
		return nil
	}
	sectionChanged := route.SectionID != c.currentSectionID
	c.currentSectionID = route.SectionID
	c.loading = true
	c.generation++
	gen := c.generation
	fetchCtx, cancel := c.fetchContext(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	if sectionChanged {
		c.cfg.Nav.SetActive(route.SectionID)
		c.loadGuidance(ctx, route.SectionID)
	}

	c.cfg.Content.SetHTML(loadingHTML)
	html, err := c.cfg.Fetcher.SectionForm(fetchCtx, route.Query())

	if !c.current(gen) {
		log.Printf("[editor] discarding stale response for %s", route)
		return ErrStale
	}
	defer c.finish(gen)

	if err != nil {
		log.Printf("[editor] failed to load section %s: %v", route.SectionID, err)
		c.cfg.Content.SetHTML(renderError(route.SectionID, "Please try again."))
		return &LoadError{SectionID: route.SectionID, Cause: err}
	}

	c.cfg.Content.SetHTML(html)
	frag, err := ParseFragment(html)
	if err != nil {
		log.Printf("[editor] rendered %s without initializers: %v", route.SectionID, err)
		c.applyScroll(route)
		return nil
	}
	for _, script := range frag.Scripts {
		if err := c.cfg.Scripts.Run(fetchCtx, script); err != nil {
			log.Printf("[editor] script in %s failed: %v", route.SectionID, err)
		}
	}
	c.initialize(fetchCtx, route.SectionID, frag)
	c.applyScroll(route)
	return nil
}

func (c *Controller) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

// current reports whether gen is still the latest navigation.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation && c.loading
}

func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.loading = false
		c.cancel = nil
	}
}

// initialize dispatches to the section's post-render hooks.
func (c *Controller) initialize(ctx context.Context, sectionID string, frag *Fragment) {
	kind := frag.Kind
	if kind == "" {
		kind = sectionID
	}
	inits := c.cfg.Initializers

	if fn, ok := inits.lookup(kind); ok {
		if err := fn(ctx, sectionID, frag); err != nil {
			log.Printf("[editor] %s initializer failed: %v", kind, err)
		}
		return
	}
	if isBespoke(kind) {
		log.Printf("[editor] no initializer registered for %s", kind)
		return
	}

	c.bindFormsOnce()
	if responsibilitySections[sectionID] && inits.Responsibilities != nil {
		if err := inits.Responsibilities(ctx, sectionID, frag); err != nil {
			log.Printf("[editor] responsibilities editor failed for %s: %v", sectionID, err)
		}
	}
	if reorderSections[sectionID] && inits.Reorder != nil {
		if err := inits.Reorder(ctx, sectionID, frag); err != nil {
			log.Printf("[editor] reorder editor failed for %s: %v", sectionID, err)
		}
	}
}

func (c *Controller) bindFormsOnce() {
	c.mu.Lock()
	if c.formHandlersInitialized {
		c.mu.Unlock()
		return
	}
	c.formHandlersInitialized = true
	c.mu.Unlock()
	c.cfg.Forms.BindForms(c.SubmitForm)
}

func (c *Controller) applyScroll(route Route) {
	vp := c.cfg.Viewport
	if route.Editing() {
		if top, ok := vp.HeadingTop(route.SectionID); ok {
			target := top - HeadingOffset
			if target < 0 {
				target = 0
			}
			vp.ScrollTo(ScrollWindow, target, true)
			return
		}
	}
	vp.ScrollTo(ScrollContentPane, 0, false)
	vp.ScrollTo(ScrollDocument, 0, false)
	vp.ScrollTo(ScrollWindow, 0, false)
}

// loadGuidance fetches guidance for sectionID in the background. Only the
// response for the latest section is rendered.
func (c *Controller) loadGuidance(ctx context.Context, sectionID string) {
	if c.cfg.Guidance == nil {
		return
	}
	c.mu.Lock()
	c.guidanceGeneration++
	gen := c.guidanceGeneration
	c.mu.Unlock()

	c.guidanceWG.Add(1)
	go func() {
		defer c.guidanceWG.Done()
		fetchCtx, cancel := c.fetchContext(ctx)
		defer cancel()

		g, err := c.cfg.Fetcher.Guidance(fetchCtx, sectionID)

		c.mu.Lock()
		stale := gen != c.guidanceGeneration
		c.mu.Unlock()
		if stale {
			return
		}
		if err != nil {
			log.Printf("[editor] failed to load guidance for %s: %v", sectionID, err)
			c.cfg.Guidance.SetHTML("")
			return
		}
		c.cfg.Guidance.SetHTML(RenderGuidance(g))
	}()
}
