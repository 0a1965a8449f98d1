package editor

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/cv-editor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu         sync.Mutex
	forms      []url.Values
	html       map[string]string
	formErr    error
	gate       chan struct{}
	started    chan struct{}
	guidance   map[string]*types.Guidance
	guideGates map[string]chan struct{}
	saves      []url.Values
	saveResult *types.SaveResult
	saveErr    error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		html:       map[string]string{},
		guidance:   map[string]*types.Guidance{},
		guideGates: map[string]chan struct{}{},
		saveResult: &types.SaveResult{Success: true, Message: "Saved"},
	}
}

func (f *fakeFetcher) SectionForm(ctx context.Context, params url.Values) (string, error) {
	f.mu.Lock()
	f.forms = append(f.forms, params)
	gate, started := f.gate, f.started
	html, err := f.html[params.Get("section_id")], f.formErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return html, err
}

func (f *fakeFetcher) Guidance(ctx context.Context, sectionID string) (*types.Guidance, error) {
	f.mu.Lock()
	gate := f.guideGates[sectionID]
	g := f.guidance[sectionID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if g == nil {
		return nil, errors.New("no guidance")
	}
	return g, nil
}

func (f *fakeFetcher) SaveSection(_ context.Context, form url.Values) (*types.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, form)
	return f.saveResult, f.saveErr
}

func (f *fakeFetcher) formCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forms)
}

type fakePane struct {
	mu   sync.Mutex
	html string
}

func (p *fakePane) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *fakePane) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html
}

type fakeHistory struct {
	mu   sync.Mutex
	hash string
	sets []string
}

func (h *fakeHistory) Hash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hash
}

func (h *fakeHistory) SetHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hash = hash
	h.sets = append(h.sets, hash)
}

type scrollCall struct {
	target ScrollTarget
	top    float64
	smooth bool
}

type fakeViewport struct {
	headings map[string]float64
	calls    []scrollCall
}

func (v *fakeViewport) HeadingTop(sectionID string) (float64, bool) {
	top, ok := v.headings[sectionID]
	return top, ok
}

func (v *fakeViewport) ScrollTo(target ScrollTarget, top float64, smooth bool) {
	v.calls = append(v.calls, scrollCall{target, top, smooth})
}

// markerRunner interprets the one statement the tests embed in fragments.
type markerRunner struct {
	globals map[string]bool
	ran     int
}

func (r *markerRunner) Run(_ context.Context, s Script) error {
	r.ran++
	if strings.Contains(s.Body, "window.__marker = true") {
		r.globals["__marker"] = true
	}
	return nil
}

type fakeNav struct{ active []string }

func (n *fakeNav) SetActive(id string) { n.active = append(n.active, id) }

type fakeConfirmer struct {
	answer bool
	asked  int
}

func (c *fakeConfirmer) Confirm(string) bool {
	c.asked++
	return c.answer
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, string(level)+": "+message)
}

type countingBinder struct {
	binds  int
	submit SubmitFunc
}

func (b *countingBinder) BindForms(submit SubmitFunc) {
	b.binds++
	b.submit = submit
}

type harness struct {
	c        *Controller
	fetcher  *fakeFetcher
	content  *fakePane
	guidance *fakePane
	history  *fakeHistory
	viewport *fakeViewport
	scripts  *markerRunner
	nav      *fakeNav
	confirm  *fakeConfirmer
	notify   *recordingNotifier
	forms    *countingBinder
	inits    *Initializers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fetcher:  newFakeFetcher(),
		content:  &fakePane{},
		guidance: &fakePane{},
		history:  &fakeHistory{},
		viewport: &fakeViewport{headings: map[string]float64{}},
		scripts:  &markerRunner{globals: map[string]bool{}},
		nav:      &fakeNav{},
		confirm:  &fakeConfirmer{},
		notify:   &recordingNotifier{},
		forms:    &countingBinder{},
		inits:    NewInitializers(),
	}
	c, err := New(Config{
		Fetcher:      h.fetcher,
		Content:      h.content,
		Guidance:     h.guidance,
		Nav:          h.nav,
		History:      h.history,
		Viewport:     h.viewport,
		Scripts:      h.scripts,
		Confirm:      h.confirm,
		Notify:       h.notify,
		Forms:        h.forms,
		Initializers: h.inits,
	})
	require.NoError(t, err)
	h.c = c
	t.Cleanup(c.Wait)
	return h
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Content: &fakePane{}, History: &fakeHistory{}})
	assert.Error(t, err)
}

func TestNavigate_RendersFragment(t *testing.T) {
	h := newHarness(t)
	h.fetcher.html["skills"] = `<section><h2>Skills</h2></section>`
	h.fetcher.guidance["skills"] = &types.Guidance{Title: "Skills guidance", Tips: []string{"Group by category"}}

	require.NoError(t, h.c.Navigate(context.Background(), "#skills&variant_id=v1"))
	h.c.Wait()

	assert.Equal(t, `<section><h2>Skills</h2></section>`, h.content.HTML())
	assert.Equal(t, "#skills&variant_id=v1", h.history.Hash())
	assert.Equal(t, []string{"skills"}, h.nav.active)
	assert.Equal(t, "skills", h.c.CurrentSection())
	assert.False(t, h.c.Loading())
	assert.Equal(t, "v1", h.fetcher.forms[0].Get("variant_id"))
	assert.Contains(t, h.guidance.HTML(), "Skills guidance")
	assert.Contains(t, h.guidance.HTML(), "<li>Group by category</li>")
}

func TestNavigate_DefaultSection(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.Navigate(context.Background(), ""))
	assert.Equal(t, DefaultSection, h.c.CurrentSection())
	assert.Equal(t, "#"+DefaultSection, h.history.Hash())
}

func TestNavigate_DropsWhileLoading(t *testing.T) {
	h := newHarness(t)
	h.fetcher.gate = make(chan struct{})
	h.fetcher.started = make(chan struct{}, 4)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.c.Navigate(ctx, "#skills") }()
	<-h.fetcher.started
	require.True(t, h.c.Loading())

	require.NoError(t, h.c.Navigate(ctx, "#projects"))
	h.history.SetHash("#interests")
	require.NoError(t, h.c.HandleHashChange(ctx))

	assert.Equal(t, 1, h.fetcher.formCount(), "navigation while loading must not fetch")
	assert.Equal(t, "skills", h.c.CurrentSection())

	close(h.fetcher.gate)
	require.NoError(t, <-done)
	assert.False(t, h.c.Loading())

	require.NoError(t, h.c.Navigate(ctx, "#projects"))
	assert.Equal(t, 2, h.fetcher.formCount())
	assert.Equal(t, "projects", h.c.CurrentSection())
}

func TestNavigate_EditRunsScriptsAndScrollsToHeading(t *testing.T) {
	h := newHarness(t)
	h.fetcher.html["work-experience"] = `<section id="work-experience"><h2>Work experience</h2>
<form class="section-form"><input name="title"></form>
<script>window.__marker = true</script></section>`
	h.viewport.headings["work-experience"] = 500

	require.NoError(t, h.c.Navigate(context.Background(), "#work-experience&edit=7"))

	assert.True(t, h.scripts.globals["__marker"], "inline script must be executed")
	assert.Equal(t, "7", h.fetcher.forms[0].Get("edit"))
	require.Len(t, h.viewport.calls, 1)
	assert.Equal(t, scrollCall{ScrollWindow, 430, true}, h.viewport.calls[0])
}

func TestNavigate_NotEditingResetsScroll(t *testing.T) {
	h := newHarness(t)
	h.viewport.headings["skills"] = 500

	require.NoError(t, h.c.Navigate(context.Background(), "#skills"))
	assert.Equal(t, []scrollCall{
		{ScrollContentPane, 0, false},
		{ScrollDocument, 0, false},
		{ScrollWindow, 0, false},
	}, h.viewport.calls)
}

func TestNavigate_FetchError(t *testing.T) {
	h := newHarness(t)
	h.fetcher.formErr = errors.New("connection refused")

	err := h.c.Navigate(context.Background(), "#skills")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "skills", loadErr.SectionID)
	assert.Contains(t, h.content.HTML(), "alert-error")
	assert.False(t, h.c.Loading(), "a failed load must not leave the controller busy")

	h.fetcher.formErr = nil
	require.NoError(t, h.c.Navigate(context.Background(), "#skills"))
}

func TestCancel_DiscardsResponse(t *testing.T) {
	h := newHarness(t)
	h.fetcher.gate = make(chan struct{})
	h.fetcher.started = make(chan struct{}, 4)
	h.fetcher.html["skills"] = `<p>late</p>`

	done := make(chan error, 1)
	go func() { done <- h.c.Navigate(context.Background(), "#skills") }()
	<-h.fetcher.started

	assert.True(t, h.c.Cancel())
	assert.False(t, h.c.Loading())
	require.ErrorIs(t, <-done, ErrStale)
	assert.NotEqual(t, `<p>late</p>`, h.content.HTML())
	assert.NotContains(t, h.content.HTML(), "spinner", "placeholder must not outlive the load")
	assert.Contains(t, h.content.HTML(), "Loading was cancelled.")

	assert.False(t, h.c.Cancel(), "nothing left to cancel")
}

func TestHandleHashChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.c.Navigate(ctx, "#skills"))
	require.NoError(t, h.c.HandleHashChange(ctx), "own hash change is ignored")
	assert.Equal(t, 1, h.fetcher.formCount())

	h.history.SetHash("#skills&add=1")
	require.NoError(t, h.c.HandleHashChange(ctx))
	assert.Equal(t, 2, h.fetcher.formCount(), "same section with new params reloads")
	assert.Equal(t, []string{"skills"}, h.nav.active, "nav highlight only changes with the section")
}

func TestHandleHashChange_AfterNavigatingToCurrentHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fetcher.html["skills"] = `<p>skills</p>`
	h.fetcher.html["projects"] = `<p>projects</p>`
	h.history.SetHash("#skills")

	// Re-selecting the active section fires no hash change.
	require.NoError(t, h.c.Navigate(ctx, "#skills"))
	assert.Equal(t, []string{"#skills"}, h.history.sets, "unchanged hash is not rewritten")

	h.history.SetHash("#projects")
	require.NoError(t, h.c.HandleHashChange(ctx))
	assert.Equal(t, "projects", h.c.CurrentSection())

	h.history.SetHash("#skills")
	require.NoError(t, h.c.HandleHashChange(ctx))
	assert.Equal(t, "skills", h.c.CurrentSection())
	assert.Equal(t, `<p>skills</p>`, h.content.HTML())
	assert.Equal(t, 3, h.fetcher.formCount())
}

func TestHandleHashChange_IgnoresOnlyOwnChangeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.c.Navigate(ctx, "#projects"))
	require.NoError(t, h.c.HandleHashChange(ctx))
	require.NoError(t, h.c.HandleHashChange(ctx))
	assert.Equal(t, 2, h.fetcher.formCount(), "a repeated event for the same hash is external")
}

func TestGuidance_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	slow := make(chan struct{})
	h.fetcher.guideGates["skills"] = slow
	h.fetcher.guidance["skills"] = &types.Guidance{Title: "Skills"}
	h.fetcher.guidance["projects"] = &types.Guidance{Title: "Projects"}

	require.NoError(t, h.c.Navigate(ctx, "#skills"))
	require.NoError(t, h.c.Navigate(ctx, "#projects"))
	require.Eventually(t, func() bool {
		return strings.Contains(h.guidance.HTML(), "Projects")
	}, time.Second, 5*time.Millisecond)

	close(slow)
	h.c.Wait()
	assert.Contains(t, h.guidance.HTML(), "Projects")
	assert.NotContains(t, h.guidance.HTML(), "Skills")
}

func TestInitializers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var calls []string
	record := func(name string) InitFunc {
		return func(_ context.Context, sectionID string, _ *Fragment) error {
			calls = append(calls, name+":"+sectionID)
			return nil
		}
	}
	h.inits.Register(KindJobs, record("jobs"))
	h.inits.Responsibilities = record("responsibilities")
	h.inits.Reorder = record("reorder")
	h.fetcher.html["cv-variants"] = `<div data-section-kind="jobs"></div>`

	require.NoError(t, h.c.Navigate(ctx, "#jobs"))
	assert.Equal(t, 0, h.forms.binds, "bespoke sections skip generic form handlers")

	require.NoError(t, h.c.Navigate(ctx, "#work-experience"))
	require.NoError(t, h.c.Navigate(ctx, "#skills"))
	require.NoError(t, h.c.Navigate(ctx, "#professional-summary"))
	require.NoError(t, h.c.Navigate(ctx, "#cv-variants"))

	assert.Equal(t, []string{
		"jobs:jobs",
		"responsibilities:work-experience",
		"reorder:work-experience",
		"reorder:skills",
		"jobs:cv-variants",
	}, calls)
	assert.Equal(t, 1, h.forms.binds, "form handlers attach exactly once")
}

func TestSubmitForm_UpdateLeavesEditMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.c.Navigate(ctx, "#work-experience&edit=7&variant_id=v1"))

	form := Form{SectionForm: true, Values: url.Values{"action": {"update"}, "entry_id": {"7"}, "title": {"Lead"}}}
	require.NoError(t, h.c.SubmitForm(ctx, form))

	require.Len(t, h.fetcher.saves, 1)
	saved := h.fetcher.saves[0]
	assert.Equal(t, "work-experience", saved.Get("section_id"))
	assert.Equal(t, "v1", saved.Get("variant_id"))
	assert.Equal(t, "#work-experience&variant_id=v1", h.history.Hash())
	assert.Equal(t, "", h.fetcher.forms[1].Get("edit"))
	assert.Equal(t, []string{"success: Saved"}, h.notify.messages)

	require.NoError(t, h.c.HandleHashChange(ctx))
	assert.Equal(t, 2, h.fetcher.formCount())
}

func TestSubmitForm_CreateClearsAddMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.c.Navigate(ctx, "#projects&add=1"))

	require.NoError(t, h.c.SubmitForm(ctx, Form{SectionForm: true, Values: url.Values{"action": {"add"}, "title": {"CLI"}}}))
	assert.Equal(t, 2, h.fetcher.formCount())
	assert.Equal(t, "#projects", h.history.Hash(), "add mode is cleared from the hash")
	assert.Empty(t, h.fetcher.forms[1].Get("add"))

	require.NoError(t, h.c.HandleHashChange(ctx), "own hash change is ignored")
	require.NoError(t, h.c.Reload(ctx))
	assert.Equal(t, 3, h.fetcher.formCount())
	assert.Empty(t, h.fetcher.forms[2].Get("add"), "reload shows the list, not the add form")
}

func TestSubmitForm_DeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.c.Navigate(ctx, "#skills"))
	form := Form{SectionForm: true, Values: url.Values{"action": {"delete"}, "entry_id": {"3"}}}

	require.NoError(t, h.c.SubmitForm(ctx, form))
	assert.Equal(t, 1, h.confirm.asked)
	assert.Empty(t, h.fetcher.saves, "declined delete must not reach the server")

	h.confirm.answer = true
	require.NoError(t, h.c.SubmitForm(ctx, form))
	assert.Len(t, h.fetcher.saves, 1)
}

func TestSubmitForm_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.c.Navigate(ctx, "#skills"))

	require.NoError(t, h.c.SubmitForm(ctx, Form{Values: url.Values{"q": {"x"}}}))
	assert.Empty(t, h.fetcher.saves, "non-section forms are ignored")

	h.fetcher.saveResult = &types.SaveResult{Success: false, Error: "Name is required"}
	require.NoError(t, h.c.SubmitForm(ctx, Form{SectionForm: true, Values: url.Values{"action": {"add"}}}))
	assert.Equal(t, []string{"error: Name is required"}, h.notify.messages)
	assert.Equal(t, 1, h.fetcher.formCount(), "rejected save does not reload")

	h.fetcher.saveErr = errors.New("offline")
	err := h.c.SubmitForm(ctx, Form{SectionForm: true, Values: url.Values{"action": {"add"}}})
	require.Error(t, err)
	assert.Contains(t, h.notify.messages[1], "error:")
}

func TestParseFragment(t *testing.T) {
	frag, err := ParseFragment(`<div data-section-kind="cv-variants">
<h2>Variants</h2><input type="hidden" name="csrf_token" value="x">
<script>init()</script><script src="/static/variants.js"></script>
<script type="application/json">{"a":1}</script>
<form class="section-form"></form></div>`)
	require.NoError(t, err)

	assert.Equal(t, "cv-variants", frag.Kind)
	require.Len(t, frag.Scripts, 2, "data scripts are not executable")
	assert.Equal(t, "init()", frag.Scripts[0].Body)
	assert.Equal(t, "/static/variants.js", frag.Scripts[1].Src)
	assert.Equal(t, 1, frag.Forms)
	assert.Equal(t, "Variants", frag.Text())
}
