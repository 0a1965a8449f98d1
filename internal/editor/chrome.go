package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromePage hosts the content pane in a headless Chrome tab so fragment
// scripts run against real markup. It implements Pane, ScriptRunner and
// Viewport. Requires Chrome/Chromium on the system.
type ChromePage struct {
	ctx     context.Context
	cancels []context.CancelFunc
	timeout time.Duration

	mu   sync.Mutex
	html string
}

// NewChromePage starts a headless browser with an empty content pane.
func NewChromePage(parent context.Context, timeout time.Duration) (*ChromePage, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	p := &ChromePage{ctx: browserCtx, cancels: []context.CancelFunc{cancelBrowser, cancelAlloc}, timeout: timeout}
	err := p.run(
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(`document.body.innerHTML = '<main id="content"></main>'; true`, nil),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start browser page: %w", err)
	}
	return p, nil
}

// Close shuts the browser down.
func (p *ChromePage) Close() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

func (p *ChromePage) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// SetHTML implements Pane. Like innerHTML assignment, embedded scripts are
// not executed.
func (p *ChromePage) SetHTML(html string) {
	p.mu.Lock()
	p.html = html
	p.mu.Unlock()
	expr := fmt.Sprintf(`document.getElementById('content').innerHTML = %s; true`, jsString(html))
	if err := p.run(chromedp.Evaluate(expr, nil)); err != nil {
		log.Printf("[editor] failed to render content pane: %v", err)
	}
}

// HTML implements Pane.
func (p *ChromePage) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html
}

// Run implements ScriptRunner. External scripts are appended to the head
// and awaited; inline scripts are evaluated in the page.
func (p *ChromePage) Run(ctx context.Context, s Script) error {
	expr := s.Body
	if s.Src != "" {
		expr = fmt.Sprintf(`new Promise((resolve, reject) => {
	const el = document.createElement('script');
	el.src = %s;
	el.onload = () => resolve(true);
	el.onerror = () => reject(new Error('failed to load ' + el.src));
	document.head.appendChild(el);
})`, jsString(s.Src))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.run(chromedp.Evaluate(expr, nil, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

// Eval evaluates expr in the page and decodes the result into res.
func (p *ChromePage) Eval(expr string, res any) error {
	return p.run(chromedp.Evaluate(expr, res))
}

// HeadingTop implements Viewport. The heading is the element with the
// section id, or the first heading in the content pane.
func (p *ChromePage) HeadingTop(sectionID string) (float64, bool) {
	expr := fmt.Sprintf(`(() => {
	const el = document.getElementById(%s) || document.querySelector('#content h1, #content h2, #content h3');
	return el ? el.getBoundingClientRect().top + window.scrollY : -1;
})()`, jsString(sectionID))
	var top float64
	if err := p.run(chromedp.Evaluate(expr, &top)); err != nil || top < 0 {
		return 0, false
	}
	return top, true
}

// ScrollTo implements Viewport.
func (p *ChromePage) ScrollTo(target ScrollTarget, top float64, smooth bool) {
	behavior := "auto"
	if smooth {
		behavior = "smooth"
	}
	var expr string
	switch target {
	case ScrollContentPane:
		expr = fmt.Sprintf(`document.getElementById('content').scrollTop = %f; true`, top)
	case ScrollDocument:
		expr = fmt.Sprintf(`document.documentElement.scrollTop = %f; true`, top)
	default:
		expr = fmt.Sprintf(`window.scrollTo({top: %f, behavior: %q}); true`, top, behavior)
	}
	if err := p.run(chromedp.Evaluate(expr, nil)); err != nil {
		log.Printf("[editor] failed to scroll %s: %v", target, err)
	}
}
