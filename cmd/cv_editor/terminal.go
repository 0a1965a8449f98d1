package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jonathan/cv-editor/internal/assess"
	"github.com/jonathan/cv-editor/internal/editor"
)

// textPane renders fragments as plain text. When loadingOnly is set only
// assessment progress is printed.
type textPane struct {
	out         io.Writer
	prefix      string
	loadingOnly bool

	mu   sync.Mutex
	html string
}

func (p *textPane) SetHTML(html string) {
	p.mu.Lock()
	p.html = html
	p.mu.Unlock()

	if p.loadingOnly && !strings.Contains(html, assess.LoadingClass) {
		return
	}
	text := fragmentText(html)
	if text == "" {
		return
	}
	fmt.Fprintf(p.out, "%s%s\n", p.prefix, text)
}

func (p *textPane) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html
}

func fragmentText(html string) string {
	frag, err := editor.ParseFragment(html)
	if err != nil {
		return strings.TrimSpace(html)
	}
	return frag.Text()
}

// memoryHistory holds the location fragment in memory.
type memoryHistory struct {
	mu   sync.Mutex
	hash string
}

func (h *memoryHistory) Hash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hash
}

func (h *memoryHistory) SetHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hash = hash
}

type printNav struct {
	out io.Writer
}

func (n printNav) SetActive(sectionID string) {
	fmt.Fprintf(n.out, "== %s ==\n", sectionID)
}

type printNotifier struct {
	out io.Writer
}

func (n printNotifier) Notify(level editor.Level, message string) {
	fmt.Fprintf(n.out, "[%s] %s\n", level, message)
}

// lineConfirmer asks on out and reads the answer from the shared input.
type lineConfirmer struct {
	in  *bufio.Scanner
	out io.Writer
}

func (c lineConfirmer) Confirm(message string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", message)
	if !c.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
	return answer == "y" || answer == "yes"
}
