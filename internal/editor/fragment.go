package editor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// KindAttr names the fragment attribute that selects a typed initializer.
const KindAttr = "data-section-kind"

// Script is an inline or external script found in a fragment.
type Script struct {
	Src  string
	Type string
	Body string
}

// Fragment is a server-rendered section fragment.
type Fragment struct {
	HTML    string
	Kind    string
	Scripts []Script
	// Forms counts forms flagged as section forms.
	Forms int
}

// ParseFragment inspects a fragment's markup.
func ParseFragment(html string) (*Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	f := &Fragment{HTML: html}
	f.Kind = strings.TrimSpace(doc.Find("[" + KindAttr + "]").First().AttrOr(KindAttr, ""))
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ := s.AttrOr("type", "")
		if typ != "" && typ != "text/javascript" && typ != "module" && typ != "application/javascript" {
			return
		}
		f.Scripts = append(f.Scripts, Script{
			Src:  s.AttrOr("src", ""),
			Type: typ,
			Body: s.Text(),
		})
	})
	f.Forms = doc.Find("form.section-form, form[data-section-form]").Length()
	return f, nil
}

// Text returns the readable text of the fragment with scripts, styles and
// hidden inputs removed.
func (f *Fragment) Text() string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.HTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, input[type=hidden], template").Remove()
	return cleanWhitespace(doc.Text())
}

// cleanWhitespace trims every line and drops blank ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
