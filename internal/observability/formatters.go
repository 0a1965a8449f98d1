// Package observability provides formatted output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/cv-editor/internal/browserai"
	"github.com/jonathan/cv-editor/internal/modelcache"
	"github.com/jonathan/cv-editor/internal/normalize"
	"github.com/jonathan/cv-editor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output
type Printer struct {
	out io.Writer
	now func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

// printBox prints a formatted box with a title and content. Long lines
// are wrapped at word boundaries.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, wrapped := range wrap(line, boxWidth-4) {
			fmt.Fprintf(p.out, "│ %s%s │\n", wrapped, strings.Repeat(" ", boxWidth-4-len([]rune(wrapped))))
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// wrap splits line into chunks of at most width runes, keeping the
// line's leading indent on continuation lines.
func wrap(line string, width int) []string {
	if len([]rune(line)) <= width {
		return []string{line}
	}
	indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
	var out []string
	current := ""
	for _, word := range strings.Fields(line) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		} else if len(out) > 0 || indent != "" {
			candidate = indent + word
		}
		if len([]rune(candidate)) <= width {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = indent + word
		for len([]rune(current)) > width {
			r := []rune(current)
			out = append(out, string(r[:width]))
			current = indent + string(r[width:])
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	sb.WriteString("\n")
}

// PrintAssessment outputs an assessment of sectionID. Empty lists are
// omitted and the suggested replacement is normalized for the section.
func (p *Printer) PrintAssessment(sectionID string, result *types.AssessmentResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	writeList(&sb, "Strengths", result.Strengths)
	writeList(&sb, "Areas for improvement", result.Weaknesses)
	writeList(&sb, "Recommendations", result.Recommendations)
	if replacement := normalize.Normalize(result.SuggestedReplacement, sectionID); replacement != "" {
		sb.WriteString("Suggested replacement:\n")
		sb.WriteString(replacement)
		sb.WriteString("\n")
	}

	content := strings.TrimSuffix(sb.String(), "\n")
	if content == "" {
		content = "The assessment had no findings."
	}
	p.printBox("ASSESSMENT: "+strings.ToUpper(sectionID), content)
}

// PrintGuidance outputs the writing guidance for a section.
func (p *Printer) PrintGuidance(g *types.Guidance) {
	if g == nil {
		return
	}

	var sb strings.Builder
	if g.Description != "" {
		sb.WriteString(g.Description + "\n\n")
	}
	writeList(&sb, "Tips", g.Tips)
	examples := g.Examples
	if len(examples) > maxItemsToShow {
		examples = examples[:maxItemsToShow]
	}
	writeList(&sb, "Examples", examples)
	writeList(&sb, "Common mistakes", g.CommonMistakes)

	p.printBox(strings.ToUpper(g.Title), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSupport outputs the local inference capabilities of the device.
func (p *Printer) PrintSupport(s browserai.Support) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("GPU compute:        %s\n", yesNo(s.GPUCompute)))
	sb.WriteString(fmt.Sprintf("GPU graphics:       %s\n", yesNo(s.GPUGraphics)))
	sb.WriteString(fmt.Sprintf("Persistent storage: %s\n", yesNo(s.PersistentStorage)))
	sb.WriteString("\n")
	if s.Sufficient {
		sb.WriteString("This device can run AI assessments locally.")
	} else {
		sb.WriteString("This device cannot run AI assessments locally.")
	}
	p.printBox("LOCAL AI SUPPORT", sb.String())
}

// PrintCacheRecords outputs the cached models with their size and age.
func (p *Printer) PrintCacheRecords(records []modelcache.Record, total int64) {
	if len(records) == 0 {
		p.printBox("MODEL CACHE", "No models cached.")
		return
	}

	now := p.now()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cached models: %d (%s)\n\n", len(records), FormatBytes(total)))
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%s  [%s]\n", rec.ModelName, rec.ModelType))
		sb.WriteString(fmt.Sprintf("    Version %s, %s, last used %s ago\n",
			rec.Version, FormatBytes(rec.Size), formatAge(rec.Age(now))))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("MODEL CACHE", sb.String())
}

// FormatBytes renders n in binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
