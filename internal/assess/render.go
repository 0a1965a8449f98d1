package assess

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/jonathan/cv-editor/internal/browserai"
	"github.com/jonathan/cv-editor/internal/normalize"
	"github.com/jonathan/cv-editor/internal/types"
)

// LoadingClass marks the panel markup shown while an assessment runs.
const LoadingClass = "assessment-loading"

var loadingTemplate = template.Must(template.New("loading").Parse(
	`<div class="` + LoadingClass + `"><span class="spinner"></span> {{.}}</div>`))

var resultTemplate = template.Must(template.New("result").Parse(`<div class="assessment">
{{if .Strengths}}<h4>Strengths</h4>
<ul>{{range .Strengths}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .Weaknesses}}<h4>Areas for improvement</h4>
<ul>{{range .Weaknesses}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .Recommendations}}<h4>Recommendations</h4>
<ul>{{range .Recommendations}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .Replacement}}<h4>Suggested replacement</h4>
<pre class="suggested-replacement">{{.Replacement}}</pre>
<p class="copy-note">You can copy this text into the form above.</p>
{{end}}</div>`))

func renderLoading(message string) string {
	var buf bytes.Buffer
	if err := loadingTemplate.Execute(&buf, message); err != nil {
		log.Printf("[assess] failed to render loading state: %v", err)
	}
	return buf.String()
}

func renderProgress(p browserai.Progress) string {
	msg := p.Message
	if p.Percent > 0 && p.Percent < 100 {
		msg = fmt.Sprintf("%s (%.0f%%)", msg, p.Percent)
	}
	return renderLoading(msg)
}

// RenderResult renders an assessment. Empty lists are omitted and the
// suggested replacement is normalized for sectionID.
func RenderResult(sectionID string, r *types.AssessmentResult) string {
	data := struct {
		Strengths       []string
		Weaknesses      []string
		Recommendations []string
		Replacement     string
	}{
		Strengths:       r.Strengths,
		Weaknesses:      r.Weaknesses,
		Recommendations: r.Recommendations,
		Replacement:     normalize.Normalize(r.SuggestedReplacement, sectionID),
	}
	var buf bytes.Buffer
	if err := resultTemplate.Execute(&buf, data); err != nil {
		log.Printf("[assess] failed to render result: %v", err)
		return ""
	}
	return buf.String()
}
