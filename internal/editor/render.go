package editor

import (
	"bytes"
	"html/template"
	"log"

	"github.com/jonathan/cv-editor/internal/types"
)

const loadingHTML = `<div class="section-loading"><span class="spinner"></span> Loading...</div>`

var errorTemplate = template.Must(template.New("error").Parse(
	`<div class="alert alert-error" role="alert"><strong>Could not load {{.Section}}.</strong> {{.Message}}</div>`))

var guidanceTemplate = template.Must(template.New("guidance").Parse(`<div class="guidance">
<h3>{{.Title}}</h3>
{{if .Description}}<p>{{.Description}}</p>
{{end}}{{if .Tips}}<h4>Tips</h4>
<ul>{{range .Tips}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .Examples}}<h4>Examples</h4>
<ul>{{range .Examples}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .CommonMistakes}}<h4>Common mistakes</h4>
<ul>{{range .CommonMistakes}}<li>{{.}}</li>{{end}}</ul>
{{end}}</div>`))

func renderError(sectionID, message string) string {
	var buf bytes.Buffer
	if err := errorTemplate.Execute(&buf, struct{ Section, Message string }{sectionID, message}); err != nil {
		log.Printf("[editor] failed to render error block: %v", err)
		return `<div class="alert alert-error" role="alert">Could not load section.</div>`
	}
	return buf.String()
}

// RenderGuidance renders guidance as panel markup.
func RenderGuidance(g *types.Guidance) string {
	var buf bytes.Buffer
	if err := guidanceTemplate.Execute(&buf, g); err != nil {
		log.Printf("[editor] failed to render guidance: %v", err)
		return ""
	}
	return buf.String()
}
