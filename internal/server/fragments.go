package server

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/guidance"
	"github.com/jonathan/cv-editor/internal/quota"
)

var fragmentTemplates = template.Must(template.New("fragments").Parse(`
{{define "section"}}<section class="cv-section" id="section-{{.SectionID}}"{{if .Kind}} data-section-kind="{{.Kind}}"{{end}}>
<h2 id="{{.SectionID}}">{{.Title}}</h2>
{{if .Notice}}<p class="notice">{{.Notice}}</p>
{{end}}{{if .Job}}{{template "job" .Job}}{{end}}{{if .Form}}{{template "form" .Form}}{{end}}{{if .Panel}}{{template "panel" .Panel}}{{end}}{{if .ShowList}}{{template "list" .}}{{end}}
<script>document.dispatchEvent(new CustomEvent("section:loaded", {detail: {section: {{.SectionID}}}}));</script>
</section>{{end}}

{{define "list"}}{{if .Entries}}{{if eq .View "table"}}<table class="entries{{if .Reorder}} reorderable{{end}}">
<tbody>{{range .Entries}}<tr data-entry-id="{{.ID}}"><td>{{.Heading}}</td><td>{{range .Lines}}{{.}}<br>{{end}}</td><td><a href="{{.EditHref}}">Edit</a></td></tr>
{{end}}</tbody>
</table>{{else}}<ul class="entries{{if .Reorder}} reorderable{{end}}">
{{range .Entries}}<li class="entry-card" data-entry-id="{{.ID}}"><h3>{{.Heading}}</h3>
{{range .Lines}}<p>{{.}}</p>
{{end}}<a href="{{.EditHref}}">Edit</a>{{if .DetailHref}} <a href="{{.DetailHref}}">Details</a>{{end}}</li>
{{end}}</ul>{{end}}
{{else}}<p class="empty">Nothing here yet.</p>
{{end}}{{if .AddHref}}<a class="add-entry" href="{{.AddHref}}">Add</a>
{{end}}{{end}}

{{define "hidden"}}<input type="hidden" name="csrf_token" value="{{.CSRF}}">
<input type="hidden" name="section_id" value="{{.SectionID}}">
{{if .EntryID}}<input type="hidden" name="entry_id" value="{{.EntryID}}">
{{end}}{{if .VariantID}}<input type="hidden" name="variant_id" value="{{.VariantID}}">
{{end}}{{end}}

{{define "form"}}<form class="section-form" method="post" action="/save-section">
{{template "hidden" .}}<input type="hidden" name="action" value="{{.Action}}">
{{range .Fields}}<label>{{.Label}}
{{if .Multiline}}<textarea name="{{.Name}}"{{if .Required}} required{{end}}>{{.Value}}</textarea>{{else}}<input type="text" name="{{.Name}}" value="{{.Value}}"{{if .Required}} required{{end}}>{{end}}
</label>
{{end}}<button type="submit">Save</button>
<a class="cancel" href="{{.CancelHref}}">Cancel</a>
</form>
{{if .EntryID}}<form class="section-form delete-form" method="post" action="/save-section">
{{template "hidden" .}}<input type="hidden" name="action" value="delete">
<button type="submit">Delete</button>
</form>
{{end}}{{end}}

{{define "job"}}<article class="job-detail" data-entry-id="{{.ID}}">
<h3>{{.Heading}}</h3>
{{range .Lines}}<p>{{.}}</p>
{{end}}<a class="create-variant" href="{{.VariantHref}}">Create a CV variant for this job</a>
</article>
{{end}}

{{define "panel"}}<div class="ai-tools">
<p class="quota">{{.QuotaText}}</p>
<ul>{{range .Sections}}<li><button type="button" data-assess-section="{{.ID}}">Assess {{.Title}}</button></li>{{end}}</ul>
</div>
{{end}}

{{define "error"}}<div class="section-error"><p>{{.}}</p></div>{{end}}
`))

type entryView struct {
	ID          string
	Heading     string
	Lines       []string
	EditHref    string
	DetailHref  string
	VariantHref string
}

type fieldView struct {
	fieldDef
	Value string
}

type formView struct {
	CSRF       string
	SectionID  string
	Action     string
	EntryID    string
	VariantID  string
	Fields     []fieldView
	CancelHref string
}

type panelSection struct {
	ID    string
	Title string
}

type panelView struct {
	QuotaText string
	Sections  []panelSection
}

type sectionView struct {
	SectionID string
	Kind      string
	Title     string
	Notice    string
	View      string
	Reorder   bool
	ShowList  bool
	Entries   []entryView
	AddHref   string
	Form      *formView
	Job       *entryView
	Panel     *panelView
}

// href builds an editor hash link.
func href(r editor.Route) string {
	return r.String()
}

func newEntryView(def *sectionDef, route editor.Route, e *db.Entry) entryView {
	v := entryView{ID: e.ID.String(), Heading: def.heading(e)}
	for _, f := range def.Fields {
		value := strings.TrimSpace(e.Field(f.Name))
		if value == "" || value == v.Heading || (f.Name == "company" && strings.Contains(v.Heading, value)) {
			continue
		}
		v.Lines = append(v.Lines, f.Label+": "+value)
	}

	edit := route.WithoutModes()
	edit.Edit = v.ID
	v.EditHref = href(edit)

	if def.ID == editor.KindJobs {
		detail := route.WithoutModes()
		detail.Job = v.ID
		v.DetailHref = href(detail)
		v.VariantHref = href(editor.Route{SectionID: editor.KindCVVariants, Create: "1", Job: v.ID})
	}
	return v
}

func newFormView(def *sectionDef, route editor.Route, csrf, action string, e *db.Entry) *formView {
	f := &formView{
		CSRF:       csrf,
		SectionID:  def.ID,
		Action:     action,
		VariantID:  route.VariantID,
		CancelHref: href(route.WithoutModes()),
	}
	if e != nil {
		f.EntryID = e.ID.String()
	}
	for _, fd := range def.Fields {
		fv := fieldView{fieldDef: fd}
		if e != nil {
			fv.Value = e.Field(fd.Name)
		} else if fd.Name == "job_id" {
			fv.Value = route.Job
		}
		f.Fields = append(f.Fields, fv)
	}
	return f
}

func quotaText(status *quota.Status) string {
	switch {
	case status == nil:
		return "AI assessments run on your device."
	case status.Limit <= 0:
		return "AI assessments run on your device."
	case status.Remaining() == 0:
		return "Today's AI allowance is used up. Assessments will run on your device."
	default:
		return fmt.Sprintf("AI assessments left today: %d of %d", status.Remaining(), status.Limit)
	}
}

func newPanelView(status *quota.Status) *panelView {
	p := &panelView{QuotaText: quotaText(status)}
	for _, id := range assessableSections() {
		p.Sections = append(p.Sections, panelSection{ID: id, Title: guidance.Title(id)})
	}
	return p
}

func renderFragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := fragmentTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s fragment: %w", name, err)
	}
	return buf.String(), nil
}
