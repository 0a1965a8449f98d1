package server

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/llm"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionForm(t *testing.T, env *testEnv, route editor.Route) (int, *editor.Fragment) {
	t.Helper()
	rec := env.get(t, "/section-form?"+route.Query().Encode())
	f, err := editor.ParseFragment(rec.Body.String())
	require.NoError(t, err)
	return rec.Code, f
}

func workExperience() map[string]string {
	return map[string]string{"title": "Engineer", "company": "Acme", "start_date": "2021-01"}
}

func TestSectionForm_List(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionWorkExperience, workExperience())
	env.store.add(uuid.New(), types.SectionWorkExperience, map[string]string{"title": "Someone else's"})

	code, f := sectionForm(t, env, editor.Route{SectionID: types.SectionWorkExperience})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, f.Forms)
	assert.Empty(t, f.Kind)
	assert.Contains(t, f.HTML, `id="work-experience"`)
	assert.Contains(t, f.Text(), "Engineer at Acme")
	assert.NotContains(t, f.Text(), "Someone else")
	assert.Contains(t, f.HTML, `href="#work-experience&amp;add=1"`)
	assert.Contains(t, f.HTML, "reorderable")
	require.NotEmpty(t, f.Scripts)
	assert.Contains(t, f.Scripts[len(f.Scripts)-1].Body, "section:loaded")
}

func TestSectionForm_TableView(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionSkills, map[string]string{"name": "Go"})

	_, f := sectionForm(t, env, editor.Route{SectionID: types.SectionSkills, View: "table"})
	assert.Contains(t, f.HTML, "<table")
}

func TestSectionForm_Modes(t *testing.T) {
	env := setupTestServer(t)
	id := env.store.add(env.user, types.SectionWorkExperience, workExperience())
	jobID := env.store.add(env.user, types.SectionJobs, map[string]string{"title": "Staff Engineer", "company": "Globex"})

	tests := []struct {
		name      string
		route     editor.Route
		wantForms int
		wantKind  string
		contains  []string
	}{
		{
			name:      "edit shows form and delete form",
			route:     editor.Route{SectionID: types.SectionWorkExperience, Edit: id.String(), Add: "1"},
			wantForms: 2,
			contains:  []string{`value="update"`, `value="Engineer"`, `name="entry_id"`},
		},
		{
			name:      "add",
			route:     editor.Route{SectionID: types.SectionWorkExperience, Add: "1"},
			wantForms: 1,
			contains:  []string{`value="add"`, "required"},
		},
		{
			name:      "create variant for job",
			route:     editor.Route{SectionID: types.SectionCVVariants, Create: "1", Job: jobID.String()},
			wantForms: 1,
			wantKind:  editor.KindCVVariants,
			contains:  []string{`value="create"`, `value="` + jobID.String() + `"`},
		},
		{
			name:     "job detail",
			route:    editor.Route{SectionID: types.SectionJobs, Job: jobID.String()},
			wantKind: editor.KindJobs,
			contains: []string{"Staff Engineer at Globex", "#cv-variants&amp;create=1&amp;job=" + jobID.String()},
		},
		{
			name:      "empty singleton opens create form",
			route:     editor.Route{SectionID: types.SectionProfessionalSummary},
			wantForms: 1,
			contains:  []string{`value="create"`, "<textarea"},
		},
		{
			name:     "ai tools panel",
			route:    editor.Route{SectionID: types.SectionAITools},
			wantKind: editor.KindAITools,
			contains: []string{"AI assessments left today: 2 of 2", `data-assess-section="skills"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, f := sectionForm(t, env, tt.route)
			require.Equal(t, http.StatusOK, code, f.HTML)
			assert.Equal(t, tt.wantForms, f.Forms)
			assert.Equal(t, tt.wantKind, f.Kind)
			for _, s := range tt.contains {
				assert.Contains(t, f.HTML, s)
			}
		})
	}
}

func TestSectionForm_SingletonAddEditsExisting(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionProfessionalSummary, map[string]string{"professional_summary": "Builder."})

	_, f := sectionForm(t, env, editor.Route{SectionID: types.SectionProfessionalSummary, Add: "1"})
	assert.Contains(t, f.Text(), "already has an entry")
	assert.Contains(t, f.HTML, `value="update"`)
	assert.NotContains(t, f.HTML, "add-entry")
}

func TestSectionForm_Errors(t *testing.T) {
	env := setupTestServer(t)
	tests := []struct {
		name  string
		route editor.Route
		want  int
	}{
		{"unknown section", editor.Route{SectionID: "hobbies"}, http.StatusBadRequest},
		{"bad edit id", editor.Route{SectionID: types.SectionSkills, Edit: "7"}, http.StatusBadRequest},
		{"missing entry", editor.Route{SectionID: types.SectionSkills, Edit: uuid.NewString()}, http.StatusNotFound},
		{"bad variant", editor.Route{SectionID: types.SectionSkills, VariantID: "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, f := sectionForm(t, env, tt.route)
			assert.Equal(t, tt.want, code)
			assert.Contains(t, f.HTML, "section-error")
		})
	}
}

func TestAITools_WithoutServerModel(t *testing.T) {
	env := setupTestServer(t, withoutAssessor())
	_, f := sectionForm(t, env, editor.Route{SectionID: types.SectionAITools})
	assert.Contains(t, f.Text(), "run on your device")
}

func saveForm(env *testEnv, values map[string]string) url.Values {
	form := url.Values{"csrf_token": {env.csrf()}}
	for k, v := range values {
		form.Set(k, v)
	}
	return form
}

func TestSaveSection_Lifecycle(t *testing.T) {
	env := setupTestServer(t)

	rec := env.post(t, "/save-section", saveForm(env, map[string]string{
		"section_id": types.SectionSkills, "action": "add", "name": "Go", "level": "Expert", "category": "",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[types.SaveResult](t, rec)
	assert.True(t, created.Success)
	id := uuid.MustParse(created.EntryID)

	stored, _ := env.store.GetEntry(t.Context(), env.user, id)
	require.NotNil(t, stored)
	assert.Equal(t, map[string]string{"name": "Go", "level": "Expert"}, stored.Content)

	rec = env.post(t, "/save-section", saveForm(env, map[string]string{
		"section_id": types.SectionSkills, "action": "update", "entry_id": id.String(), "name": "Golang",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, _ = env.store.GetEntry(t.Context(), env.user, id)
	assert.Equal(t, map[string]string{"name": "Golang"}, stored.Content)

	rec = env.post(t, "/save-section", saveForm(env, map[string]string{
		"section_id": types.SectionSkills, "action": "delete", "entry_id": id.String(),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, _ = env.store.GetEntry(t.Context(), env.user, id)
	assert.Nil(t, stored)
}

func TestSaveSection_CSRFHeader(t *testing.T) {
	env := setupTestServer(t)
	form := url.Values{"section_id": {types.SectionSkills}, "action": {"add"}, "name": {"Go"}}

	rec := env.post(t, "/save-section", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, decode[types.SaveResult](t, rec).Success)

	form.Set("csrf_token", "forged")
	assert.Equal(t, http.StatusForbidden, env.post(t, "/save-section", form).Code)
}

func TestSaveSection_Rejects(t *testing.T) {
	env := setupTestServer(t)
	otherSection := env.store.add(env.user, types.SectionInterests, map[string]string{"name": "Chess"})
	env.store.add(env.user, types.SectionProfessionalSummary, map[string]string{"professional_summary": "Builder."})

	tests := []struct {
		name   string
		values map[string]string
		want   int
	}{
		{"unknown section", map[string]string{"section_id": "hobbies", "action": "add", "name": "x"}, http.StatusBadRequest},
		{"panel section", map[string]string{"section_id": types.SectionAITools, "action": "add"}, http.StatusBadRequest},
		{"bad action", map[string]string{"section_id": types.SectionSkills, "action": "upsert", "name": "Go"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"section_id": types.SectionSkills, "action": "add", "name": "Go", "rating": "5"}, http.StatusBadRequest},
		{"missing required", map[string]string{"section_id": types.SectionSkills, "action": "add", "level": "Expert"}, http.StatusBadRequest},
		{"update without id", map[string]string{"section_id": types.SectionSkills, "action": "update", "name": "Go"}, http.StatusBadRequest},
		{"update missing entry", map[string]string{"section_id": types.SectionSkills, "action": "update", "entry_id": uuid.NewString(), "name": "Go"}, http.StatusNotFound},
		{"update other section", map[string]string{"section_id": types.SectionSkills, "action": "update", "entry_id": otherSection.String(), "name": "Go"}, http.StatusNotFound},
		{"second singleton", map[string]string{"section_id": types.SectionProfessionalSummary, "action": "create", "professional_summary": "Again."}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(t, "/save-section", saveForm(env, tt.values))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			result := decode[types.SaveResult](t, rec)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestReorderSection(t *testing.T) {
	env := setupTestServer(t)
	a := env.store.add(env.user, types.SectionSkills, map[string]string{"name": "Go"})
	b := env.store.add(env.user, types.SectionSkills, map[string]string{"name": "SQL"})

	rec := env.post(t, "/reorder-section", saveForm(env, map[string]string{
		"section_id": types.SectionSkills, "order": b.String() + "," + a.String(),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := env.store.ListEntries(t.Context(), env.user, types.SectionSkills, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, b, entries[0].ID)

	tests := []struct {
		name  string
		order string
		want  int
	}{
		{"partial", a.String(), http.StatusBadRequest},
		{"duplicate", a.String() + "," + a.String(), http.StatusBadRequest},
		{"foreign entry", a.String() + "," + uuid.NewString(), http.StatusNotFound},
		{"garbage", "1,2", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(t, "/reorder-section", saveForm(env, map[string]string{
				"section_id": types.SectionSkills, "order": tt.order,
			}))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec = env.post(t, "/reorder-section", saveForm(env, map[string]string{
		"section_id": types.SectionProfessionalSummary, "order": a.String(),
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssessSection_Server(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionSkills, map[string]string{"name": "Go", "level": "Expert"})

	rec := env.post(t, "/assess-section", saveForm(env, map[string]string{"section_id": types.SectionSkills}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[types.AssessResponse](t, rec)
	assert.True(t, resp.Success)
	assert.False(t, resp.BrowserExecution)
	require.NotNil(t, resp.Assessment)
	assert.Equal(t, []string{"Clear"}, resp.Assessment.Strengths)

	assert.Equal(t, llm.TierStandard, env.assessor.tier)
	assert.Contains(t, env.assessor.prompt, "Skill: Go")

	status, err := env.tracker.Peek(t.Context(), env.user.String())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
}

func TestAssessSection_EntryScope(t *testing.T) {
	env := setupTestServer(t)
	target := env.store.add(env.user, types.SectionWorkExperience, workExperience())
	env.store.add(env.user, types.SectionWorkExperience, map[string]string{"title": "Intern", "company": "Initech", "start_date": "2019-06"})

	rec := env.post(t, "/assess-section", saveForm(env, map[string]string{
		"section_id": types.SectionWorkExperience, "experience_id": target.String(),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, llm.TierLite, env.assessor.tier)
	assert.Contains(t, env.assessor.prompt, "Acme")
	assert.NotContains(t, env.assessor.prompt, "Initech")
}

func TestAssessSection_BrowserFallback(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionInterests, map[string]string{"name": "Chess"})
	form := saveForm(env, map[string]string{"section_id": types.SectionInterests})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.post(t, "/assess-section", form).Code)
	}
	rec := env.post(t, "/assess-section", form)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[types.AssessResponse](t, rec)
	assert.True(t, resp.Success)
	assert.True(t, resp.BrowserExecution)
	assert.Equal(t, "webllm", resp.ModelType)
	assert.Equal(t, "phi3:mini", resp.Model)
	assert.Contains(t, resp.Prompt, "Chess")
	assert.Nil(t, resp.Assessment)
	assert.Equal(t, 2, env.assessor.calls)
}

func TestAssessSection_NoServerModel(t *testing.T) {
	env := setupTestServer(t, withoutAssessor())
	env.store.add(env.user, types.SectionSkills, map[string]string{"name": "Go"})

	rec := env.post(t, "/assess-section", saveForm(env, map[string]string{"section_id": types.SectionSkills}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[types.AssessResponse](t, rec).BrowserExecution)
}

func TestAssessSection_ModelFailure(t *testing.T) {
	env := setupTestServer(t)
	env.assessor.err = errors.New("upstream unavailable")
	env.store.add(env.user, types.SectionSkills, map[string]string{"name": "Go"})

	rec := env.post(t, "/assess-section", saveForm(env, map[string]string{"section_id": types.SectionSkills}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[types.AssessResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Assessment failed. Please try again.", resp.Error)
}

func TestAssessSection_Rejects(t *testing.T) {
	env := setupTestServer(t)
	env.store.add(env.user, types.SectionJobs, map[string]string{"title": "Engineer", "company": "Acme"})

	tests := []struct {
		name   string
		values map[string]string
		want   int
	}{
		{"unknown section", map[string]string{"section_id": "hobbies"}, http.StatusBadRequest},
		{"not assessable", map[string]string{"section_id": types.SectionJobs}, http.StatusBadRequest},
		{"nothing to assess", map[string]string{"section_id": types.SectionSkills}, http.StatusBadRequest},
		{"bad entry id", map[string]string{"section_id": types.SectionProjects, "project_id": "7"}, http.StatusBadRequest},
		{"missing entry", map[string]string{"section_id": types.SectionProjects, "project_id": uuid.NewString()}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(t, "/assess-section", saveForm(env, tt.values))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.False(t, decode[types.AssessResponse](t, rec).Success)
		})
	}
	assert.Zero(t, env.assessor.calls)
}
