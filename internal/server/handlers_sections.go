package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/editor"
	"github.com/jonathan/cv-editor/internal/guidance"
	"github.com/jonathan/cv-editor/internal/metrics"
	"github.com/jonathan/cv-editor/internal/quota"
	"github.com/jonathan/cv-editor/internal/server/middleware"
	"github.com/jonathan/cv-editor/internal/types"
)

const maxFormBytes = 1 << 20

func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	sectionID := r.URL.Query().Get("section_id")
	g, err := guidance.Lookup(sectionID)
	if err != nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"success": true, "guidance": g})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.jsonResponse(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.Session{UserID: userID, CSRFToken: s.csrf.Token(userID)})
}

func (s *Server) handleSectionForm(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.htmlResponse(w, http.StatusUnauthorized, s.errorFragment("Please sign in again."))
		return
	}
	q := r.URL.Query()
	route := editor.Route{
		SectionID: q.Get("section_id"),
		Edit:      q.Get("edit"),
		View:      q.Get("view"),
		Add:       q.Get("add"),
		Create:    q.Get("create"),
		Job:       q.Get("job"),
		VariantID: q.Get("variant_id"),
	}

	html, err := s.renderSection(r.Context(), userID, route)
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("[sections] failed to render %s: %v", route.SectionID, err)
		}
		s.htmlResponse(w, status, s.errorFragment(publicMessage(err)))
		return
	}
	s.htmlResponse(w, http.StatusOK, html)
}

func (s *Server) errorFragment(message string) string {
	html, err := renderFragment("error", message)
	if err != nil {
		log.Printf("[sections] %v", err)
	}
	return html
}

// renderSection builds the fragment for route. Edit takes precedence over
// add and create, which take precedence over a job detail view.
func (s *Server) renderSection(ctx context.Context, userID uuid.UUID, route editor.Route) (string, error) {
	def, err := lookupSection(route.SectionID)
	if err != nil {
		return "", err
	}
	variantID, err := optionalUUID("variant_id", route.VariantID)
	if err != nil {
		return "", err
	}

	view := sectionView{
		SectionID: def.ID,
		Kind:      def.Kind,
		Title:     guidance.Title(def.ID),
		View:      route.View,
		Reorder:   def.Reorder,
	}

	if def.Panel {
		view.Panel = newPanelView(s.peekQuota(ctx, userID))
		return renderFragment("section", view)
	}

	entries, err := s.entries.ListEntries(ctx, userID, def.ID, variantID)
	if err != nil {
		return "", err
	}
	csrf := s.csrf.Token(userID)

	switch {
	case route.Edit != "":
		e, err := findEntry(entries, "edit", route.Edit)
		if err != nil {
			return "", err
		}
		view.Form = newFormView(def, route, csrf, string(types.SaveUpdate), e)
	case route.Add != "" || route.Create != "":
		if def.Singleton && len(entries) > 0 {
			view.Notice = "This section already has an entry. You can edit it below."
			view.Form = newFormView(def, route, csrf, string(types.SaveUpdate), &entries[0])
			break
		}
		action := types.SaveAdd
		if route.Create != "" {
			action = types.SaveCreate
		}
		view.Form = newFormView(def, route, csrf, string(action), nil)
	case route.Job != "" && def.ID == types.SectionJobs:
		e, err := findEntry(entries, "job", route.Job)
		if err != nil {
			return "", err
		}
		job := newEntryView(def, route, e)
		view.Job = &job
	case def.Singleton && len(entries) == 0:
		view.Form = newFormView(def, route, csrf, string(types.SaveCreate), nil)
	case def.Singleton:
		view.Form = newFormView(def, route, csrf, string(types.SaveUpdate), &entries[0])
	}

	view.ShowList = view.Form == nil && view.Job == nil
	for i := range entries {
		view.Entries = append(view.Entries, newEntryView(def, route, &entries[i]))
	}
	if !def.Singleton {
		add := route.WithoutModes()
		add.Add = "1"
		view.AddHref = href(add)
	}
	return renderFragment("section", view)
}

// peekQuota returns nil when server assessments are unavailable.
func (s *Server) peekQuota(ctx context.Context, userID uuid.UUID) *quota.Status {
	if s.quota == nil || s.assessor == nil {
		return nil
	}
	status, err := s.quota.Peek(ctx, userID.String())
	if err != nil {
		log.Printf("[quota] peek failed for %s: %v", userID, err)
		return nil
	}
	return &status
}

func findEntry(entries []db.Entry, param, raw string) (*db.Entry, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ErrValidation{Field: param, Message: "must be an entry id"}
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, &ErrEntryNotFound{EntryID: id}
}

func optionalUUID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ErrValidation{Field: field, Message: "must be a UUID"}
	}
	return &id, nil
}

// csrfToken reads the token from the form or the header.
func csrfToken(r *http.Request) string {
	if t := r.PostForm.Get(csrfField); t != "" {
		return t
	}
	return r.Header.Get(csrfHeader)
}

// parseProtectedForm parses the body and checks the CSRF token.
func (s *Server) parseProtectedForm(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		return uuid.Nil, &ErrInvalidCSRF{}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return uuid.Nil, &ErrValidation{Message: "invalid form body"}
	}
	if !s.csrf.Valid(userID, csrfToken(r)) {
		return uuid.Nil, &ErrInvalidCSRF{}
	}
	return userID, nil
}

func (s *Server) saveError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[sections] save failed: %v", err)
	}
	s.jsonResponse(w, status, types.SaveResult{Success: false, Error: publicMessage(err)})
}

func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	userID, err := s.parseProtectedForm(w, r)
	if err != nil {
		s.saveError(w, err)
		return
	}

	req := types.SaveSectionRequestFromForm(r.PostForm)
	def, err := lookupSection(req.SectionID)
	if err != nil {
		s.saveError(w, err)
		return
	}
	if def.Panel {
		s.saveError(w, &ErrValidation{Field: "section_id", Message: "section has no entries"})
		return
	}
	if req.Action != types.SaveDelete {
		if err := def.cleanFields(req.Fields); err != nil {
			s.saveError(w, err)
			return
		}
		if f, missing := def.missingRequired(req.Fields); missing {
			s.saveError(w, &ErrValidation{Field: f.Name, Message: f.Label + " is required"})
			return
		}
	}
	if err := req.Validate(); err != nil {
		s.saveError(w, &ErrValidation{Message: err.Error()})
		return
	}

	result, err := s.applySave(r.Context(), userID, def, req)
	if err != nil {
		s.saveError(w, err)
		return
	}
	metrics.SectionSaves.WithLabelValues(def.ID, string(req.Action)).Inc()
	log.Printf("[sections] %s %s for user %s", req.Action, def.ID, userID)
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) applySave(ctx context.Context, userID uuid.UUID, def *sectionDef, req *types.SaveSectionRequest) (*types.SaveResult, error) {
	variantID, err := optionalUUID("variant_id", req.VariantID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case types.SaveCreate, types.SaveAdd:
		if def.Singleton {
			existing, err := s.entries.ListEntries(ctx, userID, def.ID, variantID)
			if err != nil {
				return nil, err
			}
			if len(existing) > 0 {
				return nil, &ErrValidation{Field: "section_id", Message: "section already has an entry"}
			}
		}
		e := &db.Entry{UserID: userID, SectionID: def.ID, VariantID: variantID, Content: req.Fields}
		if err := s.entries.CreateEntry(ctx, e); err != nil {
			return nil, err
		}
		return &types.SaveResult{Success: true, Message: "Saved.", EntryID: e.ID.String()}, nil

	case types.SaveUpdate:
		existing, err := s.sectionEntry(ctx, userID, def, req.EntryID)
		if err != nil {
			return nil, err
		}
		existing.Content = req.Fields
		ok, err := s.entries.UpdateEntry(ctx, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ErrEntryNotFound{EntryID: existing.ID}
		}
		return &types.SaveResult{Success: true, Message: "Changes saved.", EntryID: existing.ID.String()}, nil

	case types.SaveDelete:
		existing, err := s.sectionEntry(ctx, userID, def, req.EntryID)
		if err != nil {
			return nil, err
		}
		ok, err := s.entries.DeleteEntry(ctx, userID, existing.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ErrEntryNotFound{EntryID: existing.ID}
		}
		return &types.SaveResult{Success: true, Message: "Deleted."}, nil
	}
	return nil, &ErrValidation{Field: "action", Message: "unsupported action"}
}

// sectionEntry loads an entry owned by userID that belongs to def.
func (s *Server) sectionEntry(ctx context.Context, userID uuid.UUID, def *sectionDef, rawID string) (*db.Entry, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, &ErrValidation{Field: "entry_id", Message: "must be a UUID"}
	}
	e, err := s.entries.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.SectionID != def.ID {
		return nil, &ErrEntryNotFound{EntryID: id}
	}
	return e, nil
}

func (s *Server) handleReorderSection(w http.ResponseWriter, r *http.Request) {
	userID, err := s.parseProtectedForm(w, r)
	if err != nil {
		s.saveError(w, err)
		return
	}

	def, err := lookupSection(strings.TrimSpace(r.PostForm.Get("section_id")))
	if err != nil {
		s.saveError(w, err)
		return
	}
	if !def.Reorder {
		s.saveError(w, &ErrValidation{Field: "section_id", Message: "section cannot be reordered"})
		return
	}
	variantID, err := optionalUUID("variant_id", r.PostForm.Get("variant_id"))
	if err != nil {
		s.saveError(w, err)
		return
	}
	ids, err := parseOrder(r.PostForm["order"])
	if err != nil {
		s.saveError(w, err)
		return
	}

	entries, err := s.entries.ListEntries(r.Context(), userID, def.ID, variantID)
	if err != nil {
		s.saveError(w, err)
		return
	}
	if err := sameEntries(entries, ids); err != nil {
		s.saveError(w, err)
		return
	}
	if err := s.entries.ReorderEntries(r.Context(), userID, ids); err != nil {
		s.saveError(w, err)
		return
	}
	metrics.SectionSaves.WithLabelValues(def.ID, "reorder").Inc()
	s.jsonResponse(w, http.StatusOK, types.SaveResult{Success: true, Message: "Order saved."})
}

// parseOrder accepts repeated order values or one comma-separated value.
func parseOrder(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, &ErrValidation{Field: "order", Message: "must list entry ids"}
			}
			if seen[id] {
				return nil, &ErrValidation{Field: "order", Message: "lists an entry twice"}
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, &ErrValidation{Field: "order", Message: "is required"}
	}
	return ids, nil
}

// sameEntries checks that ids is a permutation of the section's entries.
func sameEntries(entries []db.Entry, ids []uuid.UUID) error {
	if len(entries) != len(ids) {
		return &ErrValidation{Field: "order", Message: "must list every entry of the section"}
	}
	owned := make(map[uuid.UUID]bool, len(entries))
	for _, e := range entries {
		owned[e.ID] = true
	}
	for _, id := range ids {
		if !owned[id] {
			return &ErrEntryNotFound{EntryID: id}
		}
	}
	return nil
}
