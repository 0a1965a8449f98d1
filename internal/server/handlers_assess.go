package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/guidance"
	"github.com/jonathan/cv-editor/internal/llm"
	"github.com/jonathan/cv-editor/internal/metrics"
	"github.com/jonathan/cv-editor/internal/prompts"
	"github.com/jonathan/cv-editor/internal/quota"
	"github.com/jonathan/cv-editor/internal/types"
	"golang.org/x/sync/errgroup"
)

func (s *Server) assessError(w http.ResponseWriter, sectionID string, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[assess] %s failed: %v", sectionID, err)
	}
	s.jsonResponse(w, status, types.AssessResponse{Success: false, Error: publicMessage(err)})
}

func (s *Server) handleAssessSection(w http.ResponseWriter, r *http.Request) {
	userID, err := s.parseProtectedForm(w, r)
	if err != nil {
		s.assessError(w, "", err)
		return
	}

	def, err := lookupSection(strings.TrimSpace(r.PostForm.Get("section_id")))
	if err != nil {
		s.assessError(w, "", err)
		return
	}
	if !def.Assessable {
		s.assessError(w, def.ID, &ErrValidation{Field: "section_id", Message: "section cannot be assessed"})
		return
	}
	var entryID *uuid.UUID
	if field := types.EntryField(def.ID); field != "" {
		if entryID, err = optionalUUID(field, r.PostForm.Get(field)); err != nil {
			s.assessError(w, def.ID, err)
			return
		}
	}
	variantID, err := optionalUUID("variant_id", r.PostForm.Get("variant_id"))
	if err != nil {
		s.assessError(w, def.ID, err)
		return
	}

	var (
		entries []db.Entry
		status  *quota.Status
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = s.assessedEntries(gctx, userID, def, entryID, variantID)
		return err
	})
	g.Go(func() error {
		status = s.peekQuota(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.assessError(w, def.ID, err)
		return
	}

	content := def.contentText(entries)
	if content == "" {
		s.assessError(w, def.ID, &ErrValidation{Field: "section_id", Message: "there is nothing to assess yet"})
		return
	}
	prompt, err := prompts.Assessment(def.ID, guidance.Title(def.ID), content)
	if err != nil {
		s.assessError(w, def.ID, err)
		return
	}

	if s.serverAssessmentAllowed(r.Context(), userID, status) {
		tier := llm.TierStandard
		if entryID != nil {
			tier = llm.TierLite
		}
		result, err := s.assessor.Assess(r.Context(), prompt, tier)
		if err != nil {
			metrics.Assessments.WithLabelValues(def.ID, metrics.OutcomeFailed).Inc()
			log.Printf("[assess] %s failed for user %s: %v", def.ID, userID, err)
			s.jsonResponse(w, http.StatusBadGateway, types.AssessResponse{Success: false, Error: "Assessment failed. Please try again."})
			return
		}
		metrics.Assessments.WithLabelValues(def.ID, metrics.OutcomeServer).Inc()
		s.jsonResponse(w, http.StatusOK, types.AssessResponse{Success: true, Assessment: result})
		return
	}

	metrics.Assessments.WithLabelValues(def.ID, metrics.OutcomeBrowser).Inc()
	s.jsonResponse(w, http.StatusOK, types.AssessResponse{
		Success:          true,
		BrowserExecution: true,
		ModelType:        s.opts.BrowserModelType,
		Model:            s.opts.BrowserModel,
		Prompt:           prompt,
	})
}

// assessedEntries loads one entry when entryID is set, otherwise the whole section.
func (s *Server) assessedEntries(ctx context.Context, userID uuid.UUID, def *sectionDef, entryID, variantID *uuid.UUID) ([]db.Entry, error) {
	if entryID == nil {
		return s.entries.ListEntries(ctx, userID, def.ID, variantID)
	}
	e, err := s.sectionEntry(ctx, userID, def, entryID.String())
	if err != nil {
		return nil, err
	}
	return []db.Entry{*e}, nil
}

// serverAssessmentAllowed consumes one unit of quota when the server can
// run the assessment. A nil status means the quota could not be read.
func (s *Server) serverAssessmentAllowed(ctx context.Context, userID uuid.UUID, status *quota.Status) bool {
	if s.assessor == nil || s.quota == nil || status == nil || status.Limit <= 0 {
		return false
	}
	if !status.Allowed {
		metrics.QuotaExhausted.Inc()
		return false
	}
	consumed, err := s.quota.Consume(ctx, userID.String())
	if err != nil {
		log.Printf("[quota] consume failed for %s: %v", userID, err)
		return false
	}
	if !consumed.Allowed {
		metrics.QuotaExhausted.Inc()
		return false
	}
	return true
}
