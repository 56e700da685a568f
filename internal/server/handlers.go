package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/assign"
	"github.com/meltforce/mesoplan/internal/expand"
	"github.com/meltforce/mesoplan/internal/export"
	"github.com/meltforce/mesoplan/internal/lifecycle"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	m, err := s.expandRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.CreateMesocycle(r.Context(), m); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("template created", "mesocycle", m.ID, "name", m.Name, "sets", m.SetCount())
	writeJSON(w, http.StatusCreated, m)
}

// handlePreviewTemplate expands without storing anything.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	m, err := s.expandRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// expandRequest decodes a template body (JSON, or YAML when the content type
// says so) and expands it.
func (s *Server) expandRequest(r *http.Request) (*models.Mesocycle, error) {
	var t *expand.Template
	if isYAML(r.Header.Get("Content-Type")) {
		decoded, err := expand.DecodeYAML(r.Body)
		if err != nil {
			if _, ok := planerr.As(err); ok {
				return nil, err
			}
			return nil, planerr.Validation("body", "invalid YAML: %v", err)
		}
		t = decoded
	} else {
		t = &expand.Template{}
		if err := decodeJSON(r, t); err != nil {
			return nil, err
		}
	}
	return expand.Expand(*t, s.expandOptions())
}

func isYAML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}
	return false
}

func (s *Server) handleListMesocycles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeArchived, err := parseBool(q.Get("include_archived"), "include_archived")
	if err != nil {
		s.writeError(w, err)
		return
	}
	templatesOnly, err := parseBool(q.Get("templates"), "templates")
	if err != nil {
		s.writeError(w, err)
		return
	}
	f := models.MesocycleFilter{
		Statuses:      lifecycle.CoachStatuses(includeArchived),
		TemplatesOnly: templatesOnly,
	}
	if raw := q.Get("coach_id"); raw != "" {
		id, err := parseID(raw, "coach_id")
		if err != nil {
			s.writeError(w, err)
			return
		}
		f.CoachID = &id
	}

	list, err := s.store.ListMesocycles(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleStudentMesocycles lists what the student sees: only plans that are
// published, active or completed.
func (s *Server) handleStudentMesocycles(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "student_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetStudent(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	list, err := s.store.ListMesocycles(r.Context(), models.MesocycleFilter{
		StudentID: &id,
		Statuses:  lifecycle.StudentStatuses(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "student_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.store.GetStudent(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type studentRequest struct {
	CoachID uuid.UUID `json:"coach_id"`
	Name    string    `json:"name"`
}

func (s *Server) handleUpsertStudent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "student_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		s.writeError(w, planerr.Validation("name", "must not be blank"))
		return
	case req.CoachID == uuid.Nil:
		s.writeError(w, planerr.Validation("coach_id", "required"))
		return
	}
	st := &models.Student{ID: id, CoachID: req.CoachID, Name: name}
	if err := s.store.UpsertStudent(r.Context(), st); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetMesocycle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "mesocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.store.GetMesocycle(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	Confirm      bool   `json:"confirm"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "mesocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	target, err := models.ParseStatus(req.TargetStatus)
	if err != nil {
		s.writeError(w, planerr.Validation("target_status", "unknown status %q", req.TargetStatus))
		return
	}

	m, err := s.lifecycle.Transition(r.Context(), lifecycle.TransitionRequest{
		MesocycleID: id,
		Target:      target,
		Confirm:     req.Confirm,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMesocycle archives; mesocycles are never removed.
func (s *Server) handleDeleteMesocycle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "mesocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.lifecycle.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSetAmrap(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "mesocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	setID, err := parseID(chi.URLParam(r, "setId"), "set_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var edit lifecycle.AmrapEdit
	if err := decodeJSON(r, &edit); err != nil {
		s.writeError(w, err)
		return
	}
	edit.SetID = setID

	m, err := s.lifecycle.SetAmrap(r.Context(), id, edit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.FindSet(setID))
}

func (s *Server) handleExportMesocycle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "mesocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.store.GetMesocycle(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, err := export.Workbook(m)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("mesocycle-%s.xlsx", m.ID),
	}))
	if err := f.Write(w); err != nil {
		s.log.Error("writing workbook", "mesocycle", id, "error", err)
	}
}

type assignmentRequest struct {
	TemplateID         uuid.UUID  `json:"template_id"`
	StudentID          uuid.UUID  `json:"student_id"`
	Mode               string     `json:"mode"`
	MacrocycleID       *uuid.UUID `json:"macrocycle_id"`
	StartDate          string     `json:"start_date"`
	KeepSuggestedLoads bool       `json:"keep_suggested_loads"`
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var body assignmentRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	mode, err := assign.ParseMode(body.Mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := assign.Request{
		TemplateID:         body.TemplateID,
		StudentID:          body.StudentID,
		Mode:               mode,
		MacrocycleID:       body.MacrocycleID,
		KeepSuggestedLoads: body.KeepSuggestedLoads,
	}
	if body.StartDate != "" {
		start, err := parseDate(body.StartDate)
		if err != nil {
			s.writeError(w, planerr.Validation("start_date", "expected YYYY-MM-DD or RFC 3339, got %q", body.StartDate))
			return
		}
		req.StartDate = &start
	}

	res, err := s.assign.Assign(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetMacrocycle(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "macrocycle_id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.store.GetMacrocycle(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleStatusTransitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lifecycle.Table())
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// writeError maps engine error kinds to HTTP statuses. Anything untyped is a
// 500 and gets logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	pe, ok := planerr.As(err)
	if !ok {
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch pe.Kind {
	case planerr.KindValidation:
		status = http.StatusBadRequest
	case planerr.KindForbidden:
		status = http.StatusForbidden
	case planerr.KindNotFound:
		status = http.StatusNotFound
	case planerr.KindInvalidTransition, planerr.KindConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{
		Error:   pe.Error(),
		Kind:    string(pe.Kind),
		Message: pe.Msg,
		Field:   pe.Field,
		From:    pe.From,
		To:      pe.To,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON rejects unknown fields so typos in plan documents surface as
// validation errors instead of silently dropped values.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var pe *planerr.Error
		if errors.As(err, &pe) {
			return pe
		}
		return planerr.Validation("body", "invalid JSON: %v", err)
	}
	return nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, planerr.Validation(field, "invalid id %q", raw)
	}
	return id, nil
}

func parseBool(raw, field string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, planerr.Validation(field, "invalid boolean %q", raw)
	}
	return b, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp and returns
// the UTC midnight of that date.
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return models.DateOf(t), nil
}
