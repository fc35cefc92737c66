package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/service"
	"github.com/finloop/loandesk/internal/store"
)

// ProfileHandler exposes the session profile the dialogue collaborator
// maintains, plus the two external lifecycle events it may fire:
// collection complete (unknown to pending) and mismatch resolved
// (mismatch back to pending).
type ProfileHandler struct {
	profiles   domain.ProfileStore
	dispatcher *service.Dispatcher
}

func NewProfileHandler(profiles domain.ProfileStore, dispatcher *service.Dispatcher) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, dispatcher: dispatcher}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	applicantID := chi.URLParam(r, "id")

	p, err := h.profiles.Get(r.Context(), applicantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "applicant not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

type upsertProfileRequest struct {
	Name     string `json:"name,omitempty"`
	National string `json:"national_id,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Job      string `json:"job,omitempty"`
	Employer string `json:"employer,omitempty"`
	Income   int64  `json:"income,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

// Upsert writes the collected profile fields. The verification status is
// not writable here; it moves only through the lifecycle endpoints and
// the pipeline itself.
func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	applicantID := chi.URLParam(r, "id")

	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.profiles.Get(r.Context(), applicantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		p = &domain.ApplicantProfile{
			ApplicantID: applicantID,
			Status:      domain.StatusUnknown,
		}
	}

	p.Name = req.Name
	p.NationalID = req.National
	p.Phone = req.Phone
	p.Job = req.Job
	p.Employer = req.Employer
	p.Income = req.Income
	p.Purpose = req.Purpose
	p.Amount = req.Amount

	if err := h.profiles.Put(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CollectionComplete is the dialogue-collection-complete event.
func (h *ProfileHandler) CollectionComplete(w http.ResponseWriter, r *http.Request) {
	applicantID := chi.URLParam(r, "id")

	p, err := h.dispatcher.CompleteCollection(r.Context(), applicantID)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// MismatchResolved re-enters verification after a clarified discrepancy.
func (h *ProfileHandler) MismatchResolved(w http.ResponseWriter, r *http.Request) {
	applicantID := chi.URLParam(r, "id")

	p, err := h.dispatcher.ResolveMismatch(r.Context(), applicantID)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "applicant not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to update status")
	}
}
