// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookhive/internal/catalog"
	"bookhive/internal/loan"
	"bookhive/internal/reservation"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TitleID   uuid.UUID `json:"title_id"`
		MemberID  uuid.UUID `json:"member_id"`
		IssueDate string    `json:"issue_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		http.Error(w, "invalid issue_date", http.StatusBadRequest)
		return
	}

	issued, err := h.service.IssueCopy(r.Context(), req.TitleID, req.MemberID, issueDate)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(issued)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanID     uuid.UUID `json:"loan_id"`
		ReturnedAt string    `json:"returned_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	returnedAt, err := parseDate(req.ReturnedAt)
	if err != nil {
		http.Error(w, "invalid returned_at", http.StatusBadRequest)
		return
	}

	result, err := h.service.ReturnCopy(r.Context(), req.LoanID, returnedAt)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(result)
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanID uuid.UUID `json:"loan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	renewed, err := h.service.RenewLoan(r.Context(), req.LoanID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(renewed)
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TitleID  uuid.UUID `json:"title_id"`
		MemberID uuid.UUID `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reserved, err := h.service.ReserveTitle(r.Context(), req.TitleID, req.MemberID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reserved)
}

func (h *Handler) HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation ID", http.StatusBadRequest)
		return
	}

	if err := h.service.CancelReservation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleFulfillReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		http.Error(w, "invalid reservation ID", http.StatusBadRequest)
		return
	}

	fulfilled, err := h.service.FulfillReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(fulfilled)
}

func (h *Handler) HandleExpireReservations(w http.ResponseWriter, r *http.Request) {
	expired, err := h.service.ExpireReservations(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]int64{"expired": expired})
}

// parseDate accepts a plain date or RFC 3339 timestamp, defaulting to now.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// writeError maps domain errors to HTTP statuses. Availability races and
// duplicate submissions are normal business outcomes, answered with 409
// and a helpful message rather than a failure page.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, catalog.ErrInsufficientCopies):
		status = http.StatusConflict
		resp.Suggestion = "no copies left; place a reservation instead"
	case errors.Is(err, loan.ErrLoanAlreadyReturned):
		status = http.StatusConflict
		resp.Suggestion = "the loan was already returned; nothing left to do"
	case errors.Is(err, catalog.ErrTitleNotFound),
		errors.Is(err, loan.ErrLoanNotFound),
		errors.Is(err, reservation.ErrReservationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, loan.ErrInvalidLoanInput):
		status = http.StatusBadRequest
	case errors.Is(err, reservation.ErrTitleCurrentlyAvailable),
		errors.Is(err, reservation.ErrDuplicateActiveReservation),
		errors.Is(err, reservation.ErrReservationNotActive),
		errors.Is(err, reservation.ErrReservationLimitReached),
		errors.Is(err, ErrLoanLimitReached),
		errors.Is(err, ErrRenewalsDisabled),
		errors.Is(err, ErrRenewalLimitReached),
		errors.Is(err, ErrLoanOverdue),
		errors.Is(err, ErrReservationsDisabled):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
