package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"smartbudget/internal/analytics"
	"smartbudget/internal/core"
	"smartbudget/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Current  int    `json:"current_count,omitempty"`
	Required int    `json:"required_count,omitempty"`
}

// respondError maps domain errors to HTTP statuses. Insufficient data
// and invalid input are client errors; an untrained model is a
// conflict the caller can resolve by training.
func respondError(w http.ResponseWriter, err error) {
	var insufficient *analytics.InsufficientDataError
	if errors.As(err, &insufficient) {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:    insufficient.Error(),
			Current:  insufficient.Current,
			Required: insufficient.Required,
		})
		return
	}

	if errors.Is(err, analytics.ErrModelNotTrained) {
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	var invalid *analytics.ValidationError
	if errors.As(err, &invalid) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	if isDomainValidation(err) {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func isDomainValidation(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrInvalidCategory,
		core.ErrInvalidPaymentType,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// queryFloat reads an optional float query parameter. Missing or
// blank values return the fallback; malformed values return an error.
func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &analytics.ValidationError{Field: name, Reason: "must be a number"}
	}
	return f, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &analytics.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}
