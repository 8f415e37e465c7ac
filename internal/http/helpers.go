package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, response{Success: true, Message: message, Data: data})
}

// writeError maps the engine's error taxonomy onto status codes. The
// two not-found kinds share their message shape with cross-owner
// access, so responses never confirm existence to a non-owner.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var message string
	switch {
	case errors.Is(err, core.ErrAccountNotFound):
		status, message = http.StatusNotFound, "Account not found"
	case errors.Is(err, core.ErrTransactionNotFound):
		status, message = http.StatusNotFound, "Transaction not found"
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrConflict):
		status, message = http.StatusConflict, "Concurrent update conflict, please retry"
	case errors.Is(err, core.ErrStoreUnavailable):
		status, message = http.StatusServiceUnavailable, "Ledger store unavailable"
	default:
		status, message = http.StatusInternalServerError, "Internal server error"
		slog.ErrorContext(r.Context(), "Unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}
	writeJSON(w, status, response{Success: false, Message: message})
}

func buildPagination(p ledger.Page, total int64) pagination {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return pagination{
		CurrentPage:  p.Number,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: p.Limit,
		HasNextPage:  p.Number < totalPages,
		HasPrevPage:  p.Number > 1,
	}
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseFilter(q url.Values) (ledger.Filter, error) {
	var f ledger.Filter

	if v := q.Get("type"); v != "" {
		kind, err := core.ParseKind(v)
		if err != nil {
			return ledger.Filter{}, err
		}
		f.Kind = kind
	}
	f.Category = q.Get("category")

	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return ledger.Filter{}, fmt.Errorf("invalid startDate %q", v)
		}
		f.Start = t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return ledger.Filter{}, fmt.Errorf("invalid endDate %q", v)
		}
		f.End = t
	}
	return f, nil
}

func parsePage(q url.Values) ledger.Page {
	p := ledger.Page{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = n
	}
	return p.Normalize()
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, response{Success: false, Message: message})
}
