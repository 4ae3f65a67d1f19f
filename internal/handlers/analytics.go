package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"finance-tracker/internal/analytics"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// targetUserID resolves which account an analytics request reads. By
// default it is the caller; admins may target another account with
// ?user=<id>.
func (h *Handlers) targetUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := identityFromRequest(r)
	target := r.URL.Query().Get("user")
	if target == "" || target == identity.ID {
		return identity.ID, true
	}
	if identity.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "Access denied. Admin only.")
		return "", false
	}
	if _, err := h.db.GetUserByID(target); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
		} else {
			h.internalError(w, r, "analytics target", err)
		}
		return "", false
	}
	return target, true
}

func dateRangeParams(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("startDate"); v != "" {
		t, perr := parseDate(v)
		if perr != nil {
			return nil, nil, perr
		}
		from = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, perr := parseDate(v)
		if perr != nil {
			return nil, nil, perr
		}
		to = &t
	}
	return from, to, nil
}

// Overview serves the dashboard aggregate: lifetime totals, the category
// breakdown over the closed set, and the trailing six months.
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUserID(w, r)
	if !ok {
		return
	}

	overview, err := h.agg.Overview(userID)
	if err != nil {
		h.internalError(w, r, "analytics overview", err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Summary serves income/expense totals, optionally bounded by
// startDate/endDate.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUserID(w, r)
	if !ok {
		return
	}

	from, to, err := dateRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Dates must be RFC 3339 or YYYY-MM-DD")
		return
	}

	summary, err := h.agg.Summary(userID, from, to)
	if err != nil {
		h.internalError(w, r, "analytics summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Categories serves per-(category, type) totals and counts, sorted by
// total descending.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUserID(w, r)
	if !ok {
		return
	}

	from, to, err := dateRangeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Dates must be RFC 3339 or YYYY-MM-DD")
		return
	}
	typ := models.TransactionType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeError(w, http.StatusBadRequest, "Type must be income or expense")
		return
	}

	stats, err := h.agg.Categories(userID, from, to, typ)
	if err != nil {
		h.internalError(w, r, "analytics categories", err)
		return
	}
	if stats == nil {
		stats = []analytics.CategoryStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// Trends serves per-month income/expense sums over the trailing months
// (default six), in chronological order.
func (h *Handlers) Trends(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUserID(w, r)
	if !ok {
		return
	}

	months := 6
	if v, err := strconv.Atoi(r.URL.Query().Get("months")); err == nil && v > 0 {
		months = v
	}

	points, err := h.agg.Trends(userID, months)
	if err != nil {
		h.internalError(w, r, "analytics trends", err)
		return
	}
	if points == nil {
		points = []analytics.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// Recent serves the user's latest transactions, uncached.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUserID(w, r)
	if !ok {
		return
	}

	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	recent, err := h.agg.Recent(userID, limit)
	if err != nil {
		h.internalError(w, r, "analytics recent", err)
		return
	}
	if recent == nil {
		recent = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, recent)
}
