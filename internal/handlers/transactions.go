package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

type transactionRequest struct {
	Type        models.TransactionType `json:"type"`
	Amount      *decimal.Decimal       `json:"amount"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
}

// validate checks the request fields, returning a parsed date and an
// error message suitable for a 400 response.
func (req *transactionRequest) validate() (time.Time, string) {
	if req.Type == "" || req.Amount == nil || req.Category == "" {
		return time.Time{}, "Type, amount, and category required"
	}
	if !req.Type.Valid() {
		return time.Time{}, "Type must be income or expense"
	}
	if req.Amount.IsNegative() {
		return time.Time{}, "Amount must not be negative"
	}
	if !models.ValidCategory(req.Category) {
		return time.Time{}, "Category must be one of: " + strings.Join(models.Categories, ", ")
	}

	var date time.Time
	if req.Date != "" {
		var err error
		date, err = parseDate(req.Date)
		if err != nil {
			return time.Time{}, "Date must be RFC 3339 or YYYY-MM-DD"
		}
	}
	return date, ""
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

type paginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type transactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   paginationResponse   `json:"pagination"`
}

// ListTransactions returns a page of the caller's transactions, newest
// first, with optional type/category/description filters.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	q := r.URL.Query()

	filter := storage.TransactionFilter{
		Type:     models.TransactionType(q.Get("type")),
		Category: q.Get("category"),
		Desc:     q.Get("desc"),
		Page:     1,
		Limit:    10,
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		filter.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filter.Limit = v
	}

	transactions, total, err := h.db.ListTransactions(identity.ID, filter)
	if err != nil {
		h.internalError(w, r, "list transactions", err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	writeJSON(w, http.StatusOK, transactionListResponse{
		Transactions: transactions,
		Pagination: paginationResponse{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: (total + filter.Limit - 1) / filter.Limit,
		},
	})
}

// GetTransaction returns a single transaction. Unowned records are
// reported as not found.
func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	tx, err := h.db.GetTransaction(mux.Vars(r)["id"], identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// CreateTransaction records a new transaction for the caller and
// invalidates their cached aggregates.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	tx, err := h.db.CreateTransaction(identity.ID, req.Type, *req.Amount, req.Category, req.Description, date)
	if err != nil {
		h.internalError(w, r, "create transaction", err)
		return
	}

	h.agg.Invalidate(identity.ID)
	writeJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction replaces a transaction's fields, scoped to the owner,
// and invalidates their cached aggregates.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)
	id := mux.Vars(r)["id"]

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.db.GetTransaction(id, identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "update transaction", err)
		return
	}

	existing.Type = req.Type
	existing.Amount = *req.Amount
	existing.Category = req.Category
	existing.Description = req.Description
	if !date.IsZero() {
		existing.Date = date
	}

	updated, err := h.db.UpdateTransaction(existing)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "update transaction", err)
		return
	}

	h.agg.Invalidate(identity.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTransaction removes a transaction, scoped to the owner, and
// invalidates their cached aggregates.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r)

	err := h.db.DeleteTransaction(mux.Vars(r)["id"], identity.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "delete transaction", err)
		return
	}

	h.agg.Invalidate(identity.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}
