package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
)

// TransactionFilter narrows a transaction listing. Zero values mean "no
// filter"; Page and Limit control pagination.
type TransactionFilter struct {
	Type     models.TransactionType
	Category string
	Desc     string
	Page     int
	Limit    int
}

// CreateTransaction inserts a new transaction owned by userID.
func (db *DB) CreateTransaction(userID string, typ models.TransactionType, amount decimal.Decimal, category, description string, date time.Time) (*models.Transaction, error) {
	now := time.Now().UTC()
	if date.IsZero() {
		date = now
	}

	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO transactions (id, user_id, type, amount, category, description, date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, userID, typ, amount.String(), category, description, date, now, now,
	)
	if err != nil {
		return nil, err
	}

	return db.GetTransaction(id, userID)
}

func scanTransaction(scan func(dest ...any) error) (*models.Transaction, error) {
	var t models.Transaction
	var amount string
	err := scan(&t.ID, &t.UserID, &t.Type, &amount, &t.Category, &t.Description, &t.Date, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionColumns = "id, user_id, type, amount, category, description, date, created_at, updated_at"

// GetTransaction retrieves a transaction by id, scoped to its owner.
// A transaction owned by someone else is reported as not found.
func (db *DB) GetTransaction(id, userID string) (*models.Transaction, error) {
	row := db.conn.QueryRow(
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	return scanTransaction(row.Scan)
}

// ListTransactions retrieves a page of a user's transactions matching the
// filter, newest first, along with the total match count.
func (db *DB) ListTransactions(userID string, f TransactionFilter) ([]models.Transaction, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Desc != "" {
		where = append(where, "description LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Desc)+"%")
	}

	clause := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM transactions WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " + clause +
		" ORDER BY date DESC LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListTransactionsForRange retrieves all of a user's transactions within
// an optional date range and type filter, ordered by date ascending. Used
// by the analytics aggregator.
func (db *DB) ListTransactionsForRange(userID string, from, to *time.Time, typ models.TransactionType) ([]models.Transaction, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if from != nil {
		where = append(where, "date >= ?")
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, "date <= ?")
		args = append(args, *to)
	}
	if typ != "" {
		where = append(where, "type = ?")
		args = append(args, typ)
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY date"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// RecentTransactions retrieves a user's latest transactions by date.
func (db *DB) RecentTransactions(userID string, limit int) ([]models.Transaction, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := db.conn.Query(
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY date DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// UpdateTransaction updates a transaction, scoped to its owner.
func (db *DB) UpdateTransaction(t *models.Transaction) (*models.Transaction, error) {
	res, err := db.conn.Exec(
		"UPDATE transactions SET type = ?, amount = ?, category = ?, description = ?, date = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		t.Type, t.Amount.String(), t.Category, t.Description, t.Date, time.Now().UTC(), t.ID, t.UserID,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetTransaction(t.ID, t.UserID)
}

// DeleteTransaction removes a transaction, scoped to its owner.
func (db *DB) DeleteTransaction(id, userID string) error {
	res, err := db.conn.Exec(
		"DELETE FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
