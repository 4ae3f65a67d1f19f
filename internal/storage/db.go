package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"finance-tracker/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail is returned when creating or updating a user with an
// email that is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_type ON transactions(user_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_category ON transactions(user_id, category)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user with the given email, password hash and role.
func (db *DB) CreateUser(email, passwordHash string, role models.Role) (*models.User, error) {
	if _, err := db.GetUserByEmail(email); err == nil {
		return nil, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO users (id, email, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, email, passwordHash, role, now, now,
	)
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(id)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE id = ?",
		id,
	))
}

// GetUserByEmail retrieves a user by email. The lookup is case-sensitive,
// matching how emails are stored.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE email = ?",
		email,
	))
}

// ListUsers retrieves all users ordered by creation time.
func (db *DB) ListUsers() ([]models.User, error) {
	rows, err := db.conn.Query(
		"SELECT id, email, password_hash, role, created_at, updated_at FROM users ORDER BY created_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// UpdateUserEmail changes a user's email after checking it is not taken by
// another account.
func (db *DB) UpdateUserEmail(id, email string) (*models.User, error) {
	if existing, err := db.GetUserByEmail(email); err == nil && existing.ID != id {
		return nil, ErrDuplicateEmail
	}

	res, err := db.conn.Exec(
		"UPDATE users SET email = ?, updated_at = ? WHERE id = ?",
		email, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetUserByID(id)
}

// UpdateUserPassword replaces a user's password hash.
func (db *DB) UpdateUserPassword(id, passwordHash string) error {
	res, err := db.conn.Exec(
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserRole changes a user's role.
func (db *DB) UpdateUserRole(id string, role models.Role) (*models.User, error) {
	res, err := db.conn.Exec(
		"UPDATE users SET role = ?, updated_at = ? WHERE id = ?",
		role, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetUserByID(id)
}

// DeleteUser removes a user and all of their transactions in one
// transaction.
func (db *DB) DeleteUser(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM transactions WHERE user_id = ?", id); err != nil {
		return err
	}
	res, err := tx.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
