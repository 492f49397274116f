package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
)

// SQLite implements db.CreditStore
type SQLite struct {
	db     *sql.DB
	config config.DatabaseConfig
}

// New creates a new SQLite credit store
func New(cfg config.DatabaseConfig) *SQLite {
	return &SQLite{config: cfg}
}

// Connect opens the database file and applies migrations
func (s *SQLite) Connect(ctx context.Context) error {
	dbPath, err := expandPath(s.config.URI)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open SQLite database at path '%s': %w", dbPath, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping SQLite database at path '%s': %w", dbPath, err)
	}

	if err := db.RunMigrations(conn); err != nil {
		conn.Close()
		return err
	}

	s.db = conn
	return nil
}

func expandPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, uri[1:]), nil
	}
	if !filepath.IsAbs(uri) {
		abs, err := filepath.Abs(uri)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		return abs, nil
	}
	return uri, nil
}

// Disconnect closes the SQLite connection
func (s *SQLite) Disconnect(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SchemaVersion returns the applied migration version
func (s *SQLite) SchemaVersion() (uint, bool, error) {
	if s.db == nil {
		return 0, false, fmt.Errorf("not connected to database")
	}
	return db.MigrationVersion(s.db)
}

// Ping checks the database connection
func (s *SQLite) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("not connected to database")
	}
	return s.db.PingContext(ctx)
}

// EnsureAccount implements db.CreditStore
func (s *SQLite) EnsureAccount(ctx context.Context, userID string, initial float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := balance(ctx, tx, userID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}

	now := time.Now().UTC()
	initial = max(initial, 0)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_credits (user_id, balance, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		userID, initial, now, now); err != nil {
		return 0, fmt.Errorf("failed to create credit account: %w", err)
	}
	if initial > 0 {
		if err := appendLedger(ctx, tx, userID, initial, initial, "initial grant", now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit account: %w", err)
	}
	return initial, nil
}

// Balance implements db.CreditStore
func (s *SQLite) Balance(ctx context.Context, userID string) (float64, error) {
	return balance(ctx, s.db, userID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balance(ctx context.Context, q querier, userID string) (float64, error) {
	var b float64
	err := q.QueryRowContext(ctx, `SELECT balance FROM user_credits WHERE user_id = ?`, userID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, db.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return b, nil
}

func appendLedger(ctx context.Context, tx *sql.Tx, userID string, amount, after float64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (user_id, amount, balance, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, amount, after, reason, at)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Grant implements db.CreditStore
func (s *SQLite) Grant(ctx context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %v", amount)
	}
	return s.apply(ctx, userID, amount, reason)
}

// Debit implements db.CreditStore
func (s *SQLite) Debit(ctx context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return s.Balance(ctx, userID)
	}
	return s.apply(ctx, userID, -amount, reason)
}

func (s *SQLite) apply(ctx context.Context, userID string, delta float64, reason string) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE user_credits SET balance = balance + ?, updated_at = ? WHERE user_id = ? AND balance + ? >= 0`,
		delta, now, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := balance(ctx, tx, userID); err != nil {
			return 0, err
		}
		return 0, db.ErrInsufficientCredits
	}

	newBalance, err := balance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if err := appendLedger(ctx, tx, userID, delta, newBalance, reason, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit balance update: %w", err)
	}
	return newBalance, nil
}

// Ledger implements db.CreditStore, most recent entries first
func (s *SQLite) Ledger(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, balance, reason, created_at FROM credit_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.CreditEntry
	for rows.Next() {
		var e models.CreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Balance, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
