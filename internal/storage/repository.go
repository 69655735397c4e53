package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartbudget/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no expense matches the given id.
var ErrNotFound = errors.New("expense not found")

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense validates and stores a new expense. A fresh id is
// assigned when the caller did not supply one.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, date, description, amount_cents, category, payment_type, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Date.Format(dateLayout),
		e.Description,
		e.Amount.Cents,
		string(e.Category),
		string(e.PaymentType),
		strings.Join(e.Tags, ","),
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	return e, nil
}

// ListFilter narrows ListExpenses. Zero values mean no constraint.
type ListFilter struct {
	Category core.Category
	From     time.Time
	To       time.Time
	Limit    int
}

// ListExpenses returns non-deleted expenses in ascending date order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ListFilter) ([]core.Expense, error) {
	query := `
		SELECT id, date, description, amount_cents, category, payment_type, tags
		FROM expenses
		WHERE deleted_at IS NULL`
	var args []any

	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, string(f.Category))
	}
	if !f.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, f.To.Format(dateLayout))
	}
	query += " ORDER BY date ASC, created_at ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// GetExpense retrieves a single expense by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, date, description, amount_cents, category, payment_type, tags
		FROM expenses
		WHERE id = ? AND deleted_at IS NULL`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// DeleteExpense soft deletes an expense so analytics history stays
// reproducible from the database file.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// CountExpenses returns the number of non-deleted expenses.
func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return count, nil
}

// CategoryTotal pairs a category with its summed spending.
type CategoryTotal struct {
	Category core.Category
	Total    core.Money
}

// Statistics summarizes the stored history.
type Statistics struct {
	Count      int
	Total      core.Money
	ByCategory []CategoryTotal
}

// GetStatistics aggregates counts and totals over non-deleted expenses.
func (r *SQLiteRepository) GetStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM expenses WHERE deleted_at IS NULL`).Scan(&stats.Count, &stats.Total.Cents)
	if err != nil {
		return stats, fmt.Errorf("get totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents)
		FROM expenses WHERE deleted_at IS NULL
		GROUP BY category
		ORDER BY SUM(amount_cents) DESC`)
	if err != nil {
		return stats, fmt.Errorf("get category sums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct CategoryTotal
		var category string
		if err := rows.Scan(&category, &ct.Total.Cents); err != nil {
			return stats, fmt.Errorf("scan category sum: %w", err)
		}
		ct.Category = core.Category(category)
		stats.ByCategory = append(stats.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("get category sums: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
		cat  string
		pay  string
		tags string
	)
	if err := row.Scan(&e.ID, &date, &e.Description, &e.Amount.Cents, &cat, &pay, &tags); err != nil {
		return core.Expense{}, err
	}

	parsed, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense date %q: %w", date, err)
	}
	e.Date = parsed
	e.Category = core.Category(cat)
	e.PaymentType = core.PaymentType(pay)
	if tags != "" {
		e.Tags = strings.Split(tags, ",")
	}
	return e, nil
}
