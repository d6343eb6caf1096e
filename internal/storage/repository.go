package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const expenseColumns = "id, user_id, expense_date, amount_cents, category, description, created_at, updated_at"

// Repository is the database/sql implementation of store.Store.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	logger  *log.Logger
}

var _ store.Store = (*Repository)(nil)

type Option func(*Repository)

// WithClock overrides the source of CreatedAt/UpdatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l.WithComponent(log.ComponentStorage) }
}

// NewSQLiteRepository opens (creating if needed) the SQLite file at dbPath and
// migrates it. ":memory:" yields a private in-memory database.
func NewSQLiteRepository(dbPath string, opts ...Option) (*Repository, error) {
	dsn := dbPath
	if dbPath == ":memory:" {
		// A named shared-cache database lets the migration connection see the same data.
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, dsn, opts...)
}

// NewPostgresRepository connects to dsn with lib/pq and migrates the schema.
func NewPostgresRepository(dsn string, opts ...Option) (*Repository, error) {
	return open(Postgres, dsn, opts...)
}

func open(dialect Dialect, dsn string, opts ...Option) (*Repository, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &Repository{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentStorage),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return store.Unavailable("ping", err)
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ?
		 ORDER BY expense_date DESC, created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, store.Unavailable("list expenses", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list expenses", err)
	}
	return out, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	if err := store.RequireID(id); err != nil {
		return core.Expense{}, err
	}
	return r.getExpense(ctx, r.db, userID, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) getExpense(ctx context.Context, q queryer, userID, id string) (core.Expense, error) {
	row := q.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`), id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return e, err
}

func (r *Repository) CreateExpense(ctx context.Context, userID string, fields core.ExpenseFields) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	if err := fields.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := r.now().UTC()
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        fields.Date,
		Amount:      fields.Amount,
		Category:    fields.Category,
		Description: fields.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.Date.String(), e.Amount.Cents, string(e.Category), e.Description,
		formatTimestamp(e.CreatedAt), formatTimestamp(e.UpdatedAt))
	if err != nil {
		return core.Expense{}, store.Unavailable("create expense", err)
	}

	r.logger.DebugContext(ctx, "Expense saved",
		log.NewFields().WithUser(userID).WithExpense(e.ID, string(e.Category), e.Amount.Cents, e.Date.String()).ToSlice()...)
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	if err := store.RequireID(id); err != nil {
		return core.Expense{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, store.Unavailable("begin update", err)
	}
	defer tx.Rollback()

	e, err := r.getExpense(ctx, tx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	merged := patch.Apply(e.Fields())
	if err := merged.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.Date, e.Amount, e.Category, e.Description = merged.Date, merged.Amount, merged.Category, merged.Description
	e.UpdatedAt = r.now().UTC()

	_, err = tx.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE expenses SET expense_date = ?, amount_cents = ?, category = ?, description = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`),
		e.Date.String(), e.Amount.Cents, string(e.Category), e.Description, formatTimestamp(e.UpdatedAt), id, userID)
	if err != nil {
		return core.Expense{}, store.Unavailable("update expense", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, store.Unavailable("commit update", err)
	}
	return e, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := store.RequireUser(userID); err != nil {
		return err
	}
	if err := store.RequireID(id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM expenses WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return store.Unavailable("delete expense", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("delete expense", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	u := core.User{
		ID:           uuid.NewString(),
		Username:     core.NormalizeUsername(username),
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		u.ID, u.Username, u.PasswordHash, formatTimestamp(u.CreatedAt))
	if r.dialect.IsUniqueViolation(err) {
		return core.User{}, core.NewValidationError("username", core.ErrUsernameUnavailable)
	}
	if err != nil {
		return core.User{}, store.Unavailable("create user", err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`), core.NormalizeUsername(username))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	return u, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, password_hash, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, store.Unavailable("list users", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list users", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                    core.Expense
		date, category       string
		createdAt, updatedAt string
	)
	err := s.Scan(&e.ID, &e.UserID, &date, &e.Amount.Cents, &category, &e.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, err
	}
	if err != nil {
		return core.Expense{}, store.Unavailable("scan expense", err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: stored date %q: %w", e.ID, date, err)
	}
	e.Category = core.Category(category)
	if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: created_at: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: updated_at: %w", e.ID, err)
	}
	return e, nil
}

func scanUser(s scanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, err
	}
	if err != nil {
		return core.User{}, store.Unavailable("scan user", err)
	}
	if u.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return core.User{}, fmt.Errorf("user %s: created_at: %w", u.ID, err)
	}
	return u, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}
