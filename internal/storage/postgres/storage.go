// Package postgres provides a Postgres-backed account store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/storage"
	"github.com/mcoot/accountsvc/internal/storage/migrate"
	"github.com/mcoot/accountsvc/internal/storage/postgres/migrations"
)

const (
	uniqueViolation = "23505"

	usernameConstraint = "accounts_username_key"
	tokenConstraint    = "accounts_session_token_key"
)

const accountColumns = `id, username, full_name, privilege_level, password_hash, email, session_token, created_at, updated_at`

// Storage persists accounts in Postgres through database/sql and the pgx driver
type Storage struct {
	db *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Accounts = (*Storage)(nil)

// Open connects to Postgres, verifies the connection and applies migrations
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("postgres URL is required")
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := migrate.Up(ctx, db, migrate.DialectPostgres, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return New(db), nil
}

// New wraps an existing handle without running migrations (for testing)
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) CountByUsername(ctx context.Context, username string) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE username = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (s *Storage) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, username))
}

func (s *Storage) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE session_token = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, token))
}

func (s *Storage) Insert(ctx context.Context, account *model.Account) error {
	query :=
		`INSERT INTO accounts (` + accountColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		string(account.ID),
		account.Username,
		account.FullName,
		account.PrivilegeLevel,
		account.PasswordHash,
		account.Email,
		account.SessionToken,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

// Update applies the patch in a single statement, so the read-modify-write is
// atomic per row and concurrent writers resolve as last write wins
func (s *Storage) Update(ctx context.Context, username string, patch model.AccountPatch) (*model.Account, error) {
	query :=
		`UPDATE accounts SET
		   username        = COALESCE($2, username),
		   full_name       = COALESCE($3, full_name),
		   privilege_level = COALESCE($4, privilege_level),
		   password_hash   = COALESCE($5, password_hash),
		   email           = COALESCE($6, email),
		   session_token   = CASE WHEN $7 THEN $8 ELSE session_token END,
		   updated_at      = COALESCE($9, updated_at)
		 WHERE username = $1
		 RETURNING ` + accountColumns

	row := s.db.QueryRowContext(ctx, query,
		username,
		patch.Username,
		patch.FullName,
		patch.PrivilegeLevel,
		patch.PasswordHash,
		patch.Email,
		patch.SetSessionToken,
		patch.SessionToken,
		updatedAt(patch),
	)
	return scanAccount(row)
}

func (s *Storage) Stats(ctx context.Context) (model.AccountStats, error) {
	query := `SELECT COUNT(*), COUNT(session_token) FROM accounts`

	var stats model.AccountStats
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Accounts, &stats.ActiveSessions); err != nil {
		return model.AccountStats{}, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func updatedAt(patch model.AccountPatch) *time.Time {
	if patch.UpdatedAt.IsZero() {
		return nil
	}
	t := patch.UpdatedAt.UTC()
	return &t
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		account model.Account
		id      string
		email   sql.NullString
		token   sql.NullString
	)
	err := row.Scan(
		&id,
		&account.Username,
		&account.FullName,
		&account.PrivilegeLevel,
		&account.PasswordHash,
		&email,
		&token,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, classify(err)
	}

	account.ID = model.AccountID(id)
	if email.Valid {
		account.Email = &email.String
	}
	if token.Valid {
		account.SessionToken = &token.String
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return &account, nil
}

// classify maps unique violations onto model errors
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameConstraint:
			return model.ErrUsernameTaken
		case tokenConstraint:
			return model.ErrTokenInUse
		}
	}
	return fmt.Errorf("db error: %w", err)
}
