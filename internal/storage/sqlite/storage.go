// Package sqlite provides a SQLite-backed account store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/storage"
	"github.com/mcoot/accountsvc/internal/storage/migrate"
	"github.com/mcoot/accountsvc/internal/storage/sqlite/migrations"
)

const accountColumns = `id, username, full_name, privilege_level, password_hash, email, session_token, created_at, updated_at`

// Storage persists accounts in SQLite
type Storage struct {
	sqlDB *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Accounts = (*Storage)(nil)

func toMicros(value time.Time) int64 {
	return value.UTC().UnixMicro()
}

func fromMicros(value int64) time.Time {
	return time.UnixMicro(value).UTC()
}

// Open opens a SQLite account store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection keeps Update's statement serialised
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.Up(ctx, sqlDB, migrate.DialectSQLite, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Storage) CountByUsername(ctx context.Context, username string) (int, error) {
	var count int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func (s *Storage) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	return scanAccount(row)
}

func (s *Storage) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE session_token = ?`, token)
	return scanAccount(row)
}

func (s *Storage) Insert(ctx context.Context, account *model.Account) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(account.ID),
		account.Username,
		account.FullName,
		account.PrivilegeLevel,
		account.PasswordHash,
		nullString(account.Email),
		nullString(account.SessionToken),
		toMicros(account.CreatedAt),
		toMicros(account.UpdatedAt),
	)
	if err != nil {
		return classify(err, "insert account")
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, username string, patch model.AccountPatch) (*model.Account, error) {
	var updatedAt sql.NullInt64
	if !patch.UpdatedAt.IsZero() {
		updatedAt = sql.NullInt64{Int64: toMicros(patch.UpdatedAt), Valid: true}
	}
	var privilege sql.NullInt64
	if patch.PrivilegeLevel != nil {
		privilege = sql.NullInt64{Int64: int64(*patch.PrivilegeLevel), Valid: true}
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`UPDATE accounts SET
		   username        = COALESCE(?, username),
		   full_name       = COALESCE(?, full_name),
		   privilege_level = COALESCE(?, privilege_level),
		   password_hash   = COALESCE(?, password_hash),
		   email           = COALESCE(?, email),
		   session_token   = CASE WHEN ? THEN ? ELSE session_token END,
		   updated_at      = COALESCE(?, updated_at)
		 WHERE username = ?
		 RETURNING `+accountColumns,
		nullString(patch.Username),
		nullString(patch.FullName),
		privilege,
		nullString(patch.PasswordHash),
		nullString(patch.Email),
		patch.SetSessionToken,
		nullString(patch.SessionToken),
		updatedAt,
		username,
	)
	return scanAccount(row)
}

func (s *Storage) Stats(ctx context.Context) (model.AccountStats, error) {
	var stats model.AccountStats
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(session_token) FROM accounts`).
		Scan(&stats.Accounts, &stats.ActiveSessions)
	if err != nil {
		return model.AccountStats{}, fmt.Errorf("account stats: %w", err)
	}
	return stats, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		account   model.Account
		id        string
		email     sql.NullString
		token     sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&id, &account.Username, &account.FullName, &account.PrivilegeLevel,
		&account.PasswordHash, &email, &token, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, classify(err, "scan account")
	}

	account.ID = model.AccountID(id)
	if email.Valid {
		account.Email = &email.String
	}
	if token.Valid {
		account.SessionToken = &token.String
	}
	account.CreatedAt = fromMicros(createdAt)
	account.UpdatedAt = fromMicros(updatedAt)
	return &account, nil
}

func classify(err error, op string) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			message := strings.ToLower(err.Error())
			switch {
			case strings.Contains(message, "accounts.username"):
				return model.ErrUsernameTaken
			case strings.Contains(message, "accounts.session_token"):
				return model.ErrTokenInUse
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
