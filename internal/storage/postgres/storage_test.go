package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accountsvc/internal/model"
)

var columns = []string{"id", "username", "full_name", "privilege_level", "password_hash", "email", "session_token", "created_at", "updated_at"}

type StorageSuite struct {
	suite.Suite
	db      *sql.DB
	mock    sqlmock.Sqlmock
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.storage = New(db)
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

func (s *StorageSuite) accountRow(username string, token any) *sqlmock.Rows {
	return sqlmock.NewRows(columns).
		AddRow("acc-1", username, "Test", int64(1), "$2a$10$hash", "Test@email.com", token, s.now, s.now)
}

func (s *StorageSuite) TestCountByUsername() {
	q := `(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`
	s.mock.ExpectQuery(q).WithArgs("Test").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := s.storage.CountByUsername(s.ctx, "Test")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *StorageSuite) TestGetByUsernameFound() {
	q := `(?s)^SELECT\s+id,\s*username,.*FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`
	s.mock.ExpectQuery(q).WithArgs("Test").WillReturnRows(s.accountRow("Test", nil))

	account, err := s.storage.GetByUsername(s.ctx, "Test")
	s.Require().NoError(err)
	s.Equal(model.AccountID("acc-1"), account.ID)
	s.Equal("Test", account.Username)
	s.Equal(1, account.PrivilegeLevel)
	s.Require().NotNil(account.Email)
	s.Equal("Test@email.com", *account.Email)
	s.Nil(account.SessionToken)
	s.True(s.now.Equal(account.CreatedAt))
}

func (s *StorageSuite) TestGetByUsernameNotFound() {
	q := `(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`
	s.mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.storage.GetByUsername(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StorageSuite) TestGetByToken() {
	q := `(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+session_token\s*=\s*\$1$`
	s.mock.ExpectQuery(q).WithArgs("tok-1").WillReturnRows(s.accountRow("Test", "tok-1"))

	account, err := s.storage.GetByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Require().NotNil(account.SessionToken)
	s.Equal("tok-1", *account.SessionToken)
}

func (s *StorageSuite) TestGetByTokenDBError() {
	q := `(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+session_token\s*=\s*\$1$`
	s.mock.ExpectQuery(q).WithArgs("tok-1").WillReturnError(errors.New("db down"))

	_, err := s.storage.GetByToken(s.ctx, "tok-1")
	s.Require().Error(err)
	s.Regexp(regexp.MustCompile(`db error: .*db down`), err.Error())
}

func (s *StorageSuite) TestInsert() {
	email := "Test@email.com"
	account := &model.Account{
		ID: "acc-1", Username: "Test", FullName: "Test", PrivilegeLevel: 1,
		PasswordHash: "$2a$10$hash", Email: &email, CreatedAt: s.now, UpdatedAt: s.now,
	}

	q := `(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*username,.*\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)$`
	s.mock.ExpectExec(q).
		WithArgs("acc-1", "Test", "Test", 1, "$2a$10$hash", "Test@email.com", nil, s.now, s.now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.Require().NoError(s.storage.Insert(s.ctx, account))
}

func (s *StorageSuite) TestInsertDuplicateUsername() {
	q := `(?s)^INSERT\s+INTO\s+accounts`
	s.mock.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})

	err := s.storage.Insert(s.ctx, &model.Account{Username: "Test", CreatedAt: s.now, UpdatedAt: s.now})
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *StorageSuite) TestUpdateSetsTokenOnly() {
	token := "tok-2"
	q := `(?s)^UPDATE\s+accounts\s+SET.*session_token\s*=\s*CASE\s+WHEN\s+\$7\s+THEN\s+\$8\s+ELSE\s+session_token\s+END.*WHERE\s+username\s*=\s*\$1\s+RETURNING\s+id,`
	s.mock.ExpectQuery(q).
		WithArgs("Test", nil, nil, nil, nil, nil, true, "tok-2", s.now).
		WillReturnRows(s.accountRow("Test", "tok-2"))

	account, err := s.storage.Update(s.ctx, "Test", model.AccountPatch{SetSessionToken: true, SessionToken: &token, UpdatedAt: s.now})
	s.Require().NoError(err)
	s.Equal("tok-2", *account.SessionToken)
}

func (s *StorageSuite) TestUpdateClearsToken() {
	q := `(?s)^UPDATE\s+accounts\s+SET`
	s.mock.ExpectQuery(q).
		WithArgs("Test", nil, nil, nil, nil, nil, true, nil, nil).
		WillReturnRows(s.accountRow("Test", nil))

	account, err := s.storage.Update(s.ctx, "Test", model.AccountPatch{SetSessionToken: true})
	s.Require().NoError(err)
	s.Nil(account.SessionToken)
}

func (s *StorageSuite) TestUpdateMergesProfileFields() {
	name := "Renamed"
	level := 0
	q := `(?s)^UPDATE\s+accounts\s+SET\s+username\s*=\s*COALESCE\(\$2,\s*username\)`
	s.mock.ExpectQuery(q).
		WithArgs("Test", nil, "Renamed", 0, nil, nil, false, nil, nil).
		WillReturnRows(s.accountRow("Test", nil))

	_, err := s.storage.Update(s.ctx, "Test", model.AccountPatch{FullName: &name, PrivilegeLevel: &level})
	s.Require().NoError(err)
}

func (s *StorageSuite) TestUpdateNotFound() {
	s.mock.ExpectQuery(`(?s)^UPDATE\s+accounts`).WillReturnError(sql.ErrNoRows)

	_, err := s.storage.Update(s.ctx, "ghost", model.AccountPatch{})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *StorageSuite) TestUpdateRenameCollision() {
	newName := "taken"
	s.mock.ExpectQuery(`(?s)^UPDATE\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})

	_, err := s.storage.Update(s.ctx, "Test", model.AccountPatch{Username: &newName})
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *StorageSuite) TestUpdateTokenCollision() {
	token := "tok-1"
	s.mock.ExpectQuery(`(?s)^UPDATE\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_session_token_key"})

	_, err := s.storage.Update(s.ctx, "Test", model.AccountPatch{SetSessionToken: true, SessionToken: &token})
	s.ErrorIs(err, model.ErrTokenInUse)
}

func (s *StorageSuite) TestStats() {
	q := `(?s)^SELECT\s+COUNT\(\*\),\s*COUNT\(session_token\)\s+FROM\s+accounts$`
	s.mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"count", "count"}).AddRow(int64(3), int64(2)))

	stats, err := s.storage.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.AccountStats{Accounts: 3, ActiveSessions: 2}, stats)
}
