// Package storagetest holds the behavioural contract every account store must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/storage"
)

// AccountsSuite runs the account store contract against the store built by NewStore.
// Embed it in a backend-specific suite and set NewStore in SetupTest.
type AccountsSuite struct {
	suite.Suite

	NewStore func() storage.Accounts

	Store storage.Accounts
	Ctx   context.Context
	Now   time.Time
}

// SetupTest builds a fresh store for each test
func (s *AccountsSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set before SetupTest")
	s.Store = s.NewStore()
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// TearDownTest closes the store
func (s *AccountsSuite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

// Account builds a fixture account
func (s *AccountsSuite) Account(username string) *model.Account {
	email := username + "@email.com"
	return &model.Account{
		ID:             model.AccountID("id-" + username),
		Username:       username,
		FullName:       "Full " + username,
		PrivilegeLevel: 1,
		PasswordHash:   "$2a$10$hash-for-" + username,
		Email:          &email,
		CreatedAt:      s.Now,
		UpdatedAt:      s.Now,
	}
}

func (s *AccountsSuite) insert(username string) *model.Account {
	account := s.Account(username)
	s.Require().NoError(s.Store.Insert(s.Ctx, account))
	return account
}

func (s *AccountsSuite) setToken(username, token string) *model.Account {
	updated, err := s.Store.Update(s.Ctx, username, model.AccountPatch{SetSessionToken: true, SessionToken: &token})
	s.Require().NoError(err)
	return updated
}

func ptr[T any](v T) *T {
	return &v
}

// Insert and lookup

func (s *AccountsSuite) TestInsertAndGetByUsername() {
	account := s.insert("alice")

	got, err := s.Store.GetByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(account.ID, got.ID)
	s.Equal("alice", got.Username)
	s.Equal(account.FullName, got.FullName)
	s.Equal(1, got.PrivilegeLevel)
	s.Equal(account.PasswordHash, got.PasswordHash)
	s.Require().NotNil(got.Email)
	s.Equal("alice@email.com", *got.Email)
	s.Nil(got.SessionToken)
	s.True(account.CreatedAt.Equal(got.CreatedAt))
	s.True(account.UpdatedAt.Equal(got.UpdatedAt))
}

func (s *AccountsSuite) TestInsertWithoutEmail() {
	account := s.Account("bob")
	account.Email = nil
	s.Require().NoError(s.Store.Insert(s.Ctx, account))

	got, err := s.Store.GetByUsername(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Nil(got.Email)
}

func (s *AccountsSuite) TestInsertDuplicateUsername() {
	s.insert("alice")

	err := s.Store.Insert(s.Ctx, s.Account("alice"))
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *AccountsSuite) TestCountByUsername() {
	count, err := s.Store.CountByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(0, count)

	s.insert("alice")

	count, err = s.Store.CountByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *AccountsSuite) TestGetByUsernameNotFound() {
	_, err := s.Store.GetByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *AccountsSuite) TestGetByTokenNotFound() {
	s.insert("alice")

	_, err := s.Store.GetByToken(s.Ctx, "no-such-token")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

// Merge update

func (s *AccountsSuite) TestUpdateMergesSuppliedFieldsOnly() {
	original := s.insert("alice")
	later := s.Now.Add(time.Hour)

	updated, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{
		FullName:  ptr("Alice Liddell"),
		UpdatedAt: later,
	})
	s.Require().NoError(err)
	s.Equal("Alice Liddell", updated.FullName)
	s.Equal(original.PrivilegeLevel, updated.PrivilegeLevel)
	s.Equal(original.PasswordHash, updated.PasswordHash)
	s.Equal(*original.Email, *updated.Email)
	s.True(later.Equal(updated.UpdatedAt))
	s.True(original.CreatedAt.Equal(updated.CreatedAt))

	got, err := s.Store.GetByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("Alice Liddell", got.FullName)
	s.Equal(original.PasswordHash, got.PasswordHash)
}

func (s *AccountsSuite) TestUpdatePrivilegeLevelToZero() {
	s.insert("alice")

	updated, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{PrivilegeLevel: ptr(0)})
	s.Require().NoError(err)
	s.Equal(0, updated.PrivilegeLevel)
}

func (s *AccountsSuite) TestUpdateNotFound() {
	_, err := s.Store.Update(s.Ctx, "nobody", model.AccountPatch{FullName: ptr("x")})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

// Session token

func (s *AccountsSuite) TestSetTokenResolvesByToken() {
	s.insert("alice")
	s.setToken("alice", "tok-1")

	got, err := s.Store.GetByToken(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Require().NotNil(got.SessionToken)
	s.Equal("tok-1", *got.SessionToken)
}

func (s *AccountsSuite) TestRotatedTokenNoLongerResolves() {
	s.insert("alice")
	s.setToken("alice", "tok-1")
	s.setToken("alice", "tok-2")

	_, err := s.Store.GetByToken(s.Ctx, "tok-1")
	s.ErrorIs(err, model.ErrAccountNotFound)

	got, err := s.Store.GetByToken(s.Ctx, "tok-2")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
}

func (s *AccountsSuite) TestClearToken() {
	s.insert("alice")
	s.setToken("alice", "tok-1")

	updated, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{SetSessionToken: true})
	s.Require().NoError(err)
	s.Nil(updated.SessionToken)

	_, err = s.Store.GetByToken(s.Ctx, "tok-1")
	s.ErrorIs(err, model.ErrAccountNotFound)

	// Clearing an already cleared token is fine
	_, err = s.Store.Update(s.Ctx, "alice", model.AccountPatch{SetSessionToken: true})
	s.NoError(err)
}

func (s *AccountsSuite) TestTokenBoundToAnotherAccount() {
	s.insert("alice")
	s.insert("bob")
	s.setToken("alice", "tok-1")

	token := "tok-1"
	_, err := s.Store.Update(s.Ctx, "bob", model.AccountPatch{SetSessionToken: true, SessionToken: &token})
	s.ErrorIs(err, model.ErrTokenInUse)

	got, err := s.Store.GetByToken(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
}

// Rename

func (s *AccountsSuite) TestRenameMovesAccountAndToken() {
	s.insert("alice")
	s.setToken("alice", "tok-1")

	updated, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{Username: ptr("alicia")})
	s.Require().NoError(err)
	s.Equal("alicia", updated.Username)

	_, err = s.Store.GetByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrAccountNotFound)

	got, err := s.Store.GetByUsername(s.Ctx, "alicia")
	s.Require().NoError(err)
	s.Equal(model.AccountID("id-alice"), got.ID)

	byToken, err := s.Store.GetByToken(s.Ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("alicia", byToken.Username)
}

func (s *AccountsSuite) TestRenameToTakenUsername() {
	s.insert("alice")
	s.insert("bob")

	_, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{Username: ptr("bob"), FullName: ptr("Imposter")})
	s.ErrorIs(err, model.ErrUsernameTaken)

	alice, err := s.Store.GetByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("Full alice", alice.FullName)

	bob, err := s.Store.GetByUsername(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Equal("Full bob", bob.FullName)
}

func (s *AccountsSuite) TestRenameToSameUsername() {
	s.insert("alice")

	updated, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{Username: ptr("alice")})
	s.Require().NoError(err)
	s.Equal("alice", updated.Username)
}

// Stats and health

func (s *AccountsSuite) TestStats() {
	s.insert("alice")
	s.insert("bob")
	s.insert("carol")
	s.setToken("alice", "tok-1")
	s.setToken("bob", "tok-2")

	stats, err := s.Store.Stats(s.Ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), stats.Accounts)
	s.Equal(int64(2), stats.ActiveSessions)
}

func (s *AccountsSuite) TestPing() {
	s.NoError(s.Store.Ping(s.Ctx))
}

// Concurrency

func (s *AccountsSuite) TestConcurrentTokenWritesLastWriteWins() {
	s.insert("alice")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			_, err := s.Store.Update(s.Ctx, "alice", model.AccountPatch{SetSessionToken: true, SessionToken: &token})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	final, err := s.Store.GetByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(final.SessionToken)

	resolving := 0
	for i := 0; i < writers; i++ {
		if _, err := s.Store.GetByToken(s.Ctx, fmt.Sprintf("tok-%d", i)); err == nil {
			resolving++
		}
	}
	s.Equal(1, resolving)

	stats, err := s.Store.Stats(s.Ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.ActiveSessions)
}
