// Package identity owns account registration, authentication, profile updates and the
// session-token lifecycle.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/accountsvc/internal/dependencies/clock"
	"github.com/mcoot/accountsvc/internal/dependencies/random"
	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/security/password"
	"github.com/mcoot/accountsvc/internal/security/token"
	"github.com/mcoot/accountsvc/internal/storage"
)

// Errors
var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password
	ErrInvalidCredentials = errors.New("username or password wrong")
	// ErrUnauthenticated covers missing, unknown, rotated and revoked tokens alike
	ErrUnauthenticated = errors.New("unauthenticated")
)

// RegisterInput is a validated registration request
type RegisterInput struct {
	Username       string
	FullName       string
	PrivilegeLevel int
	Password       string
	Email          *string
}

// UpdateInput is a validated profile update. Nil or empty fields are left unchanged.
type UpdateInput struct {
	Username       *string
	FullName       *string
	PrivilegeLevel *int
	Password       *string
	Email          *string
}

// Recorder receives account lifecycle events for metrics
type Recorder interface {
	Registered()
	LoginSucceeded()
	LoginFailed()
	LoggedOut()
}

type nopRecorder struct{}

func (nopRecorder) Registered()     {}
func (nopRecorder) LoginSucceeded() {}
func (nopRecorder) LoginFailed()    {}
func (nopRecorder) LoggedOut()      {}

// dummyVerifier is implemented by hashers that can equalise the cost of a
// login for an unknown account
type dummyVerifier interface {
	VerifyDummy(plaintext string)
}

// rehasher is implemented by hashers that know when a stored hash is outdated
type rehasher interface {
	NeedsRehash(hash string) bool
}

// Config holds optional collaborators for the identity service
type Config struct {
	// Logger is used for account events. If nil, a no-op logger is used.
	Logger *slog.Logger
	// Recorder receives lifecycle events. If nil, events are dropped.
	Recorder Recorder
}

// Service handles account registration, authentication and profile management
type Service struct {
	store  storage.Accounts
	hasher password.Hasher
	issuer token.Issuer
	clock  clock.Clock
	random random.Random

	logger   *slog.Logger
	recorder Recorder
}

// New creates a new identity Service
func New(store storage.Accounts, hasher password.Hasher, issuer token.Issuer, clk clock.Clock, rnd random.Random, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		clock:    clk,
		random:   rnd,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
}

// Register creates an account without a session
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	count, err := s.store.CountByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, model.ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	account := &model.Account{
		ID:             model.AccountID(s.random.ID(now)),
		Username:       in.Username,
		FullName:       in.FullName,
		PrivilegeLevel: in.PrivilegeLevel,
		PasswordHash:   hash,
		Email:          nonEmpty(in.Email),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// A concurrent registration can still win the race; the store reports it as ErrUsernameTaken
	if err := s.store.Insert(ctx, account); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	s.logger.Info("account.registered",
		slog.String("account_id", string(account.ID)),
		slog.String("username", account.Username),
	)
	s.recorder.Registered()

	return account.Profile(), nil
}

// Authenticate verifies credentials and rotates the account's session token.
// The previous token, if any, stops resolving.
func (s *Service) Authenticate(ctx context.Context, username, plaintext string) (string, error) {
	account, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			s.verifyDummy(plaintext)
			return "", s.loginFailed(username)
		}
		return "", fmt.Errorf("load account: %w", err)
	}

	ok, err := s.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", s.loginFailed(username)
	}

	tok, err := s.issuer.Issue()
	if err != nil {
		return "", err
	}

	patch := model.AccountPatch{
		SetSessionToken: true,
		SessionToken:    &tok,
		UpdatedAt:       s.clock.Now(),
	}
	if r, ok := s.hasher.(rehasher); ok && r.NeedsRehash(account.PasswordHash) {
		if rehashed, err := s.hasher.Hash(plaintext); err == nil {
			patch.PasswordHash = &rehashed
		} else {
			s.logger.Warn("account.rehash.failed", slog.String("username", username), slog.String("error", err.Error()))
		}
	}

	if _, err := s.store.Update(ctx, account.Username, patch); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			// Renamed between the read and the write
			return "", s.loginFailed(username)
		}
		return "", fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("account.login.success", slog.String("username", account.Username))
	s.recorder.LoginSucceeded()

	return tok, nil
}

// FetchProfile returns the profile of the named account
func (s *Service) FetchProfile(ctx context.Context, username string) (*model.Profile, error) {
	account, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account.Profile(), nil
}

// UpdateProfile merges the supplied fields into the named account.
// A rename to a username held by another account fails with model.ErrUsernameTaken.
func (s *Service) UpdateProfile(ctx context.Context, username string, in UpdateInput) (*model.Profile, error) {
	patch := model.AccountPatch{
		Username:       nonEmpty(in.Username),
		FullName:       nonEmpty(in.FullName),
		PrivilegeLevel: in.PrivilegeLevel,
		Email:          nonEmpty(in.Email),
	}

	exists, err := s.store.CountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if exists == 0 {
		return nil, model.ErrAccountNotFound
	}

	if patch.Renames(username) {
		count, err := s.store.CountByUsername(ctx, *patch.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if count > 0 {
			return nil, model.ErrUsernameTaken
		}
	}

	if plaintext := nonEmpty(in.Password); plaintext != nil {
		hash, err := s.hasher.Hash(*plaintext)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	if patch.IsEmpty() {
		return s.FetchProfile(ctx, username)
	}

	patch.UpdatedAt = s.clock.Now()
	updated, err := s.store.Update(ctx, username, patch)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info("account.updated",
		slog.String("username", updated.Username),
		slog.Bool("renamed", patch.Renames(username)),
		slog.Bool("password_changed", patch.PasswordHash != nil),
	)

	return updated.Profile(), nil
}

// RevokeSession clears the account's session token. Revoking an account
// without a session succeeds.
func (s *Service) RevokeSession(ctx context.Context, username string) (*model.Profile, error) {
	updated, err := s.store.Update(ctx, username, model.AccountPatch{
		SetSessionToken: true,
		UpdatedAt:       s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}

	s.logger.Info("account.logout", slog.String("username", updated.Username))
	s.recorder.LoggedOut()

	return updated.Profile(), nil
}

// Resolve maps a presented session token to the account holding it
func (s *Service) Resolve(ctx context.Context, presented string) (*model.Account, error) {
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	account, err := s.store.GetByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return account, nil
}

func (s *Service) verifyDummy(plaintext string) {
	if d, ok := s.hasher.(dummyVerifier); ok {
		d.VerifyDummy(plaintext)
	}
}

func (s *Service) loginFailed(username string) error {
	s.logger.Warn("account.login.failed", slog.String("username", username))
	s.recorder.LoginFailed()
	return ErrInvalidCredentials
}

func nonEmpty(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	v := *value
	return &v
}
