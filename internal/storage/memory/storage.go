package memory

import (
	"context"
	"sync"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/storage"
)

// Storage is an in-memory implementation of the account store
type Storage struct {
	mu sync.RWMutex

	accounts   map[string]*model.Account
	tokenIndex map[string]string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:   make(map[string]*model.Account),
		tokenIndex: make(map[string]string),
	}
}

// Ensure Storage implements the interface
var _ storage.Accounts = (*Storage)(nil)

func (s *Storage) CountByUsername(ctx context.Context, username string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[username]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *Storage) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.tokenIndex[token]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	account, ok := s.accounts[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) Insert(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Username]; ok {
		return model.ErrUsernameTaken
	}
	if account.HasSession() {
		if _, ok := s.tokenIndex[*account.SessionToken]; ok {
			return model.ErrTokenInUse
		}
		s.tokenIndex[*account.SessionToken] = account.Username
	}
	s.accounts[account.Username] = account.Clone()
	return nil
}

func (s *Storage) Update(ctx context.Context, username string, patch model.AccountPatch) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}

	updated := patch.Apply(*current)

	if patch.Renames(username) {
		if _, taken := s.accounts[updated.Username]; taken {
			return nil, model.ErrUsernameTaken
		}
	}
	if updated.HasSession() {
		if owner, bound := s.tokenIndex[*updated.SessionToken]; bound && owner != username {
			return nil, model.ErrTokenInUse
		}
	}

	if current.HasSession() {
		delete(s.tokenIndex, *current.SessionToken)
	}
	if updated.HasSession() {
		s.tokenIndex[*updated.SessionToken] = updated.Username
	}
	delete(s.accounts, username)
	s.accounts[updated.Username] = &updated

	return updated.Clone(), nil
}

func (s *Storage) Stats(ctx context.Context) (model.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.AccountStats{
		Accounts:       int64(len(s.accounts)),
		ActiveSessions: int64(len(s.tokenIndex)),
	}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}
