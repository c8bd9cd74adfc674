package storage

import (
	"context"

	"github.com/mcoot/accountsvc/internal/model"
)

// Accounts is the keyed account record store.
//
// Every implementation provides atomic single-record read-modify-write in Update:
// concurrent updates to one account never interleave and the last write wins.
type Accounts interface {
	// CountByUsername returns how many accounts hold username (0 or 1)
	CountByUsername(ctx context.Context, username string) (int, error)
	// GetByUsername returns model.ErrAccountNotFound when absent
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// GetByToken returns model.ErrAccountNotFound when no account holds token
	GetByToken(ctx context.Context, token string) (*model.Account, error)
	// Insert returns model.ErrUsernameTaken when the username already exists
	Insert(ctx context.Context, account *model.Account) error
	// Update merges patch into the account named username and returns the result.
	// It returns model.ErrAccountNotFound, model.ErrUsernameTaken on a rename
	// collision, or model.ErrTokenInUse when the token is bound elsewhere.
	Update(ctx context.Context, username string, patch model.AccountPatch) (*model.Account, error)

	// Stats counts accounts and live sessions
	Stats(ctx context.Context) (model.AccountStats, error)
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	// Close releases backend resources
	Close() error
}
