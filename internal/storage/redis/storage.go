package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/storage"
)

// ErrTooManyRetries is returned when an optimistic transaction keeps losing races
var ErrTooManyRetries = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the account store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Accounts = (*Storage)(nil)

func (s *Storage) CountByUsername(ctx context.Context, username string) (int, error) {
	n, err := s.client.Exists(ctx, accountKey(username)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Storage) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return getAccount(ctx, s.client, username)
}

func (s *Storage) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	username, err := s.client.Get(ctx, tokenIndexKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	account, err := getAccount(ctx, s.client, username)
	if err != nil {
		return nil, err
	}

	// The index is only trusted when the record agrees with it
	if account.SessionToken == nil || *account.SessionToken != token {
		return nil, model.ErrAccountNotFound
	}
	return account, nil
}

func (s *Storage) Insert(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	keys := []string{accountKey(account.Username)}
	if account.HasSession() {
		keys = append(keys, tokenIndexKey(*account.SessionToken))
	}

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, accountKey(account.Username)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrUsernameTaken
		}
		if account.HasSession() {
			bound, err := tx.Exists(ctx, tokenIndexKey(*account.SessionToken)).Result()
			if err != nil {
				return err
			}
			if bound > 0 {
				return model.ErrTokenInUse
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accountKey(account.Username), data, 0)
			pipe.SAdd(ctx, accountsSetKey(), account.Username)
			if account.HasSession() {
				pipe.Set(ctx, tokenIndexKey(*account.SessionToken), account.Username, 0)
				pipe.SAdd(ctx, sessionsSetKey(), account.Username)
			}
			return nil
		})
		return err
	}, keys...)
}

func (s *Storage) Update(ctx context.Context, username string, patch model.AccountPatch) (*model.Account, error) {
	keys := []string{accountKey(username)}
	if patch.Renames(username) {
		keys = append(keys, accountKey(*patch.Username))
	}
	if patch.SetSessionToken && patch.SessionToken != nil {
		keys = append(keys, tokenIndexKey(*patch.SessionToken))
	}

	var result *model.Account
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		current, err := getAccount(ctx, tx, username)
		if err != nil {
			return err
		}

		updated := patch.Apply(*current)
		renamed := patch.Renames(username)

		if renamed {
			taken, err := tx.Exists(ctx, accountKey(updated.Username)).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return model.ErrUsernameTaken
			}
		}
		if patch.SetSessionToken && updated.HasSession() {
			owner, err := tx.Get(ctx, tokenIndexKey(*updated.SessionToken)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if err == nil && owner != username {
				return model.ErrTokenInUse
			}
		}

		data, err := json.Marshal(&updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if current.HasSession() {
				pipe.Del(ctx, tokenIndexKey(*current.SessionToken))
				pipe.SRem(ctx, sessionsSetKey(), username)
			}
			if renamed {
				pipe.Del(ctx, accountKey(username))
				pipe.SRem(ctx, accountsSetKey(), username)
				pipe.SAdd(ctx, accountsSetKey(), updated.Username)
			}
			pipe.Set(ctx, accountKey(updated.Username), data, 0)
			if updated.HasSession() {
				pipe.Set(ctx, tokenIndexKey(*updated.SessionToken), updated.Username, 0)
				pipe.SAdd(ctx, sessionsSetKey(), updated.Username)
			}
			return nil
		})
		if err != nil {
			return err
		}

		result = updated.Clone()
		return nil
	}, keys...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) Stats(ctx context.Context) (model.AccountStats, error) {
	pipe := s.client.Pipeline()
	accounts := pipe.SCard(ctx, accountsSetKey())
	sessions := pipe.SCard(ctx, sessionsSetKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return model.AccountStats{}, err
	}
	return model.AccountStats{
		Accounts:       accounts.Val(),
		ActiveSessions: sessions.Val(),
	}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// withRetry runs fn inside WATCH on keys, retrying while another client
// modifies a watched key between the read and the EXEC
func (s *Storage) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.cfg.MaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w after %d attempts", ErrTooManyRetries, s.cfg.MaxTxRetries)
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getAccount(ctx context.Context, c getter, username string) (*model.Account, error) {
	data, err := c.Get(ctx, accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
