package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"SigRelay/internal/domain/models"
	applogger "SigRelay/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	accountKeyPrefix = "sigrelay:account:"
	accountOrderKey  = "sigrelay:accounts:order"
	channelIDKey     = "sigrelay:channel_id"
	sessionKey       = "sigrelay:session"
)

// RedisAccountStore implements AccountStore backed by Redis. Accounts live
// as one JSON record per name plus a list carrying insertion order.
type RedisAccountStore struct {
	cli *redis.Client
	l   *applogger.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisAccountStore(cfg RedisConfig, l *applogger.Logger) (*RedisAccountStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisAccountStore{cli: cli, l: l}, nil
}

func (s *RedisAccountStore) Put(ctx context.Context, a *models.Account) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	// overwrites must not move the account in the order list
	exists, err := s.cli.Exists(ctx, accountKeyPrefix+a.Name).Result()
	if err != nil {
		return fmt.Errorf("put account %s: %w", a.Name, err)
	}

	pipe := s.cli.TxPipeline()
	pipe.Set(ctx, accountKeyPrefix+a.Name, b, 0)
	if exists == 0 {
		pipe.RPush(ctx, accountOrderKey, a.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put account %s: %w", a.Name, err)
	}
	return nil
}

func (s *RedisAccountStore) Delete(ctx context.Context, name string) error {
	pipe := s.cli.TxPipeline()
	pipe.Del(ctx, accountKeyPrefix+name)
	pipe.LRem(ctx, accountOrderKey, 0, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete account %s: %w", name, err)
	}
	return nil
}

// LoadAll returns every stored account in insertion order. Records missing
// their order entry are appended at the end rather than dropped, and the
// order list is repaired to include them.
func (s *RedisAccountStore) LoadAll(ctx context.Context) ([]*models.Account, error) {
	names, err := s.cli.LRange(ctx, accountOrderKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load account order: %w", err)
	}

	seen := make(map[string]bool, len(names))
	out := make([]*models.Account, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		a, err := s.loadRecord(ctx, name)
		if err != nil {
			return nil, err
		}
		if a == nil {
			s.l.Warn("account record missing, dropping from order", applogger.String("name", name))
			continue
		}
		out = append(out, a)
	}

	// an interrupted order rewrite can leave records without an order
	// entry; pick them up instead of losing them
	var cursor uint64
	for {
		keys, next, err := s.cli.Scan(ctx, cursor, accountKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan accounts: %w", err)
		}
		for _, key := range keys {
			name := strings.TrimPrefix(key, accountKeyPrefix)
			if seen[name] {
				continue
			}
			seen[name] = true

			a, err := s.loadRecord(ctx, name)
			if err != nil {
				return nil, err
			}
			if a == nil {
				continue
			}
			s.l.Warn("account missing order entry, appending", applogger.String("name", name))
			out = append(out, a)
			if err := s.cli.RPush(ctx, accountOrderKey, name).Err(); err != nil {
				s.l.Warn("order repair failed", applogger.String("name", name), applogger.Error(err))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// loadRecord fetches and decodes one account. Missing or corrupt records
// come back nil.
func (s *RedisAccountStore) loadRecord(ctx context.Context, name string) (*models.Account, error) {
	b, err := s.cli.Get(ctx, accountKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", name, err)
	}
	var a models.Account
	if err := json.Unmarshal(b, &a); err != nil {
		s.l.Warn("account record corrupt, skipping",
			applogger.String("name", name),
			applogger.Error(err),
		)
		return nil, nil
	}
	return &a, nil
}

// SaveOrder rewrites the order list. Used after a rename so the renamed
// account keeps its position across restarts.
func (s *RedisAccountStore) SaveOrder(ctx context.Context, names []string) error {
	pipe := s.cli.TxPipeline()
	pipe.Del(ctx, accountOrderKey)
	if len(names) > 0 {
		vals := make([]interface{}, len(names))
		for i, n := range names {
			vals[i] = n
		}
		pipe.RPush(ctx, accountOrderKey, vals...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save account order: %w", err)
	}
	return nil
}

func (s *RedisAccountStore) SaveChannelID(ctx context.Context, channelID int64) error {
	if err := s.cli.Set(ctx, channelIDKey, channelID, 0).Err(); err != nil {
		return fmt.Errorf("save channel id: %w", err)
	}
	return nil
}

// LoadChannelID returns the saved channel id, or 0 when none was saved.
func (s *RedisAccountStore) LoadChannelID(ctx context.Context) (int64, error) {
	v, err := s.cli.Get(ctx, channelIDKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load channel id: %w", err)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse channel id: %w", err)
	}
	return id, nil
}

func (s *RedisAccountStore) SaveSession(ctx context.Context, session string) error {
	if err := s.cli.Set(ctx, sessionKey, session, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the saved platform session, or "" when none exists.
func (s *RedisAccountStore) LoadSession(ctx context.Context) (string, error) {
	v, err := s.cli.Get(ctx, sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return v, nil
}

func (s *RedisAccountStore) Close() error {
	return s.cli.Close()
}
