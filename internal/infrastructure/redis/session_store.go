package redis

import (
	"context"
	"fmt"
	"strconv"

	"arcade-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

// SessionStore resolves handshake session tokens. The login flow (out of
// scope here) writes "session:<token>" -> user id; the gateway only ever
// reads.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) UserID(ctx context.Context, token string) (int64, error) {
	key := fmt.Sprintf("session:%s", token)

	result, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, fmt.Errorf("unknown session token: %w", domain.ErrNotAuthorized)
		}
		return 0, fmt.Errorf("session lookup: %w", err)
	}

	userID, err := strconv.ParseInt(result, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("corrupt session entry: %w", domain.ErrNotAuthorized)
	}
	return userID, nil
}
