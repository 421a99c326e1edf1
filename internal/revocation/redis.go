package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "revoked:token:"
	userKeyPrefix  = "revoked:user:"
)

// RedisRegistry is the shared revocation store for multi-instance
// deployments. Every call is bounded by callTimeout so a hung store cannot
// stall the auth path.
type RedisRegistry struct {
	client      *redis.Client
	callTimeout time.Duration

	// userEntryTTL bounds how long a per-user revocation boundary is kept.
	// It must be at least the refresh token lifetime: once every token
	// issued before the boundary has expired on its own, the entry is
	// redundant.
	userEntryTTL time.Duration

	logger *slog.Logger
}

// NewRedisRegistry connects to the store and verifies it is reachable.
func NewRedisRegistry(addr, password string, db int, callTimeout, userEntryTTL time.Duration, logger *slog.Logger) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping revocation store: %w", err)
	}

	logger.Info("revocation store connected", slog.String("addr", addr))

	return &RedisRegistry{
		client:       client,
		callTimeout:  callTimeout,
		userEntryTTL: userEntryTTL,
		logger:       logger,
	}, nil
}

func (r *RedisRegistry) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already past its natural expiry; nothing to store.
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	if err := r.client.Set(ctx, tokenKeyPrefix+tokenDigest(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func (r *RedisRegistry) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, tokenKeyPrefix+tokenDigest(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRegistry) RevokeUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	boundary := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.Set(ctx, userKeyPrefix+userID, boundary, r.userEntryTTL).Err(); err != nil {
		return fmt.Errorf("failed to record user revocation: %w", err)
	}

	r.logger.Info("all tokens revoked for user", slog.String("user_id", userID))
	return nil
}

func (r *RedisRegistry) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, userKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user revocation: %w", err)
	}

	boundary, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("malformed revocation boundary for user %s: %w", userID, err)
	}

	return issuedAt.Unix() < boundary, nil
}

// HealthCheck pings the store within the configured call timeout.
func (r *RedisRegistry) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
