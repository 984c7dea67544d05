package redisdb

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/utils"
)

// Service wraps the redis client used for webhook replay guards. Redis being
// down must never block postback processing, so every helper degrades to
// "not seen" on error and the DB unique constraint stays the backstop.
type Service struct {
	client *redis.Client
	log    *logger.Logger
}

func NewService(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "RedisService")

	addr := utils.GetEnv("REDIS_ADDR", "localhost:6379", log)
	password := utils.GetEnv("REDIS_PASSWORD", "", log)
	db := utils.GetEnvAsInt("REDIS_DB", 0, log)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		serviceLog.Warn("Redis ping failed, replay guard will rely on the database only", "error", err)
	}

	return &Service{client: client, log: serviceLog}, nil
}

// MarkOnce sets key if unseen and reports whether this caller was first.
func (s *Service) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

func (s *Service) Forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Service) Close() error {
	return s.client.Close()
}
