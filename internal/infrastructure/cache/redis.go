package cache

import (
	"context"
	"fmt"
	"time"

	"accountsystem/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// InitRedis 连接 Redis，账户分布式锁依赖它
func InitRedis(cfg *config.RedisConfig, log *logrus.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "连接 Redis 失败")
	}

	log.WithField("addr", client.Options().Addr).Info("Redis 连接成功")
	return client, nil
}
