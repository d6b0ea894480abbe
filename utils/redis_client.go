package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/config"
)

// NewRedis returns a Redis client for the configured host, or nil when Redis is not configured.
// An unreachable server is logged but not fatal; callers fall back to in-process state.
func NewRedis(cfg config.AppConfig, log *zap.Logger) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         RedisAddr(cfg),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis ping failed", zap.String("addr", RedisAddr(cfg)), zap.Error(err))
	}
	return client
}

// RedisAddr formats host:port for the configured Redis server.
func RedisAddr(cfg config.AppConfig) string {
	return net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort))
}
