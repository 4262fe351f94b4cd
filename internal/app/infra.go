package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/tckz/static-front/internal/config"
	"github.com/tckz/static-front/internal/logger"
	"github.com/tckz/static-front/internal/redis"
	"github.com/tckz/static-front/internal/session"
)

// setupStore builds the configured session store driver. The returned cleanup
// releases driver resources and may be nil.
func setupStore(ctx context.Context, cfg config.Config) (session.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		client, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis session store ready", "addr", cfg.RedisAddr)
		return session.NewRedisStore(client.Client, ""), client.Close, nil

	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		logger.Info("dynamodb session store ready", "table", cfg.DynamoTable)
		return session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store driver %q", cfg.StoreDriver)
	}
}
