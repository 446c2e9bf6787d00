package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"pricecompare/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Aggregated subtree caching
	GetNodeTree(ctx context.Context, nodeID uuid.UUID) (*models.NodeTree, error)
	SetNodeTree(ctx context.Context, tree *models.NodeTree, ttl time.Duration) error
	// InvalidateTrees drops every cached subtree. Any import or delete can
	// change aggregate prices arbitrarily far up the tree, so per-id
	// invalidation would be wrong.
	InvalidateTrees(ctx context.Context) error

	// Catalog statistics (refreshed by the background job)
	GetCatalogStats(ctx context.Context) (*models.CatalogStats, error)
	SetCatalogStats(ctx context.Context, stats *models.CatalogStats, ttl time.Duration) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as bare host:port
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func treeKey(nodeID uuid.UUID) string {
	return fmt.Sprintf("pricecompare:tree:%s", nodeID.String())
}

const statsKey = "pricecompare:stats"

func (r *redisCacheService) GetNodeTree(ctx context.Context, nodeID uuid.UUID) (*models.NodeTree, error) {
	data, err := r.client.Get(ctx, treeKey(nodeID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var tree models.NodeTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (r *redisCacheService) SetNodeTree(ctx context.Context, tree *models.NodeTree, ttl time.Duration) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, treeKey(tree.ID), data, ttl).Err()
}

func (r *redisCacheService) InvalidateTrees(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, "pricecompare:tree:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) GetCatalogStats(ctx context.Context) (*models.CatalogStats, error) {
	data, err := r.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var stats models.CatalogStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *redisCacheService) SetCatalogStats(ctx context.Context, stats *models.CatalogStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statsKey, data, ttl).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
