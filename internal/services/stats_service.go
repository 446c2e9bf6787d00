package services

import (
	"context"
	"fmt"
	"time"

	"pricecompare/internal/caching"
	"pricecompare/internal/models"
	"pricecompare/internal/repositories"
)

const statsCacheTTL = 10 * time.Minute

// StatsService maintains cached catalog counts for the health endpoints.
// The background scheduler calls Refresh periodically.
type StatsService interface {
	Refresh(ctx context.Context) (*models.CatalogStats, error)
	Current(ctx context.Context) (*models.CatalogStats, error)
}

type statsService struct {
	nodeRepo repositories.NodeRepository
	cacheSvc caching.CacheService
}

func NewStatsService(nodeRepo repositories.NodeRepository, cacheSvc caching.CacheService) StatsService {
	return &statsService{
		nodeRepo: nodeRepo,
		cacheSvc: cacheSvc,
	}
}

func (s *statsService) Refresh(ctx context.Context) (*models.CatalogStats, error) {
	counts, err := s.nodeRepo.CountByKind(ctx)
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}

	stats := &models.CatalogStats{
		Offers:      counts[models.KindOffer],
		Categories:  counts[models.KindCategory],
		RefreshedAt: time.Now().UTC(),
	}
	stats.Total = stats.Offers + stats.Categories

	if err := s.cacheSvc.SetCatalogStats(ctx, stats, statsCacheTTL); err != nil {
		return stats, err
	}
	return stats, nil
}

// Current returns the cached counts, refreshing on a cold cache.
func (s *statsService) Current(ctx context.Context) (*models.CatalogStats, error) {
	stats, err := s.cacheSvc.GetCatalogStats(ctx)
	if err == nil && stats != nil {
		return stats, nil
	}
	return s.Refresh(ctx)
}
