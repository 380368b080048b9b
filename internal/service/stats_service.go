package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

const leadStatsCacheKey = "stats:leads"

type leadCounter interface {
	CountBy(ctx context.Context, dimension string) ([]models.GroupCount, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// StatsService computes dashboard counters.
type StatsService struct {
	leads  leadCounter
	cache  statsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsService constructs the service. cache may be nil.
func NewStatsService(leads leadCounter, cache statsCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{leads: leads, cache: cache, ttl: ttl, logger: logger}
}

// LeadStats returns counts by stage, department, head and teacher, and whether they came from cache.
func (s *StatsService) LeadStats(ctx context.Context) (*dto.LeadStats, bool, error) {
	if s.cache != nil {
		var cached dto.LeadStats
		if hit, err := s.cache.Get(ctx, leadStatsCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	dimensions := []string{"stage", "department", "head", "teacher"}
	counts := make([][]models.GroupCount, len(dimensions))
	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range dimensions {
		g.Go(func() error {
			rows, err := s.leads.CountBy(gctx, dim)
			if err != nil {
				return err
			}
			counts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Internal(err, "failed to count leads")
	}

	stats := &dto.LeadStats{
		ByStage:      bucket(counts[0]),
		ByDepartment: bucket(counts[1]),
		ByHead:       bucket(counts[2]),
		ByTeacher:    bucket(counts[3]),
	}
	for _, stage := range models.Stages {
		if _, ok := stats.ByStage[string(stage)]; !ok {
			stats.ByStage[string(stage)] = 0
		}
	}
	for _, c := range counts[0] {
		stats.Total += c.Total
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, leadStatsCacheKey, stats, s.ttl); err != nil {
			s.logger.Sugar().Debugw("stats cache write skipped", "error", err)
		}
	}
	return stats, false, nil
}

// Invalidate drops cached counters after lead changes.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "stats:*"); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate stats cache", "error", err)
	}
}

func bucket(rows []models.GroupCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		key := row.Key
		if key == "" {
			key = assigneeUnassigned
		}
		out[key] += row.Total
	}
	return out
}
