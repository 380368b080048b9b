package service

import (
	"context"
	"strings"

	"github.com/noah-isme/admission-leads-api/internal/models"
	appErrors "github.com/noah-isme/admission-leads-api/pkg/errors"
)

type systemLogLister interface {
	List(ctx context.Context, filter models.SystemLogFilter) ([]models.SystemLog, int, error)
}

// SystemLogService serves the activity history to administrators.
type SystemLogService struct {
	repo systemLogLister
}

// NewSystemLogService constructs the service.
func NewSystemLogService(repo systemLogLister) *SystemLogService {
	return &SystemLogService{repo: repo}
}

// List returns a newest-first page of activity.
func (s *SystemLogService) List(ctx context.Context, actor models.Actor, filter models.SystemLogFilter) ([]models.SystemLog, *models.Pagination, error) {
	if !actor.Admin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can read system logs")
	}
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list system logs")
	}
	if logs == nil {
		logs = []models.SystemLog{}
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
