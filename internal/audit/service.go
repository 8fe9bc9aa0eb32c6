package audit

import (
	"context"
	"fmt"

	"github.com/khlang-erp/khlang-erp/internal/shared"
)

const maxPageSize = 50

// RepositoryPort provides read access to the audit trail.
type RepositoryPort interface {
	CountTimeline(ctx context.Context, filters TimelineFilters) (int, error)
	ListTimeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a timeline service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns a page of audit entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	total, err := s.repo.CountTimeline(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	rows, err := s.repo.ListTimeline(ctx, filters, pageSize, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Paging: shared.NewPagination(page, pageSize, total)}, nil
}
