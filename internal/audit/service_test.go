package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryAuditRepo struct {
	rows []TimelineRow
}

func matches(row TimelineRow, filters TimelineFilters) bool {
	if !filters.From.IsZero() && row.At.Before(filters.From) {
		return false
	}
	if !filters.To.IsZero() && row.At.After(filters.To) {
		return false
	}
	if filters.ActorID > 0 && row.ActorID != filters.ActorID {
		return false
	}
	if filters.Entity != "" && row.Entity != filters.Entity {
		return false
	}
	if filters.Action != "" && row.Action != filters.Action {
		return false
	}
	return true
}

func (m *memoryAuditRepo) CountTimeline(ctx context.Context, filters TimelineFilters) (int, error) {
	total := 0
	for _, row := range m.rows {
		if matches(row, filters) {
			total++
		}
	}
	return total, nil
}

func (m *memoryAuditRepo) ListTimeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	var filtered []TimelineRow
	for _, row := range m.rows {
		if matches(row, filters) {
			filtered = append(filtered, row)
		}
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func seedRows(n int) []TimelineRow {
	base := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		action := "ORDER_SUBMIT"
		if i%2 == 0 {
			action = "PURCHASE_RECORD"
		}
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(i%3 + 1),
			Action:   action,
			Entity:   "order",
			EntityID: "1",
		})
	}
	return rows
}

func TestTimelinePagesAndCounts(t *testing.T) {
	service := NewService(&memoryAuditRepo{rows: seedRows(45)})

	result, err := service.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.Equal(t, 45, result.Paging.Total)
	require.Equal(t, 3, result.Paging.TotalPages)
	require.Equal(t, 2, result.Paging.Page)
}

func TestTimelineClampsPageSize(t *testing.T) {
	service := NewService(&memoryAuditRepo{rows: seedRows(120)})

	result, err := service.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, maxPageSize)
	require.Equal(t, maxPageSize, result.Paging.PerPage)

	result, err = service.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
}

func TestTimelineFiltersByActorAndAction(t *testing.T) {
	service := NewService(&memoryAuditRepo{rows: seedRows(30)})

	result, err := service.Timeline(context.Background(), TimelineFilters{ActorID: 1, Action: "PURCHASE_RECORD"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Rows)
	for _, row := range result.Rows {
		require.EqualValues(t, 1, row.ActorID)
		require.Equal(t, "PURCHASE_RECORD", row.Action)
	}
}

func TestTimelineRequiresRepository(t *testing.T) {
	service := NewService(nil)
	_, err := service.Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}
