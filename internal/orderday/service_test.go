package orderday

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type gateKey struct {
	date   time.Time
	branch int64
}

type memoryGateRepo struct {
	records map[gateKey]DayStatus
}

func newMemoryGateRepo() *memoryGateRepo {
	return &memoryGateRepo{records: make(map[gateKey]DayStatus)}
}

func (r *memoryGateRepo) Get(ctx context.Context, date time.Time, branchID int64) (DayStatus, bool, error) {
	st, ok := r.records[gateKey{date: date, branch: branchID}]
	return st, ok, nil
}

func (r *memoryGateRepo) Upsert(ctx context.Context, status DayStatus) error {
	r.records[gateKey{date: status.OrderDate, branch: status.BranchID}] = status
	return nil
}

func (r *memoryGateRepo) ListRange(ctx context.Context, from, to time.Time, branchID int64) ([]DayStatus, error) {
	var out []DayStatus
	for key, st := range r.records {
		if key.date.Before(from) || key.date.After(to) {
			continue
		}
		if key.branch != branchID && key.branch != GlobalBranch {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *memoryGateRepo) CloseBefore(ctx context.Context, cutoff time.Time) (int, error) {
	count := 0
	for key, st := range r.records {
		if key.date.Before(cutoff) && st.IsOpen {
			st.IsOpen = false
			r.records[key] = st
			count++
		}
	}
	return count, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOpenWindow(t *testing.T) {
	today := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	for offset := -3; offset <= OpenWindowDays+3; offset++ {
		date := today.AddDate(0, 0, offset)
		err := svc.Open(ctx, date, GlobalBranch, 1)
		if offset >= 0 && offset <= OpenWindowDays {
			require.NoError(t, err, "offset %d", offset)
			open, err := svc.IsOpen(ctx, date, GlobalBranch)
			require.NoError(t, err)
			require.True(t, open)
		} else {
			require.ErrorIs(t, err, ErrOutOfWindow, "offset %d", offset)
		}
	}
}

func TestOpenWindowIgnoresCurrentState(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	past := today.AddDate(0, 0, -1)
	// Seed an already-open past record; reopening it must still fail.
	require.NoError(t, repo.Upsert(ctx, DayStatus{OrderDate: Truncate(past), BranchID: GlobalBranch, IsOpen: true}))
	require.ErrorIs(t, svc.Open(ctx, past, GlobalBranch, 1), ErrOutOfWindow)
}

func TestCloseIsUnrestrictedAndIdempotent(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	longAgo := today.AddDate(0, -2, 0)
	require.NoError(t, svc.Close(ctx, longAgo, GlobalBranch, 1))
	require.NoError(t, svc.Close(ctx, longAgo, GlobalBranch, 1))

	open, err := svc.IsOpen(ctx, longAgo, GlobalBranch)
	require.NoError(t, err)
	require.False(t, open)
}

func TestDefaultsClosed(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	svc := NewService(newMemoryGateRepo(), nil, nil).WithClock(fixedClock(today))

	open, err := svc.IsOpen(context.Background(), today, 5)
	require.NoError(t, err)
	require.False(t, open)
}

func TestBranchRecordWinsOverGlobal(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, today, GlobalBranch, 1))
	require.NoError(t, svc.Close(ctx, today, 7, 1))

	open, err := svc.IsOpen(ctx, today, 7)
	require.NoError(t, err)
	require.False(t, open)

	open, err = svc.IsOpen(ctx, today, 8)
	require.NoError(t, err)
	require.True(t, open)
}

func TestStatusesFillMissingDaysClosed(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, today.AddDate(0, 0, 2), GlobalBranch, 1))

	statuses, err := svc.Statuses(ctx, today, today.AddDate(0, 0, 4), GlobalBranch)
	require.NoError(t, err)
	require.Len(t, statuses, 5)
	for i, st := range statuses {
		require.Equal(t, i == 2, st.IsOpen, "day %d", i)
	}

	_, err = svc.Statuses(ctx, today, today.AddDate(0, 0, -1), GlobalBranch)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCloseStale(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo := newMemoryGateRepo()
	svc := NewService(repo, nil, nil).WithClock(fixedClock(today))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, DayStatus{OrderDate: today.AddDate(0, 0, -2), BranchID: GlobalBranch, IsOpen: true}))
	require.NoError(t, repo.Upsert(ctx, DayStatus{OrderDate: today.AddDate(0, 0, -1), BranchID: 3, IsOpen: true}))
	require.NoError(t, svc.Open(ctx, today, GlobalBranch, 1))

	closed, err := svc.CloseStale(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, closed)

	open, err := svc.IsOpen(ctx, today, GlobalBranch)
	require.NoError(t, err)
	require.True(t, open)
}
