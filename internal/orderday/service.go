package orderday

import (
	"context"
	"fmt"
	"time"

	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// RepositoryPort describes gate persistence used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, date time.Time, branchID int64) (DayStatus, bool, error)
	Upsert(ctx context.Context, status DayStatus) error
	ListRange(ctx context.Context, from, to time.Time, branchID int64) ([]DayStatus, error)
	CloseBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// NotifierPort pushes gate announcements to the notification collaborator.
type NotifierPort interface {
	NotifyDayClosed(ctx context.Context, date time.Time) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the per-day order acceptance gate.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier NotifierPort
	now      func() time.Time
}

// NewService constructs the gate service.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IsOpen reports whether the date accepts new or edited orders for the
// branch. A branch-specific record wins over the global one; no record at
// all means closed.
func (s *Service) IsOpen(ctx context.Context, date time.Time, branchID int64) (bool, error) {
	date = Truncate(date)
	if branchID != GlobalBranch {
		status, ok, err := s.repo.Get(ctx, date, branchID)
		if err != nil {
			return false, err
		}
		if ok {
			return status.IsOpen, nil
		}
	}
	status, ok, err := s.repo.Get(ctx, date, GlobalBranch)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return status.IsOpen, nil
}

// Open marks the date as accepting orders. Only today through
// today+OpenWindowDays may be opened; the check repeats on every call, so
// an already-open record outside the window still fails.
func (s *Service) Open(ctx context.Context, date time.Time, branchID, actorID int64) error {
	date = Truncate(date)
	today := Truncate(s.now())
	last := today.AddDate(0, 0, OpenWindowDays)
	if date.Before(today) || date.After(last) {
		return fmt.Errorf("%w: %s", ErrOutOfWindow, date.Format("2006-01-02"))
	}
	if err := s.repo.Upsert(ctx, DayStatus{OrderDate: date, BranchID: branchID, IsOpen: true}); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "DAY_OPEN", date, branchID)
	return nil
}

// Close marks the date as no longer accepting orders. Closing any date,
// including the past, is always allowed. Existing order values are not
// touched; only future creates/edits are blocked.
func (s *Service) Close(ctx context.Context, date time.Time, branchID, actorID int64) error {
	date = Truncate(date)
	if err := s.repo.Upsert(ctx, DayStatus{OrderDate: date, BranchID: branchID, IsOpen: false}); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "DAY_CLOSE", date, branchID)
	if s.notifier != nil {
		_ = s.notifier.NotifyDayClosed(ctx, date)
	}
	return nil
}

// Statuses returns the per-day flags in [from, to] for calendar views.
// Days without a record are reported closed.
func (s *Service) Statuses(ctx context.Context, from, to time.Time, branchID int64) ([]DayStatus, error) {
	from = Truncate(from)
	to = Truncate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrValidation)
	}
	stored, err := s.repo.ListRange(ctx, from, to, branchID)
	if err != nil {
		return nil, err
	}
	byDate := make(map[time.Time]DayStatus, len(stored))
	for _, st := range stored {
		byDate[Truncate(st.OrderDate)] = st
	}
	var out []DayStatus
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if st, ok := byDate[d]; ok {
			out = append(out, st)
			continue
		}
		out = append(out, DayStatus{OrderDate: d, BranchID: branchID, IsOpen: false})
	}
	return out, nil
}

// CloseStale closes every gate still open before the cutoff date. Run
// nightly by the worker so purchasing always starts from a frozen day.
func (s *Service) CloseStale(ctx context.Context, cutoff time.Time) (int, error) {
	return s.repo.CloseBefore(ctx, Truncate(cutoff))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, date time.Time, branchID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "orderday",
		EntityID: date.Format("2006-01-02"),
		Meta:     map[string]any{"branch_id": branchID},
	})
}
