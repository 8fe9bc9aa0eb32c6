package audit

import (
	"time"

	"github.com/khlang-erp/khlang-erp/internal/shared"
)

// TimelineRow is one audit entry as presented to administrators.
type TimelineRow struct {
	At       time.Time
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// TimelineFilters narrows the timeline. Zero values mean "no filter".
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// Result bundles timeline rows with paging metadata.
type Result struct {
	Rows   []TimelineRow
	Paging shared.Pagination
}
