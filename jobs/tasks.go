package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyLine is the task type for pushing LINE messages.
	TaskTypeNotifyLine = "notify:line"
	// TaskTypeGateSweep is the task type closing stale open order days.
	TaskTypeGateSweep = "gate:sweep"
)

// LineNotifyPayload describes one LINE push message.
type LineNotifyPayload struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// NewLineNotifyTask constructs an Asynq task.
func NewLineNotifyTask(payload LineNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyLine, data), nil
}

// HandleLineNotifyTask processes TaskTypeNotifyLine tasks. Delivery goes
// through the LINE messaging collaborator; until that integration lands
// the handler only logs the push.
func HandleLineNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload LineNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.InfoContext(ctx, "line notify",
		slog.String("target", payload.Target),
		slog.String("message", payload.Message))
	return nil
}

// NewGateSweepTask constructs the nightly sweep task.
func NewGateSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeGateSweep, nil)
}

// GateCloser closes order days older than the cutoff.
type GateCloser interface {
	CloseStale(ctx context.Context, cutoff time.Time) (int, error)
}

// NewGateSweepHandler builds the handler closing every gate left open
// before today. Closing is total, so sweeping an already closed day is
// a no-op.
func NewGateSweepHandler(gate GateCloser, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		closed, err := gate.CloseStale(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("gate sweep", slog.Any("error", err))
			return err
		}
		if closed > 0 {
			logger.Info("gate sweep closed stale days", slog.Int("count", closed))
		}
		return nil
	}
}
