package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/obscura-studio/obscura/internal/shoots"
)

// TaskDeadlineScan sweeps the active board and reports sessions whose
// selection or editing SLA is urgent or already blown.
const TaskDeadlineScan = "deadline:scan"

// DeadlineScanPayload carries scheduling metadata.
type DeadlineScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewDeadlineScanTask constructs an Asynq task for the deadline sweep.
func NewDeadlineScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(DeadlineScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeadlineScan, body, asynq.Queue(QueueDefault)), nil
}

// EmailEnqueuer queues a notification email. *Client satisfies it.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// DeadlineScanJob classifies active sessions against their SLAs and mails a
// digest of the urgent and overdue ones.
type DeadlineScanJob struct {
	service  *shoots.Service
	enqueuer EmailEnqueuer
	notifyTo string
	logger   *slog.Logger
	now      func() time.Time
}

// NewDeadlineScanJob constructs the job. The digest email is skipped when
// enqueuer is nil or notifyTo is empty.
func NewDeadlineScanJob(service *shoots.Service, enqueuer EmailEnqueuer, notifyTo string, logger *slog.Logger) *DeadlineScanJob {
	return &DeadlineScanJob{service: service, enqueuer: enqueuer, notifyTo: notifyTo, logger: logger, now: time.Now}
}

// Handle processes TaskDeadlineScan tasks.
func (j *DeadlineScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DeadlineScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	alerts, err := j.service.DeadlineAlerts(ctx, j.now())
	if err != nil {
		return fmt.Errorf("jobs: deadline scan: %w", err)
	}
	for _, alert := range alerts {
		j.logger.Warn("session deadline alert",
			slog.String("code", alert.Session.Code),
			slog.String("client", alert.Session.ClientName),
			slog.String("stage", alert.Session.KanbanStatus),
			slog.String("band", string(alert.Deadline)),
		)
	}

	if len(alerts) > 0 && j.enqueuer != nil && j.notifyTo != "" {
		if _, err := j.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.notifyTo,
			Subject: fmt.Sprintf("Deadline alerts: %d session(s) need attention", len(alerts)),
			Body:    deadlineDigest(alerts),
		}); err != nil {
			j.logger.Error("enqueue deadline digest", slog.Any("error", err))
		}
	}

	j.logger.Info("deadline scan finished", slog.Int("alerts", len(alerts)))
	return nil
}

func deadlineDigest(alerts []shoots.BoardCard) string {
	var b strings.Builder
	b.WriteString("Sessions past or near their selection/editing deadline:\n\n")
	for _, alert := range alerts {
		fmt.Fprintf(&b, "- %s (%s) — %s, %s\n",
			alert.Session.Code, alert.Session.ClientName, alert.Session.KanbanStatus, alert.Deadline)
	}
	return b.String()
}
