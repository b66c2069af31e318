package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/toursync/toursync-admin/internal/changelog"
	jobmetrics "github.com/toursync/toursync-admin/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueChangelog carries change log entries to the worker.
	QueueChangelog = "changelog"
	// TaskChangelogRecord persists one events_log entry.
	TaskChangelogRecord = "changelog:record"
)

// NewChangelogTask constructs an Asynq task for entry.
func NewChangelogTask(entry changelog.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChangelogRecord, data,
		asynq.Queue(QueueChangelog),
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
	), nil
}

type changelogEnqueuer interface {
	EnqueueChangelog(ctx context.Context, entry changelog.Entry) (*asynq.TaskInfo, error)
}

// ChangelogQueue is a changelog.Sink that hands entries to the worker.
type ChangelogQueue struct {
	client changelogEnqueuer
}

// NewChangelogQueue wraps client as a change log sink.
func NewChangelogQueue(client changelogEnqueuer) *ChangelogQueue {
	return &ChangelogQueue{client: client}
}

// Write enqueues entry.
func (q *ChangelogQueue) Write(ctx context.Context, entry changelog.Entry) error {
	if _, err := q.client.EnqueueChangelog(ctx, entry); err != nil {
		return fmt.Errorf("jobs: enqueue changelog: %w", err)
	}
	return nil
}

var _ changelog.Sink = (*ChangelogQueue)(nil)

// ChangelogJob writes queued entries through Sink.
type ChangelogJob struct {
	Sink    changelog.Sink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskChangelogRecord tasks.
func (j *ChangelogJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sink == nil {
		return errors.New("changelog job: handler not configured")
	}
	var entry changelog.Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		j.logger().Error("decode changelog task", slog.Any("error", err))
		return fmt.Errorf("changelog job: decode: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskChangelogRecord)
	defer func() {
		err = tracker.End(err)
	}()

	if err := j.Sink.Write(ctx, entry); err != nil {
		j.logger().Error("write changelog entry",
			slog.String("table", entry.Table),
			slog.Int64("record_id", entry.RecordID),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (j *ChangelogJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
