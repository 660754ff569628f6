// Package worker consumes due delivery jobs published by the external
// scheduler and runs them through the delivery pipeline. The trigger payload
// mirrors the HTTP endpoint: a job id plus its authorization token.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"courier/internal/platform/kafka/consumer"
)

// Executor runs one delivery job.
type Executor interface {
	Execute(ctx context.Context, jobID, token string) error
}

// JobFeed turns kafka records into pipeline executions. Malformed records
// are logged and dropped; delivery outcomes live in the event log, so a
// failed execution is not retried here.
type JobFeed struct {
	executor Executor
	logger   *slog.Logger
}

// NewJobFeed creates the job feed handler.
func NewJobFeed(executor Executor, logger *slog.Logger) *JobFeed {
	return &JobFeed{executor: executor, logger: logger}
}

type jobPayload struct {
	JobID string `json:"job_id"`
	Token string `json:"token"`
}

// Handle processes one due-job record.
func (f *JobFeed) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload jobPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		f.logger.WarnContext(ctx, "dropping malformed job record",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if payload.JobID == "" || payload.Token == "" {
		f.logger.WarnContext(ctx, "dropping job record without id or token",
			"topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	if err := f.executor.Execute(ctx, payload.JobID, payload.Token); err != nil {
		f.logger.ErrorContext(ctx, "scheduled delivery job failed",
			"job_id", payload.JobID, "error", err)
	}
	return nil
}
