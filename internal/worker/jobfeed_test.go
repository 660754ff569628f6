package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/platform/kafka/consumer"
)

type recordingExecutor struct {
	err  error
	jobs []string
}

func (r *recordingExecutor) Execute(_ context.Context, jobID, _ string) error {
	r.jobs = append(r.jobs, jobID)
	return r.err
}

func newFeed(exec *recordingExecutor) *JobFeed {
	return NewJobFeed(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJobFeedExecutesJob(t *testing.T) {
	exec := &recordingExecutor{}
	feed := newFeed(exec)

	err := feed.Handle(context.Background(), &consumer.Message{
		Value: []byte(`{"job_id":"job-1","token":"tok"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, exec.jobs)
}

func TestJobFeedDropsMalformedRecords(t *testing.T) {
	exec := &recordingExecutor{}
	feed := newFeed(exec)

	require.NoError(t, feed.Handle(context.Background(), &consumer.Message{Value: []byte("not json")}))
	require.NoError(t, feed.Handle(context.Background(), &consumer.Message{Value: []byte(`{"job_id":""}`)}))
	assert.Empty(t, exec.jobs)
}

func TestJobFeedSwallowsExecutionErrors(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("delivery failed")}
	feed := newFeed(exec)

	err := feed.Handle(context.Background(), &consumer.Message{
		Value: []byte(`{"job_id":"job-1","token":"tok"}`),
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, exec.jobs)
}
