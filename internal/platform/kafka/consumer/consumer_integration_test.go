//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"courier/internal/platform/config"
	"courier/internal/platform/kafka/consumer"
	"courier/internal/worker"
	"courier/pkg/testutil/containers"
)

type recordingExecutor struct {
	mu   sync.Mutex
	jobs []string
}

func (r *recordingExecutor) Execute(_ context.Context, jobID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, jobID)
	return nil
}

func (r *recordingExecutor) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.jobs...)
}

func TestJobFeedConsumesScheduledJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redpanda := containers.GetManager().GetRedpanda(t)
	const topic = "courier.delivery-jobs.test"
	redpanda.CreateTopic(t, topic)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	producer, err := kgo.NewClient(kgo.SeedBrokers(redpanda.Broker))
	require.NoError(t, err)
	defer producer.Close()

	record := &kgo.Record{
		Topic: topic,
		Value: []byte(`{"job_id":"job-42","token":"tok"}`),
	}
	require.NoError(t, producer.ProduceSync(ctx, record).FirstErr())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := &recordingExecutor{}
	feed := worker.NewJobFeed(exec, logger)

	c, err := consumer.New(config.KafkaConfig{
		Brokers: []string{redpanda.Broker},
		Topic:   topic,
		Group:   "courier-test",
	}, feed, logger)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		jobs := exec.snapshot()
		return len(jobs) == 1 && jobs[0] == "job-42"
	}, 30*time.Second, 250*time.Millisecond)

	cancel()
	<-done
}
