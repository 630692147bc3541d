package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receivables/jobs"
)

type stubClient struct {
	scans  []time.Time
	closed bool
}

func (s *stubClient) EnqueueDelinquencyScan(_ context.Context, asOf time.Time) (*asynq.TaskInfo, error) {
	s.scans = append(s.scans, asOf)
	return &asynq.TaskInfo{ID: "t-1", Type: jobs.TaskDelinquencyScan, Queue: jobs.QueueDefault}, nil
}

func (s *stubClient) Close() error {
	s.closed = true
	return nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }
func (s stubInspector) Close() error { return nil }

func TestTriggerDelinquencyScanWithDate(t *testing.T) {
	client := &stubClient{}
	jobsCLI := &JobsCLI{client: client}

	cmd := NewJobsCommand(func() (*JobsCLI, error) { return jobsCLI, nil })
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"trigger", jobs.TaskDelinquencyScan, "--as-of", "2026-03-01"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Len(t, client.scans, 1)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), client.scans[0])
	require.Contains(t, out.String(), "enqueued "+jobs.TaskDelinquencyScan)
	require.True(t, client.closed)
}

func TestTriggerRejectsUnknownJobAndBadDate(t *testing.T) {
	jobsCLI := &JobsCLI{client: &stubClient{}}
	_, err := jobsCLI.Trigger(context.Background(), "mail:send", time.Time{})
	require.ErrorContains(t, err, "unsupported job")

	opened := false
	cmd := NewJobsCommand(func() (*JobsCLI, error) {
		opened = true
		return jobsCLI, nil
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"trigger", jobs.TaskDelinquencyScan, "--as-of", "March"})
	require.Error(t, cmd.Execute())
	require.False(t, opened)
}

func TestInspectQueue(t *testing.T) {
	jobsCLI := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1}}}
	stats, err := jobsCLI.InspectQueue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Pending)
	require.Equal(t, 1, stats.Retry)

	failing := &JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}
	_, err = failing.InspectQueue(context.Background())
	require.Error(t, err)
}
