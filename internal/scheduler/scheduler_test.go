package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes/fake"
)

func newTestScheduler() (*Scheduler, *fake.Clientset) {
	clientset := fake.NewSimpleClientset()
	s := NewWithClientset(clientset, "mailtriage", "mailtriage:test", zerolog.Nop())
	s.now = func() time.Time { return time.Unix(1709285400, 0) }
	return s, clientset
}

func TestCronSchedule(t *testing.T) {
	tests := []struct {
		frequency string
		suffix    string
	}{
		{"6h", " */6 * * *"},
		{"12h", " */12 * * *"},
		{"24h", " 0 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			schedule, err := CronSchedule("user-1", tt.frequency)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(schedule, tt.suffix), schedule)

			again, _ := CronSchedule("user-1", tt.frequency)
			assert.Equal(t, schedule, again)
		})
	}

	_, err := CronSchedule("user-1", "1h")
	assert.True(t, errors.Is(err, ErrUnknownFrequency))
}

func TestCronJobName(t *testing.T) {
	tests := []string{
		"user-1",
		"Jane.Doe@Example.com",
		"5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f-with-a-very-long-suffix",
		"___",
	}

	for _, userID := range tests {
		t.Run(userID, func(t *testing.T) {
			name := CronJobName(userID)
			assert.Empty(t, validation.IsDNS1123Subdomain(name))
			assert.LessOrEqual(t, len(name), 52)
			assert.True(t, strings.HasPrefix(name, "sync-"))
		})
	}

	assert.NotEqual(t, CronJobName("a.b"), CronJobName("a-b"))
}

func TestEnsureSyncSchedule_CreatesThenUpdates(t *testing.T) {
	s, clientset := newTestScheduler()
	ctx := context.Background()

	require.NoError(t, s.EnsureSyncSchedule(ctx, "user-1", "12h"))

	cj, err := clientset.BatchV1().CronJobs("mailtriage").Get(ctx, CronJobName("user-1"), metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(cj.Spec.Schedule, "*/12 * * *"))
	assert.Equal(t, batchv1.ForbidConcurrent, cj.Spec.ConcurrencyPolicy)
	assert.Equal(t, "user-1", cj.Annotations[userAnnotation])

	container := cj.Spec.JobTemplate.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "mailtriage:test", container.Image)
	assert.Equal(t, []string{syncBinary, "-user", "user-1"}, container.Command)
	assert.Equal(t, secretName, container.EnvFrom[0].SecretRef.Name)

	require.NoError(t, s.EnsureSyncSchedule(ctx, "user-1", "6h"))
	cj, err = clientset.BatchV1().CronJobs("mailtriage").Get(ctx, CronJobName("user-1"), metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(cj.Spec.Schedule, "*/6 * * *"))

	list, err := clientset.BatchV1().CronJobs("mailtriage").List(ctx, metav1.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestEnsureSyncSchedule_RejectsUnknownFrequency(t *testing.T) {
	s, clientset := newTestScheduler()
	err := s.EnsureSyncSchedule(context.Background(), "user-1", "weekly")
	require.Error(t, err)

	list, _ := clientset.BatchV1().CronJobs("mailtriage").List(context.Background(), metav1.ListOptions{})
	assert.Empty(t, list.Items)
}

func TestRemoveSyncSchedule(t *testing.T) {
	s, clientset := newTestScheduler()
	ctx := context.Background()

	require.NoError(t, s.RemoveSyncSchedule(ctx, "user-1"), "missing cronjob is not an error")

	require.NoError(t, s.EnsureSyncSchedule(ctx, "user-1", "24h"))
	require.NoError(t, s.RemoveSyncSchedule(ctx, "user-1"))

	_, err := clientset.BatchV1().CronJobs("mailtriage").Get(ctx, CronJobName("user-1"), metav1.GetOptions{})
	assert.True(t, IsNotFound(err))
}

func TestTriggerSyncAndStatus(t *testing.T) {
	s, clientset := newTestScheduler()
	ctx := context.Background()

	jobName, err := s.TriggerSync(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, CronJobName("user-1")+"-1709285400", jobName)

	status, err := s.GetJobStatus(ctx, "user-1", jobName)
	require.NoError(t, err)
	assert.Equal(t, "pending", status.Status)

	job, err := clientset.BatchV1().Jobs("mailtriage").Get(ctx, jobName, metav1.GetOptions{})
	require.NoError(t, err)
	started := metav1.NewTime(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	job.Status.Succeeded = 1
	job.Status.StartTime = &started
	_, err = clientset.BatchV1().Jobs("mailtriage").UpdateStatus(ctx, job, metav1.UpdateOptions{})
	require.NoError(t, err)

	status, err = s.GetJobStatus(ctx, "user-1", jobName)
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	require.NotNil(t, status.StartTime)
	assert.Equal(t, "2024-03-01T09:30:00Z", *status.StartTime)
}

func TestGetJobStatus_OtherUser(t *testing.T) {
	s, _ := newTestScheduler()
	ctx := context.Background()

	jobName, err := s.TriggerSync(ctx, "user-1")
	require.NoError(t, err)

	_, err = s.GetJobStatus(ctx, "user-2", jobName)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = s.GetJobStatus(ctx, "user-1", "missing")
	assert.True(t, IsNotFound(err))
}
