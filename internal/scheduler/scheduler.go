// Package scheduler runs mailbox syncs in Kubernetes: a CronJob per user at
// the configured fetch frequency, and one-off Jobs on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

const (
	appLabel       = "mailtriage-sync"
	userAnnotation = "mailtriage/user-id"
	secretName     = "mailtriage-secrets"
	syncBinary     = "/app/bin/sync-user"
)

// ErrUnknownFrequency is returned for fetch frequencies other than 6h, 12h and 24h
var ErrUnknownFrequency = errors.New("unknown fetch frequency")

// JobStatus is the state of a one-off sync Job
type JobStatus struct {
	JobName        string  `json:"job_name"`
	Status         string  `json:"status" example:"running"` // pending, running, completed or failed
	Active         int32   `json:"active"`
	Succeeded      int32   `json:"succeeded"`
	Failed         int32   `json:"failed"`
	StartTime      *string `json:"start_time,omitempty"`
	CompletionTime *string `json:"completion_time,omitempty"`
}

// Scheduler manages sync workloads in one namespace
type Scheduler struct {
	clientset kubernetes.Interface
	namespace string
	image     string
	logger    zerolog.Logger
	now       func() time.Time
}

// New connects with in-cluster credentials, falling back to the local kubeconfig
func New(namespace, image string, logger zerolog.Logger) (*Scheduler, error) {
	config, err := getKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewWithClientset(clientset, namespace, image, logger), nil
}

// NewWithClientset creates a scheduler over an existing clientset
func NewWithClientset(clientset kubernetes.Interface, namespace, image string, logger zerolog.Logger) *Scheduler {
	if namespace == "" {
		namespace = "mailtriage"
	}
	return &Scheduler{
		clientset: clientset,
		namespace: namespace,
		image:     image,
		logger:    logger.With().Str("component", "scheduler").Str("namespace", namespace).Logger(),
		now:       time.Now,
	}
}

// getKubeConfig gets the Kubernetes configuration
func getKubeConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	if envKubeconfig := os.Getenv("KUBECONFIG"); envKubeconfig != "" {
		kubeconfig = envKubeconfig
	}

	config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	return config, nil
}

// CronSchedule maps a fetch frequency to a cron expression. The minute is
// spread by user so that schedules do not all fire at once.
func CronSchedule(userID, frequency string) (string, error) {
	minute := userHash(userID) % 60
	switch frequency {
	case "6h":
		return fmt.Sprintf("%d */6 * * *", minute), nil
	case "12h":
		return fmt.Sprintf("%d */12 * * *", minute), nil
	case "24h":
		return fmt.Sprintf("%d 0 * * *", minute), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// CronJobName derives a stable, DNS-safe CronJob name for a user
func CronJobName(userID string) string {
	slug := invalidNameChars.ReplaceAllString(strings.ToLower(userID), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 30 {
		slug = strings.TrimRight(slug[:30], "-")
	}
	name := fmt.Sprintf("sync-%08x", userHash(userID))
	if slug != "" {
		name = fmt.Sprintf("sync-%s-%08x", slug, userHash(userID))
	}
	return name
}

// EnsureSyncSchedule creates or updates the user's CronJob
func (s *Scheduler) EnsureSyncSchedule(ctx context.Context, userID, frequency string) error {
	schedule, err := CronSchedule(userID, frequency)
	if err != nil {
		return err
	}

	name := CronJobName(userID)
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return fmt.Errorf("invalid cronjob name %q: %s", name, strings.Join(errs, "; "))
	}

	cronJobs := s.clientset.BatchV1().CronJobs(s.namespace)
	existing, err := cronJobs.Get(ctx, name, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		if _, err := cronJobs.Create(ctx, s.buildCronJob(name, userID, schedule), metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create cronjob: %w", err)
		}
		s.logger.Info().Str("user_id", userID).Str("schedule", schedule).Msg("Created sync schedule")
		return nil
	case err != nil:
		return fmt.Errorf("failed to get cronjob: %w", err)
	}

	desired := s.buildCronJob(name, userID, schedule)
	existing.Spec = desired.Spec
	existing.Labels = desired.Labels
	existing.Annotations = desired.Annotations
	if _, err := cronJobs.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update cronjob: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("schedule", schedule).Msg("Updated sync schedule")
	return nil
}

// RemoveSyncSchedule deletes the user's CronJob if it exists
func (s *Scheduler) RemoveSyncSchedule(ctx context.Context, userID string) error {
	deletePolicy := metav1.DeletePropagationBackground
	err := s.clientset.BatchV1().CronJobs(s.namespace).Delete(ctx, CronJobName(userID), metav1.DeleteOptions{
		PropagationPolicy: &deletePolicy,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete cronjob: %w", err)
	}
	return nil
}

// TriggerSync starts a one-off sync Job for the user and returns its name
func (s *Scheduler) TriggerSync(ctx context.Context, userID string) (string, error) {
	jobName := fmt.Sprintf("%s-%d", CronJobName(userID), s.now().Unix())

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        jobName,
			Namespace:   s.namespace,
			Labels:      s.labels(userID, "api"),
			Annotations: map[string]string{userAnnotation: userID},
		},
		Spec: s.jobSpec(userID),
	}

	if _, err := s.clientset.BatchV1().Jobs(s.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("job", jobName).Msg("Triggered sync job")
	return jobName, nil
}

// GetJobStatus reports the state of a sync Job. Jobs of other users are not found.
func (s *Scheduler) GetJobStatus(ctx context.Context, userID, jobName string) (*JobStatus, error) {
	job, err := s.clientset.BatchV1().Jobs(s.namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job.Annotations[userAnnotation] != userID {
		return nil, apierrors.NewNotFound(batchv1.Resource("jobs"), jobName)
	}

	status := "pending"
	switch {
	case job.Status.Active > 0:
		status = "running"
	case job.Status.Succeeded > 0:
		status = "completed"
	case job.Status.Failed > 0:
		status = "failed"
	}

	var startTime, completionTime *string
	if job.Status.StartTime != nil {
		st := job.Status.StartTime.Format(time.RFC3339)
		startTime = &st
	}
	if job.Status.CompletionTime != nil {
		ct := job.Status.CompletionTime.Format(time.RFC3339)
		completionTime = &ct
	}

	return &JobStatus{
		JobName:        jobName,
		Status:         status,
		Active:         job.Status.Active,
		Succeeded:      job.Status.Succeeded,
		Failed:         job.Status.Failed,
		StartTime:      startTime,
		CompletionTime: completionTime,
	}, nil
}

// IsNotFound reports whether err means the Kubernetes object does not exist
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

func (s *Scheduler) buildCronJob(name, userID, schedule string) *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   s.namespace,
			Labels:      s.labels(userID, "schedule"),
			Annotations: map[string]string{userAnnotation: userID},
		},
		Spec: batchv1.CronJobSpec{
			Schedule:                   schedule,
			ConcurrencyPolicy:          batchv1.ForbidConcurrent,
			SuccessfulJobsHistoryLimit: int32Ptr(3),
			FailedJobsHistoryLimit:     int32Ptr(3),
			JobTemplate: batchv1.JobTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      s.labels(userID, "schedule"),
					Annotations: map[string]string{userAnnotation: userID},
				},
				Spec: s.jobSpec(userID),
			},
		},
	}
}

func (s *Scheduler) jobSpec(userID string) batchv1.JobSpec {
	return batchv1.JobSpec{
		BackoffLimit:            int32Ptr(2),
		TTLSecondsAfterFinished: int32Ptr(86400),
		Template: corev1.PodTemplateSpec{
			ObjectMeta: metav1.ObjectMeta{
				Labels: map[string]string{"app": appLabel},
			},
			Spec: s.buildPodSpec(userID),
		},
	}
}

// buildPodSpec builds the pod spec running one sync for userID
func (s *Scheduler) buildPodSpec(userID string) corev1.PodSpec {
	return corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{
			{
				Name:    "sync-user",
				Image:   s.image,
				Command: []string{syncBinary, "-user", userID},
				EnvFrom: []corev1.EnvFromSource{
					{
						SecretRef: &corev1.SecretEnvSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
						},
					},
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("128Mi"),
						corev1.ResourceCPU:    resource.MustParse("100m"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("512Mi"),
						corev1.ResourceCPU:    resource.MustParse("500m"),
					},
				},
			},
		},
	}
}

func (s *Scheduler) labels(userID, trigger string) map[string]string {
	return map[string]string{
		"app":          appLabel,
		"user-hash":    fmt.Sprintf("%08x", userHash(userID)),
		"triggered-by": trigger,
	}
}

func userHash(userID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return h.Sum32()
}

func int32Ptr(i int32) *int32 {
	return &i
}
