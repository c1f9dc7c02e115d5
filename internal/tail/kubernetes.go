package tail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kubelogx/kubelogx/internal/types"
)

// KubernetesSource tails container logs through the Kubernetes API.
type KubernetesSource struct {
	client kubernetes.Interface
	logger *zap.Logger
}

// NewKubernetesSource creates a Source backed by client.
func NewKubernetesSource(client kubernetes.Interface, logger *zap.Logger) *KubernetesSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KubernetesSource{client: client, logger: logger.Named("tail")}
}

// Open verifies the pod and container exist, then opens a pods/log stream.
// The returned handle stays valid after ctx is done only until Close; the
// stream is bound to ctx.
func (k *KubernetesSource) Open(ctx context.Context, src types.SourceID, opts Options) (Handle, error) {
	if err := src.Validate(); err != nil {
		return nil, Unavailable(src, err)
	}

	pods := k.client.CoreV1().Pods(src.Namespace)
	pod, err := pods.Get(ctx, src.Pod, metav1.GetOptions{})
	if err != nil {
		return nil, classifyAPIError(src, err)
	}
	if src.Container != "" && !hasContainer(pod, src.Container) {
		return nil, Unavailable(src, fmt.Errorf("container %q not found in pod %s", src.Container, src.Pod))
	}

	logOpts := podLogOptions(src, opts)
	streamCtx, cancel := context.WithCancel(ctx)
	rc, err := pods.GetLogs(src.Pod, logOpts).Stream(streamCtx)
	if err != nil {
		cancel()
		return nil, classifyAPIError(src, err)
	}

	k.logger.Debug("Opened log stream",
		zap.String("source", src.String()),
		zap.Bool("follow", opts.Follow),
		zap.Int64("tail_lines", opts.TailLines),
		zap.Bool("resume", opts.SinceTime != nil))

	return NewReaderHandle(src, rc, cancel, opts.Follow, true), nil
}

// podLogOptions always sets either SinceTime or TailLines; the API server
// replays the whole log when neither is set.
func podLogOptions(src types.SourceID, opts Options) *corev1.PodLogOptions {
	logOpts := &corev1.PodLogOptions{
		Container:  src.Container,
		Follow:     opts.Follow,
		Timestamps: true,
	}
	if opts.SinceTime != nil {
		since := metav1.NewTime(*opts.SinceTime)
		logOpts.SinceTime = &since
		return logOpts
	}
	tailLines := max(opts.TailLines, 0)
	logOpts.TailLines = &tailLines
	return logOpts
}

func hasContainer(pod *corev1.Pod, name string) bool {
	for _, c := range pod.Spec.Containers {
		if c.Name == name {
			return true
		}
	}
	for _, c := range pod.Spec.InitContainers {
		if c.Name == name {
			return true
		}
	}
	for _, c := range pod.Spec.EphemeralContainers {
		if c.Name == name {
			return true
		}
	}
	return false
}

// classifyAPIError maps Kubernetes API failures onto tail error kinds.
func classifyAPIError(src types.SourceID, err error) error {
	switch {
	case err == nil:
		return nil
	case KindOf(err) == KindCancelled:
		return Cancelled(src)
	case apierrors.IsBadRequest(err) && strings.Contains(err.Error(), "waiting to start"):
		// ContainerCreating and similar: the container will have logs shortly.
		return Lost(src, err)
	case apierrors.IsNotFound(err),
		apierrors.IsForbidden(err),
		apierrors.IsUnauthorized(err),
		apierrors.IsBadRequest(err),
		apierrors.IsMethodNotSupported(err):
		return Unavailable(src, err)
	default:
		return Lost(src, err)
	}
}
