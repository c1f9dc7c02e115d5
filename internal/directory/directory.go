// Package directory lists the namespaces and pods a subscriber can choose from.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kubelogx/kubelogx/internal/types"
)

// AllNamespaces selects pods across the cluster.
const AllNamespaces = "all"

// Service answers directory queries against the Kubernetes API.
type Service struct {
	client kubernetes.Interface
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Service.
func New(client kubernetes.Interface, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger.Named("directory"), now: time.Now}
}

// ListNamespaces returns every namespace with its phase, sorted by name.
func (s *Service) ListNamespaces(ctx context.Context) ([]types.NamespaceInfo, error) {
	list, err := s.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	out := make([]types.NamespaceInfo, 0, len(list.Items))
	for _, ns := range list.Items {
		out = append(out, types.NamespaceInfo{Name: ns.Name, Status: string(ns.Status.Phase)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.logger.Debug("Listed namespaces", zap.Int("count", len(out)))
	return out, nil
}

// ListPods returns the pods in namespace. An empty namespace or "all"
// lists every namespace.
func (s *Service) ListPods(ctx context.Context, namespace string) ([]types.PodInfo, error) {
	ns := strings.TrimSpace(namespace)
	if ns == AllNamespaces {
		ns = metav1.NamespaceAll
	}
	list, err := s.client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %q: %w", namespace, err)
	}

	now := s.now()
	out := make([]types.PodInfo, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, podInfo(&list.Items[i], now))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func podInfo(pod *corev1.Pod, now time.Time) types.PodInfo {
	var restarts int32
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
	}
	containers := make([]string, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		containers = append(containers, c.Name)
	}
	started := pod.CreationTimestamp.Time
	if pod.Status.StartTime != nil {
		started = pod.Status.StartTime.Time
	}
	return types.PodInfo{
		ID:         string(pod.UID),
		Name:       pod.Name,
		Namespace:  pod.Namespace,
		Status:     podStatus(pod),
		Restarts:   restarts,
		Age:        age(started, now),
		Containers: containers,
	}
}

// podStatus mirrors the phase, except that a pod being deleted reports
// Terminating and a waiting container reports its reason.
func podStatus(pod *corev1.Pod) string {
	if pod.DeletionTimestamp != nil {
		return "Terminating"
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
			return cs.State.Waiting.Reason
		}
	}
	if pod.Status.Phase == "" {
		return "Unknown"
	}
	return string(pod.Status.Phase)
}

// age renders whole hours since the pod started, e.g. "5h".
func age(created, now time.Time) string {
	if created.IsZero() || now.Before(created) {
		return "0h"
	}
	return fmt.Sprintf("%dh", int64(now.Sub(created)/time.Hour))
}
