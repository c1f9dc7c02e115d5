package api

import (
	"context"
	"errors"
	"sync"

	"github.com/kubelogx/kubelogx/internal/analysis"
	"github.com/kubelogx/kubelogx/internal/types"
)

type fakeDirectory struct {
	namespaces []types.NamespaceInfo
	pods       map[string][]types.PodInfo
	err        error

	mu         sync.Mutex
	podQueries []string
}

func (f *fakeDirectory) ListNamespaces(context.Context) ([]types.NamespaceInfo, error) {
	return f.namespaces, f.err
}

func (f *fakeDirectory) ListPods(_ context.Context, ns string) ([]types.PodInfo, error) {
	f.mu.Lock()
	f.podQueries = append(f.podQueries, ns)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.pods[ns], nil
}

type fakeAnalyzer struct {
	configured bool
	result     analysis.Result
	err        error

	mu  sync.Mutex
	got []types.LogEntry
}

func (f *fakeAnalyzer) Configured() bool { return f.configured }

func (f *fakeAnalyzer) Analyze(_ context.Context, entries []types.LogEntry) (analysis.Result, error) {
	f.mu.Lock()
	f.got = entries
	f.mu.Unlock()
	return f.result, f.err
}

var errBoom = errors.New("boom")
