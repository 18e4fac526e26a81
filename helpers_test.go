package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testConfig(baseURL string) *Config {
	return &Config{
		APIBaseURL:        baseURL,
		WebPort:           DefaultWebPort,
		MiddlewareTimeout: 2 * time.Second,
		MiddlewareRetries: 2,
		MiddlewareBackoff: time.Millisecond,
		LogEnv:            LogEnvDevelopment,
	}
}

// fakeMiddleware records what the services send to the middleware
type fakeMiddleware struct {
	mu          sync.Mutex
	printers    []RemotePrinter
	listErr     error
	sendErr     error
	printErr    error
	printResult any
	sent        []Printer
	jobs        []map[string]any
}

func (f *fakeMiddleware) ListPrinters(ctx context.Context) ([]RemotePrinter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.printers, nil
}

func (f *fakeMiddleware) SendDefaultPrinter(ctx context.Context, p Printer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeMiddleware) PrintLabel(ctx context.Context, job map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.printErr != nil {
		return nil, f.printErr
	}
	return f.printResult, nil
}

func (f *fakeMiddleware) sentNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		names = append(names, p.Name)
	}
	return names
}

// recordingPublisher keeps the published event types in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPublisher) Publish(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
