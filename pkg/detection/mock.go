package detection

import (
	"context"
	"sync"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	DetectFunc func(ctx context.Context, ref ContentRef) ([]Detection, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// NameOverride replaces the default "mock" name.
	NameOverride string

	mu    sync.Mutex
	calls []ContentRef
}

// NewMock returns a mock that always detects the given labels with confidence 0.9.
func NewMock(labels ...string) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, ref ContentRef) ([]Detection, error) {
			dets := make([]Detection, len(labels))
			for i, l := range labels {
				dets[i] = Detection{Label: l, Confidence: 0.9}
			}
			return dets, nil
		},
	}
}

// FailingMock returns a mock that always fails with err.
func FailingMock(err error) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, ref ContentRef) ([]Detection, error) {
			return nil, err
		},
	}
}

// Name implements Detector.
func (m *Mock) Name() string {
	if m.NameOverride != "" {
		return m.NameOverride
	}
	return "mock"
}

// Detect calls DetectFunc and records the reference.
func (m *Mock) Detect(ctx context.Context, ref ContentRef) ([]Detection, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ref)
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, ref)
	}
	return nil, WrapError(m.Name(), ErrUnavailable)
}

// Close calls CloseFunc.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns the references Detect was called with.
func (m *Mock) Calls() []ContentRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ContentRef, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Detect was called.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Detector = (*Mock)(nil)
