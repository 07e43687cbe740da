package fakes

import (
	"context"
	"sync"
)

// --- Mock Producer ---
type MockProducer struct {
	mu     sync.Mutex
	called bool
	key    string
	values []any
}

func (m *MockProducer) Called() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func (m *MockProducer) Key() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

func (m *MockProducer) Values() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]any, len(m.values))
	copy(values, m.values)
	return values
}

func (m *MockProducer) Send(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = true
	m.key = key
	m.values = append(m.values, value)
	return nil
}

func (m *MockProducer) Close() error {
	return nil
}
