package dispatch

import (
	"context"
	"sync"
)

// MockInvoker is a mock implementation of Invoker for testing
type MockInvoker struct {
	mu         sync.Mutex
	Calls      []Call
	InvokeFunc func(ctx context.Context, call Call) Outcome
}

func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		Calls: make([]Call, 0),
	}
}

func (m *MockInvoker) Invoke(ctx context.Context, call Call) Outcome {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	fn := m.InvokeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, call)
	}
	return Completed(200, call.Message.Body)
}

func (m *MockInvoker) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]Call, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}
