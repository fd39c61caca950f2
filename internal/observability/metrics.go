package observability

import (
	"sync/atomic"
)

// MetricsCollector provides hooks for metrics collection
type MetricsCollector interface {
	IncReceived()
	IncProcessed()
	IncPoisoned()
	IncCompleted()
	IncCancelled()
	IncFaulted()
	IncBatchAborted()
	IncPublished()
	IncPublishFailed()
	IncRetried()
	IncSentToDLQ()
}

// InMemoryMetrics is a simple in-memory implementation for testing/demo
type InMemoryMetrics struct {
	Received      atomic.Int64
	Processed     atomic.Int64
	Poisoned      atomic.Int64
	Completed     atomic.Int64
	Cancelled     atomic.Int64
	Faulted       atomic.Int64
	BatchAborted  atomic.Int64
	Published     atomic.Int64
	PublishFailed atomic.Int64
	Retried       atomic.Int64
	SentToDLQ     atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncReceived()      { m.Received.Add(1) }
func (m *InMemoryMetrics) IncProcessed()     { m.Processed.Add(1) }
func (m *InMemoryMetrics) IncPoisoned()      { m.Poisoned.Add(1) }
func (m *InMemoryMetrics) IncCompleted()     { m.Completed.Add(1) }
func (m *InMemoryMetrics) IncCancelled()     { m.Cancelled.Add(1) }
func (m *InMemoryMetrics) IncFaulted()       { m.Faulted.Add(1) }
func (m *InMemoryMetrics) IncBatchAborted()  { m.BatchAborted.Add(1) }
func (m *InMemoryMetrics) IncPublished()     { m.Published.Add(1) }
func (m *InMemoryMetrics) IncPublishFailed() { m.PublishFailed.Add(1) }
func (m *InMemoryMetrics) IncRetried()       { m.Retried.Add(1) }
func (m *InMemoryMetrics) IncSentToDLQ()     { m.SentToDLQ.Add(1) }

func (m *InMemoryMetrics) GetReceived() int64 {
	return m.Received.Load()
}

func (m *InMemoryMetrics) GetProcessed() int64 {
	return m.Processed.Load()
}

func (m *InMemoryMetrics) GetPoisoned() int64 {
	return m.Poisoned.Load()
}

func (m *InMemoryMetrics) GetCompleted() int64 {
	return m.Completed.Load()
}

func (m *InMemoryMetrics) GetCancelled() int64 {
	return m.Cancelled.Load()
}

func (m *InMemoryMetrics) GetFaulted() int64 {
	return m.Faulted.Load()
}

func (m *InMemoryMetrics) GetBatchAborted() int64 {
	return m.BatchAborted.Load()
}

func (m *InMemoryMetrics) GetPublished() int64 {
	return m.Published.Load()
}

func (m *InMemoryMetrics) GetPublishFailed() int64 {
	return m.PublishFailed.Load()
}

func (m *InMemoryMetrics) GetRetried() int64 {
	return m.Retried.Load()
}

func (m *InMemoryMetrics) GetSentToDLQ() int64 {
	return m.SentToDLQ.Load()
}
