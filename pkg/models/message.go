package models

import (
	"sort"
	"strings"
	"time"
)

// Message represents a message delivered by a queue transport
type Message struct {
	ID         string            `json:"id"`
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Attribute / header names shared by transports
const (
	AttributeDelay      = "delay"
	HeaderMessageID     = "message-id"
	HeaderRetryCount    = "retry-count"
	HeaderRetryAttempt  = "retry-attempt"
	HeaderOriginalTopic = "original-topic"
	HeaderFailureReason = "failure-reason"
	HeaderProcessedAt   = "processed-at"
	HeaderBatchRunID    = "batch-run-id"
)

// Attribute looks up an attribute value ignoring key case. An exact key match
// wins; otherwise the lexicographically smallest matching key is used.
func (m Message) Attribute(name string) (string, bool) {
	if len(m.Attributes) == 0 {
		return "", false
	}
	if v, ok := m.Attributes[name]; ok {
		return v, true
	}
	for _, k := range m.AttributeKeys() {
		if strings.EqualFold(k, name) {
			return m.Attributes[k], true
		}
	}
	return "", false
}

// AttributeKeys returns the attribute keys in sorted order.
func (m Message) AttributeKeys() []string {
	keys := make([]string, 0, len(m.Attributes))
	for k := range m.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
