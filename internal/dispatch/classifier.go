package dispatch

import (
	"strconv"
	"strings"

	"go-callback/pkg/models"
)

const (
	// PoisonMarker marks a message body as permanently unprocessable.
	PoisonMarker = "Error:"

	// DefaultWaitMilliseconds is used when the delay attribute is missing,
	// unparsable or not positive.
	DefaultWaitMilliseconds = 500
)

// Decision is what the classifier derives from a single message.
type Decision struct {
	WaitMilliseconds int
	IsPoison         bool
}

// Classify inspects msg without side effects.
func Classify(msg models.Message) Decision {
	return Decision{
		WaitMilliseconds: waitMilliseconds(msg),
		IsPoison:         strings.Contains(msg.Body, PoisonMarker),
	}
}

func waitMilliseconds(msg models.Message) int {
	raw, ok := msg.Attribute(models.AttributeDelay)
	if !ok {
		return DefaultWaitMilliseconds
	}
	// 32-bit range; larger values fall back like unparsable ones.
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || ms <= 0 {
		return DefaultWaitMilliseconds
	}
	return int(ms)
}

// FormatAttributes renders attributes as "key: value" pairs joined by "; ",
// sorted by key.
func FormatAttributes(msg models.Message) string {
	keys := msg.AttributeKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+msg.Attributes[k])
	}
	return strings.Join(parts, "; ")
}
