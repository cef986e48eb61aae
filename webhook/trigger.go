package webhook

import (
	"fmt"
	"time"
)

// TriggerContext carries the values of one chat-send event into template rendering
type TriggerContext struct {
	Message   string
	User      string
	Channel   string
	MessageID string
	Timestamp time.Time
	App       string
	Test      bool
}

// NewTestContext builds the synthetic context used by connectivity probes
func NewTestContext(app string, now time.Time) TriggerContext {
	return TriggerContext{
		Message:   fmt.Sprintf("This is a test message from %s", app),
		User:      "Test User",
		Channel:   "test",
		MessageID: fmt.Sprintf("test-%d", now.UnixMilli()),
		Timestamp: now,
		App:       app,
		Test:      true,
	}
}
