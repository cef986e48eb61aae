package payload

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/marcelsud/chat-webhooks/webhook"
)

// TimestampLayout is how {{timestamp}} is rendered: UTC with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Placeholder names understood by Render
const (
	Message   = "message"
	User      = "user"
	Timestamp = "timestamp"
	Channel   = "channel"
	MessageID = "messageId"
	App       = "app"
	Test      = "test"
)

// Values returns the placeholder values for tc keyed by placeholder name
func Values(tc webhook.TriggerContext) map[string]string {
	return map[string]string{
		Message:   tc.Message,
		User:      tc.User,
		Timestamp: tc.Timestamp.UTC().Format(TimestampLayout),
		Channel:   tc.Channel,
		MessageID: tc.MessageID,
		App:       tc.App,
		Test:      strconv.FormatBool(tc.Test),
	}
}

/* Render substitutes every known {{name}} placeholder in tmpl with its value from tc
 * Unknown placeholders are left verbatim and substituted values are never rescanned,
 * so the output only depends on tmpl and tc
 */
func Render(tmpl string, tc webhook.TriggerContext) string {
	return replacer(Values(tc), nil).Replace(tmpl)
}

// RenderURL is Render with every value query-escaped
func RenderURL(tmpl string, tc webhook.TriggerContext) string {
	return replacer(Values(tc), url.QueryEscape).Replace(tmpl)
}

func replacer(values map[string]string, escape func(string) string) *strings.Replacer {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		if escape != nil {
			value = escape(value)
		}
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...)
}
