package delivery

import (
	"sort"

	"github.com/marcelsud/chat-webhooks/webhook/payload"
)

// FallbackNotice is shown when no webhook produced a usable reply
const FallbackNotice = "No webhook replied to this message."

// ReplyText is the reply extracted from one successful result
type ReplyText struct {
	WebhookID   string `json:"webhook_id"`
	WebhookName string `json:"webhook_name"`
	Text        string `json:"text"`
}

// Reply is what the chat layer shows after a trigger
type Reply struct {
	Texts     []ReplyText `json:"texts"`
	Notice    string      `json:"notice,omitempty"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

/* Replies extracts reply text from successful results, ordered by webhook name then id
 * Notice is set only when no webhook produced usable text; partial failures are counted,
 * not reported
 */
func Replies(results map[string]Result) Reply {
	ordered := make([]Result, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].WebhookName != ordered[j].WebhookName {
			return ordered[i].WebhookName < ordered[j].WebhookName
		}
		return ordered[i].WebhookID < ordered[j].WebhookID
	})

	var reply Reply
	for _, r := range ordered {
		if !r.Success {
			reply.Failed++
			continue
		}
		reply.Succeeded++
		if text, ok := payload.ReplyText(r.Body); ok {
			reply.Texts = append(reply.Texts, ReplyText{
				WebhookID:   r.WebhookID,
				WebhookName: r.WebhookName,
				Text:        text,
			})
		}
	}
	if len(results) > 0 && len(reply.Texts) == 0 {
		reply.Notice = FallbackNotice
	}
	return reply
}
