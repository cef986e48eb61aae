package webhook

import (
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MatchCollection creates a mock matcher for the JSON collection written to a Repository
func MatchCollection(matcher func([]Webhook) bool) interface{} {
	return mock.MatchedBy(func(raw string) bool {
		var webhooks []Webhook
		if err := json.Unmarshal([]byte(raw), &webhooks); err != nil {
			return false
		}
		return matcher(webhooks)
	})
}
