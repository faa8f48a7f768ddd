package trigger

import (
	"strings"

	"sms-hub/internal/models"
)

// Matches reports whether msg passes both filters of cfg. The sender filter
// is a case-sensitive substring match, the message filter a case-insensitive
// one. An empty filter always matches; a non-empty filter never matches a
// missing field.
func Matches(cfg models.PollConfiguration, msg models.RawInboundMessage) bool {
	return matchesSender(cfg.SenderFilter, msg.Sender) && matchesMessage(cfg.MessageFilter, msg.Message)
}

func matchesSender(filter string, sender *string) bool {
	if filter == "" {
		return true
	}
	return sender != nil && strings.Contains(*sender, filter)
}

func matchesMessage(filter string, message *string) bool {
	if filter == "" {
		return true
	}
	return message != nil && strings.Contains(strings.ToLower(*message), strings.ToLower(filter))
}
