package engine

import (
	"strings"

	"github.com/flowledger/flowledger/internal/models"
)

// Matches reports whether an event is of interest to a rule. It is a
// pure function over the rule's trigger type and configuration;
// conditions and guardrails play no part here. Unknown trigger types
// never match.
func Matches(rule models.Rule, event Event, tx *models.Transaction) bool {
	switch rule.TriggerType {
	case models.TriggerManual:
		return event.Type == EventManual
	case models.TriggerSchedule:
		return event.Type == EventSchedule
	case models.TriggerTransaction:
		if event.Type != EventTransaction || tx == nil {
			return false
		}
		cfg, errDecode := DecodeTriggerConfig(rule.TriggerConfig)
		if errDecode != nil {
			// Unparseable filters reject rather than match everything.
			return false
		}
		if cfg.DescriptionContains != "" &&
			!strings.Contains(strings.ToLower(tx.Description), strings.ToLower(cfg.DescriptionContains)) {
			return false
		}
		if cfg.Currency != "" && !strings.EqualFold(tx.Currency, cfg.Currency) {
			return false
		}
		return true
	default:
		return false
	}
}
