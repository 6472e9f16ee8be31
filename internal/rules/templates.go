package rules

import (
	"encoding/json"
	"fmt"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
)

// Template is a starter rule definition for the rule builder.
type Template struct {
	Key         string `json:"key"`         // Stable template identifier.
	Name        string `json:"name"`        // Suggested rule name.
	Description string `json:"description"` // One-line summary for pickers.

	Priority      int
	TriggerType   string
	TriggerConfig engine.TriggerConfig
	Conditions    []engine.Condition
	Actions       []engine.Action
}

func rawNumber(v float64) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Templates returns the built-in starter templates.
func Templates() []Template {
	return []Template{
		{
			Key:         "income_to_essentials",
			Name:        "Income to Essentials (50%)",
			Description: "Allocate half of each incoming payroll deposit to an essentials pod.",
			Priority:    120,
			TriggerType: models.TriggerTransaction,
			TriggerConfig: engine.TriggerConfig{
				DescriptionContains: "payroll",
			},
			Conditions: []engine.Condition{
				{Type: engine.CondAmountGTE, Value: rawNumber(100)},
			},
			Actions: []engine.Action{
				{Type: engine.ActAllocatePercent, Percent: 50},
			},
		},
		{
			Key:         "large_expense_alert",
			Name:        "Large Expense Alert Task",
			Description: "Create a review task when any single outflow exceeds 500.",
			Priority:    110,
			TriggerType: models.TriggerTransaction,
			Conditions: []engine.Condition{
				{Type: engine.CondAmountGTE, Value: rawNumber(500)},
			},
			Actions: []engine.Action{
				{
					Type:  engine.ActLiabilitySuggestion,
					Title: "Review large expense",
					Note:  "A transaction over 500 was detected.",
				},
			},
		},
		{
			Key:         "monthly_debt_reminder",
			Name:        "Monthly Debt Reminder",
			Description: "On the first of each month, create a debt payment task.",
			Priority:    100,
			TriggerType: models.TriggerSchedule,
			Conditions: []engine.Condition{
				{Type: engine.CondDayOfMonthEq, Value: rawNumber(1)},
			},
			Actions: []engine.Action{
				{
					Type:  engine.ActLiabilitySuggestion,
					Title: "Pay monthly debt installment",
					Note:  "Scheduled monthly reminder.",
				},
			},
		},
	}
}

// TemplateByKey looks up a template by its stable key.
func TemplateByKey(key string) (*Template, error) {
	for _, tpl := range Templates() {
		if tpl.Key == key {
			return &tpl, nil
		}
	}
	return nil, fmt.Errorf("rules: unknown template: %s", key)
}

// BuildTemplatePayload converts a template into a SaveInput, pointing
// percent and fixed allocations at the given pod when one is supplied.
func BuildTemplatePayload(tpl Template, podID uint64) (SaveInput, error) {
	actions := make([]engine.Action, len(tpl.Actions))
	copy(actions, tpl.Actions)
	if podID != 0 {
		for i := range actions {
			switch actions[i].Type {
			case engine.ActAllocateFixed, engine.ActAllocatePercent, engine.ActTopUpPod:
				actions[i].PodID = podID
			}
		}
	}

	trigger, errTrigger := json.Marshal(tpl.TriggerConfig)
	if errTrigger != nil {
		return SaveInput{}, fmt.Errorf("rules: encode trigger config: %w", errTrigger)
	}
	conditions, errConditions := json.Marshal(tpl.Conditions)
	if errConditions != nil {
		return SaveInput{}, fmt.Errorf("rules: encode conditions: %w", errConditions)
	}
	encodedActions, errActions := json.Marshal(actions)
	if errActions != nil {
		return SaveInput{}, fmt.Errorf("rules: encode actions: %w", errActions)
	}

	return SaveInput{
		Name:          tpl.Name,
		Priority:      tpl.Priority,
		TriggerType:   tpl.TriggerType,
		TriggerConfig: trigger,
		Conditions:    conditions,
		Actions:       encodedActions,
	}, nil
}
