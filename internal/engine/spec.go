package engine

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Condition kinds the evaluator understands. Anything else evaluates
// false (fail-closed).
const (
	// CondAmountGTE passes when the converted amount is at least the value.
	CondAmountGTE = "amount_gte"
	// CondAmountLTE passes when the converted amount is at most the value.
	CondAmountLTE = "amount_lte"
	// CondCurrencyEq passes when the transaction currency equals the value.
	CondCurrencyEq = "currency_eq"
	// CondDayOfMonthEq passes when the clock's day of month equals the value.
	CondDayOfMonthEq = "day_of_month_eq"
	// CondBalanceGTE passes when the latest balance is at least the value.
	CondBalanceGTE = "balance_gte"
)

// Action kinds the executor understands. Anything else fails the
// action hard: an unrecognized kind in a committed rule means a
// corrupt or forward-incompatible rule and must halt the run.
const (
	// ActAllocateFixed allocates a fixed amount into a pod.
	ActAllocateFixed = "allocate_fixed"
	// ActAllocatePercent allocates a percentage of the transaction amount.
	ActAllocatePercent = "allocate_percent"
	// ActTopUpPod allocates whatever a pod needs to reach its target.
	ActTopUpPod = "top_up_pod"
	// ActLiabilitySuggestion suggests a manual payment task.
	ActLiabilitySuggestion = "liability_suggestion"
)

// Condition is one ordered predicate inside a rule. Value is kept raw
// because known kinds disagree on its type (number vs currency code);
// the typed accessors below coerce it per kind.
type Condition struct {
	Type  string          `json:"type"`            // Condition kind.
	Value json.RawMessage `json:"value,omitempty"` // Kind-dependent payload.
}

// floatValue coerces the condition value to a float64.
func (c Condition) floatValue() (float64, bool) {
	var v float64
	if err := json.Unmarshal(c.Value, &v); err == nil {
		return v, true
	}
	// Tolerate numeric strings from hand-edited rules.
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		var parsed float64
		if _, errScan := fmt.Sscanf(s, "%g", &parsed); errScan == nil {
			return parsed, true
		}
	}
	return 0, false
}

// stringValue coerces the condition value to a string.
func (c Condition) stringValue() string {
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	return string(c.Value)
}

// Action is one ordered step inside a rule's action list.
type Action struct {
	Type          string  `json:"type"`                      // Action kind.
	Amount        float64 `json:"amount,omitempty"`          // allocate_fixed amount.
	Percent       float64 `json:"percent,omitempty"`         // allocate_percent percentage.
	PodID         uint64  `json:"pod_id,omitempty"`          // Target pod.
	Target        float64 `json:"target,omitempty"`          // top_up_pod target balance.
	UpToAvailable bool    `json:"up_to_available,omitempty"` // Clamp to available-above-floor.
	Title         string  `json:"title,omitempty"`           // liability_suggestion title.
	Note          string  `json:"note,omitempty"`            // liability_suggestion note.
}

// TriggerConfig is the decoded trigger filter payload for
// transaction-triggered rules. Absent fields mean no constraint.
type TriggerConfig struct {
	DescriptionContains string `json:"description_contains,omitempty"` // Case-insensitive substring filter.
	Currency            string `json:"currency,omitempty"`             // Case-insensitive currency filter.
}

// DecodeConditions parses a rule's stored condition list.
func DecodeConditions(raw datatypes.JSON) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []Condition
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("engine: decode conditions: %w", err)
	}
	return out, nil
}

// DecodeActions parses a rule's stored action list.
func DecodeActions(raw datatypes.JSON) ([]Action, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []Action
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("engine: decode actions: %w", err)
	}
	return out, nil
}

// DecodeTriggerConfig parses a rule's stored trigger configuration.
func DecodeTriggerConfig(raw datatypes.JSON) (TriggerConfig, error) {
	var cfg TriggerConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return TriggerConfig{}, fmt.Errorf("engine: decode trigger config: %w", err)
	}
	return cfg, nil
}
