package engine

import (
	"testing"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/datatypes"
)

func TestMatchesTransactionFilters(t *testing.T) {
	tx := &models.Transaction{Description: "ACME Payroll Deposit", Currency: "USD"}
	event := NewTransactionEvent(1)

	cases := []struct {
		name   string
		config string
		want   bool
	}{
		{"empty config matches", `{}`, true},
		{"case-insensitive substring", `{"description_contains":"payroll"}`, true},
		{"substring miss", `{"description_contains":"rent"}`, false},
		{"currency match ignores case", `{"currency":"usd"}`, true},
		{"currency miss", `{"currency":"EUR"}`, false},
		{"both filters", `{"description_contains":"PAYROLL","currency":"USD"}`, true},
		{"unparseable config rejects", `{"description_contains":`, false},
	}
	for _, tc := range cases {
		rule := models.Rule{
			TriggerType:   models.TriggerTransaction,
			TriggerConfig: datatypes.JSON(tc.config),
		}
		if got := Matches(rule, event, tx); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchesRequiresMatchingEventType(t *testing.T) {
	tx := &models.Transaction{Description: "Payroll"}

	manualRule := models.Rule{TriggerType: models.TriggerManual}
	if !Matches(manualRule, NewManualEvent(), nil) {
		t.Fatal("manual rule must match manual events")
	}
	if Matches(manualRule, NewTransactionEvent(1), tx) {
		t.Fatal("manual rule must not match transaction events")
	}

	scheduleRule := models.Rule{TriggerType: models.TriggerSchedule}
	if Matches(scheduleRule, NewManualEvent(), nil) {
		t.Fatal("schedule rule must not match manual events")
	}

	txRule := models.Rule{TriggerType: models.TriggerTransaction, TriggerConfig: datatypes.JSON("{}")}
	if Matches(txRule, NewTransactionEvent(1), nil) {
		t.Fatal("transaction rule must not match without a transaction")
	}

	unknown := models.Rule{TriggerType: "webhook"}
	if Matches(unknown, NewManualEvent(), nil) {
		t.Fatal("unknown trigger types must never match")
	}
}
