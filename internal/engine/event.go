package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types mirror rule trigger types.
const (
	// EventManual is an ad-hoc user-initiated event.
	EventManual = "manual"
	// EventTransaction is emitted once per ingested transaction.
	EventTransaction = "transaction"
	// EventSchedule is emitted by the scheduler tick.
	EventSchedule = "schedule"
)

// Event is the ephemeral input to one evaluation batch. Key is the
// idempotency key scoping a rule's evaluation to one occurrence.
type Event struct {
	Type          string // manual, transaction or schedule.
	Key           string // Idempotency key, unique per occurrence.
	TransactionID uint64 // Referenced transaction, 0 when absent.
}

// NewTransactionEvent builds the event for a newly ingested transaction.
func NewTransactionEvent(txID uint64) Event {
	return Event{
		Type:          EventTransaction,
		Key:           fmt.Sprintf("tx:%d", txID),
		TransactionID: txID,
	}
}

// NewScheduleEvent builds the periodic tick event. Keys are bucketed
// by hour so a re-fired tick inside the same hour is absorbed by the
// run ledger.
func NewScheduleEvent(at time.Time) Event {
	return Event{
		Type: EventSchedule,
		Key:  "schedule:" + at.UTC().Format("2006010215"),
	}
}

// NewManualEvent builds a one-off event for direct user action.
func NewManualEvent() Event {
	return Event{
		Type: EventManual,
		Key:  "manual:" + uuid.NewString(),
	}
}

// NewSimulationEvent builds a dry-run event for replaying a rule
// against a historical transaction.
func NewSimulationEvent(ruleID, txID uint64) Event {
	return Event{
		Type:          EventTransaction,
		Key:           fmt.Sprintf("simulate:%d:%d", ruleID, txID),
		TransactionID: txID,
	}
}
