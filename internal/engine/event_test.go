package engine

import (
	"strings"
	"testing"
	"time"
)

func TestScheduleEventKeysBucketByHour(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)

	first := NewScheduleEvent(base)
	sameHour := NewScheduleEvent(base.Add(40 * time.Minute))
	nextHour := NewScheduleEvent(base.Add(time.Hour))

	if first.Key != "schedule:2026031014" {
		t.Fatalf("unexpected key %q", first.Key)
	}
	if sameHour.Key != first.Key {
		t.Fatalf("keys within one hour must match: %q vs %q", first.Key, sameHour.Key)
	}
	if nextHour.Key == first.Key {
		t.Fatal("keys across hours must differ")
	}
}

func TestScheduleEventKeysNormalizeToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2026, 3, 10, 16, 0, 0, 0, loc)

	event := NewScheduleEvent(local)
	if event.Key != "schedule:2026031014" {
		t.Fatalf("expected UTC-bucketed key, got %q", event.Key)
	}
}

func TestTransactionEventKey(t *testing.T) {
	event := NewTransactionEvent(42)
	if event.Key != "tx:42" || event.TransactionID != 42 || event.Type != EventTransaction {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestManualEventKeysAreUnique(t *testing.T) {
	a := NewManualEvent()
	b := NewManualEvent()
	if !strings.HasPrefix(a.Key, "manual:") || a.Key == b.Key {
		t.Fatalf("manual keys must be unique: %q vs %q", a.Key, b.Key)
	}
}
