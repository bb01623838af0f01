// Package alerts decides which budget notifications fire and guarantees
// each one fires at most once per category per month.
package alerts

import (
	"fmt"
	"time"

	"tresor/internal/core"
)

// EventKind discriminates the two alert flavors.
type EventKind string

const (
	KindWarning    EventKind = "warning"
	KindOverBudget EventKind = "over_budget"
)

// Key marks one delivered alert: a category within a month. A key present
// in the Record suppresses every further alert for that pair until the
// month rolls over.
type Key struct {
	Month    core.MonthKey
	Category string
}

// Record is the set of alerts already delivered. It is persisted through
// a RecordStore and pruned to the current month on every reconcile.
type Record map[Key]struct{}

// NewRecord returns an empty record.
func NewRecord() Record {
	return make(Record)
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k := range r {
		out[k] = struct{}{}
	}
	return out
}

// Has reports whether the key is marked as delivered.
func (r Record) Has(k Key) bool {
	_, ok := r[k]
	return ok
}

// Forget drops the key, re-arming the alert for that category and month.
// Used when a budget is deleted mid-month.
func (r Record) Forget(k Key) {
	delete(r, k)
}

// Event is one alert to deliver to the user.
type Event struct {
	Kind     EventKind
	Month    core.MonthKey
	Category string
	Status   core.BudgetStatus
}

// Message renders the user-facing notification text.
func (e Event) Message() string {
	switch e.Kind {
	case KindOverBudget:
		return fmt.Sprintf("Budget dépassé pour %s ! Vous avez dépensé %s€ sur %s€",
			e.Category, e.Status.Spent, e.Status.BudgetLimit)
	default:
		return fmt.Sprintf("Attention ! Vous avez atteint %.0f%% de votre budget %s (seuil %.0f%%)",
			e.Status.Percentage, e.Category, e.Status.Threshold)
	}
}

// DurationHint is how long the notification should stay visible.
func (e Event) DurationHint() time.Duration {
	if e.Kind == KindOverBudget {
		return 10 * time.Second
	}
	return 8 * time.Second
}

// Reconcile compares budget statuses against the delivered-alert record
// and returns the events that must fire now plus the updated record.
//
// The record is first rolled over: keys from any month other than now's
// are pruned, so a category that alerted last month can alert again this
// month. For each status, an over-budget or warning event fires only if
// the (month, category) key is absent; firing adds the key. Statuses that
// are neither warning nor over budget leave the record untouched, so a
// later crossing within the same month still fires. Once a key is added
// it stays for the rest of the month; a status that drops below the
// threshold and rises again is deliberately not re-notified.
//
// Reconcile never mutates its input record; persistence of the returned
// record and delivery of the events are the caller's concern.
func Reconcile(statuses []core.BudgetStatus, record Record, now time.Time) ([]Event, Record) {
	month := core.MonthKeyOf(now)

	updated := make(Record, len(record))
	for k := range record {
		if k.Month == month {
			updated[k] = struct{}{}
		}
	}

	var events []Event
	for _, s := range statuses {
		key := Key{Month: month, Category: s.Category}
		if updated.Has(key) {
			continue
		}
		switch {
		case s.IsOverBudget:
			events = append(events, Event{Kind: KindOverBudget, Month: month, Category: s.Category, Status: s})
			updated[key] = struct{}{}
		case s.IsWarning:
			events = append(events, Event{Kind: KindWarning, Month: month, Category: s.Category, Status: s})
			updated[key] = struct{}{}
		}
	}
	return events, updated
}
