package receipt

import (
	"context"
	"fmt"

	"tresor/internal/core"
)

// SharedFields carry the attributes common to every draft of one
// submission: the dialog's kind and date selection plus the receipt the
// transactions trace back to.
type SharedFields struct {
	Kind     core.TransactionKind
	Date     core.Date
	TicketID string
}

// CreateRequest is what the coordinator hands to the creation function
// for each draft.
type CreateRequest struct {
	Description string
	Amount      core.Money
	Kind        core.TransactionKind
	Category    string
	Date        core.Date
	TicketID    string
}

// CreateFunc persists one transaction. It is called once per draft.
type CreateFunc func(ctx context.Context, req CreateRequest) error

// CommitOutcome summarizes one submission pass.
type CommitOutcome struct {
	Attempted int
	Failed    []string // descriptions of drafts that did not persist
	succeeded map[string]bool
}

// Success reports whether every attempted draft was persisted.
func (o CommitOutcome) Success() bool { return len(o.Failed) == 0 }

// Succeeded reports whether the draft with the given id was persisted.
func (o CommitOutcome) Succeeded(id string) bool { return o.succeeded[id] }

// CommitAll persists the drafts one at a time, in order. A failure does
// not stop the pass: later drafts are still attempted, and the outcome
// records which drafts failed so the caller can keep them editable and
// drop the ones that went through. The context is checked between
// drafts; a cancelled context counts the remaining drafts as failed.
func CommitAll(ctx context.Context, drafts []Draft, shared SharedFields, create CreateFunc) CommitOutcome {
	outcome := CommitOutcome{
		Attempted: len(drafts),
		succeeded: make(map[string]bool, len(drafts)),
	}
	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			outcome.Failed = append(outcome.Failed, d.Description)
			continue
		}
		req, err := buildRequest(d, shared)
		if err == nil {
			err = create(ctx, req)
		}
		if err != nil {
			outcome.Failed = append(outcome.Failed, d.Description)
			continue
		}
		outcome.succeeded[d.ID] = true
	}
	return outcome
}

func buildRequest(d Draft, shared SharedFields) (CreateRequest, error) {
	cents, err := core.ParseDecimalToCents(d.Amount)
	if err != nil {
		return CreateRequest{}, fmt.Errorf("parse amount %q: %w", d.Amount, err)
	}
	return CreateRequest{
		Description: d.Description,
		Amount:      core.Money{Cents: cents},
		Kind:        shared.Kind,
		Category:    d.Category,
		Date:        shared.Date,
		TicketID:    shared.TicketID,
	}, nil
}
