// Package receipt drives the lifecycle of a scanned receipt from upload
// through transaction submission. A Session is a state machine owned by
// a single user interaction; callers serialize access to it.
package receipt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"tresor/internal/core"
)

// State identifies one phase of the receipt workflow.
type State string

const (
	StateIdle            State = "idle"
	StateUploading       State = "uploading"
	StateFailed          State = "failed"
	StateSingleMatch     State = "single_match"
	StateMultiMatch      State = "multi_match"
	StateNoMatch         State = "no_match"
	StateSubmitting      State = "submitting"
	StateCommitted       State = "committed"
	StatePartiallyFailed State = "partially_failed"
)

var (
	ErrNotImage        = errors.New("receipt: file is not an image")
	ErrStaleGeneration = errors.New("receipt: result belongs to a superseded upload")
	ErrInvalidState    = errors.New("receipt: operation not allowed in current state")
	ErrDraftNotFound   = errors.New("receipt: draft not found")
	ErrInvalidDrafts   = errors.New("receipt: one or more drafts are incomplete")
	ErrNoDrafts        = errors.New("receipt: nothing to submit")
)

// Draft is one editable candidate transaction derived from a detected
// line item. Amount stays a raw string until submission so the user can
// type freely; Valid reflects the last validation pass.
type Draft struct {
	ID          string
	Description string
	Amount      string
	Category    string
	Valid       bool
}

// SingleForm holds the prefilled fields for the single-result path.
type SingleForm struct {
	Description string
	Amount      string
	Category    string
}

// Session is the per-user receipt reconciliation state machine. It is
// not safe for concurrent use; the owning service guards it.
type Session struct {
	state      State
	generation uint64
	ticketID   string
	drafts     []Draft
	form       SingleForm
	warning    string
	lastErr    error
}

// NewSession returns a session in the idle state.
func NewSession() *Session {
	return &Session{state: StateIdle}
}

func (s *Session) State() State       { return s.state }
func (s *Session) Generation() uint64 { return s.generation }
func (s *Session) TicketID() string   { return s.ticketID }
func (s *Session) Form() SingleForm   { return s.form }

// Warning returns the advisory message from the last detection, such as
// an unknown predicted category. It does not block submission.
func (s *Session) Warning() string { return s.warning }

// LastError returns the failure that moved the session into the failed
// state, or nil.
func (s *Session) LastError() error { return s.lastErr }

// Drafts returns a copy of the current draft list.
func (s *Session) Drafts() []Draft {
	out := make([]Draft, len(s.drafts))
	copy(out, s.drafts)
	return out
}

// BeginUpload validates the file type and moves the session into the
// uploading state. It returns the generation that any asynchronous
// result must present; results carrying an older generation are
// discarded. Non-image files are rejected without leaving the current
// state.
func (s *Session) BeginUpload(filename, contentType string) (uint64, error) {
	if s.state == StateUploading || s.state == StateSubmitting {
		return 0, fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	if !isImage(filename, contentType) {
		return 0, ErrNotImage
	}
	s.generation++
	s.state = StateUploading
	s.drafts = nil
	s.form = SingleForm{}
	s.ticketID = ""
	s.warning = ""
	s.lastErr = nil
	return s.generation, nil
}

// ApplyDetection consumes an extraction result for the given generation.
// Structured items win over the legacy flat fields; an empty result is a
// no-match. Stale generations are ignored with ErrStaleGeneration so a
// late callback from a cancelled upload cannot clobber newer state.
func (s *Session) ApplyDetection(generation uint64, det Detection, kind core.TransactionKind) error {
	if generation != s.generation {
		return ErrStaleGeneration
	}
	if s.state != StateUploading {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.ticketID = det.TicketID
	s.warning = ""

	switch {
	case det.HasItems():
		s.drafts = draftsFromItems(det.Items)
		s.state = StateMultiMatch
	case det.HasFlatFields():
		s.form = SingleForm{
			Description: strings.TrimSpace(det.Description),
			Amount:      det.Amount,
		}
		if det.PredictedCategory != "" {
			if core.IsKnownCategory(kind, det.PredictedCategory) {
				s.form.Category = det.PredictedCategory
			} else {
				s.warning = fmt.Sprintf("catégorie prédite inconnue: %s", det.PredictedCategory)
			}
		}
		s.state = StateSingleMatch
	default:
		s.state = StateNoMatch
	}
	return nil
}

// FailUpload records an extraction failure for the given generation.
func (s *Session) FailUpload(generation uint64, cause error) error {
	if generation != s.generation {
		return ErrStaleGeneration
	}
	if s.state != StateUploading {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.lastErr = cause
	s.state = StateFailed
	return nil
}

// UpdateDraft replaces the editable fields of one draft and revalidates
// it. Allowed while reviewing items and after a partial failure.
func (s *Session) UpdateDraft(id, description, amount, category string) error {
	if s.state != StateMultiMatch && s.state != StatePartiallyFailed {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	for i := range s.drafts {
		if s.drafts[i].ID != id {
			continue
		}
		s.drafts[i].Description = description
		s.drafts[i].Amount = amount
		s.drafts[i].Category = category
		s.drafts[i].Valid = draftComplete(s.drafts[i])
		return nil
	}
	return ErrDraftNotFound
}

// RemoveDraft drops one draft from the list. Removing the last draft
// leaves the session where it is; switching to the manual form is an
// explicit user action, never an automatic transition.
func (s *Session) RemoveDraft(id string) error {
	if s.state != StateMultiMatch && s.state != StatePartiallyFailed {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	for i := range s.drafts {
		if s.drafts[i].ID == id {
			s.drafts = append(s.drafts[:i], s.drafts[i+1:]...)
			return nil
		}
	}
	return ErrDraftNotFound
}

// UseManualForm abandons the draft list in favor of the single manual
// form. Valid from any reviewing state.
func (s *Session) UseManualForm() error {
	switch s.state {
	case StateMultiMatch, StateNoMatch, StateFailed, StatePartiallyFailed:
		s.drafts = nil
		s.state = StateSingleMatch
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
}

// SetForm updates the single-result form fields.
func (s *Session) SetForm(description, amount, category string) error {
	if s.state != StateSingleMatch && s.state != StateNoMatch {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.form = SingleForm{Description: description, Amount: amount, Category: category}
	return nil
}

// BeginSubmit moves the session into the submitting state and returns
// the drafts to commit. In multi mode every draft must be complete; in
// single mode the form is converted into one draft. Partial failures
// may be resubmitted with only the remaining drafts.
func (s *Session) BeginSubmit() ([]Draft, error) {
	switch s.state {
	case StateMultiMatch, StatePartiallyFailed:
		if len(s.drafts) == 0 {
			return nil, ErrNoDrafts
		}
		for _, d := range s.drafts {
			if !draftComplete(d) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDrafts, d.Description)
			}
		}
	case StateSingleMatch, StateNoMatch:
		d := Draft{
			ID:          uuid.NewString(),
			Description: s.form.Description,
			Amount:      s.form.Amount,
			Category:    s.form.Category,
		}
		if !draftComplete(d) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDrafts, d.Description)
		}
		s.drafts = []Draft{d}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.state = StateSubmitting
	return s.Drafts(), nil
}

// FinishSubmit applies a commit outcome. Full success clears the
// session back to idle; a partial failure keeps only the failed drafts
// so the user can correct and retry them.
func (s *Session) FinishSubmit(outcome CommitOutcome) error {
	if s.state != StateSubmitting {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	if outcome.Success() {
		s.reset()
		s.state = StateCommitted
		return nil
	}
	remaining := s.drafts[:0:0]
	for _, d := range s.drafts {
		if !outcome.succeeded[d.ID] {
			remaining = append(remaining, d)
		}
	}
	s.drafts = remaining
	s.state = StatePartiallyFailed
	return nil
}

// Cancel abandons the workflow and returns to idle. The generation is
// bumped so any in-flight extraction result is discarded on arrival.
func (s *Session) Cancel() {
	s.generation++
	s.reset()
	s.state = StateIdle
}

func (s *Session) reset() {
	s.drafts = nil
	s.form = SingleForm{}
	s.ticketID = ""
	s.warning = ""
	s.lastErr = nil
}

func draftsFromItems(items []DetectedItem) []Draft {
	drafts := make([]Draft, 0, len(items))
	for _, it := range items {
		d := Draft{
			ID:          uuid.NewString(),
			Description: strings.TrimSpace(it.Label),
			Amount:      formatAmount(it.Amount),
		}
		d.Valid = draftComplete(d)
		drafts = append(drafts, d)
	}
	return drafts
}

func formatAmount(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// draftComplete reports whether a draft can be turned into a
// transaction: non-blank description, a parseable positive amount and a
// chosen category.
func draftComplete(d Draft) bool {
	if strings.TrimSpace(d.Description) == "" {
		return false
	}
	if _, err := core.ParseDecimalToCents(d.Amount); err != nil {
		return false
	}
	return d.Category != ""
}

// isImage mirrors the upload filter of the capture dialog: the content
// type wins when present, otherwise the extension decides.
func isImage(filename, contentType string) bool {
	if contentType != "" {
		return strings.HasPrefix(contentType, "image/")
	}
	ext := strings.ToLower(filename)
	for _, suffix := range []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".gif"} {
		if strings.HasSuffix(ext, suffix) {
			return true
		}
	}
	return false
}
