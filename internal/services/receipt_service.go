package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"tresor/internal/core"
	"tresor/internal/finance"
	"tresor/internal/receipt"
)

// Extractor is the OCR collaborator.
type Extractor interface {
	ProcessTicket(ctx context.Context, filename, contentType string, image io.Reader) (receipt.Detection, error)
}

// ReceiptService owns one reconciliation session per user and bridges
// the session state machine to the extractor and the transaction
// service.
type ReceiptService struct {
	mu       sync.Mutex
	sessions map[string]*receipt.Session

	extractor    Extractor
	tickets      finance.TicketStore
	transactions *TransactionService
}

func NewReceiptService(extractor Extractor, tickets finance.TicketStore, transactions *TransactionService) *ReceiptService {
	return &ReceiptService{
		sessions:     make(map[string]*receipt.Session),
		extractor:    extractor,
		tickets:      tickets,
		transactions: transactions,
	}
}

func (s *ReceiptService) session(userID string) *receipt.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = receipt.NewSession()
		s.sessions[userID] = sess
	}
	return sess
}

// SessionView is a read-only snapshot of the user's session.
type SessionView struct {
	State    receipt.State
	Drafts   []receipt.Draft
	Form     receipt.SingleForm
	Warning  string
	TicketID string
}

func (s *ReceiptService) View(userID string) SessionView {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		State:    sess.State(),
		Drafts:   sess.Drafts(),
		Form:     sess.Form(),
		Warning:  sess.Warning(),
		TicketID: sess.TicketID(),
	}
}

// Upload runs one extraction round trip. The session mutex is released
// while the extractor call is in flight, so the user can cancel; a
// cancelled upload's late result is discarded by its stale generation.
func (s *ReceiptService) Upload(ctx context.Context, userID, filename, contentType string, image io.Reader, kind core.TransactionKind) (SessionView, error) {
	sess := s.session(userID)

	s.mu.Lock()
	generation, err := sess.BeginUpload(filename, contentType)
	s.mu.Unlock()
	if err != nil {
		return s.View(userID), err
	}

	detection, ocrErr := s.extractor.ProcessTicket(ctx, filename, contentType, image)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ocrErr != nil {
		if err := sess.FailUpload(generation, ocrErr); err != nil {
			slog.WarnContext(ctx, "Discarding stale extraction failure", "user_id", userID, "error", ocrErr)
		}
		return s.viewLocked(sess), ocrErr
	}

	if detection.TicketID == "" {
		detection.TicketID = uuid.NewString()
	}
	if s.tickets != nil {
		if _, err := s.tickets.SaveTicket(ctx, finance.Ticket{
			ID:      detection.TicketID,
			UserID:  userID,
			RawText: detection.RawText,
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to save ticket", "user_id", userID, "error", err)
		}
	}

	if err := sess.ApplyDetection(generation, detection, kind); err != nil {
		slog.WarnContext(ctx, "Discarding stale extraction result", "user_id", userID, "error", err)
		return s.viewLocked(sess), nil
	}
	return s.viewLocked(sess), nil
}

func (s *ReceiptService) viewLocked(sess *receipt.Session) SessionView {
	return SessionView{
		State:    sess.State(),
		Drafts:   sess.Drafts(),
		Form:     sess.Form(),
		Warning:  sess.Warning(),
		TicketID: sess.TicketID(),
	}
}

func (s *ReceiptService) UpdateDraft(userID, draftID, description, amount, category string) error {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.UpdateDraft(draftID, description, amount, category)
}

func (s *ReceiptService) RemoveDraft(userID, draftID string) error {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.RemoveDraft(draftID)
}

func (s *ReceiptService) UseManualForm(userID string) error {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.UseManualForm()
}

func (s *ReceiptService) SetForm(userID, description, amount, category string) error {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.SetForm(description, amount, category)
}

func (s *ReceiptService) Cancel(userID string) {
	sess := s.session(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Cancel()
}

// Submit commits the session's drafts as transactions. Drafts that
// persist are dropped from the session; failed ones stay editable for a
// retry.
func (s *ReceiptService) Submit(ctx context.Context, userID string, shared receipt.SharedFields) (receipt.CommitOutcome, error) {
	sess := s.session(userID)

	s.mu.Lock()
	if shared.TicketID == "" {
		shared.TicketID = sess.TicketID()
	}
	drafts, err := sess.BeginSubmit()
	s.mu.Unlock()
	if err != nil {
		return receipt.CommitOutcome{}, err
	}

	outcome := receipt.CommitAll(ctx, drafts, shared, func(ctx context.Context, req receipt.CreateRequest) error {
		_, err := s.transactions.Create(ctx, userID, core.Transaction{
			Description: req.Description,
			Amount:      req.Amount,
			Kind:        req.Kind,
			Category:    req.Category,
			Date:        req.Date,
			TicketID:    req.TicketID,
		})
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := sess.FinishSubmit(outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}
