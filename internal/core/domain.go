package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

type (
	TransactionKind string

	// Transaction is a single committed income or expense entry.
	Transaction struct {
		ID          string
		Description string
		Amount      Money
		Kind        TransactionKind
		Category    string // may be empty
		Date        Date
		TicketID    string // receipt back-reference, may be empty
		CreatedAt   time.Time
	}

	// Budget caps monthly spending for one expense category. At most one
	// budget may exist per category for a given user.
	Budget struct {
		ID                    string
		Category              string
		MonthlyLimit          Money
		NotificationThreshold float64 // percentage, 0-100
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")
)

// ExpenseCategories lists the categories selectable for expense entries.
var ExpenseCategories = []string{
	"Alimentation",
	"Transport",
	"Logement",
	"Loisirs",
	"Santé",
	"Éducation",
	"Shopping",
	"Factures",
	"Autres",
}

// IncomeCategories lists the categories selectable for income entries.
var IncomeCategories = []string{
	"Salaire",
	"Freelance",
	"Investissements",
	"Autres revenus",
}

// CategoriesForKind returns the category set a transaction of the given
// kind may use.
func CategoriesForKind(kind TransactionKind) []string {
	if kind == Income {
		return IncomeCategories
	}
	return ExpenseCategories
}

// IsKnownCategory reports whether name belongs to the category set for kind.
func IsKnownCategory(kind TransactionKind, name string) bool {
	for _, c := range CategoriesForKind(kind) {
		if c == name {
			return true
		}
	}
	return false
}

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.MonthlyLimit.Validate(); err != nil {
		return err
	}
	if b.NotificationThreshold < 0 || b.NotificationThreshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}
