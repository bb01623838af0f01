package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the export worker to push one committed
// transaction to the spreadsheet. It carries only identifiers; the
// worker fetches the full row from the database.
type TransactionSyncMessage struct {
	QueueID       int64     `json:"queue_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(queueID int64, transactionID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		QueueID:       queueID,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BudgetAlertMessage is a budget notification fanned out to delivery
// channels.
type BudgetAlertMessage struct {
	UserID     string    `json:"user_id"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	DurationMS int64     `json:"duration_ms"`
	Month      string    `json:"month"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
