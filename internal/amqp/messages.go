package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"expenseui/internal/controller"
)

// ExpenseChangedMessage announces one accepted write. Deleted expenses carry
// only the id.
type ExpenseChangedMessage struct {
	MessageID     string           `json:"message_id"`
	Kind          string           `json:"kind"`
	ID            int64            `json:"id"`
	Username      string           `json:"username,omitempty"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category,omitempty"`
	AmountWithTax *decimal.Decimal `json:"amount_with_tax,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// NewExpenseChangedMessage builds the message for a controller change.
func NewExpenseChangedMessage(ch controller.Change) *ExpenseChangedMessage {
	msg := &ExpenseChangedMessage{
		MessageID: uuid.NewString(),
		Kind:      string(ch.Kind),
		ID:        ch.RecordID,
		Username:  ch.Username,
		Timestamp: time.Now().UTC(),
	}
	if ch.Kind != controller.ChangeDeleted {
		msg.Description = ch.Record.Description
		msg.Category = ch.Record.Category
		amount := ch.Record.AmountWithTax
		msg.AmountWithTax = &amount
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON creates a message from JSON bytes
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
