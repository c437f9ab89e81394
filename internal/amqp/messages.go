package amqp

import (
	"encoding/json"
	"time"

	"settle/internal/core"
	"settle/internal/report"
)

// PaymentRequestMessage asks a payer to send one settlement payment.
// Consumers render Message directly; the structured fields are there for
// anything that wants to act on the request.
type PaymentRequestMessage struct {
	RunID       string      `json:"run_id"`
	Period      core.Period `json:"period"`
	Payee       string      `json:"payee"`
	Payer       string      `json:"payer"`
	AmountCents int64       `json:"amount_cents"`
	Handle      string      `json:"handle,omitempty"`
	Message     string      `json:"message"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewPaymentRequestMessages builds one message per payment in r.
func NewPaymentRequestMessages(r report.Report) []*PaymentRequestMessage {
	now := time.Now()
	msgs := make([]*PaymentRequestMessage, 0, len(r.Payments))
	for _, p := range r.Payments {
		msgs = append(msgs, &PaymentRequestMessage{
			RunID:       r.RunID,
			Period:      r.Period,
			Payee:       p.Payee,
			Payer:       p.Payer,
			AmountCents: p.AmountCents,
			Handle:      p.PayerHandle,
			Message:     p.Message,
			Timestamp:   now,
		})
	}
	return msgs
}

// ToJSON converts the message to JSON bytes
func (m *PaymentRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentRequestMessageFromJSON creates a message from JSON bytes
func PaymentRequestMessageFromJSON(data []byte) (*PaymentRequestMessage, error) {
	var msg PaymentRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
