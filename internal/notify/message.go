package notify

import (
	"github.com/google/uuid"

	"github.com/tradebook/trade-service/internal/model"
)

// TypeUpserted is the message type carrying an Upsert over WebSocket.
const TypeUpserted = "trade_upserted"

// Message is the WebSocket frame relaying an upsert to remote views.
type Message struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Replaced bool         `json:"replaced"`
	Trade    *model.Trade `json:"trade,omitempty"`
}

// NewMessage wraps u in a frame with a fresh message id.
func NewMessage(u Upsert) Message {
	t := u.Trade
	return Message{
		Type:     TypeUpserted,
		ID:       uuid.NewString(),
		Replaced: u.Replaced,
		Trade:    &t,
	}
}

// Upsert converts the frame back into an Upsert. ok is false for frames of
// another type or without a trade.
func (m Message) Upsert() (Upsert, bool) {
	if m.Type != TypeUpserted || m.Trade == nil {
		return Upsert{}, false
	}
	return Upsert{Trade: *m.Trade, Replaced: m.Replaced}, true
}
