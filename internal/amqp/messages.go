package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entities that publish mutation events.
const (
	EntityResident  = "resident"
	EntityHouse     = "house"
	EntityOccupancy = "inhabitant_history"
	EntityPayment   = "payment"
	EntityExpense   = "expense"
)

// Actions carried by a MutationMessage.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// MutationMessage announces that one record changed on the backend.
// It carries only the identity; consumers fetch the current state themselves.
type MutationMessage struct {
	MessageID string    `json:"message_id"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	EntityID  int64     `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage stamps a message with a fresh id and the current time.
func NewMutationMessage(entity, action string, id int64) *MutationMessage {
	return &MutationMessage{
		MessageID: uuid.NewString(),
		Entity:    entity,
		Action:    action,
		EntityID:  id,
		Timestamp: time.Now(),
	}
}

// EventType names the event as "entity.action", e.g. "payment.created".
func (m *MutationMessage) EventType() string {
	return m.Entity + "." + m.Action
}

func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON decodes a delivery body; messages without an
// entity or id are rejected.
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.EntityID <= 0 {
		return nil, errors.New("mutation message missing entity or id")
	}
	return &msg, nil
}
