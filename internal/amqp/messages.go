package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// DistributionRecordedMessage announces a distribution saved to history.
// The worker loads the full record by ID.
type DistributionRecordedMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDistributionRecordedMessage(id string) *DistributionRecordedMessage {
	return &DistributionRecordedMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DistributionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DistributionRecordedMessageFromJSON decodes a message; an empty id is rejected.
func DistributionRecordedMessageFromJSON(data []byte) (*DistributionRecordedMessage, error) {
	var msg DistributionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("message has no distribution id")
	}
	return &msg, nil
}
