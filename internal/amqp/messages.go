package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys on the income exchange.
const (
	RoutingSourceChanged = "income.source.changed"
	RoutingRecordSync    = "income.record.sync"
)

// SourceChangedMessage tells the scheduler that a source was created or
// edited and its pending records should be regenerated.
type SourceChangedMessage struct {
	SourceID  int64     `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordSyncMessage asks the sync worker to export one record. Only the ID
// travels; the worker reads the current row from the database.
type RecordSyncMessage struct {
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSourceChangedMessage(sourceID int64) *SourceChangedMessage {
	return &SourceChangedMessage{SourceID: sourceID, Timestamp: time.Now()}
}

func NewRecordSyncMessage(recordID int64) *RecordSyncMessage {
	return &RecordSyncMessage{RecordID: recordID, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *SourceChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SourceChangedMessageFromJSON(data []byte) (*SourceChangedMessage, error) {
	var msg SourceChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
