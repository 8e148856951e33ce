package outbox

import (
	"encoding/binary"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

// Message is an outbox row claimed for delivery.
type Message struct {
	EventID       int64
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

func scanMessage(row pgx.CollectableRow) (Message, error) {
	var m Message
	err := row.Scan(&m.EventID, &m.UserID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Topic, &m.SchemaSubject, &m.PartitionKey, &m.Payload)
	return m, err
}

func (m Message) headers() []kafka.Header {
	return []kafka.Header{
		{Key: "event_type", Value: []byte(m.EventType)},
		{Key: "user_id", Value: []byte(m.UserID)},
		{Key: "schema_subject", Value: []byte(m.SchemaSubject)},
	}
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.EventID
	}
	return ids
}

// encodeWireFormat prefixes payload with the magic byte and the big-endian
// schema ID expected by Schema Registry aware consumers.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	return append(frame, payload...)
}
