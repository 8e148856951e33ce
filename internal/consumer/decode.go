package consumer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// wireHeaderLen is the Confluent framing prefix: magic byte plus schema id.
const wireHeaderLen = 5

// Message is a decoded outbox record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	UserID        string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

var errMissingEventType = errors.New("missing event_type header")

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < wireHeaderLen {
		return Message{}, fmt.Errorf("payload too short: %d bytes", len(msg.Value))
	}
	if magic := msg.Value[0]; magic != 0 {
		return Message{}, fmt.Errorf("unexpected magic byte %d", magic)
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType := headers["event_type"]
	if eventType == "" {
		return Message{}, errMissingEventType
	}
	userID := headers["user_id"]
	if userID == "" {
		userID = string(msg.Key)
	}

	payload := make(json.RawMessage, len(msg.Value)-wireHeaderLen)
	copy(payload, msg.Value[wireHeaderLen:])
	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     eventType,
		UserID:        userID,
		SchemaSubject: headers["schema_subject"],
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:wireHeaderLen])),
		Payload:       payload,
	}, nil
}
