package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

const ingestTopic = "healthsync.activity_ingested"

func framed(schemaID uint32, payload string, userID string) kafka.Message {
	value := make([]byte, wireHeaderLen+len(payload))
	binary.BigEndian.PutUint32(value[1:wireHeaderLen], schemaID)
	copy(value[wireHeaderLen:], payload)
	return kafka.Message{
		Topic: ingestTopic,
		Time:  time.Now().UTC(),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("activity.ingested")},
			{Key: "user_id", Value: []byte(userID)},
			{Key: "schema_subject", Value: []byte(ingestTopic + "-value")},
		},
	}
}

func testLogger(t *testing.T) Option {
	return WithLogger(zerolog.New(zerolog.NewTestWriter(t)))
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"activity_id":"abc"}`
	reader := &stubReader{messages: []kafka.Message{framed(42, payload, "user-1")}}
	handler := &stubHandler{}
	handled := testutil.ToFloat64(messagesCounter.WithLabelValues(ingestTopic, "activity.ingested", outcomeHandled))

	err := NewProcessor(reader, handler, testLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.ingested", handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, ingestTopic+"-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.Equal(t, handled+1, testutil.ToFloat64(messagesCounter.WithLabelValues(ingestTopic, "activity.ingested", outcomeHandled)))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{framed(99, `{"activity_id":"def"}`, "user-2")}}
	handler := &stubHandler{failures: 10}

	err := NewProcessor(reader, handler, testLogger(t)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
}

func TestProcessorRetriesHandler(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{framed(7, `{}`, "user-3")}}
	handler := &stubHandler{failures: 2}

	err := NewProcessor(reader, handler, testLogger(t), WithRetry(3, time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)

	reader = &stubReader{messages: []kafka.Message{framed(7, `{}`, "user-3")}}
	handler = &stubHandler{failures: 5}
	err = NewProcessor(reader, handler, testLogger(t), WithRetry(2, 0)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, handler.calls)
	require.Zero(t, reader.commitCalls)
}

func TestProcessorCommitsPoisonMessage(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{Topic: ingestTopic, Value: []byte{1, 2}}}}
	handler := &stubHandler{}
	poison := testutil.ToFloat64(messagesCounter.WithLabelValues(ingestTopic, "", outcomePoison))

	err := NewProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, poison+1, testutil.ToFloat64(messagesCounter.WithLabelValues(ingestTopic, "", outcomePoison)))
}

func TestDecodeMessage(t *testing.T) {
	msg := framed(7, `{}`, "")
	msg.Key = []byte("user-9")
	msg.Headers = msg.Headers[:1]

	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, "user-9", decoded.UserID)
	require.Equal(t, 7, decoded.SchemaID)
	require.Empty(t, decoded.SchemaSubject)

	msg.Headers = nil
	_, err = decodeMessage(msg)
	require.ErrorIs(t, err, errMissingEventType)

	msg.Value[0] = 1
	_, err = decodeMessage(msg)
	require.Error(t, err)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(context.Context, ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls    int
	failures int
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.calls <= h.failures {
		return errors.New("store unavailable")
	}
	return nil
}
