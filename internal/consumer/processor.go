// Package consumer reads healthsync events from Kafka and hands them to the
// sync pipeline.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = logger.With().Str("component", "kafka_processor").Logger()
	}
}

// WithRetry retries a failing handler up to attempts times in total, waiting
// backoff times the attempt number between tries.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if backoff >= 0 {
			p.backoff = backoff
		}
	}
}

// Processor fetches, decodes and dispatches messages, committing only what
// was handled or can never be handled.
type Processor struct {
	reader   Reader
	handler  Handler
	log      zerolog.Logger
	attempts int
	backoff  time.Duration
}

// NewProcessor constructs a Processor. Without WithRetry each message gets a
// single handler attempt.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		log:      zerolog.Nop(),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled. A message whose handler keeps failing
// stays uncommitted and is redelivered after a rebalance or restart.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.log.Warn().Err(err).Msg("fetch failed")
			continue
		}
		if !p.process(ctx, msg) {
			continue
		}
		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.log.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("commit failed")
		}
	}
}

// process reports whether msg should be committed.
func (p *Processor) process(ctx context.Context, msg kafka.Message) bool {
	event, err := decodeMessage(msg)
	if err != nil {
		p.log.Warn().
			Err(err).
			Str("topic", msg.Topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("undecodable message skipped")
		observeOutcome(msg.Topic, "", outcomePoison)
		return true
	}

	start := time.Now()
	if err := p.dispatch(ctx, event); err != nil {
		p.log.Error().
			Err(err).
			Str("event_type", event.EventType).
			Str("user_id", event.UserID).
			Int64("offset", event.Offset).
			Msg("handler failed, leaving message uncommitted")
		observeOutcome(event.Topic, event.EventType, outcomeFailed)
		return false
	}
	observeHandled(event, time.Since(start))
	return true
}

func (p *Processor) dispatch(ctx context.Context, event Message) error {
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil || attempt >= p.attempts || ctx.Err() != nil {
			return err
		}
		p.log.Debug().Err(err).Int("attempt", attempt).Str("event_type", event.EventType).Msg("retrying handler")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
}
