package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes derived records to NATS for downstream
// consumers, after the originating event has been persisted. Deals,
// cancellations and stabilization decisions all go out this way; the event
// log itself stays in Postgres.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableRecord
}

// PublishableRecord is one outbound record ready for publishing, tagged
// with the sequence of the event that produced it.
type PublishableRecord struct {
	Sequence  int64
	Subject   string
	Record    any
	StateHash []byte
	Timestamp time.Time
}

// publishEnvelope is the wire shape for outbound records.
type publishEnvelope struct {
	Sequence  int64     `json:"sequence"`
	Record    any       `json:"record"`
	StateHash []byte    `json:"state_hash"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableRecord) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, rec); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d subject=%s: %v", rec.Sequence, rec.Subject, err)
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, rec PublishableRecord) error {
	data, err := json.Marshal(publishEnvelope{
		Sequence:  rec.Sequence,
		Record:    rec.Record,
		StateHash: rec.StateHash,
		Timestamp: rec.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = op.js.Publish(ctx, rec.Subject, data)
	return err
}

// EnsureOutboundStream creates the outbound records stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SERP_OUTBOUND",
		Subjects:  []string{"serp.outbound.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream SERP_OUTBOUND")
	return nil
}
