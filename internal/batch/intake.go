package batch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/paynet/fep/internal/txn"
)

// IntakeMessage is the wire shape of one batch submission arriving on
// the settlement-file intake topic: a settlement or clearing file
// lands upstream, gets split into individual transactions by whatever
// produces onto this topic, and arrives here as one message per batch.
type IntakeMessage struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	ContinueOnError bool            `json:"continueOnError"`
	Parallelism     int             `json:"parallelism"`
	Transactions    []*txn.Request  `json:"transactions"`
}

func (m *IntakeMessage) toRequest() (*Request, error) {
	if len(m.Transactions) == 0 {
		return nil, errBatchEmpty
	}
	return &Request{
		ID:              m.ID,
		Type:            m.Type,
		Transactions:    m.Transactions,
		ContinueOnError: m.ContinueOnError,
		Parallelism:     m.Parallelism,
	}, nil
}

type intakeError string

func (e intakeError) Error() string { return string(e) }

const errBatchEmpty = intakeError("batch: intake message carries no transactions")

// IntakeConsumer reads batch submissions off a Kafka topic and runs
// each one through a Processor, the way the teacher's consumer reads
// ISO 20022 messages off its own topic and runs each one through its
// worker pool.
type IntakeConsumer struct {
	reader    *kafka.Reader
	processor *Processor
	log       *zap.Logger
}

// NewIntakeConsumer builds a consumer against the given Kafka reader
// configuration. Callers own the reader's lifecycle via Close.
func NewIntakeConsumer(cfg kafka.ReaderConfig, processor *Processor, log *zap.Logger) *IntakeConsumer {
	return &IntakeConsumer{
		reader:    kafka.NewReader(cfg),
		processor: processor,
		log:       log,
	}
}

// Run reads messages until ctx is cancelled or the reader is closed,
// decoding and executing one batch per message. A malformed message is
// logged and skipped rather than stalling the consumer.
func (c *IntakeConsumer) Run(ctx context.Context) {
	c.log.Info("batch intake consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.Info("batch intake consumer stopping")
				return
			}
			c.log.Warn("batch intake read failed", zap.Error(err))
			continue
		}

		var intake IntakeMessage
		if err := json.Unmarshal(msg.Value, &intake); err != nil {
			c.log.Warn("malformed batch intake message", zap.Error(err))
			continue
		}

		req, err := intake.toRequest()
		if err != nil {
			c.log.Warn("batch intake message failed validation", zap.String("batchId", intake.ID), zap.Error(err))
			continue
		}

		result := c.processor.Run(ctx, req)
		c.log.Info("batch intake run finished",
			zap.String("batchId", result.ID),
			zap.String("status", string(result.Status)),
			zap.Int("errors", len(result.Errors)),
		)
	}
}

// Close releases the underlying Kafka reader.
func (c *IntakeConsumer) Close() error {
	return c.reader.Close()
}
