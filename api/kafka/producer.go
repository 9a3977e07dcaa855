package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

// Action mirrors the verbs the worker understands.
type Action string

const (
	ActionProcess     Action = "process"
	ActionRetry       Action = "retry"
	ActionCancelItem  Action = "cancel_item"
	ActionCancelBatch Action = "cancel_batch"
	ActionClear       Action = "clear"
)

type Producer interface {
	SendBatchMessage(ctx context.Context, topic string, message *BatchMessage) error
	Close() error
}

// BatchMessage is the submission envelope for the worker. Handles rides
// along on clear so the worker can release preview handles for rows that
// no longer exist.
type BatchMessage struct {
	BatchID string   `json:"batch_id"`
	TraceID string   `json:"trace_id"`
	Action  Action   `json:"action"`
	ItemID  string   `json:"item_id,omitempty"`
	Handles []string `json:"handles,omitempty"`
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &producer{producer: p}, nil
}

func (p *producer) SendBatchMessage(ctx context.Context, topic string, message *BatchMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(message.BatchID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
