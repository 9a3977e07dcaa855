package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

// Action selects what the worker does with a batch message.
type Action string

const (
	ActionProcess     Action = "process"
	ActionRetry       Action = "retry"
	ActionCancelItem  Action = "cancel_item"
	ActionCancelBatch Action = "cancel_batch"
	ActionClear       Action = "clear"
)

type MessageHandler func(ctx context.Context, msg *BatchMessage) error

// BatchMessage is the submission envelope between the api and the worker.
// ItemID is set only for item-scoped actions; Handles lists the preview
// handles to release on clear, since their rows are already gone.
type BatchMessage struct {
	BatchID string   `json:"batch_id"`
	TraceID string   `json:"trace_id"`
	Action  Action   `json:"action"`
	ItemID  string   `json:"item_id,omitempty"`
	Handles []string `json:"handles,omitempty"`
}

type Consumer struct {
	consumer sarama.ConsumerGroup
}

func NewConsumer(brokers []string, groupID string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c}, nil
}

type consumerHandler struct {
	fn  MessageHandler
	ctx context.Context
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var batchMsg BatchMessage
		if err := json.Unmarshal(msg.Value, &batchMsg); err != nil {
			continue
		}
		h.fn(h.ctx, &batchMsg)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler) error {
	h := &consumerHandler{fn: handler, ctx: ctx}
	return c.consumer.Consume(ctx, []string{topic}, h)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
