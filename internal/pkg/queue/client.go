package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Client enqueues jobs onto the Redis-backed queues. Delivery is at least
// once: consumers must be idempotent on their logical keys.
type Client struct {
	inner    *asynq.Client
	maxRetry int
}

// NewClient creates a queue client from the Redis URL.
func NewClient(redisURL string, maxRetry int) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis uri: %w", err)
	}
	return &Client{inner: asynq.NewClient(opt), maxRetry: maxRetry}, nil
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueRechargeExecution enqueues a recharge execution job.
func (c *Client) EnqueueRechargeExecution(ctx context.Context, p RechargeExecutePayload) error {
	p.Version = PayloadVersion
	return c.enqueue(ctx, TypeRechargeExecute, QueueRecharge, p)
}

// EnqueuePaymentConfirmation enqueues a payment confirmation job.
func (c *Client) EnqueuePaymentConfirmation(ctx context.Context, p PaymentConfirmPayload) error {
	p.Version = PayloadVersion
	return c.enqueue(ctx, TypePaymentConfirm, QueuePayment, p)
}

func (c *Client) enqueue(ctx context.Context, taskType, queueName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal %s payload: %w", taskType, err)
	}

	info, err := c.inner.EnqueueContext(ctx, asynq.NewTask(taskType, data),
		asynq.Queue(queueName),
		asynq.MaxRetry(c.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", taskType, err)
	}

	log.Debug().
		Str("task_id", info.ID).
		Str("task_type", taskType).
		Str("queue", queueName).
		Msg("Job enqueued")
	return nil
}

// ExponentialBackoff returns a retry delay function: base * 2^n.
func ExponentialBackoff(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return base * time.Duration(math.Pow(2, float64(n)))
	}
}

// DeadLetterLogger logs tasks that exhausted their retry budget. The job
// moves to the archive; the underlying SPEND transaction stays PENDING until
// an operator compensates it, so the log line is the alerting hook.
func DeadLetterLogger() asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		event := log.Error().
			Err(err).
			Str("task_type", task.Type()).
			Int("retried", retried).
			Int("max_retry", maxRetry)
		if retried >= maxRetry {
			event.RawJSON("payload", task.Payload()).Msg("Job exhausted retries, archived for operator review")
			return
		}
		event.Msg("Job failed, will retry")
	}
}
