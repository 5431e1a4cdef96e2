package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"casanova-portal/internal/shared"
)

// Client enqueues background tasks from the API process.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr string) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueRecordCollection schedules a ledger write-back retry for one paid
// intent. Used when the inline write-back after a webhook fails; the
// scheduled sweep remains the safety net behind this.
func (c *Client) EnqueueRecordCollection(ctx context.Context, intentID int64) error {
	payload, err := json.Marshal(shared.RecordCollectionPayload{IntentID: intentID})
	if err != nil {
		return fmt.Errorf("marshal record collection payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeRecordCollection, payload)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueuePayments),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.ProcessIn(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue record collection: %w", err)
	}

	log.Info().
		Str("task_id", info.ID).
		Int64("intent_id", intentID).
		Msg("Record collection task enqueued")
	return nil
}
