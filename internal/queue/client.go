package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueTranscode schedules a conversion. The conversion ID doubles as the
// task ID so a duplicate submit is rejected by asynq.
func (c *Client) EnqueueTranscode(ctx context.Context, payload TranscodePayload) (*asynq.TaskInfo, error) {
	task, err := NewTranscodeTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.ConversionID),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
