package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/redis/go-redis/v9"

	"quadplan/domain"
)

const reminderChannel = "reminders"

// reminderMessage is the wire format of one due reminder.
type reminderMessage struct {
	Scope      string `json:"scope"`
	TaskID     string `json:"taskId"`
	BoardID    string `json:"boardId"`
	Title      string `json:"title"`
	ReminderAt int64  `json:"reminderAt"`
}

// Notifier fans due reminders out to the reminder queue for downstream
// workers and to redis pub/sub for connected clients.
type Notifier struct {
	queue *azqueue.QueueClient
	redis *redis.Client
}

// NewNotifier creates a Notifier. The redis client may be nil, in which case
// only the queue leg is used.
func NewNotifier(connStr, queueName string, client *redis.Client) (*Notifier, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	queue, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Notifier{queue: queue, redis: client}, nil
}

// NotifyReminders enqueues one message per due task and publishes the same
// payload to the reminder channel. Returns the first error; already delivered
// messages are not rolled back.
func (n *Notifier) NotifyReminders(ctx context.Context, scope string, tasks []domain.Task) error {
	for _, task := range tasks {
		msg := reminderMessage{
			Scope:      scope,
			TaskID:     task.ID,
			BoardID:    task.BoardID,
			Title:      task.Title,
			ReminderAt: task.ReminderAt,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := n.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
		if n.redis != nil {
			if err := n.redis.Publish(ctx, reminderChannel, data).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
