package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskTypePrefix namespaces asynq task types derived from event topics.
const TaskTypePrefix = "event:"

// TaskType returns the asynq task type used for a topic.
func TaskType(topic string) string {
	return TaskTypePrefix + topic
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger *zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("domain event")
	return nil
}

// Enqueuer is the subset of asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskPublisher forwards selected topics to asynq so the worker can process them.
type TaskPublisher struct {
	Client Enqueuer
	Topics []string
	Queue  string
}

// Notify implements Notifier.
func (p TaskPublisher) Notify(ctx context.Context, event Event) error {
	if p.Client == nil {
		return errors.New("events: task client not configured")
	}
	if !p.accepts(event.Topic) {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(event.ID)}
	if p.Queue != "" {
		opts = append(opts, asynq.Queue(p.Queue))
	}
	if _, err := p.Client.EnqueueContext(ctx, asynq.NewTask(TaskType(event.Topic), body), opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Topic, err)
	}
	return nil
}

func (p TaskPublisher) accepts(topic string) bool {
	if len(p.Topics) == 0 {
		return true
	}
	for _, t := range p.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// DecodeTask extracts the event carried by an asynq task.
func DecodeTask(task *asynq.Task) (Event, error) {
	var ev Event
	if task == nil {
		return ev, errors.New("events: nil task")
	}
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return ev, fmt.Errorf("decode task: %w", err)
	}
	return ev, nil
}
