package queue

import (
	"context"
	"encoding/json"

	"github.com/gitpulse/gitpulse/pkg/logger"
	"github.com/streadway/amqp"
)

const syncQueueName = "pipeline_sync"

// SyncRequest asks for one pipeline run against a repository.
type SyncRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
	}, nil
}

func (r *RabbitMQ) PublishSyncRequest(ctx context.Context, owner, repo string) error {
	queue, err := r.channel.QueueDeclare(
		syncQueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	body, err := json.Marshal(SyncRequest{Owner: owner, Repo: repo})
	if err != nil {
		return err
	}

	return r.channel.Publish(
		"",
		queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// ConsumeSyncRequests delivers each queued sync request to handler on a
// separate goroutine until the channel closes.
func (r *RabbitMQ) ConsumeSyncRequests(ctx context.Context, handler func(req SyncRequest) error) error {
	queue, err := r.channel.QueueDeclare(
		syncQueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	msgs, err := r.channel.Consume(
		queue.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var req SyncRequest
			if err := json.Unmarshal(d.Body, &req); err != nil {
				logger.Error("Error decoding sync request: %v", err)
				continue
			}

			if err := handler(req); err != nil {
				logger.Error("Error handling sync request for %s/%s: %v", req.Owner, req.Repo, err)
			}
		}
	}()

	return nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}
