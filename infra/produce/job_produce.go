package produce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	JobExchange        = "jobs.exchange"
	JobDispatchQueue   = "jobs.dispatch"
	JobDispatchRouting = "jobs.dispatch"
)

// JobMessage hands one queued job to a worker. The job record itself is the
// source of truth; the message only identifies it.
type JobMessage struct {
	JobID     uint   `json:"job_id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

// JobProduceService publishes queued jobs for the task-executor workers.
type JobProduceService struct {
	channel *amqp.Channel
}

func InitJobProduceService(channel *amqp.Channel) *JobProduceService {
	service := &JobProduceService{
		channel: channel,
	}

	err := channel.ExchangeDeclare(
		JobExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Job exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		JobDispatchQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare Job dispatch queue: " + err.Error())
	}

	err = channel.QueueBind(
		JobDispatchQueue,
		JobDispatchRouting,
		JobExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Job dispatch queue: " + err.Error())
	}

	return service
}

// PublishJob enqueues one job id for execution.
func (s *JobProduceService) PublishJob(ctx context.Context, jobID uint, kind string) error {
	msg := JobMessage{
		JobID:     jobID,
		Kind:      kind,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		JobExchange,
		JobDispatchRouting,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.New().String(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
