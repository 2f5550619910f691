// Package kafka carries verdict events between the API and the verdict recorder.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"blgu-assess-go/internal/config"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/tasks"
)

// maxAttempts is how many times a failing task is processed before its
// offset is committed anyway.
const maxAttempts = 3

// retryBackoff is the pause before the second attempt; it grows linearly.
var retryBackoff = 500 * time.Millisecond

// TaskProcessor handles one consumed verdict task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.VerdictTask) error
}

// AttemptCounter tracks failed deliveries per event.
type AttemptCounter interface {
	Incr(ctx context.Context, eventID string) (int64, error)
	Clear(ctx context.Context, eventID string)
}

var producer *kafka.Writer

// InitProducer sets up the shared writer for cfg.Topic.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Infof("Kafka producer ready, topic=%s", cfg.Topic)
}

// Publisher sends verdict tasks through the shared producer.
type Publisher struct{}

// PublishVerdict writes task keyed by assessment id, so one assessment's
// verdicts keep their order within a partition.
func (Publisher) PublishVerdict(ctx context.Context, task tasks.VerdictTask) error {
	if producer == nil {
		return errors.New("kafka producer not initialised")
	}
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.AssessmentID),
		Value: value,
	})
}

// ClosePublisher flushes and closes the shared producer.
func ClosePublisher() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// RedisAttemptCounter keeps attempt counts in redis for a day.
type RedisAttemptCounter struct {
	RDB *redis.Client
}

func attemptsKey(eventID string) string {
	return fmt.Sprintf("kafka:attempts:%s", eventID)
}

func (c RedisAttemptCounter) Incr(ctx context.Context, eventID string) (int64, error) {
	n, err := c.RDB.Incr(ctx, attemptsKey(eventID)).Result()
	if err != nil {
		return 0, err
	}
	_ = c.RDB.Expire(ctx, attemptsKey(eventID), 24*time.Hour).Err()
	return n, nil
}

func (c RedisAttemptCounter) Clear(ctx context.Context, eventID string) {
	_ = c.RDB.Del(ctx, attemptsKey(eventID)).Err()
}

// StartConsumer reads verdict tasks until ctx is cancelled or the reader fails.
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	log.Infof("Kafka consumer listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("failed to read Kafka message", err)
			}
			break
		}
		if handleMessage(ctx, m.Value, processor, attempts) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("failed to commit Kafka offset %d: %v", m.Offset, err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("failed to close Kafka consumer: %v", err)
	}
}

// handleMessage processes one message and reports whether its offset should
// be committed. Malformed messages are committed straight away. A failing
// task is retried in place with a growing pause until it has failed
// maxAttempts times in total; the count lives in the AttemptCounter so a
// restart picks up where the last run stopped. The offset is left
// uncommitted only when ctx ends mid-retry.
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, attempts AttemptCounter) bool {
	var task tasks.VerdictTask
	if err := json.Unmarshal(value, &task); err != nil {
		log.Errorf("malformed verdict message: %v, value: %s", err, string(value))
		return true
	}

	var local int64
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			attempts.Clear(ctx, task.EventID)
			log.Infow("verdict task recorded", "event", task.EventID, "assessment", task.AssessmentID)
			return true
		}
		log.Errorf("verdict task failed: event=%s assessment=%s err=%v", task.EventID, task.AssessmentID, err)

		local++
		n, incErr := attempts.Incr(ctx, task.EventID)
		if incErr != nil {
			log.Warnf("attempt counter unavailable, counting locally: %v", incErr)
			n = local
		}
		if n >= maxAttempts {
			log.Errorf("verdict task failed %d times, giving up: event=%s", n, task.EventID)
			return true
		}
		if !pause(ctx, time.Duration(n)*retryBackoff) {
			return false
		}
	}
}

// pause waits for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
