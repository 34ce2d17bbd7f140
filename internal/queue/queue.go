package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/model"
	"github.com/unclebandit/campaign-panel/internal/repository"
)

const TopicArchive = "campaign_archive"

// Queue runs background jobs off the request path.
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(ctx context.Context, payload any) error) error
}

type handlerFunc func(ctx context.Context, payload any) error

// InMemoryQueue delivers jobs to subscribers on their own goroutines and
// retries failures with a linear backoff.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]handlerFunc
	closed   bool

	MaxRetries int
	Backoff    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryQueue{
		handlers:   make(map[string][]handlerFunc),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		ctx:        ctx,
		cancel:     cancel,
		log:        log.With().Str("component", "queue").Logger(),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed")
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, h := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.MaxRetries}
		q.wg.Add(1)
		go q.processJob(h, job)
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler handlerFunc, job JobPayload) {
	defer q.wg.Done()
	for {
		err := handler(q.ctx, job.Payload)
		if err == nil {
			q.log.Debug().Str("topic", job.Topic).Int("attempt", job.RetryCount+1).Msg("job processed")
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.log.Error().Err(err).Str("topic", job.Topic).Int("attempts", job.RetryCount).Msg("job permanently failed")
			return
		}
		q.log.Warn().Err(err).Str("topic", job.Topic).Int("attempt", job.RetryCount).Msg("job failed, retrying")

		select {
		case <-time.After(time.Duration(job.RetryCount) * q.Backoff):
		case <-q.ctx.Done():
			q.log.Warn().Str("topic", job.Topic).Msg("job abandoned on shutdown")
			return
		}
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(ctx context.Context, payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops accepting jobs and waits for running ones until ctx expires,
// then cancels them.
func (q *InMemoryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

// StartArchiveSubscriber stores every published run summary in repo.
func StartArchiveSubscriber(q Queue, repo repository.ArchiveRepositoryInterface, log zerolog.Logger) error {
	return q.Subscribe(TopicArchive, func(ctx context.Context, payload any) error {
		run, ok := payload.(model.ArchivedCampaign)
		if !ok {
			log.Error().Msgf("invalid archive payload type %T", payload)
			return nil // no retry
		}
		if err := repo.Save(ctx, &run); err != nil {
			return err
		}
		log.Info().Int("id", run.ID).Str("campaign", run.CampaignName).Str("status", run.Status).Msg("campaign run archived")
		return nil
	})
}
