package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/campaign-panel/internal/model"
)

// AMQPDispatcher publishes worker messages to a durable queue. The
// connection is opened lazily and re-dialed after a failed publish.
type AMQPDispatcher struct {
	URL   string
	Queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPDispatcher(url, queue string) *AMQPDispatcher {
	return &AMQPDispatcher{URL: url, Queue: queue}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, campaignName string, leads []model.LeadInput) error {
	return d.publish(ctx, Message{Action: ActionStart, CampaignName: campaignName, Leads: leads})
}

func (d *AMQPDispatcher) Stop(ctx context.Context, campaignName string) error {
	return d.publish(ctx, Message{Action: ActionStop, CampaignName: campaignName})
}

func (d *AMQPDispatcher) publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.connect(); err != nil {
		return err
	}
	err = d.ch.Publish(
		"",
		d.Queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         msg.Action,
			Body:         body,
		},
	)
	if err != nil {
		d.reset()
		return fmt.Errorf("publish %s: %w", msg.Action, err)
	}
	return nil
}

// must hold d.mu
func (d *AMQPDispatcher) connect() error {
	if d.ch != nil && d.conn != nil && !d.conn.IsClosed() {
		return nil
	}
	d.reset()

	conn, err := amqp.Dial(d.URL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := DeclareQueue(ch, d.Queue); err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	d.conn, d.ch = conn, ch
	return nil
}

// must hold d.mu
func (d *AMQPDispatcher) reset() {
	if d.ch != nil {
		d.ch.Close()
	}
	if d.conn != nil {
		d.conn.Close()
	}
	d.ch, d.conn = nil, nil
}

// Close releases the broker connection.
func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	return nil
}

// DeclareQueue declares the durable dispatch queue. Publisher and consumer
// must agree on its arguments.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", name, err)
	}
	return q, nil
}
