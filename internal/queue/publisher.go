package queue

// publisher.go publishes domain events to RabbitMQ. The Publisher is
// constructed once at startup and injected where events originate;
// errors are logged and returned so callers can ignore failures
// without interrupting the main request flow.

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher holds the broker URL and a lazily established connection
// that is reused across publishes and redialed when the broker drops
// it. Safe for concurrent use.
type Publisher struct {
    url  string
    mu   sync.Mutex
    conn *amqp.Connection
}

// NewPublisher builds a Publisher for the given broker URL. No
// connection is attempted until the first publish, so an unreachable
// broker never blocks startup.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url}
}

// Close releases the broker connection, if one was established.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() {
        return nil
    }
    return p.conn.Close()
}

// channel returns a fresh channel on the shared connection, redialing
// the broker if the previous connection is gone.
func (p *Publisher) channel() (*amqp.Channel, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() {
        conn, err := amqp.Dial(p.url)
        if err != nil {
            return nil, err
        }
        p.conn = conn
    }
    return p.conn.Channel()
}

// PublishPurchaseCompleted publishes a PurchaseCompletedEvent to the
// "purchase.completed" queue. Any error is logged and returned so the
// caller can choose to ignore it. Messages are marked as persistent.
func (p *Publisher) PublishPurchaseCompleted(ctx context.Context, event PurchaseCompletedEvent) error {
    ch, err := p.channel()
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        purchaseQueueName, // name
        true,              // durable
        false,             // autoDelete
        false,             // exclusive
        false,             // noWait
        nil,               // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",                // default exchange
        purchaseQueueName, // routing key = queue name
        false,             // mandatory
        false,             // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
