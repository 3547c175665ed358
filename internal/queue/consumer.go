// Package queue contains the background consumer that listens to the
// purchase.completed queue and writes structured logs to logs/purchases.log.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

const purchaseQueueName = "purchase.completed"

// StartPurchaseConsumer connects to RabbitMQ at the given URL,
// declares the purchase.completed queue (durable), and starts
// consuming messages. Each message is appended to logs/purchases.log
// in a single-line, human-friendly format. The function runs a
// reconnect loop; it keeps running and logs any processing errors
// while rejecting the offending message so the server continues
// operating.
func StartPurchaseConsumer(url string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("purchase-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn); err != nil {
            log.Printf("purchase-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("purchase-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(purchaseQueueName, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(purchaseQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := handleMessage(d.Body); err != nil {
            log.Printf("purchase-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
    var ev PurchaseCompletedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    // Ensure logs directory exists
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "purchases.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    pdfRef := "-"
    if ev.PDFID != nil {
        pdfRef = fmt.Sprintf("%d", *ev.PDFID)
    }

    line := fmt.Sprintf("[%s] Purchase recorded | purchase_id=%d | user_id=%d | pdf_id=%s | type=%s | amount=%d kobo %s | method=%s | ref=%s\n",
        ev.CompletedAt, ev.PurchaseID, ev.UserID, pdfRef, ev.Type, ev.AmountKobo, ev.Currency, ev.PaymentMethod, ev.Reference)

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
