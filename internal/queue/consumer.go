package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogFile is the file, inside the configured directory, the audit
// consumer appends to.
const AuditLogFile = "post_events.log"

// AuditConsumer drains the events queue into a human-readable log file.
type AuditConsumer struct {
    URL    string
    Queue  string
    Dir    string
    Logger *log.Logger
}

// NewAuditConsumer returns a consumer writing to dir/post_events.log.
func NewAuditConsumer(url, queue, dir string, logger *log.Logger) *AuditConsumer {
    if queue == "" {
        queue = DefaultQueue
    }
    if dir == "" {
        dir = "logs"
    }
    if logger == nil {
        logger = log.New("audit-consumer")
    }
    return &AuditConsumer{URL: url, Queue: queue, Dir: dir, Logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s) whenever the
// connection or the delivery stream is lost.  Malformed messages are
// rejected without requeue so they cannot spin the loop.
func (c *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Logger.Warnf("failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Logger.Warnf("consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Logger.Warnf("set QoS failed: %v", err)
    }
    if _, err := declareQueue(ch, c.Queue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                c.Logger.Errorf("handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle appends one line describing the event in body to the audit log.
func (c *AuditConsumer) Handle(body []byte) error {
    var ev PostEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(c.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.Dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single newline-terminated log line.
func FormatLine(ev PostEvent) string {
    line := fmt.Sprintf("[%s] %s | post_id=%d | author_id=%d | slug=%q | status=%s",
        ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.PostID, ev.AuthorID, ev.Slug, ev.Status)
    if ev.ScheduledFor != nil {
        line += " | scheduled_for=" + ev.ScheduledFor.UTC().Format(time.RFC3339)
    }
    return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
