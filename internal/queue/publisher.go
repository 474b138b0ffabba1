package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue post events are routed to.
const DefaultQueue = "post.events"

// maxDialTimeout bounds connecting and the AMQP handshake when ctx has no
// earlier deadline.
const maxDialTimeout = 5 * time.Second

// Publisher delivers post events.  Callers log failures and carry on.
type Publisher interface {
    Publish(ctx context.Context, ev PostEvent) error
}

// NopPublisher drops every event.  Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PostEvent) error { return nil }

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue on the default exchange.  It dials a new connection per publish.
type AMQPPublisher struct {
    URL    string
    Queue  string
    Logger *log.Logger
}

// NewAMQPPublisher returns a publisher for url.  An empty queue name falls
// back to DefaultQueue.
func NewAMQPPublisher(url, queue string, logger *log.Logger) *AMQPPublisher {
    if queue == "" {
        queue = DefaultQueue
    }
    if logger == nil {
        logger = log.New("events")
    }
    return &AMQPPublisher{URL: url, Queue: queue, Logger: logger}
}

// Publish sends ev.  Connecting honours ctx's deadline, so an unreachable
// broker costs the caller at most its remaining budget.
func (p *AMQPPublisher) Publish(ctx context.Context, ev PostEvent) error {
    timeout, err := dialTimeout(ctx)
    if err != nil {
        return err
    }
    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
    if err != nil {
        p.Logger.Errorf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Logger.Errorf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := declareQueue(ch, p.Queue); err != nil {
        p.Logger.Errorf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, msg); err != nil {
        p.Logger.Errorf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// dialTimeout returns the time left before ctx's deadline, capped at
// maxDialTimeout.  A done ctx is reported as its error.
func dialTimeout(ctx context.Context) (time.Duration, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    timeout := maxDialTimeout
    if deadline, ok := ctx.Deadline(); ok {
        if left := time.Until(deadline); left < timeout {
            timeout = left
        }
    }
    if timeout <= 0 {
        return 0, context.DeadlineExceeded
    }
    return timeout, nil
}

// declareQueue declares name as durable, non-exclusive and not auto-deleted.
// Publisher and consumer must agree on these flags.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
    return ch.QueueDeclare(name, true, false, false, false, nil)
}
