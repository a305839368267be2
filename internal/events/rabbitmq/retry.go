package rabbitmq

import (
	"context"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const RetryCountHeader = "x-retry-count"

// RetryCount reports how many times d has already been sent through the
// retry queue.
func RetryCount(d amqp.Delivery) int {
	switch v := d.Headers[RetryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Retry republishes d onto the retry queue of queue. Once delay has passed
// the broker dead-letters it back to the main queue. The caller still acks d.
func Retry(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, delay time.Duration) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RetryCountHeader] = int32(RetryCount(d) + 1)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(cctx,
		"",
		queue+".retry",
		false,
		false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Type:         d.Type,
			Headers:      headers,
			Body:         d.Body,
			Timestamp:    d.Timestamp,
			Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		},
	)
}
