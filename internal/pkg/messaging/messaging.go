package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnsupported reports a capability the selected broker lacks, such as
// delayed delivery on brokers without a native defer mechanism.
var ErrUnsupported = errors.New("pkgmessage: unsupported operation")

// Messaging publishes and consumes through one configured broker. Kafka,
// NATS, NSQ and Google Pub/Sub implementations live in this package; the
// OTP modules only ever see this interface.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher sends messages to a destination. What a destination is depends
// on the broker: topic, subject or queue.
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer subscribes a handler to a source.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one received message. Whether an error leads to a nack,
// a requeue or nothing at all is up to the broker implementation.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is the broker-neutral publish payload. Fields that a
// broker has no equivalent for are ignored by that driver.
type OutgoingMessage struct {
	Body []byte

	// Key drives partition selection on Kafka.
	Key []byte

	// Headers allow binary values and repeated keys.
	Headers []Header

	// Attributes map onto brokers with string-typed metadata (Pub/Sub).
	Attributes map[string]string

	// OrderingKey serializes delivery on Pub/Sub.
	OrderingKey string

	// Delay defers delivery where the broker supports it.
	Delay time.Duration

	// Metadata passes driver-specific publish settings through untyped.
	Metadata map[string]any
}

// Header is one message header entry.
type Header struct {
	Key   string
	Value []byte
}

// PublishResult reports what the broker assigned to the published message.
// Only the fields the active broker produces are populated.
type PublishResult struct {
	MessageID string

	// Kafka coordinates.
	Topic     string
	Partition int32
	Offset    int64

	// Sequence comes from NATS JetStream publishes.
	Sequence uint64

	Timestamp time.Time

	// Raw exposes the driver's own result type when one exists.
	Raw any
}

// Message is a received message. Drivers back it with their native type and
// surface the common fields here.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	Attributes() map[string]string

	ID() string
	Topic() string
	Subject() string
	Timestamp() time.Time

	// Ack marks the message processed. For brokers that commit offsets or
	// delete on finish, Ack performs that operation.
	Ack(ctx context.Context) error
}

// Nackable is implemented by messages that can ask for redelivery.
type Nackable interface {
	Nack(ctx context.Context) error
}

// Extendable is implemented by messages whose processing deadline can be
// pushed out.
type Extendable interface {
	Extend(ctx context.Context, d time.Duration) error
}

// MetadataCarrier exposes driver metadata such as delivery tags.
type MetadataCarrier interface {
	Metadata() map[string]any
}

// RawCarrier exposes the driver's native message value.
type RawCarrier interface {
	Raw() any
}
