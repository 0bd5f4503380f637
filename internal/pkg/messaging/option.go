package messaging

// consumeOptions is the resolved form of the ConsumeOption list. Each driver
// reads the fields it understands and ignores the rest, so callers can set
// every naming variant at once and stay broker-agnostic.
type consumeOptions struct {
	// concurrency is how many handler goroutines run in parallel.
	concurrency int

	// autoAck makes the wrapper ack (or nack) based on the handler's return
	// instead of leaving that to the handler.
	autoAck bool

	// group names the Kafka consumer group.
	group string

	// channel names the NSQ channel.
	channel string

	// queueGroup names the NATS queue group.
	queueGroup string

	// subscription names the Pub/Sub subscription.
	subscription string

	// maxInFlight caps unacknowledged messages.
	maxInFlight int

	// params carries free-form driver settings ("auto_commit", "prefetch").
	params map[string]string
}

// ConsumeOption adjusts consumer behavior.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	return co
}

// WithConcurrency sets the number of parallel handler goroutines.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithGroup names the Kafka consumer group.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithChannel names the NSQ channel.
func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

// WithQueueGroup names the NATS queue group.
func WithQueueGroup(queueGroup string) ConsumeOption {
	return func(o *consumeOptions) { o.queueGroup = queueGroup }
}

// WithSubscription names the Pub/Sub subscription.
func WithSubscription(subscription string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = subscription }
}

// WithAutoAck asks the driver to ack or nack from the handler's result.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithMaxInFlight caps outstanding unacknowledged messages.
func WithMaxInFlight(maxInFlight int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = maxInFlight }
}

// WithParams merges driver-specific parameters in bulk.
func WithParams(params map[string]string) ConsumeOption {
	return func(o *consumeOptions) {
		for k, v := range params {
			if o.params == nil {
				o.params = make(map[string]string, len(params))
			}
			o.params[k] = v
		}
	}
}

// WithParam sets one driver-specific parameter.
func WithParam(key, value string) ConsumeOption {
	return func(o *consumeOptions) {
		if key == "" {
			return
		}
		if o.params == nil {
			o.params = make(map[string]string, 1)
		}
		o.params[key] = value
	}
}
