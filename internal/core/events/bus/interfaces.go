package bus

// Bus is a typed, in-process publish/subscribe channel. A runtime owns one Bus
// per notification kind and hands components only the half they need: the
// producer gets a Publisher, consumers get a Subscriber.
//
// Key characteristics:
// - Synchronous delivery: Publish calls handlers in the caller goroutine, in
//   subscription order.
// - Error aggregation: handler errors are joined and returned from Publish.
// - Safe for concurrent Subscribe/Cancel while publishing.
type Bus[E any] interface {
	Publisher[E]
	Subscriber[E]
	// Len reports the number of active subscriptions.
	Len() int
}

// Publisher is the sending half of a Bus.
type Publisher[E any] interface {
	// Publish delivers the event to all active subscribers. If one or more
	// handlers return an error, a joined error is returned.
	Publish(event E) error
}

// Subscriber is the receiving half of a Bus.
type Subscriber[E any] interface {
	// Subscribe registers a handler and returns a Subscription handle.
	Subscribe(handler Handler[E]) Subscription
}

// Handler is a callback invoked per delivered event.
type Handler[E any] func(event E) error

// Subscription represents a registered handler.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel()
}
