package channel

import (
	"sort"
	"sync"

	"finlink/src/logger"
	"finlink/src/models"
)

// -----------------------------------------------------------------------------
// Subscriber Registry
// -----------------------------------------------------------------------------

// Registry maps topics to subscriber callbacks. Dispatch walks a snapshot of
// the current set, so a subscriber unsubscribing itself mid-dispatch never
// corrupts iteration.
type Registry struct {
	Logger *logger.Logger

	mu     sync.Mutex
	subs   map[string]map[int]func(models.MUpdateEnvelope)
	nextID int
}

// -----------------------------------------------------------------------------

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		Logger: log,
		subs:   make(map[string]map[int]func(models.MUpdateEnvelope)),
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers callback under topic and returns a capability that
// removes exactly this registration. Unsubscribing twice is a no-op; a topic
// whose set becomes empty is pruned.
func (r *Registry) Subscribe(topic string, callback func(models.MUpdateEnvelope)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	if r.subs[topic] == nil {
		r.subs[topic] = make(map[int]func(models.MUpdateEnvelope))
	}
	r.subs[topic][id] = callback

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.subs[topic]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.subs, topic)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Dispatch invokes every subscriber of the envelope's topic. A panicking
// callback is recovered and logged so the remaining subscribers still get
// the envelope.
func (r *Registry) Dispatch(envelope models.MUpdateEnvelope) {
	for _, callback := range r.snapshot(envelope.Type) {
		r.invoke(callback, envelope)
	}
}

// -----------------------------------------------------------------------------

func (r *Registry) invoke(callback func(models.MUpdateEnvelope), envelope models.MUpdateEnvelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("Subscriber for '%s' panicked: %v", envelope.Type, rec)
		}
	}()
	callback(envelope)
}

// -----------------------------------------------------------------------------

// snapshot returns the topic's callbacks in registration order.
func (r *Registry) snapshot(topic string) []func(models.MUpdateEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[topic]
	if !ok {
		return nil
	}

	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	callbacks := make([]func(models.MUpdateEnvelope), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, set[id])
	}
	return callbacks
}

// -----------------------------------------------------------------------------

// Clear drops every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[string]map[int]func(models.MUpdateEnvelope))
}

// -----------------------------------------------------------------------------

// Count reports the number of subscribers for a topic.
func (r *Registry) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[topic])
}

// -----------------------------------------------------------------------------

// TopicCount reports the number of topics with at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
