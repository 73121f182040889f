package app

import (
	"sync"

	"go.uber.org/zap"

	"quiz-interaction-service/internal/domain"
)

const defaultSubscriberBuffer = 16

// TopicRepository tracks live topics. TopicRegistry is the in-process implementation.
type TopicRepository interface {
	GetOrCreate(questionID string) *Topic
	Get(questionID string) (*Topic, bool)
	DeleteIfEmpty(questionID string)
}

// Subscription is the handle a client holds for one question.
type Subscription struct {
	QuestionID string
	ClientID   string

	topic  *Topic
	events chan domain.Event
}

// Events yields events in publish order. The channel is closed on unsubscribe.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Topic is the subscriber set of a single question.
type Topic struct {
	questionID  string
	mu          sync.Mutex
	subscribers map[string]*Subscription
	closed      bool
}

// NewTopic is exported for TopicRepository implementations.
func NewTopic(questionID string) *Topic {
	return &Topic{
		questionID:  questionID,
		subscribers: make(map[string]*Subscription),
	}
}

// add registers clientID; ok is false once the topic has been torn down.
func (t *Topic) add(clientID string, buffer int) (*Subscription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false
	}
	if existing, ok := t.subscribers[clientID]; ok {
		return existing, true
	}
	sub := &Subscription{
		QuestionID: t.questionID,
		ClientID:   clientID,
		topic:      t,
		events:     make(chan domain.Event, buffer),
	}
	t.subscribers[clientID] = sub
	return sub, true
}

// remove reports whether sub was still registered.
func (t *Topic) remove(sub *Subscription) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.subscribers[sub.ClientID]
	if !ok || current != sub {
		return false
	}
	delete(t.subscribers, sub.ClientID)
	close(sub.events)
	return true
}

func (t *Topic) publish(evt domain.Event, logger *zap.Logger) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	delivered := 0
	for clientID, sub := range t.subscribers {
		select {
		case sub.events <- evt:
			delivered++
		default:
			// A full queue means the client stopped reading; the event is lost for it only.
			logger.Warn("dropping event for slow subscriber",
				zap.String("question_id", t.questionID),
				zap.String("client_id", clientID),
				zap.String("event_type", string(evt.Type)),
			)
		}
	}
	return delivered
}

// IsEmpty reports whether the topic has no subscribers.
func (t *Topic) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers) == 0
}

// CloseIfEmpty marks an empty topic as torn down so late subscribers create a fresh one.
func (t *Topic) CloseIfEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subscribers) > 0 {
		return false
	}
	t.closed = true
	return true
}

// SubscriberCount returns the number of active subscriptions.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// TopicBroadcaster fans events out to the subscribers of a question, in publish order.
// Delivery is best-effort: nothing is buffered for absent clients and nothing is retried.
type TopicBroadcaster struct {
	topics TopicRepository
	buffer int
	logger *zap.Logger
}

func NewTopicBroadcaster(topics TopicRepository, buffer int, logger *zap.Logger) *TopicBroadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicBroadcaster{topics: topics, buffer: buffer, logger: logger}
}

// Subscribe registers clientID on questionID. Subscribing twice returns the same handle.
func (b *TopicBroadcaster) Subscribe(questionID, clientID string) *Subscription {
	for {
		topic := b.topics.GetOrCreate(questionID)
		if sub, ok := topic.add(clientID, b.buffer); ok {
			return sub
		}
	}
}

// Unsubscribe removes sub and releases the topic when it was the last one. Safe to repeat.
func (b *TopicBroadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil || sub.topic == nil {
		return
	}
	if sub.topic.remove(sub) && sub.topic.IsEmpty() {
		b.topics.DeleteIfEmpty(sub.QuestionID)
	}
}

// Publish delivers evt to everyone currently subscribed to questionID and returns how many got it.
func (b *TopicBroadcaster) Publish(questionID string, evt domain.Event) int {
	topic, ok := b.topics.Get(questionID)
	if !ok {
		return 0
	}
	return topic.publish(evt, b.logger)
}

// SubscriberCount returns the number of live subscriptions for questionID.
func (b *TopicBroadcaster) SubscriberCount(questionID string) int {
	topic, ok := b.topics.Get(questionID)
	if !ok {
		return 0
	}
	return topic.SubscriberCount()
}
