package app

import "sync"

// TopicRegistry is the in-process TopicRepository. Subscribers hold channels owned by
// this process, so their topics can only live here.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]*Topic
}

func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{topics: make(map[string]*Topic)}
}

func (r *TopicRegistry) GetOrCreate(questionID string) *Topic {
	r.mu.RLock()
	topic, ok := r.topics[questionID]
	r.mu.RUnlock()
	if ok {
		return topic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if topic, ok := r.topics[questionID]; ok {
		return topic
	}
	topic = NewTopic(questionID)
	r.topics[questionID] = topic
	return topic
}

func (r *TopicRegistry) Get(questionID string) (*Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topic, ok := r.topics[questionID]
	return topic, ok
}

// DeleteIfEmpty closes and forgets the topic while holding the registry lock, so a
// concurrent GetOrCreate either sees the live topic or creates a new one.
func (r *TopicRegistry) DeleteIfEmpty(questionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	topic, ok := r.topics[questionID]
	if !ok {
		return
	}
	if topic.CloseIfEmpty() {
		delete(r.topics, questionID)
	}
}

// Len returns the number of live topics.
func (r *TopicRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
