package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags the variants delivered to topic subscribers.
type EventType string

const (
	EventNewAnswer   EventType = "NEW_ANSWER"
	EventLikeAdded   EventType = "LIKE_ADDED"
	EventLikeRemoved EventType = "LIKE_REMOVED"
)

// Author identifies who wrote a broadcast answer.
type Author struct {
	ID string `json:"id"`
}

// PublicAnswer is the answer as other viewers see it; the verdict is not exposed.
type PublicAnswer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Text       string    `json:"text"`
	Author     Author    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event is a tagged union: Answer is set for NEW_ANSWER, Count for the like variants.
type Event struct {
	Type       EventType
	QuestionID string
	Answer     *PublicAnswer
	Count      int
}

// NewAnswerEvent builds a NEW_ANSWER event from a stored answer.
func NewAnswerEvent(answer Answer) Event {
	return Event{
		Type:       EventNewAnswer,
		QuestionID: answer.QuestionID,
		Answer: &PublicAnswer{
			ID:         answer.ID,
			QuestionID: answer.QuestionID,
			Text:       answer.Text,
			Author:     Author{ID: answer.UserID},
			CreatedAt:  answer.CreatedAt,
		},
	}
}

// LikeEvent builds LIKE_ADDED or LIKE_REMOVED depending on the toggle outcome.
func LikeEvent(questionID string, result LikeResult) Event {
	typ := EventLikeAdded
	if result.State == LikeRemoved {
		typ = EventLikeRemoved
	}
	return Event{Type: typ, QuestionID: questionID, Count: result.Count}
}

type answerEnvelope struct {
	Type       EventType     `json:"type"`
	QuestionID string        `json:"questionId"`
	Answer     *PublicAnswer `json:"answer"`
}

type countEnvelope struct {
	Type       EventType `json:"type"`
	QuestionID string    `json:"questionId"`
	Count      int       `json:"count"`
}

// MarshalJSON flattens the payload next to the type tag.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventNewAnswer:
		return json.Marshal(answerEnvelope{Type: e.Type, QuestionID: e.QuestionID, Answer: e.Answer})
	case EventLikeAdded, EventLikeRemoved:
		return json.Marshal(countEnvelope{Type: e.Type, QuestionID: e.QuestionID, Count: e.Count})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       EventType     `json:"type"`
		QuestionID string        `json:"questionId"`
		Answer     *PublicAnswer `json:"answer"`
		Count      int           `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case EventNewAnswer, EventLikeAdded, EventLikeRemoved:
	default:
		return fmt.Errorf("unknown event type %q", raw.Type)
	}
	*e = Event{Type: raw.Type, QuestionID: raw.QuestionID, Answer: raw.Answer, Count: raw.Count}
	return nil
}
