package domain

import (
	"strings"
	"time"
)

// Subject is the closed set of question subjects.
type Subject string

const (
	SubjectPhysics   Subject = "physics"
	SubjectChemistry Subject = "chemistry"
	SubjectBiology   Subject = "biology"
	SubjectMath      Subject = "math"
)

// Subjects lists every valid subject.
var Subjects = []Subject{SubjectPhysics, SubjectChemistry, SubjectBiology, SubjectMath}

// Valid reports whether s belongs to the closed subject set.
func (s Subject) Valid() bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

const (
	MinDifficulty = 1
	MaxDifficulty = 3
)

// Question is a video-backed prompt answered in free text.
type Question struct {
	ID                   string   `json:"id" yaml:"id"`
	Title                string   `json:"title" yaml:"title"`
	Body                 string   `json:"body" yaml:"body"`
	Difficulty           int      `json:"difficulty" yaml:"difficulty"`
	Subject              Subject  `json:"subject" yaml:"subject"`
	CorrectAnswerPattern []string `json:"correctAnswerPattern" yaml:"correct_answer_pattern"`
	OwnerID              string   `json:"ownerId" yaml:"owner_id"`
	VideoURL             string   `json:"videoUrl,omitempty" yaml:"video_url"`
}

// Validate checks the invariants a question must hold before it can be graded against.
// An empty keyword pattern is allowed; no answer can be correct for it.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return NewValidationError("id", "must not be blank")
	}
	if strings.TrimSpace(q.Title) == "" {
		return NewValidationError("title", "must not be blank")
	}
	if strings.TrimSpace(q.Body) == "" {
		return NewValidationError("body", "must not be blank")
	}
	if q.Difficulty < MinDifficulty || q.Difficulty > MaxDifficulty {
		return NewValidationError("difficulty", "must be between 1 and 3")
	}
	if !q.Subject.Valid() {
		return NewValidationError("subject", "must be one of physics, chemistry, biology, math")
	}
	for _, keyword := range q.CorrectAnswerPattern {
		if strings.TrimSpace(keyword) == "" {
			return NewValidationError("correctAnswerPattern", "keywords must not be blank")
		}
	}
	return nil
}

// Verdict is the grading outcome for one answer.
type Verdict struct {
	Correct      bool `json:"correct"`
	MatchedCount int  `json:"matchedCount"`
}

// Answer is a graded submission. Correct is fixed at creation.
type Answer struct {
	ID           string    `json:"id"`
	QuestionID   string    `json:"questionId"`
	UserID       string    `json:"userId"`
	Text         string    `json:"text"`
	Correct      bool      `json:"correct"`
	MatchedCount int       `json:"matchedCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubjectProgress is a total/correct pair used for per-subject and per-day breakdowns.
type SubjectProgress struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// CorrectRate returns the share of correct answers, 0 when nothing was answered.
func (p SubjectProgress) CorrectRate() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Total)
}

// UserStatistics is the rolling snapshot for one user.
type UserStatistics struct {
	UserID         string                      `json:"userId"`
	TotalAnswers   int                         `json:"totalAnswers"`
	CorrectAnswers int                         `json:"correctAnswers"`
	Streak         int                         `json:"streak"`
	BestStreak     int                         `json:"bestStreak"`
	Level          int                         `json:"level"`
	Subjects       map[Subject]SubjectProgress `json:"subjects"`
	Daily          map[string]SubjectProgress  `json:"daily"`
	UpdatedAt      time.Time                   `json:"updatedAt"`
}

// NewUserStatistics returns an empty snapshot for userID.
func NewUserStatistics(userID string) UserStatistics {
	return UserStatistics{
		UserID:   userID,
		Subjects: make(map[Subject]SubjectProgress),
		Daily:    make(map[string]SubjectProgress),
	}
}

// LikeState is the membership outcome of a like toggle.
type LikeState string

const (
	LikeAdded   LikeState = "ADDED"
	LikeRemoved LikeState = "REMOVED"
)

// LikeResult is returned by a like toggle.
type LikeResult struct {
	State LikeState `json:"state"`
	Count int       `json:"count"`
}

// ViewResult is returned when a view is recorded.
type ViewResult struct {
	FirstView bool `json:"firstView"`
	Count     int  `json:"count"`
}

// Engagement is the pull-path view of a question's counters.
type Engagement struct {
	QuestionID string `json:"questionId"`
	Likes      int    `json:"likes"`
	Views      int    `json:"views"`
}

// QuestionLikes is one entry of the popularity ranking.
type QuestionLikes struct {
	QuestionID string `json:"questionId"`
	Likes      int    `json:"likes"`
}
