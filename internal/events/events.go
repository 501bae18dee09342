package events

import (
	"time"
)

// Event is the envelope every lifecycle message travels in.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	EventSource  = "exam-site"
	EventVersion = "1.0"
)

// Event types
const (
	TypeAttemptStarted   = "attempt.started"
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAttemptTimedOut  = "attempt.timed_out"
	TypeExamPublished    = "exam.published"
	TypeResitGranted     = "exam.resit_granted"
)

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	UserID    string    `json:"user_id"`
	AttemptNo int       `json:"attempt_no"`
	StartedAt time.Time `json:"started_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	ExamID      uint      `json:"exam_id"`
	UserID      string    `json:"user_id"`
	AttemptNo   int       `json:"attempt_no"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Passed      bool      `json:"passed"`
	EndReason   string    `json:"end_reason"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type ExamPublishedEvent struct {
	ExamID    uint   `json:"exam_id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
}

type ResitGrantedEvent struct {
	ExamID        uint   `json:"exam_id"`
	UserID        string `json:"user_id"`
	ExtraAttempts int    `json:"extra_attempts"`
	CanView       bool   `json:"can_view"`
	GrantedBy     string `json:"granted_by"`
}
