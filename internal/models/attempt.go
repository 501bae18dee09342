package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptStatus is the derived lifecycle state of an attempt. There is no
// stored status column: SubmittedAt is the single source of truth, and the
// partial unique index on open attempts is the duplicate-start guard.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

const (
	AttemptEndReasonSubmit  = "submit"
	AttemptEndReasonTimeout = "time_out"
)

// Attempt is one student's numbered run through an exam. DurationSeconds is
// copied from the exam at creation; later exam edits do not reach in-flight
// attempts.
type Attempt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index:idx_attempt_user_exam;uniqueIndex:idx_attempt_exam_user_no;uniqueIndex:idx_attempt_open,where:submitted_at IS NULL"`
	UserID    string `json:"user_id" gorm:"not null;size:255;index:idx_attempt_user_exam;uniqueIndex:idx_attempt_exam_user_no;uniqueIndex:idx_attempt_open,where:submitted_at IS NULL"`
	AttemptNo int    `json:"attempt_no" gorm:"not null;default:1;uniqueIndex:idx_attempt_exam_user_no"`

	// Timing
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt     *time.Time `json:"submitted_at" gorm:"index"`
	DurationSeconds int        `json:"duration_seconds" gorm:"not null;default:0"`

	// Scoring (written once, on submit)
	Score    int  `json:"score" gorm:"default:0"`
	MaxScore int  `json:"max_score" gorm:"default:0"`
	Passed   bool `json:"passed" gorm:"default:false"`

	EndReason *string `json:"end_reason" gorm:"type:text"`

	// Metadata
	SessionData datatypes.JSON `json:"session_data,omitempty" gorm:"type:jsonb"` // client info captured at start

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam      Exam              `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Answers   []Answer          `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
	Questions []AttemptQuestion `json:"questions,omitempty" gorm:"foreignKey:AttemptID"`
}

func (a *Attempt) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

func (a *Attempt) Status() AttemptStatus {
	if a.IsSubmitted() {
		return AttemptSubmitted
	}
	return AttemptInProgress
}

// TimeLeftSeconds is the remaining budget at the given instant; 0 once
// submitted or expired. Expiry is only acted upon lazily, when a request
// touches the attempt.
func (a *Attempt) TimeLeftSeconds(now time.Time) int {
	if a.IsSubmitted() {
		return 0
	}
	left := a.DurationSeconds - int(now.Sub(a.StartedAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

func (a *Attempt) IsExpired(now time.Time) bool {
	return !a.IsSubmitted() && int(now.Sub(a.StartedAt).Seconds()) >= a.DurationSeconds
}

// AttemptQuestion freezes one sampled bank question into an attempt. Rows
// are written exactly once, at attempt creation, and never updated, which is
// what keeps the question set stable when the underlying pool changes.
type AttemptQuestion struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	AttemptID      uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_bank_question"`
	BankQuestionID uint `json:"bank_question_id" gorm:"not null;uniqueIndex:idx_attempt_bank_question"`
	Order          int  `json:"order" gorm:"column:question_order;not null"` // 1-based sampling order

	CreatedAt time.Time `json:"created_at"`

	// Relations
	BankQuestion BankQuestion `json:"bank_question,omitempty" gorm:"foreignKey:BankQuestionID"`
}

// Answer is the mutable per-(attempt, question) selection record. Exactly one
// of QuestionID / BankQuestionID is set, enforced as two partial unique
// indexes. SelectedChoiceID nil means unanswered (or cleared).
type Answer struct {
	ID             uint  `json:"id" gorm:"primaryKey"`
	AttemptID      uint  `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_answer_question,where:question_id IS NOT NULL;uniqueIndex:idx_answer_bank_question,where:bank_question_id IS NOT NULL"`
	QuestionID     *uint `json:"question_id" gorm:"uniqueIndex:idx_answer_question,where:question_id IS NOT NULL"`
	BankQuestionID *uint `json:"bank_question_id" gorm:"uniqueIndex:idx_answer_bank_question,where:bank_question_id IS NOT NULL"`

	SelectedChoiceID *uint `json:"selected_choice_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt Attempt `json:"-" gorm:"foreignKey:AttemptID"`
}

// Answered reports whether the student currently has a selection recorded.
// A cleared answer (row exists, selection nil) counts as unanswered for
// resume routing.
func (a *Answer) Answered() bool {
	return a.SelectedChoiceID != nil
}

func (Attempt) TableName() string         { return "attempts" }
func (AttemptQuestion) TableName() string { return "attempt_questions" }
func (Answer) TableName() string          { return "answers" }
