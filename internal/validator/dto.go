package validator

import "github.com/Saidabdi38/exam-site/internal/models"

// Request DTOs shared by services and handlers.

type ExamCreateRequest struct {
	Title            string  `json:"title" validate:"required,exam_title"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes  int     `json:"duration_minutes" validate:"required,exam_duration"`
	UsesQuestionBank bool    `json:"uses_question_bank"`
	SubjectID        *uint   `json:"subject_id" validate:"omitempty,min=1"`
	QuestionCount    int     `json:"question_count" validate:"omitempty,question_count"`
}

type ExamUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,exam_title"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,exam_duration"`
	SubjectID       *uint   `json:"subject_id" validate:"omitempty,min=1"`
	QuestionCount   *int    `json:"question_count" validate:"omitempty,question_count"`
}

type SubjectCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type ChoiceRequest struct {
	Text      string `json:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

type BankQuestionCreateRequest struct {
	SubjectID uint                `json:"subject_id" validate:"required,min=1"`
	Text      string              `json:"text" validate:"required,max=2000"`
	Type      models.QuestionType `json:"type" validate:"required,oneof=MCQ TF"`
	Choices   []ChoiceRequest     `json:"choices" validate:"required,min=2,max=10,dive"`
}

type QuestionCreateRequest struct {
	Text    string              `json:"text" validate:"required,max=2000"`
	Type    models.QuestionType `json:"type" validate:"required,oneof=MCQ TF"`
	Choices []ChoiceRequest     `json:"choices" validate:"required,min=2,max=10,dive"`
}

type ResitGrantRequest struct {
	ExtraAttempts int  `json:"extra_attempts" validate:"min=0,max=10"`
	CanView       bool `json:"can_view"`
}

type AnswerSubmitRequest struct {
	// Nil clears the current selection.
	ChoiceID *uint  `json:"choice_id" validate:"omitempty,min=1"`
	Action   string `json:"action" validate:"omitempty,oneof=next prev submit save"`
}
