package validator

import (
	"errors"
	"testing"

	"github.com/Saidabdi38/exam-site/internal/models"
)

func TestValidator_ExamCreateRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       ExamCreateRequest
		wantField string
	}{
		{
			name: "valid",
			req:  ExamCreateRequest{Title: "Algebra Midterm", DurationMinutes: 45},
		},
		{
			name:      "missing title",
			req:       ExamCreateRequest{DurationMinutes: 45},
			wantField: "Title",
		},
		{
			name:      "blank title",
			req:       ExamCreateRequest{Title: "   ", DurationMinutes: 45},
			wantField: "Title",
		},
		{
			name:      "zero duration",
			req:       ExamCreateRequest{Title: "Algebra"},
			wantField: "DurationMinutes",
		},
		{
			name:      "duration beyond a school day",
			req:       ExamCreateRequest{Title: "Algebra", DurationMinutes: 481},
			wantField: "DurationMinutes",
		},
		{
			name:      "question count too large",
			req:       ExamCreateRequest{Title: "Algebra", DurationMinutes: 45, QuestionCount: 201},
			wantField: "QuestionCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, fe := range verrs {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q in %v", tt.wantField, verrs)
			}
		})
	}
}

func TestValidator_BankQuestionCreateRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     BankQuestionCreateRequest
		wantErr bool
	}{
		{
			name: "valid",
			req: BankQuestionCreateRequest{
				SubjectID: 1,
				Text:      "What is 2+2?",
				Type:      models.MultipleChoice,
				Choices:   []ChoiceRequest{{Text: "4", IsCorrect: true}, {Text: "5"}},
			},
		},
		{
			name: "single choice",
			req: BankQuestionCreateRequest{
				SubjectID: 1,
				Text:      "What is 2+2?",
				Type:      models.MultipleChoice,
				Choices:   []ChoiceRequest{{Text: "4", IsCorrect: true}},
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			req: BankQuestionCreateRequest{
				SubjectID: 1,
				Text:      "What is 2+2?",
				Type:      "ESSAY",
				Choices:   []ChoiceRequest{{Text: "4", IsCorrect: true}, {Text: "5"}},
			},
			wantErr: true,
		},
		{
			name: "choice without text",
			req: BankQuestionCreateRequest{
				SubjectID: 1,
				Text:      "What is 2+2?",
				Type:      models.TrueFalse,
				Choices:   []ChoiceRequest{{Text: "True", IsCorrect: true}, {Text: ""}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_AnswerSubmitRequest(t *testing.T) {
	v := New()
	choice := uint(3)

	tests := []struct {
		name    string
		req     AnswerSubmitRequest
		wantErr bool
	}{
		{name: "empty clears the selection", req: AnswerSubmitRequest{}},
		{name: "choice with navigation", req: AnswerSubmitRequest{ChoiceID: &choice, Action: "next"}},
		{name: "submit action", req: AnswerSubmitRequest{Action: "submit"}},
		{name: "unknown action", req: AnswerSubmitRequest{Action: "jump"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := (ValidationErrors{}).Error(); got != "validation failed" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationErrors{{Field: "Title", Message: "is required"}}
	if got := one.Error(); got != "validation failed: Title is required" {
		t.Errorf("single Error() = %q", got)
	}

	two := ValidationErrors{{Field: "A"}, {Field: "B"}}
	if got := two.Error(); got != "validation failed: 2 field errors" {
		t.Errorf("multi Error() = %q", got)
	}
}
