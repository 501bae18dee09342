package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Saidabdi38/exam-site/internal/models"
)

func TestBankService_Subjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("teacher only", func(t *testing.T) {
		_, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "Biology"}, testStudentID)
		if !errors.Is(err, ErrTeacherOnly) {
			t.Fatalf("CreateSubject() error = %v, want ErrTeacherOnly", err)
		}
	})

	subject, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "Biology"}, testTeacherID)
	if err != nil {
		t.Fatalf("CreateSubject() error = %v", err)
	}

	t.Run("duplicate names are rejected", func(t *testing.T) {
		_, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "Biology"}, testTeacherID)
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("CreateSubject() error = %v, want BusinessRuleError", err)
		}
	})

	t.Run("non-empty subjects cannot be deleted", func(t *testing.T) {
		_, err := env.bank.CreateQuestion(ctx, &CreateBankQuestionRequest{
			SubjectID: subject.ID,
			Text:      "What is a cell?",
			Type:      models.MultipleChoice,
			Choices:   []ChoiceRequest{{Text: "A", IsCorrect: true}, {Text: "B"}},
		}, testTeacherID)
		if err != nil {
			t.Fatalf("CreateQuestion() error = %v", err)
		}

		err = env.bank.DeleteSubject(ctx, subject.ID, testTeacherID)
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("DeleteSubject() error = %v, want BusinessRuleError", err)
		}
	})

	t.Run("empty subject deletes cleanly", func(t *testing.T) {
		empty, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "Chemistry"}, testTeacherID)
		if err != nil {
			t.Fatalf("CreateSubject() error = %v", err)
		}
		if err := env.bank.DeleteSubject(ctx, empty.ID, testTeacherID); err != nil {
			t.Fatalf("DeleteSubject() error = %v", err)
		}
		if _, err := env.bank.GetSubject(ctx, empty.ID, testTeacherID); !errors.Is(err, ErrSubjectNotFound) {
			t.Errorf("GetSubject() after delete error = %v, want ErrSubjectNotFound", err)
		}
	})
}

func TestBankService_Questions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "Physics"}, testTeacherID)
	if err != nil {
		t.Fatalf("CreateSubject() error = %v", err)
	}

	t.Run("unknown subject", func(t *testing.T) {
		_, err := env.bank.CreateQuestion(ctx, &CreateBankQuestionRequest{
			SubjectID: 9999,
			Text:      "Orphan",
			Type:      models.MultipleChoice,
			Choices:   []ChoiceRequest{{Text: "A", IsCorrect: true}, {Text: "B"}},
		}, testTeacherID)
		if !errors.Is(err, ErrSubjectNotFound) {
			t.Fatalf("CreateQuestion() error = %v, want ErrSubjectNotFound", err)
		}
	})

	t.Run("at most one correct choice", func(t *testing.T) {
		_, err := env.bank.CreateQuestion(ctx, &CreateBankQuestionRequest{
			SubjectID: subject.ID,
			Text:      "Broken",
			Type:      models.MultipleChoice,
			Choices:   []ChoiceRequest{{Text: "A", IsCorrect: true}, {Text: "B", IsCorrect: true}},
		}, testTeacherID)
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("CreateQuestion() error = %v, want BusinessRuleError", err)
		}
	})

	question, err := env.bank.CreateQuestion(ctx, &CreateBankQuestionRequest{
		SubjectID: subject.ID,
		Text:      "What is force?",
		Type:      models.MultipleChoice,
		Choices:   []ChoiceRequest{{Text: "A", IsCorrect: true}, {Text: "B"}, {Text: "C"}},
	}, testTeacherID)
	if err != nil {
		t.Fatalf("CreateQuestion() error = %v", err)
	}

	t.Run("set correct choice demotes the rest", func(t *testing.T) {
		newCorrect := question.Choices[1].ID
		if err := env.bank.SetCorrectChoice(ctx, question.ID, newCorrect, testTeacherID); err != nil {
			t.Fatalf("SetCorrectChoice() error = %v", err)
		}

		stored, err := env.bank.GetQuestion(ctx, question.ID, testTeacherID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}
		for _, c := range stored.Choices {
			if c.IsCorrect != (c.ID == newCorrect) {
				t.Errorf("choice %d is_correct = %v, want %v", c.ID, c.IsCorrect, c.ID == newCorrect)
			}
		}
	})

	t.Run("foreign choice is rejected", func(t *testing.T) {
		err := env.bank.SetCorrectChoice(ctx, question.ID, 9999, testTeacherID)
		if !errors.Is(err, ErrChoiceNotInQuestion) {
			t.Errorf("SetCorrectChoice() error = %v, want ErrChoiceNotInQuestion", err)
		}
	})

	t.Run("pool deletion leaves frozen attempts intact", func(t *testing.T) {
		// Build a full pool, freeze an attempt over it, then delete one of the
		// frozen questions from the pool.
		poolSubject := seedSubjectPool(t, env.db, 3)
		exam := seedBankExam(t, env.db, poolSubject.ID, 3)
		grantResit(t, env.db, exam.ID, testStudentID, 0, true)

		started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		frozen, err := env.repo.Attempt().GetAttemptQuestions(ctx, nil, started.ID)
		if err != nil {
			t.Fatalf("GetAttemptQuestions() error = %v", err)
		}

		if err := env.bank.DeleteQuestion(ctx, frozen[0].BankQuestionID, testTeacherID); err != nil {
			t.Fatalf("DeleteQuestion() error = %v", err)
		}

		remaining, err := env.repo.Attempt().CountAttemptQuestions(ctx, nil, started.ID)
		if err != nil {
			t.Fatalf("CountAttemptQuestions() error = %v", err)
		}
		if remaining != 3 {
			t.Errorf("frozen set shrank to %d rows after pool delete, want 3", remaining)
		}
	})
}
