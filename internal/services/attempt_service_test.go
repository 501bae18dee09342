package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Saidabdi38/exam-site/internal/events"
	"github.com/Saidabdi38/exam-site/internal/models"
)

func answerRequest(choiceID uint, action string) *AnswerRequest {
	return &AnswerRequest{ChoiceID: uintPtr(choiceID), Action: action}
}

// correctChoice picks the correct option off a question view by the fixture
// convention that the correct choice is labeled "Correct".
func correctChoice(t *testing.T, view *QuestionView) uint {
	t.Helper()

	for _, c := range view.Choices {
		if c.Text == "Correct" {
			return c.ID
		}
	}
	t.Fatal("no correct choice in view")
	return 0
}

func wrongChoice(t *testing.T, view *QuestionView) uint {
	t.Helper()

	for _, c := range view.Choices {
		if c.Text != "Correct" {
			return c.ID
		}
	}
	t.Fatal("no wrong choice in view")
	return 0
}

func expireAttempt(t *testing.T, env *testEnv, attemptID uint) {
	t.Helper()

	err := env.db.Model(&models.Attempt{}).
		Where("id = ?", attemptID).
		Update("started_at", time.Now().Add(-2*time.Hour)).Error
	if err != nil {
		t.Fatalf("failed to backdate attempt: %v", err)
	}
}

func eventTypes(publisher *events.MockEventPublisher) []string {
	published := publisher.GetPublishedEvents()
	types := make([]string, len(published))
	for i, e := range published {
		types[i] = e.Type
	}
	return types
}

func hasEventType(publisher *events.MockEventPublisher, eventType string) bool {
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

func TestAttemptService_StartBankMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject := seedSubjectPool(t, env.db, 10)
	exam := seedBankExam(t, env.db, subject.ID, 4)

	t.Run("hidden without grant", func(t *testing.T) {
		_, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if !errors.Is(err, ErrExamNotVisible) {
			t.Fatalf("Start() error = %v, want ErrExamNotVisible", err)
		}
	})

	grantResit(t, env.db, exam.ID, testStudentID, 0, true)

	t.Run("freezes the sampled question set", func(t *testing.T) {
		resp, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if resp.AttemptNo != 1 {
			t.Errorf("AttemptNo = %d, want 1", resp.AttemptNo)
		}
		if resp.QuestionCount != 4 {
			t.Errorf("QuestionCount = %d, want 4", resp.QuestionCount)
		}
		if resp.ResumeQuestionNo != 1 {
			t.Errorf("ResumeQuestionNo = %d, want 1", resp.ResumeQuestionNo)
		}

		frozen, err := env.repo.Attempt().GetAttemptQuestions(ctx, nil, resp.ID)
		if err != nil {
			t.Fatalf("GetAttemptQuestions() error = %v", err)
		}
		if len(frozen) != 4 {
			t.Fatalf("frozen set holds %d questions, want 4", len(frozen))
		}
		for i, row := range frozen {
			if row.Order != i+1 {
				t.Errorf("frozen row %d has order %d", i, row.Order)
			}
		}

		// Growing the pool after the start must not leak into the attempt.
		before := make([]uint, len(frozen))
		for i, row := range frozen {
			before[i] = row.BankQuestionID
		}

		extra := &models.BankQuestion{
			SubjectID: subject.ID,
			Text:      "Added after start",
			Type:      models.MultipleChoice,
			CreatedBy: testTeacherID,
			Choices:   []models.BankChoice{{Text: "Correct", IsCorrect: true}, {Text: "Wrong"}},
		}
		if err := env.db.Create(extra).Error; err != nil {
			t.Fatalf("failed to grow pool: %v", err)
		}

		after, err := env.repo.Attempt().GetAttemptQuestions(ctx, nil, resp.ID)
		if err != nil {
			t.Fatalf("GetAttemptQuestions() error = %v", err)
		}
		if len(after) != len(before) {
			t.Fatalf("frozen set size changed from %d to %d", len(before), len(after))
		}
		for i, row := range after {
			if row.BankQuestionID != before[i] {
				t.Errorf("frozen question %d changed from %d to %d", i, before[i], row.BankQuestionID)
			}
		}

		if !hasEventType(env.publisher, events.TypeAttemptStarted) {
			t.Errorf("no %s event published, got %v", events.TypeAttemptStarted, eventTypes(env.publisher))
		}
	})

	t.Run("second start resumes the open attempt", func(t *testing.T) {
		first, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		second, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("resume returned attempt %d, want open attempt %d", second.ID, first.ID)
		}
	})
}

func TestAttemptService_InsufficientPool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject := seedSubjectPool(t, env.db, 2)
	exam := seedBankExam(t, env.db, subject.ID, 5)
	grantResit(t, env.db, exam.ID, testStudentID, 0, true)

	_, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("Start() error = %v, want ErrInsufficientPool", err)
	}

	// The transaction must leave no half-built attempt behind.
	var count int64
	if err := env.db.Model(&models.Attempt{}).Where("exam_id = ?", exam.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count attempts: %v", err)
	}
	if count != 0 {
		t.Errorf("found %d attempt rows after failed start, want 0", count)
	}
}

func TestAttemptService_SessionData(t *testing.T) {
	env := newTestEnv(t)
	exam := seedLegacyExam(t, env.db, 2)

	t.Run("client info is stored at start", func(t *testing.T) {
		ctx := WithClientInfo(context.Background(), &ClientInfo{
			IP:        "203.0.113.7",
			UserAgent: "test-agent/1.0",
		})

		started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		var stored models.Attempt
		if err := env.db.First(&stored, started.ID).Error; err != nil {
			t.Fatalf("failed to load attempt: %v", err)
		}

		var info ClientInfo
		if err := json.Unmarshal(stored.SessionData, &info); err != nil {
			t.Fatalf("session data %q does not decode: %v", stored.SessionData, err)
		}
		if info.IP != "203.0.113.7" || info.UserAgent != "test-agent/1.0" {
			t.Errorf("stored client info = %+v, want the values passed at start", info)
		}
	})

	t.Run("plain context leaves it empty", func(t *testing.T) {
		started, err := env.attempts.Start(context.Background(), exam.ID, "student-2")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		var stored models.Attempt
		if err := env.db.First(&stored, started.ID).Error; err != nil {
			t.Fatalf("failed to load attempt: %v", err)
		}
		if len(stored.SessionData) != 0 {
			t.Errorf("session data = %q without client info, want empty", stored.SessionData)
		}
	})
}

func TestAttemptService_AttemptLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)

	first, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := env.attempts.Submit(ctx, first.ID, testStudentID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	t.Run("default budget is spent after one attempt", func(t *testing.T) {
		_, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if !errors.Is(err, ErrAttemptLimitExceeded) {
			t.Fatalf("Start() error = %v, want ErrAttemptLimitExceeded", err)
		}
	})

	t.Run("resit grant reopens the exam with the next number", func(t *testing.T) {
		grantResit(t, env.db, exam.ID, testStudentID, 1, true)

		resit, err := env.attempts.Start(ctx, exam.ID, testStudentID)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if resit.AttemptNo != 2 {
			t.Errorf("AttemptNo = %d, want 2", resit.AttemptNo)
		}
	})
}

func TestAttemptService_QuestionNavigation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 3)
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("out of range question numbers", func(t *testing.T) {
		for _, qno := range []int{0, 4, -1} {
			if _, err := env.attempts.GetQuestion(ctx, started.ID, qno, testStudentID); !errors.Is(err, ErrQuestionIndexOutOfRange) {
				t.Errorf("GetQuestion(qno=%d) error = %v, want ErrQuestionIndexOutOfRange", qno, err)
			}
		}
	})

	t.Run("view hides correctness and echoes the saved answer", func(t *testing.T) {
		view, err := env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}
		if view.TotalQuestions != 3 || !view.IsFirst || view.IsLast {
			t.Errorf("view = %d questions, first=%v last=%v; want 3/true/false",
				view.TotalQuestions, view.IsFirst, view.IsLast)
		}
		if view.SelectedChoiceID != nil {
			t.Errorf("SelectedChoiceID = %v before answering, want nil", *view.SelectedChoiceID)
		}

		selected := correctChoice(t, view)
		if _, err := env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(selected, "next"), testStudentID); err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}

		view, err = env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}
		if view.SelectedChoiceID == nil || *view.SelectedChoiceID != selected {
			t.Errorf("SelectedChoiceID = %v, want %d", view.SelectedChoiceID, selected)
		}
	})

	t.Run("next and prev clamp at the edges", func(t *testing.T) {
		view, err := env.attempts.GetQuestion(ctx, started.ID, 3, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}

		outcome, err := env.attempts.SubmitAnswer(ctx, started.ID, 3, answerRequest(correctChoice(t, view), "next"), testStudentID)
		if err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}
		if outcome.NextQuestionNo != 3 {
			t.Errorf("next on last question routed to %d, want 3", outcome.NextQuestionNo)
		}

		view, err = env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}
		outcome, err = env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(correctChoice(t, view), "prev"), testStudentID)
		if err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}
		if outcome.NextQuestionNo != 1 {
			t.Errorf("prev on first question routed to %d, want 1", outcome.NextQuestionNo)
		}
	})

	t.Run("foreign choice is rejected", func(t *testing.T) {
		other, err := env.attempts.GetQuestion(ctx, started.ID, 2, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion() error = %v", err)
		}

		// A choice belonging to question 2 cannot answer question 1.
		_, err = env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(other.Choices[0].ID, ""), testStudentID)
		if !errors.Is(err, ErrChoiceNotInQuestion) {
			t.Errorf("SubmitAnswer() error = %v, want ErrChoiceNotInQuestion", err)
		}
	})

	t.Run("other users cannot touch the attempt", func(t *testing.T) {
		_, err := env.attempts.GetQuestion(ctx, started.ID, 1, "student-2")
		if !errors.Is(err, ErrAttemptNotOwned) {
			t.Errorf("GetQuestion() error = %v, want ErrAttemptNotOwned", err)
		}
	})
}

func TestAttemptService_AnswerRewriteAndClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	view, err := env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID)
	if err != nil {
		t.Fatalf("GetQuestion() error = %v", err)
	}
	first := correctChoice(t, view)
	second := wrongChoice(t, view)

	// Same question answered twice keeps a single row with the last pick.
	if _, err := env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(first, ""), testStudentID); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(second, ""), testStudentID); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	var answers []*models.Answer
	if err := env.db.Where("attempt_id = ?", started.ID).Find(&answers).Error; err != nil {
		t.Fatalf("failed to load answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("found %d answer rows, want 1", len(answers))
	}
	if answers[0].SelectedChoiceID == nil || *answers[0].SelectedChoiceID != second {
		t.Errorf("SelectedChoiceID = %v, want %d", answers[0].SelectedChoiceID, second)
	}

	// Autosave with no choice clears the selection, and resume points back at
	// the cleared question.
	if err := env.attempts.Autosave(ctx, started.ID, 1, &AnswerRequest{}, testStudentID); err != nil {
		t.Fatalf("Autosave() error = %v", err)
	}

	if err := env.db.Where("attempt_id = ?", started.ID).Find(&answers).Error; err != nil {
		t.Fatalf("failed to load answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("found %d answer rows after clear, want 1", len(answers))
	}
	if answers[0].SelectedChoiceID != nil {
		t.Errorf("SelectedChoiceID = %d after clear, want nil", *answers[0].SelectedChoiceID)
	}

	resumed, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if resumed.ResumeQuestionNo != 1 {
		t.Errorf("ResumeQuestionNo = %d after clearing question 1, want 1", resumed.ResumeQuestionNo)
	}
}

func TestAttemptService_ResumePosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 5)
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Answer questions 1 and 3; the gap at 2 is where resume should land.
	for _, qno := range []int{1, 3} {
		view, err := env.attempts.GetQuestion(ctx, started.ID, qno, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion(%d) error = %v", qno, err)
		}
		if _, err := env.attempts.SubmitAnswer(ctx, started.ID, qno, answerRequest(correctChoice(t, view), ""), testStudentID); err != nil {
			t.Fatalf("SubmitAnswer(%d) error = %v", qno, err)
		}
	}

	resumed, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if resumed.ResumeQuestionNo != 2 {
		t.Errorf("ResumeQuestionNo = %d, want 2", resumed.ResumeQuestionNo)
	}

	// With everything answered, resume stays on the last question.
	for _, qno := range []int{2, 4, 5} {
		view, err := env.attempts.GetQuestion(ctx, started.ID, qno, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion(%d) error = %v", qno, err)
		}
		if _, err := env.attempts.SubmitAnswer(ctx, started.ID, qno, answerRequest(correctChoice(t, view), ""), testStudentID); err != nil {
			t.Fatalf("SubmitAnswer(%d) error = %v", qno, err)
		}
	}

	resumed, err = env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if resumed.ResumeQuestionNo != 5 {
		t.Errorf("ResumeQuestionNo = %d with all answered, want 5", resumed.ResumeQuestionNo)
	}
}

func TestAttemptService_SubmitLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject := seedSubjectPool(t, env.db, 6)
	exam := seedBankExam(t, env.db, subject.ID, 3)
	grantResit(t, env.db, exam.ID, testStudentID, 0, true)

	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("result is unavailable while open", func(t *testing.T) {
		_, err := env.attempts.GetResult(ctx, started.ID, testStudentID)
		if !errors.Is(err, ErrAttemptNotSubmitted) {
			t.Fatalf("GetResult() error = %v, want ErrAttemptNotSubmitted", err)
		}
	})

	// Answer every frozen question correctly, submitting off the last one.
	for qno := 1; qno <= 3; qno++ {
		view, err := env.attempts.GetQuestion(ctx, started.ID, qno, testStudentID)
		if err != nil {
			t.Fatalf("GetQuestion(%d) error = %v", qno, err)
		}

		action := "next"
		if qno == 3 {
			action = "submit"
		}
		outcome, err := env.attempts.SubmitAnswer(ctx, started.ID, qno, answerRequest(correctChoice(t, view), action), testStudentID)
		if err != nil {
			t.Fatalf("SubmitAnswer(%d) error = %v", qno, err)
		}
		if qno < 3 && outcome.NextQuestionNo != qno+1 {
			t.Errorf("NextQuestionNo = %d, want %d", outcome.NextQuestionNo, qno+1)
		}
		if qno == 3 && !outcome.Submitted {
			t.Error("Submitted = false on submit action, want true")
		}
	}

	t.Run("full marks and a pass", func(t *testing.T) {
		result, err := env.attempts.GetResult(ctx, started.ID, testStudentID)
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		if result.Score != 3*QuestionWeight || result.MaxScore != 3*QuestionWeight {
			t.Errorf("score = %d/%d, want %d/%d", result.Score, result.MaxScore, 3*QuestionWeight, 3*QuestionWeight)
		}
		if !result.Passed {
			t.Error("Passed = false with full marks, want true")
		}
		if result.EndReason != models.AttemptEndReasonSubmit {
			t.Errorf("EndReason = %q, want %q", result.EndReason, models.AttemptEndReasonSubmit)
		}
		if result.SubmittedAt == nil {
			t.Error("SubmittedAt = nil after submit")
		}
	})

	t.Run("submitted attempts reject further writes", func(t *testing.T) {
		if _, err := env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID); !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("GetQuestion() error = %v, want ErrAttemptAlreadySubmitted", err)
		}
		if err := env.attempts.Autosave(ctx, started.ID, 1, &AnswerRequest{}, testStudentID); !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("Autosave() error = %v, want ErrAttemptAlreadySubmitted", err)
		}
	})

	t.Run("repeat submit returns the stored result", func(t *testing.T) {
		first, err := env.attempts.Submit(ctx, started.ID, testStudentID)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		second, err := env.attempts.Submit(ctx, started.ID, testStudentID)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if first.Score != second.Score || first.MaxScore != second.MaxScore {
			t.Errorf("repeat submit changed the score: %d/%d then %d/%d",
				first.Score, first.MaxScore, second.Score, second.MaxScore)
		}
		if !first.SubmittedAt.Equal(*second.SubmittedAt) {
			t.Error("repeat submit changed SubmittedAt")
		}
	})

	t.Run("submitted event published once", func(t *testing.T) {
		submitted := 0
		for _, e := range env.publisher.GetPublishedEvents() {
			if e.Type == events.TypeAttemptSubmitted {
				submitted++
			}
		}
		if submitted != 1 {
			t.Errorf("published %d %s events, want 1", submitted, events.TypeAttemptSubmitted)
		}
	})
}

func TestAttemptService_Timeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	view, err := env.attempts.GetQuestion(ctx, started.ID, 1, testStudentID)
	if err != nil {
		t.Fatalf("GetQuestion() error = %v", err)
	}
	if _, err := env.attempts.SubmitAnswer(ctx, started.ID, 1, answerRequest(correctChoice(t, view), ""), testStudentID); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	expireAttempt(t, env, started.ID)

	t.Run("touching an expired attempt finalizes it", func(t *testing.T) {
		_, err := env.attempts.GetQuestion(ctx, started.ID, 2, testStudentID)
		if !errors.Is(err, ErrAttemptTimeExpired) {
			t.Fatalf("GetQuestion() error = %v, want ErrAttemptTimeExpired", err)
		}

		var stored models.Attempt
		if err := env.db.First(&stored, started.ID).Error; err != nil {
			t.Fatalf("failed to reload attempt: %v", err)
		}
		if stored.SubmittedAt == nil {
			t.Fatal("expired attempt was not finalized")
		}
		if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonTimeout {
			t.Errorf("EndReason = %v, want %q", stored.EndReason, models.AttemptEndReasonTimeout)
		}

		if !hasEventType(env.publisher, events.TypeAttemptTimedOut) {
			t.Errorf("no %s event published, got %v", events.TypeAttemptTimedOut, eventTypes(env.publisher))
		}
	})

	t.Run("answers before the deadline still count", func(t *testing.T) {
		result, err := env.attempts.GetResult(ctx, started.ID, testStudentID)
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		if result.Score != QuestionWeight {
			t.Errorf("Score = %d, want %d", result.Score, QuestionWeight)
		}
		if result.EndReason != models.AttemptEndReasonTimeout {
			t.Errorf("EndReason = %q, want %q", result.EndReason, models.AttemptEndReasonTimeout)
		}
	})
}

func TestAttemptService_GetResultFinalizesExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 1)
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	expireAttempt(t, env, started.ID)

	result, err := env.attempts.GetResult(ctx, started.ID, testStudentID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.EndReason != models.AttemptEndReasonTimeout {
		t.Errorf("EndReason = %q, want %q", result.EndReason, models.AttemptEndReasonTimeout)
	}
	if result.Score != 0 {
		t.Errorf("Score = %d for untouched attempt, want 0", result.Score)
	}
}

func TestAttemptService_GetByStudent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	finished := seedLegacyExam(t, env.db, 1)
	open := seedLegacyExam(t, env.db, 1)

	submitted, err := env.attempts.Start(ctx, finished.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := env.attempts.Submit(ctx, submitted.ID, testStudentID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := env.attempts.Start(ctx, open.ID, testStudentID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	results, err := env.attempts.GetByStudent(ctx, testStudentID)
	if err != nil {
		t.Fatalf("GetByStudent() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("GetByStudent() returned %d results, want only the submitted attempt", len(results))
	}
	if results[0].AttemptID != submitted.ID {
		t.Errorf("result is for attempt %d, want %d", results[0].AttemptID, submitted.ID)
	}
	if results[0].ExamTitle != "Legacy Exam" {
		t.Errorf("ExamTitle = %q, want %q", results[0].ExamTitle, "Legacy Exam")
	}
}

func TestAttemptService_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.attempts.Start(ctx, 9999, testStudentID); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("Start() error = %v, want ErrExamNotFound", err)
	}
	if _, err := env.attempts.GetQuestion(ctx, 9999, 1, testStudentID); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("GetQuestion() error = %v, want ErrAttemptNotFound", err)
	}
	if _, err := env.attempts.Submit(ctx, 9999, testStudentID); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("Submit() error = %v", err)
	}
}
