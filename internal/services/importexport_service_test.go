package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

func newImportExportEnv(t *testing.T) (*testEnv, ImportExportService) {
	t.Helper()

	env := newTestEnv(t)
	return env, NewImportExportService(env.repo, env.db, testLogger())
}

// buildImportWorkbook writes a header plus the given rows into an xlsx buffer.
func buildImportWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Text", "Type", "Correct", "Choice 1", "Choice 2", "Choice 3", "Choice 4"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}
	return &buf
}

func TestImportExportService_ImportBankQuestions(t *testing.T) {
	env, svc := newImportExportEnv(t)
	ctx := context.Background()

	subject, err := env.bank.CreateSubject(ctx, &CreateSubjectRequest{Name: "History"}, testTeacherID)
	if err != nil {
		t.Fatalf("CreateSubject() error = %v", err)
	}

	t.Run("teacher only", func(t *testing.T) {
		buf := buildImportWorkbook(t, nil)
		_, err := svc.ImportBankQuestions(ctx, subject.ID, buf, testStudentID)
		if !errors.Is(err, ErrTeacherOnly) {
			t.Fatalf("ImportBankQuestions() error = %v, want ErrTeacherOnly", err)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		buf := buildImportWorkbook(t, nil)
		_, err := svc.ImportBankQuestions(ctx, 9999, buf, testTeacherID)
		if !errors.Is(err, ErrSubjectNotFound) {
			t.Fatalf("ImportBankQuestions() error = %v, want ErrSubjectNotFound", err)
		}
	})

	t.Run("good rows import, bad rows are reported", func(t *testing.T) {
		buf := buildImportWorkbook(t, [][]interface{}{
			{"When did the war end?", "MCQ", 2, "1943", "1945", "1950"},
			{"The earth is flat.", "TF", 2, "True", "False"},
			{"", "MCQ", 1, "A", "B"},           // empty text
			{"Only one choice", "MCQ", 1, "A"}, // too few choices
			{"Bad index", "MCQ", 9, "A", "B"},  // correct out of range
			{"Bad type", "ESSAY", 1, "A", "B"}, // unknown type
		})

		result, err := svc.ImportBankQuestions(ctx, subject.ID, buf, testTeacherID)
		if err != nil {
			t.Fatalf("ImportBankQuestions() error = %v", err)
		}
		if result.Imported != 2 {
			t.Errorf("Imported = %d, want 2", result.Imported)
		}
		if result.Skipped != 4 {
			t.Errorf("Skipped = %d, want 4", result.Skipped)
		}
		if len(result.Errors) != 4 {
			t.Errorf("Errors holds %d entries, want 4: %v", len(result.Errors), result.Errors)
		}

		questions, _, err := env.bank.ListQuestions(ctx, repositories.BankQuestionFilters{SubjectID: &subject.ID}, testTeacherID)
		if err != nil {
			t.Fatalf("ListQuestions() error = %v", err)
		}
		if len(questions) != 2 {
			t.Fatalf("subject pool holds %d questions, want 2", len(questions))
		}

		byText := make(map[string]*models.BankQuestion, len(questions))
		for _, q := range questions {
			byText[q.Text] = q
		}

		mcq, ok := byText["When did the war end?"]
		if !ok {
			t.Fatal("imported MCQ question missing")
		}
		if len(mcq.Choices) != 3 {
			t.Fatalf("MCQ has %d choices, want 3", len(mcq.Choices))
		}
		for _, c := range mcq.Choices {
			if c.IsCorrect != (c.Text == "1945") {
				t.Errorf("choice %q is_correct = %v", c.Text, c.IsCorrect)
			}
		}

		tf, ok := byText["The earth is flat."]
		if !ok {
			t.Fatal("imported TF question missing")
		}
		if tf.Type != models.TrueFalse {
			t.Errorf("Type = %q, want %q", tf.Type, models.TrueFalse)
		}
	})
}

func TestImportExportService_ExportExamResults(t *testing.T) {
	env, svc := newImportExportEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)

	// One submitted attempt with a correct first answer, one still open; only
	// the submitted one belongs in the export.
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
	if _, err := env.attempts.Submit(ctx, started.ID, testStudentID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := env.attempts.Start(ctx, exam.ID, "student-2"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	data, err := svc.ExportExamResults(ctx, exam.ID, testTeacherID)
	if err != nil {
		t.Fatalf("ExportExamResults() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("export is not a readable workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("failed to read Results sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("export holds %d rows, want header plus one attempt", len(rows))
	}

	record := rows[1]
	if record[0] != "Test Student" {
		t.Errorf("student name = %q, want %q", record[0], "Test Student")
	}
	if record[2] != "2" || record[3] != "4" {
		t.Errorf("score = %s/%s, want 2/4", record[2], record[3])
	}
	if record[6] != models.AttemptEndReasonSubmit {
		t.Errorf("end reason = %q, want %q", record[6], models.AttemptEndReasonSubmit)
	}
}

func TestImportExportService_ExportRequiresTeacher(t *testing.T) {
	env, svc := newImportExportEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 1)

	if _, err := svc.ExportExamResults(ctx, exam.ID, testStudentID); !errors.Is(err, ErrTeacherOnly) {
		t.Errorf("ExportExamResults() error = %v, want ErrTeacherOnly", err)
	}
	if _, err := svc.ExportExamResults(ctx, 9999, testTeacherID); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("ExportExamResults() error = %v, want ErrExamNotFound", err)
	}
}
