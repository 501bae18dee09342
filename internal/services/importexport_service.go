package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

// importExportService moves bank questions and results through xlsx files.
//
// Import sheet layout, one question per row:
//
//	text | type | correct | choice_1 | choice_2 | ... (up to 6 choices)
//
// where correct is the 1-based index of the right choice.
type importExportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewImportExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ImportExportService {
	return &importExportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

const maxImportChoices = 6

func (s *importExportService) ImportBankQuestions(ctx context.Context, subjectID uint, r io.Reader, userID string) (*ImportResult, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Bank().GetSubject(ctx, s.db, subjectID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to check subject: %w", err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	result := &ImportResult{}
	var questions []*models.BankQuestion

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		question, err := s.parseQuestionRow(subjectID, userID, row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) > 0 {
		if err := s.repo.Bank().CreateQuestionBatch(ctx, s.db, questions); err != nil {
			return nil, fmt.Errorf("failed to import questions: %w", err)
		}
	}
	result.Imported = len(questions)

	s.logger.Info("Bank questions imported",
		"subject_id", subjectID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"user_id", userID)

	return result, nil
}

func (s *importExportService) parseQuestionRow(subjectID uint, userID string, row []string) (*models.BankQuestion, error) {
	if len(row) < 4 {
		return nil, fmt.Errorf("expected at least 4 columns, got %d", len(row))
	}

	text := strings.TrimSpace(row[0])
	if text == "" {
		return nil, fmt.Errorf("empty question text")
	}

	qType := models.MultipleChoice
	switch strings.ToUpper(strings.TrimSpace(row[1])) {
	case "", "MCQ":
	case "TF":
		qType = models.TrueFalse
	default:
		return nil, fmt.Errorf("unknown question type %q", row[1])
	}

	correct, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return nil, fmt.Errorf("bad correct index %q", row[2])
	}

	var choices []models.BankChoice
	for _, cell := range row[3:] {
		choiceText := strings.TrimSpace(cell)
		if choiceText == "" {
			continue
		}
		if len(choices) == maxImportChoices {
			return nil, fmt.Errorf("more than %d choices", maxImportChoices)
		}
		choices = append(choices, models.BankChoice{Text: choiceText})
	}

	if len(choices) < 2 {
		return nil, fmt.Errorf("need at least 2 choices, got %d", len(choices))
	}
	if correct < 1 || correct > len(choices) {
		return nil, fmt.Errorf("correct index %d out of range 1..%d", correct, len(choices))
	}
	choices[correct-1].IsCorrect = true

	return &models.BankQuestion{
		SubjectID: subjectID,
		Text:      text,
		Type:      qType,
		CreatedBy: userID,
		Choices:   choices,
	}, nil
}

func (s *importExportService) ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	submitted := models.AttemptSubmitted
	attempts, _, err := s.repo.Attempt().GetByExam(ctx, s.db, examID, repositories.AttemptFilters{
		Status: &submitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	userIDs := make([]string, 0, len(attempts))
	seen := make(map[string]bool)
	for _, attempt := range attempts {
		if !seen[attempt.UserID] {
			seen[attempt.UserID] = true
			userIDs = append(userIDs, attempt.UserID)
		}
	}
	users, err := s.repo.User().GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve students: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, user := range users {
		names[user.ID] = user.FullName
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Results"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := []interface{}{"Student", "Attempt", "Score", "Max Score", "Percent", "Passed", "End Reason", "Submitted At"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, attempt := range attempts {
		name := names[attempt.UserID]
		if name == "" {
			name = attempt.UserID
		}
		percent := 0.0
		if attempt.MaxScore > 0 {
			percent = float64(attempt.Score) / float64(attempt.MaxScore) * 100
		}
		endReason := ""
		if attempt.EndReason != nil {
			endReason = *attempt.EndReason
		}
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.Format("2006-01-02 15:04:05")
		}

		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			name,
			attempt.AttemptNo,
			attempt.Score,
			attempt.MaxScore,
			fmt.Sprintf("%.1f%%", percent),
			attempt.Passed,
			endReason,
			submittedAt,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	s.logger.Info("Exam results exported",
		"exam_id", examID,
		"exam_title", exam.Title,
		"attempts", len(attempts),
		"user_id", userID)

	return buf.Bytes(), nil
}

func (s *importExportService) requireTeacher(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.IsTeacher() {
		return ErrTeacherOnly
	}
	return nil
}
