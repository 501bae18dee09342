package services

import (
	"context"
	"testing"

	"github.com/Saidabdi38/exam-site/internal/models"
)

func TestPermissionService_BankMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject := seedSubjectPool(t, env.db, 5)
	exam := seedBankExam(t, env.db, subject.ID, 3)

	t.Run("no grant hides the exam", func(t *testing.T) {
		canView, err := env.perms.CanView(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if canView {
			t.Error("CanView() = true for ungranted student, want false")
		}
	})

	t.Run("no grant means zero attempts", func(t *testing.T) {
		allowed, err := env.perms.AllowedAttempts(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("AllowedAttempts() error = %v", err)
		}
		if allowed != 0 {
			t.Errorf("AllowedAttempts() = %d, want 0", allowed)
		}
	})

	t.Run("grant opens visibility and budget", func(t *testing.T) {
		grantResit(t, env.db, exam.ID, testStudentID, 2, true)

		canView, err := env.perms.CanView(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if !canView {
			t.Error("CanView() = false after grant, want true")
		}

		allowed, err := env.perms.AllowedAttempts(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("AllowedAttempts() error = %v", err)
		}
		if allowed != 3 {
			t.Errorf("AllowedAttempts() = %d, want 3 (one base plus two extra)", allowed)
		}
	})

	t.Run("grant with can_view false stays hidden", func(t *testing.T) {
		grantResit(t, env.db, exam.ID, "student-2", 1, false)

		canView, err := env.perms.CanView(ctx, exam, "student-2")
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if canView {
			t.Error("CanView() = true for can_view=false grant, want false")
		}
	})

	t.Run("grant with can_view false carries no attempts", func(t *testing.T) {
		allowed, err := env.perms.AllowedAttempts(ctx, exam, "student-2")
		if err != nil {
			t.Fatalf("AllowedAttempts() error = %v", err)
		}
		if allowed != 0 {
			t.Errorf("AllowedAttempts() = %d for can_view=false grant, want 0", allowed)
		}
	})

	t.Run("revoke through SetResit persists as hidden", func(t *testing.T) {
		_, err := env.exams.SetResit(ctx, exam.ID, testStudentID,
			&ResitGrantRequest{ExtraAttempts: 1, CanView: false}, testTeacherID)
		if err != nil {
			t.Fatalf("SetResit() error = %v", err)
		}

		var perm models.ResitPermission
		if err := env.db.Where("exam_id = ? AND user_id = ?", exam.ID, testStudentID).
			First(&perm).Error; err != nil {
			t.Fatalf("failed to load grant: %v", err)
		}
		if perm.CanView {
			t.Error("stored can_view = true after revoke, want false")
		}

		canView, err := env.perms.CanView(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if canView {
			t.Error("CanView() = true after revoke, want false")
		}
	})
}

func TestPermissionService_LegacyMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)

	t.Run("published exam is visible to everyone", func(t *testing.T) {
		canView, err := env.perms.CanView(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if !canView {
			t.Error("CanView() = false for published legacy exam, want true")
		}
	})

	t.Run("default budget is one attempt", func(t *testing.T) {
		allowed, err := env.perms.AllowedAttempts(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("AllowedAttempts() error = %v", err)
		}
		if allowed != 1 {
			t.Errorf("AllowedAttempts() = %d, want 1", allowed)
		}
	})

	t.Run("resit grant extends the budget", func(t *testing.T) {
		grantResit(t, env.db, exam.ID, testStudentID, 1, true)

		allowed, err := env.perms.AllowedAttempts(ctx, exam, testStudentID)
		if err != nil {
			t.Fatalf("AllowedAttempts() error = %v", err)
		}
		if allowed != 2 {
			t.Errorf("AllowedAttempts() = %d, want 2", allowed)
		}
	})

	t.Run("unpublished exam is hidden", func(t *testing.T) {
		draft := seedLegacyExam(t, env.db, 1)
		if err := env.db.Model(draft).Update("is_published", false).Error; err != nil {
			t.Fatalf("failed to unpublish: %v", err)
		}
		draft.IsPublished = false

		canView, err := env.perms.CanView(ctx, draft, testStudentID)
		if err != nil {
			t.Fatalf("CanView() error = %v", err)
		}
		if canView {
			t.Error("CanView() = true for draft exam, want false")
		}
	})
}

func TestPermissionService_ResolveAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 2)

	access, err := env.perms.ResolveAccess(ctx, exam, testStudentID)
	if err != nil {
		t.Fatalf("ResolveAccess() error = %v", err)
	}
	if !access.CanView {
		t.Error("ResolveAccess().CanView = false, want true")
	}
	if access.AllowedAttempts != 1 || access.UsedAttempts != 0 {
		t.Errorf("ResolveAccess() budget = %d/%d used, want 1 allowed and 0 used",
			access.UsedAttempts, access.AllowedAttempts)
	}
	if !access.CanStart {
		t.Error("ResolveAccess().CanStart = false, want true")
	}

	// Use up the single attempt and re-resolve.
	started, err := env.attempts.Start(ctx, exam.ID, testStudentID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := env.attempts.Submit(ctx, started.ID, testStudentID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	access, err = env.perms.ResolveAccess(ctx, exam, testStudentID)
	if err != nil {
		t.Fatalf("ResolveAccess() error = %v", err)
	}
	if access.UsedAttempts != 1 {
		t.Errorf("ResolveAccess().UsedAttempts = %d, want 1", access.UsedAttempts)
	}
	if access.CanStart {
		t.Error("ResolveAccess().CanStart = true with budget spent, want false")
	}
}
