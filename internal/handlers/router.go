package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Saidabdi38/exam-site/internal/config"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/services"
	"github.com/Saidabdi38/exam-site/internal/utils"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

type HandlerManager struct {
	examHandler    *ExamHandler
	bankHandler    *BankHandler
	attemptHandler *AttemptHandler
	userHandler    *UserHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		examHandler:    NewExamHandler(serviceManager.Exam(), serviceManager.ImportExport(), validator, logger),
		bankHandler:    NewBankHandler(serviceManager.Bank(), serviceManager.ImportExport(), validator, logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		userHandler:    NewUserHandler(userRepo, logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		teacherOnly := hm.authMiddleware.RequireTeacherMiddleware()

		// Exam routes
		exams := v1.Group("/exams")
		{
			// Student side
			exams.GET("/visible", hm.examHandler.ListVisibleExams)
			exams.POST("/:id/start", hm.attemptHandler.StartAttempt)
			exams.GET("/:id", hm.examHandler.GetExam)

			// Teacher side
			exams.POST("", teacherOnly, hm.examHandler.CreateExam)
			exams.GET("", teacherOnly, hm.examHandler.ListExams)
			exams.PUT("/:id", teacherOnly, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", teacherOnly, hm.examHandler.DeleteExam)
			exams.POST("/:id/publish", teacherOnly, hm.examHandler.PublishExam)
			exams.POST("/:id/unpublish", teacherOnly, hm.examHandler.UnpublishExam)

			// Resit management
			exams.GET("/:id/resits", teacherOnly, hm.examHandler.ListResits)
			exams.PUT("/:id/resits/:student_id", teacherOnly, hm.examHandler.SetResit)

			// Attempt review and export
			exams.GET("/:id/attempts", teacherOnly, hm.examHandler.GetExamAttempts)
			exams.GET("/attempts/:attempt_id", teacherOnly, hm.examHandler.GetAttemptDetail)
			exams.GET("/:id/results/export", teacherOnly, hm.examHandler.ExportResults)

			// Legacy direct-mode question management
			exams.POST("/:id/questions", teacherOnly, hm.examHandler.AddQuestion)
			exams.DELETE("/:id/questions/:question_id", teacherOnly, hm.examHandler.RemoveQuestion)
			exams.PUT("/:id/questions/:question_id/choices/:choice_id/correct", teacherOnly, hm.examHandler.SetCorrectChoice)
		}

		// Attempt routes (student side)
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListMyAttempts)
			attempts.GET("/:id/questions/:qno", hm.attemptHandler.GetQuestion)
			attempts.POST("/:id/questions/:qno", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/questions/:qno/autosave", hm.attemptHandler.Autosave)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
		}

		// Question bank routes - Teachers only
		subjects := v1.Group("/subjects")
		subjects.Use(teacherOnly)
		{
			subjects.POST("", hm.bankHandler.CreateSubject)
			subjects.GET("", hm.bankHandler.ListSubjects)
			subjects.GET("/:id", hm.bankHandler.GetSubject)
			subjects.DELETE("/:id", hm.bankHandler.DeleteSubject)
			subjects.POST("/:id/questions/import", hm.bankHandler.ImportQuestions)
		}

		bank := v1.Group("/bank/questions")
		bank.Use(teacherOnly)
		{
			bank.POST("", hm.bankHandler.CreateQuestion)
			bank.GET("", hm.bankHandler.ListQuestions)
			bank.GET("/:id", hm.bankHandler.GetQuestion)
			bank.DELETE("/:id", hm.bankHandler.DeleteQuestion)
			bank.PUT("/:id/choices/:choice_id/correct", hm.bankHandler.SetCorrectChoice)
		}

		// User directory routes - Teachers only
		users := v1.Group("/users")
		users.Use(teacherOnly)
		{
			users.GET("/students", hm.userHandler.ListStudents)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-site",
		})
	})
}
