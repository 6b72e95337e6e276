package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abhisek/gradeproxy/internal/grading"
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", s.root)
	r.GET("/health", s.health)

	r.POST("/generate", handle(s, "generate", s.svc.Generate, grading.DefaultGenerateInput, nil))
	r.POST("/generate_question", handle(s, "generate_question", s.svc.GenerateQuestion, nil,
		func(in grading.QuestionInput) gin.H {
			return gin.H{"prompt": in.Prompt, "subject": in.Subject}
		}))
	r.POST("/auto-grading", handle(s, "auto_grading", s.svc.AutoGrade, nil, nil))
	r.POST("/auto-grading/file", handle(s, "auto_grading_file", s.svc.AutoGradeFile, nil, nil))
	r.POST("/auto-grading/image", handle(s, "auto_grading_image", s.svc.AutoGradeImage, nil, nil))
	r.POST("/grade-essay", handle(s, "grade_essay", s.svc.GradeEssay, nil, nil))
	r.POST("/recent-test", handle(s, "recent_test", s.svc.RecentTest, nil, nil))
	r.POST("/analyze-teacher-feedback", handle(s, "analyze_teacher_feedback", s.svc.AnalyzeTeacherFeedback, nil,
		func(in grading.FeedbackInput) gin.H {
			return gin.H{"teacher_comment": in.TeacherComment}
		}))
	r.POST("/recent-test-grading", handle(s, "recent_test_grading", s.svc.RecentTestGrading, nil, nil))
	r.POST("/performance/question-generation", handle(s, "performance_question", s.svc.PerformanceQuestion, nil,
		func(in grading.PerformanceInput) gin.H {
			return gin.H{"subject": in.Subject}
		}))
	r.POST("/grade-with-rubric", handle(s, "grade_with_rubric", s.svc.GradeWithRubric, nil,
		func(in grading.RubricInput) gin.H {
			return gin.H{"test_title": in.TestTitle, "subject": in.Subject}
		}))
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Văn học AI API", "status": "running"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"api":                s.opts.Provider,
		"model":              s.svc.ModelID(),
		"client_initialized": true,
		"version":            NormalizeVersion(s.opts.Version),
	})
}

// validatable inputs carry checks beyond their binding tags.
type validatable interface {
	Validate() error
}

// handle binds the JSON body into In, runs op and writes its result. Bind
// failures answer 422; operation errors answer 200 with success:false and
// whatever extra request echo the endpoint wants.
func handle[In any, Out any](
	s *Server,
	name string,
	op func(context.Context, In) (Out, error),
	defaults func() In,
	extra func(In) gin.H,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if defaults != nil {
			in = defaults()
		}
		err := c.ShouldBindJSON(&in)
		if v, ok := any(in).(validatable); ok && err == nil {
			err = v.Validate()
		}
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error":   msgInvalidRequest,
				"errors":  validationErrors(err),
			})
			return
		}

		out, err := op(c.Request.Context(), in)
		if err != nil {
			s.logger.Warn("operation failed",
				zap.String("op", name),
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Error(err),
			)
			_ = c.Error(err)
			var echo gin.H
			if extra != nil {
				echo = extra(in)
			}
			c.JSON(http.StatusOK, failure(err, echo))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
