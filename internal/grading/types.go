package grading

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/abhisek/gradeproxy/internal/subject"
)

// GenerateInput is a free-form prompt with caller-chosen sampling.
type GenerateInput struct {
	Prompt      string  `json:"prompt" binding:"required"`
	Task        string  `json:"task"`
	MaxTokens   int     `json:"max_tokens" binding:"gte=0,lte=8192"`
	Temperature float64 `json:"temperature" binding:"gte=0,lte=2"`
	TopP        float64 `json:"top_p" binding:"gte=0,lte=1"`
}

// QuestionInput asks for one question in a subject.
type QuestionInput struct {
	Prompt  string `json:"prompt" binding:"required"`
	Subject string `json:"subject" binding:"required"`
}

// AutoGradeInput is a typed answer to grade.
type AutoGradeInput struct {
	ExerciseQuestion string `json:"exercise_question" binding:"required"`
	Subject          string `json:"subject" binding:"required"`
	StudentAnswer    string `json:"student_answer" binding:"required"`
}

// FileGradeInput points at a submitted document or image.
type FileGradeInput struct {
	ExerciseQuestion string `json:"exercise_question" binding:"required"`
	FileURL          string `json:"fileUrl" binding:"required,url"`
	Subject          string `json:"subject" binding:"required"`
}

// EssayInput is a literature essay to grade.
type EssayInput struct {
	ExerciseQuestion string `json:"exercise_question" binding:"required"`
	Subject          string `json:"subject"`
	StudentAnswer    string `json:"student_answer" binding:"required"`
}

// RecentTestInput asks for one practice question per recent topic.
type RecentTestInput struct {
	RecentTests   []map[string]any `json:"recent_tests" binding:"required"`
	QuestionTypes []string         `json:"questionTypes"`
	Subject       string           `json:"subject" binding:"required"`
}

// TeacherComment is a teacher's remark, sent either as one string or as a
// list of lines. It marshals back in the form it arrived in.
type TeacherComment struct {
	Lines  []string
	single bool
}

// SingleComment builds a comment sent as one string.
func SingleComment(s string) TeacherComment {
	return TeacherComment{Lines: []string{s}, single: true}
}

// Text renders the comment for a prompt: a single string as is, a list
// as dash-prefixed lines.
func (c TeacherComment) Text() string {
	if c.single {
		return strings.Join(c.Lines, "")
	}
	lines := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = "- " + l
	}
	return strings.Join(lines, "\n")
}

// Empty reports a comment that is absent or carries no text.
func (c TeacherComment) Empty() bool {
	return strings.TrimSpace(strings.Join(c.Lines, "")) == ""
}

func (c *TeacherComment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = SingleComment(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return errors.New("teacher_comment must be a string or a list of strings")
	}
	*c = TeacherComment{Lines: lines}
	return nil
}

func (c TeacherComment) MarshalJSON() ([]byte, error) {
	if c.single {
		return json.Marshal(strings.Join(c.Lines, ""))
	}
	if c.Lines == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Lines)
}

// FeedbackInput is a teacher's comment on a lesson.
type FeedbackInput struct {
	TeacherComment TeacherComment   `json:"teacher_comment"`
	Subject        string           `json:"subject" binding:"required"`
	Lesson         string           `json:"lesson" binding:"required"`
	TestAnswers    []map[string]any `json:"test_answers"`
}

// Validate checks the comment, which may arrive as a string or a list.
func (in FeedbackInput) Validate() error {
	if in.TeacherComment.Empty() {
		return &InputError{Field: "teacher_comment", Message: "is required"}
	}
	return nil
}

// TestQuestion is one answered question submitted for grading.
type TestQuestion struct {
	Question      string `json:"question" binding:"required"`
	StudentAnswer string `json:"student_answer"`
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
}

// TestGradingInput is a batch of answered questions.
type TestGradingInput struct {
	Subject   string         `json:"subject" binding:"required"`
	Questions []TestQuestion `json:"questions" binding:"required,min=1,dive"`
}

// TestScore is one recent test result supplied by the client.
type TestScore struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// PerformanceInput is a student's recent test history.
type PerformanceInput struct {
	Subject     string      `json:"subject" binding:"required"`
	RecentTests []TestScore `json:"recent_tests"`
}

// RubricInput is a whole test graded against teacher-supplied criteria.
type RubricInput struct {
	TestTitle           string           `json:"test_title" binding:"required"`
	Subject             string           `json:"subject" binding:"required"`
	QuestionsAndAnswers []map[string]any `json:"questions_and_answers" binding:"required"`
	RubricCriteria      []map[string]any `json:"rubric_criteria" binding:"required"`
	StudentName         string           `json:"student_name"`
}

const defaultStudentName = "Học sinh"

// GenerateResult carries the extracted value, or the raw reply when
// nothing could be extracted.
type GenerateResult struct {
	Success  bool   `json:"success"`
	Response any    `json:"response"`
	Prompt   string `json:"prompt"`
}

type QuestionResult struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result"`
	Subject string         `json:"subject"`
	Prompt  string         `json:"prompt"`
}

// GradingResult is shared by the three auto-grading operations. When the
// reply fails its contract GradingResponse holds the raw text and
// ParseError says why.
type GradingResult struct {
	Success               bool   `json:"success"`
	GradingResponse       any    `json:"grading_response"`
	ExerciseQuestion      string `json:"exercise_question"`
	Subject               string `json:"subject,omitempty"`
	StudentAnswer         string `json:"student_answer,omitempty"`
	StudentAnswerImageURL string `json:"student_answer_image_url,omitempty"`
	ParseError            string `json:"parse_error,omitempty"`
}

type EssayResult struct {
	Success          bool   `json:"success"`
	Result           any    `json:"result"`
	ExerciseQuestion string `json:"exercise_question"`
}

type RecentTestResult struct {
	Success     bool             `json:"success"`
	Questions   []any            `json:"questions"`
	RawResponse string           `json:"raw_response,omitempty"`
	Topics      []map[string]any `json:"topics"`
	Subject     string           `json:"subject"`
	SubjectName string           `json:"subject_name"`
}

type FeedbackResult struct {
	Success        bool           `json:"success"`
	Result         map[string]any `json:"result"`
	TeacherComment TeacherComment `json:"teacher_comment"`
	Subject        string         `json:"subject"`
	Lesson         string         `json:"lesson"`
}

// GradedQuestion merges a submitted question with the model's verdict.
type GradedQuestion struct {
	QuestionNumber int     `json:"question_number"`
	Question       string  `json:"question"`
	StudentAnswer  string  `json:"student_answer"`
	Topic          string  `json:"topic"`
	Difficulty     string  `json:"difficulty"`
	IsCorrect      bool    `json:"isCorrect"`
	Score          float64 `json:"score"`
	Comments       string  `json:"comments"`
	CorrectAnswer  string  `json:"correct_answer"`
}

type TestGradingResult struct {
	Success         bool                `json:"success"`
	Subject         string              `json:"subject"`
	SubjectName     string              `json:"subject_name"`
	TotalQuestions  int                 `json:"total_questions"`
	CorrectCount    int                 `json:"correct_count"`
	AverageScore    float64             `json:"average_score"`
	RubricCriteria  []subject.Criterion `json:"rubric_criteria"`
	DetailedResults []GradedQuestion    `json:"detailed_results"`
}

type PerformanceResult struct {
	Success                bool    `json:"success"`
	Question               string  `json:"question"`
	Answer                 string  `json:"answer"`
	AIScore                int     `json:"ai_score"`
	ImprovementSuggestions string  `json:"improvement_suggestions"`
	Subject                string  `json:"subject"`
	AverageScore           float64 `json:"average_score"`
}

type RubricResult struct {
	Success       bool           `json:"success"`
	GradingResult map[string]any `json:"grading_result"`
	TestTitle     string         `json:"test_title"`
	Subject       string         `json:"subject"`
	StudentName   string         `json:"student_name"`
}
