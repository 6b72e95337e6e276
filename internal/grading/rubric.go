package grading

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/abhisek/gradeproxy/internal/shape"
	"github.com/abhisek/gradeproxy/internal/subject"
)

// RecentTestGrading grades a batch of answers in one call. The reply must
// hold exactly one verdict per question; verdicts are matched to questions
// by position.
func (s *Service) RecentTestGrading(ctx context.Context, in TestGradingInput) (*TestGradingResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	rubric := s.catalog.Rubric(sub)
	prompt := buildTestGradingPrompt(sub, rubric, in.Questions)
	n := len(in.Questions)
	out, err := s.complete(ctx, "recent-test-grading", buildRequest(testGradingSystemPrompt(sub.Name), prompt, testGradingSampling), testGradingContract(n))
	if err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &ReplyError{
			Message:  msgIncompleteGrading,
			Failure:  out.Failure,
			Expected: n,
			Received: s.receivedCount(out.Failure),
		}
	}

	verdicts, _ := out.Value.Array()
	results := make([]GradedQuestion, n)
	var scores []decimal.Decimal
	correct := 0
	for i, q := range in.Questions {
		v := verdicts[i].(map[string]any)
		score, _ := number(v["score"])
		isCorrect, _ := v["isCorrect"].(bool)
		if isCorrect {
			correct++
		}
		scores = append(scores, score)
		results[i] = GradedQuestion{
			QuestionNumber: i + 1,
			Question:       q.Question,
			StudentAnswer:  q.StudentAnswer,
			Topic:          q.Topic,
			Difficulty:     q.Difficulty,
			IsCorrect:      isCorrect,
			Score:          score.InexactFloat64(),
			Comments:       formatValue(v["comments"], ""),
			CorrectAnswer:  formatValue(v["correct_answer"], ""),
		}
	}

	if rubric == nil {
		rubric = []subject.Criterion{}
	}
	return &TestGradingResult{
		Success:         true,
		Subject:         in.Subject,
		SubjectName:     sub.Name,
		TotalQuestions:  n,
		CorrectCount:    correct,
		AverageScore:    Average(scores),
		RubricCriteria:  rubric,
		DetailedResults: results,
	}, nil
}

// receivedCount reports how many elements the rejected reply held, or 0
// when it held no array.
func (s *Service) receivedCount(f *shape.Failure) int {
	v, _, ok := s.checker.Extract(f.Raw)
	if !ok {
		return 0
	}
	arr, _ := v.Array()
	return len(arr)
}

// GradeWithRubric grades a whole test against teacher-supplied criteria.
// A missing total_score is computed from the weighted rubric scores.
func (s *Service) GradeWithRubric(ctx context.Context, in RubricInput) (*RubricResult, error) {
	subjectName := in.Subject
	if sub, ok := s.catalog.Lookup(in.Subject); ok && sub.RubricName != "" {
		subjectName = sub.RubricName
	}
	studentName := in.StudentName
	if studentName == "" {
		studentName = defaultStudentName
	}

	prompt := buildRubricPrompt(subjectName, studentName, in.TestTitle, in.RubricCriteria, in.QuestionsAndAnswers)
	out, err := s.complete(ctx, "grade-with-rubric", buildRequest(rubricSystemPrompt(subjectName), prompt, rubricSampling), rubricContract)
	if err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &ReplyError{Message: msgRubricUnparsable, Failure: out.Failure}
	}

	result, _ := out.Value.Object()
	if _, ok := result["total_score"]; !ok {
		if scores, ok := result["rubric_scores"].([]any); ok {
			result["total_score"] = WeightedTotal(scores)
		} else {
			result["total_score"] = 0
		}
	}

	return &RubricResult{
		Success:       true,
		GradingResult: result,
		TestTitle:     in.TestTitle,
		Subject:       in.Subject,
		StudentName:   studentName,
	}, nil
}
