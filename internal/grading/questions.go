package grading

import "context"

// GenerateQuestion asks for one question with a worked answer.
func (s *Service) GenerateQuestion(ctx context.Context, in QuestionInput) (*QuestionResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	req := buildRequest(questionSystemPrompt(sub.Name), buildQuestionPrompt(sub, in.Prompt), questionSampling)
	out, err := s.complete(ctx, "generate-question", req, questionContract)
	if err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &ReplyError{Message: msgInvalidJSON, Failure: out.Failure}
	}

	obj, _ := out.Value.Object()
	return &QuestionResult{Success: true, Result: obj, Subject: in.Subject, Prompt: in.Prompt}, nil
}

// RecentTest asks for one practice question per recent topic. A reply
// that fails its contract still succeeds, with no questions and the raw
// text attached.
func (s *Service) RecentTest(ctx context.Context, in RecentTestInput) (*RecentTestResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	prompt := buildRecentTestPrompt(sub, in.RecentTests, in.QuestionTypes)
	out, err := s.complete(ctx, "recent-test", buildRequest(practiceSystemPrompt(sub.Name), prompt, recentTestSampling), recentTestContract)
	if err != nil {
		return nil, err
	}

	topics := in.RecentTests
	if topics == nil {
		topics = []map[string]any{}
	}
	result := &RecentTestResult{
		Success:     true,
		Questions:   []any{},
		Topics:      topics,
		Subject:     in.Subject,
		SubjectName: sub.Name,
	}
	if out.Valid() {
		result.Questions, _ = out.Value.Array()
	} else {
		result.RawResponse = out.Failure.Raw
	}
	return result, nil
}

// AnalyzeTeacherFeedback turns a teacher's comment into an exercise and
// an improvement suggestion. The subject may be a key or a Vietnamese name.
func (s *Service) AnalyzeTeacherFeedback(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	sub, ok := s.catalog.Resolve(in.Subject)
	if !ok {
		return nil, &ErrUnknownSubject{Subject: in.Subject, Supported: s.catalog.Keys(), AcceptsNames: true}
	}

	prompt := buildFeedbackPrompt(sub, in.Lesson, in.TeacherComment)
	out, err := s.complete(ctx, "analyze-teacher-feedback", buildRequest(analysisSystemPrompt(sub.Name), prompt, feedbackSampling), feedbackContract)
	if err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &ReplyError{Message: msgInvalidJSON, Failure: out.Failure}
	}

	obj, _ := out.Value.Object()
	return &FeedbackResult{
		Success:        true,
		Result:         obj,
		TeacherComment: in.TeacherComment,
		Subject:        sub.Name,
		Lesson:         in.Lesson,
	}, nil
}

// PerformanceQuestion writes a practice question pitched at the student's
// recent average. Only the three most recent tests are shown to the model.
func (s *Service) PerformanceQuestion(ctx context.Context, in PerformanceInput) (*PerformanceResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	avg := AverageTestScore(in.RecentTests)
	prompt := buildPerformancePrompt(sub, in.RecentTests, avg.StringFixed(1), difficultyGuidance(avg.InexactFloat64()))
	out, err := s.complete(ctx, "performance-question", buildRequest(analysisSystemPrompt(sub.Name), prompt, performanceSampling), performanceContract)
	if err != nil {
		return nil, err
	}
	if !out.Valid() {
		return nil, &ReplyError{Message: msgIncompleteJSON, Failure: out.Failure}
	}

	obj, _ := out.Value.Object()
	return &PerformanceResult{
		Success:                true,
		Question:               obj["question"].(string),
		Answer:                 obj["answer"].(string),
		AIScore:                0,
		ImprovementSuggestions: obj["improvement_suggestions"].(string),
		Subject:                in.Subject,
		AverageScore:           round2(avg),
	}, nil
}
