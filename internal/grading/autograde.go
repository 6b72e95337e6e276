package grading

import (
	"context"
	"fmt"

	"github.com/abhisek/gradeproxy/internal/llm"
	"github.com/abhisek/gradeproxy/internal/shape"
	"github.com/abhisek/gradeproxy/internal/subject"
)

// gradingResponse is the verdict when valid, otherwise the raw reply.
func gradingResponse(out shape.Outcome) (any, string) {
	if out.Valid() {
		return out.Value, ""
	}
	return out.Failure.Raw, out.Failure.Reason
}

// AutoGrade grades a typed answer against the subject's rubric.
func (s *Service) AutoGrade(ctx context.Context, in AutoGradeInput) (*GradingResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	prompt := buildAutoGradePrompt(sub, s.catalog.Rubric(sub), in.ExerciseQuestion, in.StudentAnswer)
	out, err := s.complete(ctx, "auto-grading", buildRequest(sub.Grading, prompt, autoGradeSampling), autoGradeContract)
	if err != nil {
		return nil, err
	}

	resp, reason := gradingResponse(out)
	return &GradingResult{
		Success:          true,
		GradingResponse:  resp,
		ExerciseQuestion: in.ExerciseQuestion,
		Subject:          in.Subject,
		ParseError:       reason,
	}, nil
}

// AutoGradeFile fetches the submitted document and grades its text. HTML
// pages are reduced to their main content first.
func (s *Service) AutoGradeFile(ctx context.Context, in FileGradeInput) (*GradingResult, error) {
	sub, err := s.subject(in.Subject)
	if err != nil {
		return nil, err
	}

	content, err := s.fetcher.FetchText(ctx, in.FileURL)
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}

	prompt := buildFileGradePrompt(sub, s.catalog.Rubric(sub), in.ExerciseQuestion, content)
	out, err := s.complete(ctx, "auto-grading-file", buildRequest(sub.Grading, prompt, fileGradeSampling), fileGradeContract)
	if err != nil {
		return nil, err
	}

	resp, reason := gradingResponse(out)
	return &GradingResult{
		Success:          true,
		GradingResponse:  resp,
		ExerciseQuestion: in.ExerciseQuestion,
		StudentAnswer:    content,
		ParseError:       reason,
	}, nil
}

// AutoGradeImage grades a photographed answer. The image is re-hosted by
// the configured store and attached to the request. An unknown subject is
// used verbatim in the prompt and graded without a rubric.
func (s *Service) AutoGradeImage(ctx context.Context, in FileGradeInput) (*GradingResult, error) {
	name := in.Subject
	var criteria []subject.Criterion
	if sub, ok := s.catalog.Lookup(in.Subject); ok {
		name = sub.Name
		criteria = s.catalog.Rubric(sub)
	}

	img, err := s.images.Store(ctx, in.FileURL)
	if err != nil {
		return nil, fmt.Errorf("store submission image: %w", err)
	}

	req := buildRequest(imageSystemPrompt(name), buildImageGradePrompt(name, criteria, in.ExerciseQuestion), fileGradeSampling)
	req.Images = []llm.Image{{URL: img.URL, Data: img.Data, MIMEType: img.MIMEType}}

	out, err := s.complete(ctx, "auto-grading-image", req, imageGradeContract)
	if err != nil {
		return nil, err
	}

	resp, reason := gradingResponse(out)
	return &GradingResult{
		Success:               true,
		GradingResponse:       resp,
		ExerciseQuestion:      in.ExerciseQuestion,
		StudentAnswerImageURL: img.URL,
		ParseError:            reason,
	}, nil
}

// GradeEssay grades a literature essay on the fixed four-part scale.
func (s *Service) GradeEssay(ctx context.Context, in EssayInput) (*EssayResult, error) {
	prompt := buildEssayPrompt(in.ExerciseQuestion, in.StudentAnswer)
	out, err := s.complete(ctx, "grade-essay", buildRequest(literatureAssistant, prompt, essaySampling), essayContract)
	if err != nil {
		return nil, err
	}

	result := &EssayResult{Success: true, ExerciseQuestion: in.ExerciseQuestion}
	if out.Valid() {
		result.Result = out.Value
	} else {
		result.Result = map[string]any{"raw_response": out.Failure.Raw}
	}
	return result, nil
}
