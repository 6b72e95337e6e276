// Package grading turns grading and question-generation requests into
// model prompts and checks every reply against the contract its caller
// expects.
package grading

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/gradeproxy/internal/extract"
	"github.com/abhisek/gradeproxy/internal/llm"
	"github.com/abhisek/gradeproxy/internal/media"
	"github.com/abhisek/gradeproxy/internal/shape"
	"github.com/abhisek/gradeproxy/internal/subject"
)

// Deps are the collaborators a Service needs. Only Provider is required.
type Deps struct {
	Provider llm.Provider
	Catalog  *subject.Catalog
	Fetcher  *media.Fetcher
	Images   media.ImageStore
	Logger   *zap.Logger
}

// Service runs the grading operations.
type Service struct {
	provider llm.Provider
	catalog  *subject.Catalog
	fetcher  *media.Fetcher
	images   media.ImageStore
	checker  *shape.Checker
	logger   *zap.Logger
	cfg      Config
}

// NewService creates a grading service, filling unset dependencies with
// the embedded catalog, a default fetcher and pass-through image storage.
func NewService(d Deps, cfg Config) *Service {
	s := &Service{
		provider: d.Provider,
		catalog:  d.Catalog,
		fetcher:  d.Fetcher,
		images:   d.Images,
		logger:   d.Logger,
		cfg:      cfg,
	}
	if s.catalog == nil {
		s.catalog = subject.Default()
	}
	if s.fetcher == nil {
		s.fetcher = media.NewFetcher(media.FetcherConfig{})
	}
	if s.images == nil {
		s.images = media.PassthroughStore{Fetcher: s.fetcher}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if cfg.Lenient {
		s.checker = shape.NewChecker(extract.NewLenient())
	} else {
		s.checker = shape.NewChecker(nil)
	}
	return s
}

// Catalog returns the subject catalog in use.
func (s *Service) Catalog() *subject.Catalog { return s.catalog }

// ModelID reports the model the provider is configured for.
func (s *Service) ModelID() string { return s.provider.ModelID() }

func (s *Service) subject(key string) (subject.Subject, error) {
	sub, ok := s.catalog.Lookup(key)
	if !ok {
		return subject.Subject{}, &ErrUnknownSubject{Subject: key, Supported: s.catalog.Keys()}
	}
	return sub, nil
}

func buildRequest(system, prompt string, p sampling) llm.Request {
	req := llm.UserPrompt(system, prompt)
	req.MaxTokens = p.maxTokens
	req.Temperature = p.temperature
	req.TopP = p.topP
	req.JSONMode = p.jsonMode
	return req
}

// complete sends req and checks the reply against c, asking again up to
// cfg.ParseRetries times while the reply is invalid. Provider errors end
// the loop at once. The last outcome is returned either way.
func (s *Service) complete(ctx context.Context, purpose string, req llm.Request, c shape.Contract) (shape.Outcome, error) {
	ctx = llm.WithPurpose(ctx, purpose)

	var out shape.Outcome
	for attempt := 1; attempt <= s.cfg.ParseRetries+1; attempt++ {
		resp, err := s.provider.Generate(ctx, req)
		if err != nil {
			return shape.Outcome{}, fmt.Errorf("%s: %w", purpose, err)
		}

		out = s.checker.Check(resp.Text, c)
		if out.Valid() {
			s.logger.Debug("model reply accepted",
				zap.String("purpose", purpose),
				zap.String("contract", c.String()),
				zap.String("strategy", out.Strategy),
				zap.Int("attempt", attempt),
			)
			return out, nil
		}

		s.logger.Warn("model reply rejected",
			zap.String("purpose", purpose),
			zap.String("contract", c.String()),
			zap.String("code", string(out.Failure.Code)),
			zap.String("reason", out.Failure.Reason),
			zap.String("strategy", out.Strategy),
			zap.Int("attempt", attempt),
		)
	}
	return out, nil
}

// Generate forwards a free-form prompt and extracts whatever structure
// the reply holds. No contract applies.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	req := buildRequest(literatureAssistant, in.Prompt, sampling{
		maxTokens:   in.MaxTokens,
		temperature: in.Temperature,
		topP:        in.TopP,
	})

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "generate"), req)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	result := &GenerateResult{Success: true, Response: resp.Text, Prompt: in.Prompt}
	if v, strategy, ok := s.checker.Extract(resp.Text); ok {
		s.logger.Debug("structure extracted", zap.String("purpose", "generate"), zap.String("strategy", strategy))
		result.Response = v
	}
	return result, nil
}

// DefaultGenerateInput holds the sampling used when the caller omits it.
func DefaultGenerateInput() GenerateInput {
	return GenerateInput{Task: "question_generate_van", MaxTokens: 256, Temperature: 0.7, TopP: 0.9}
}
