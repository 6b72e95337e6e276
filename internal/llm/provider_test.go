package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockProvider_ReturnsCanedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: `{"a":1}`, Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Text: "```json\n{\"b\":2}\n```"},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text != `{"a":1}` {
		t.Fatalf("expected {\"a\":1}, got %s", resp1.Text)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Replies are passed through untouched, fences included.
	if resp2.Text != "```json\n{\"b\":2}\n```" {
		t.Fatalf("expected fenced reply, got %s", resp2.Text)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: `{}`},
	)

	req := Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: 0}},
	)

	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_ModelID(t *testing.T) {
	mock := NewMockProvider()
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))

	graded := WithPurpose(ctx, "auto-grading")
	assert.Equal(t, "auto-grading", PurposeFrom(graded))

	assert.Equal(t, "recent-test-grading", PurposeFrom(WithPurpose(graded, "recent-test-grading")), "inner endpoint wins")
	assert.Equal(t, "auto-grading", PurposeFrom(WithPurpose(graded, "")), "empty name keeps the outer tag")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "openai with key",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openrouter without key",
			cfg:     Config{Provider: "openrouter"},
			wantErr: true,
		},
		{
			name:    "gemini with key",
			cfg:     Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g-test"}},
			wantErr: false,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GRADEPROXY_LLM_PROVIDER", "GRADEPROXY_OPENAI_API_KEY", "GRADEPROXY_OPENAI_MODEL",
		"GRADEPROXY_ANTHROPIC_API_KEY", "GRADEPROXY_GEMINI_API_KEY", "GRADEPROXY_OPENROUTER_API_KEY",
		"GRADEPROXY_REDIS_URL", "GRADEPROXY_LLM_CACHE_TTL", "GRADEPROXY_LLM_TIMEOUT",
		"GRADEPROXY_LLM_MAX_ATTEMPTS",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearLLMEnv(t)

	cfg := ConfigFromEnv()
	if cfg.Provider != "openai" {
		t.Fatalf("expected default provider openai, got %q", cfg.Provider)
	}
	if cfg.ModelName() != "gpt-4o-mini" {
		t.Fatalf("expected gpt-4o-mini, got %q", cfg.ModelName())
	}
	if cfg.Cache.RedisURL != "" {
		t.Fatalf("expected cache disabled, got %q", cfg.Cache.RedisURL)
	}
	if cfg.Timeout != 60*time.Second {
		t.Fatalf("expected 60s timeout, got %s", cfg.Timeout)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	t.Setenv("GRADEPROXY_OPENAI_MODEL", "gpt-4o")
	t.Setenv("GRADEPROXY_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GRADEPROXY_LLM_CACHE_TTL", "1h")
	t.Setenv("GRADEPROXY_LLM_MAX_ATTEMPTS", "5")
	t.Setenv("GRADEPROXY_LLM_TIMEOUT", "not-a-duration")

	cfg := ConfigFromEnv()
	if cfg.OpenAI.APIKey != "sk-plain" {
		t.Fatalf("expected OPENAI_API_KEY fallback, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.ModelName() != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %q", cfg.ModelName())
	}
	if cfg.Cache.TTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", cfg.Cache.TTL)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Timeout != 60*time.Second {
		t.Fatalf("invalid timeout should keep default, got %s", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestDiscoverConfig_Order(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, ok := DiscoverConfig()
	if !ok {
		t.Fatal("expected a provider to be discovered")
	}
	if cfg.Provider != "gemini" {
		t.Fatalf("expected gemini to win over anthropic, got %q", cfg.Provider)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected mock provider, got %q", p.ModelID())
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "bogus"}, nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestUserPrompt(t *testing.T) {
	req := UserPrompt("sys", "hello")
	if req.System != "sys" || len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Fatalf("unexpected request: %+v", req)
	}
}
