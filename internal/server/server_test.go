package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradeproxy/internal/config"
	"github.com/abhisek/gradeproxy/internal/grading"
	"github.com/abhisek/gradeproxy/internal/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(mock *llm.MockProvider) *Server {
	svc := grading.NewService(grading.Deps{Provider: mock}, grading.DefaultConfig())
	return New(svc, Options{Provider: "mock", Version: "1.4"})
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRoot(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	rec, body := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "Văn học AI API", body["message"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	rec, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mock", body["api"])
	assert.Equal(t, "mock", body["model"])
	assert.Equal(t, true, body["client_initialized"])
	assert.Equal(t, "v1.4.0", body["version"])
}

func TestRequestID(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	t.Run("generated", func(t *testing.T) {
		rec, _ := do(t, s, http.MethodGet, "/", nil)
		assert.Len(t, rec.Header().Get(requestIDHeader), 36)
	})

	t.Run("echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})
}

func TestCORS(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	req := httptest.NewRequest(http.MethodOptions, "/auto-grading", nil)
	req.Header.Set("Origin", "https://lms.example.edu")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	rec, body := do(t, s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestGenerate_DefaultsAndExtraction(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Kết quả: {\"a\": 1}"})
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/generate", map[string]any{"prompt": "viết thơ"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"a": float64(1)}, body["response"])

	req := mock.Calls[0]
	assert.Equal(t, 256, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.InDelta(t, 0.9, req.TopP, 1e-9)
}

func TestBindingErrors(t *testing.T) {
	s := newTestServer(llm.NewMockProvider())

	tests := []struct {
		name  string
		path  string
		body  any
		field string
		code  string
	}{
		{"missing field", "/auto-grading", map[string]any{"subject": "math", "student_answer": "4"}, "exercise_question", "required"},
		{"bad url", "/auto-grading/file", map[string]any{"subject": "math", "exercise_question": "q", "fileUrl": "not a url"}, "file_url", "url"},
		{"empty list", "/recent-test-grading", map[string]any{"subject": "math", "questions": []any{}}, "questions", "min"},
		{"malformed json", "/grade-essay", "{", "body", "invalid"},
		{"missing comment", "/analyze-teacher-feedback", map[string]any{"subject": "math", "lesson": "L"}, "teacher_comment", "required"},
		{"empty comment list", "/analyze-teacher-feedback", map[string]any{"subject": "math", "lesson": "L", "teacher_comment": []any{}}, "teacher_comment", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, false, body["success"])

			errs, ok := body["errors"].([]any)
			require.True(t, ok)
			require.NotEmpty(t, errs)
			first := errs[0].(map[string]any)
			assert.Equal(t, tt.field, first["field"])
			assert.Equal(t, tt.code, first["code"])
		})
	}
}

func TestAutoGrading(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: `{"isCorrect": true, "comments": "Đúng", "score": 10}`})
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/auto-grading", map[string]any{
		"subject":           "math",
		"exercise_question": "2+2=?",
		"student_answer":    "4",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	grade := body["grading_response"].(map[string]any)
	assert.Equal(t, true, grade["isCorrect"])
	assert.Equal(t, float64(10), grade["score"])
}

func TestGenerateQuestion_ReplyErrorEchoesRequest(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Xin lỗi, tôi không thể."})
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/generate_question", map[string]any{
		"subject": "math",
		"prompt":  "phân số",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Model không tạo được JSON hợp lệ. Vui lòng thử lại.", body["error"])
	assert.Equal(t, "Xin lỗi, tôi không thể.", body["raw_response"])
	assert.Equal(t, "no parseable structure", body["reason"])
	assert.Equal(t, "phân số", body["prompt"])
	assert.Equal(t, "math", body["subject"])
}

func TestUnknownSubject(t *testing.T) {
	mock := llm.NewMockProvider()
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/performance/question-generation", map[string]any{
		"subject":      "music",
		"recent_tests": []any{map[string]any{"title": "Bài 1", "score": 7}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Môn học 'music' không hợp lệ")
	assert.Equal(t, "music", body["subject"])
	assert.NotEmpty(t, body["supported_subjects"])
	assert.Equal(t, 0, mock.CallCount())
}

func TestRecentTestGrading_CountMismatch(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Text: `[{"question_number": 1, "isCorrect": true, "score": 10}]`,
	})
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/recent-test-grading", map[string]any{
		"subject": "math",
		"questions": []any{
			map[string]any{"question": "1+1", "student_answer": "2"},
			map[string]any{"question": "2+2", "student_answer": "5"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(2), body["expected_count"])
	assert.Equal(t, float64(1), body["received_count"])
	assert.Contains(t, body["raw_response"], "question_number")
}

func TestProviderErrorIsReported(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	s := newTestServer(mock)

	rec, body := do(t, s, http.MethodPost, "/grade-essay", map[string]any{
		"exercise_question": "Phân tích bài thơ",
		"student_answer":    "Bài thơ hay.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "unavailable")
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1.2.3", "v1.2.3"},
		{"v1.2", "v1.2.0"},
		{"v2", "v2.0.0"},
		{"(devel)", "(devel)"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeVersion(tt.in), tt.in)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := grading.NewService(grading.Deps{Provider: llm.NewMockProvider()}, grading.DefaultConfig())
	s := New(svc, Options{HTTP: config.HTTPConfig{Addr: addr, ShutdownTimeout: time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
