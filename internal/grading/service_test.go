package grading

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gradeproxy/internal/llm"
	"github.com/abhisek/gradeproxy/internal/media"
	"github.com/abhisek/gradeproxy/internal/shape"
)

func newTestService(mock *llm.MockProvider, cfg Config) *Service {
	return NewService(Deps{Provider: mock}, cfg)
}

func reply(text string) llm.MockResponse { return llm.MockResponse{Text: text} }

func toJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestGenerateQuestion_FencedReply(t *testing.T) {
	mock := llm.NewMockProvider(reply("Đây là câu hỏi:\n```json\n{\"question\":\"2+2=?\",\"answer\":\"4\"}\n```"))
	svc := newTestService(mock, DefaultConfig())

	res, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "math", Prompt: "phép cộng"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "2+2=?", res.Result["question"])
	assert.Equal(t, "medium", res.Result["difficulty"])

	req := mock.Calls[0]
	assert.Equal(t, "Bạn là giáo viên Toán THCS. CHỈ trả về JSON, không có text khác.", req.System)
	assert.True(t, req.JSONMode)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.InDelta(t, 0.8, req.TopP, 1e-9)
	assert.Contains(t, req.Messages[0].Content, "Tạo câu hỏi Toán theo yêu cầu: phép cộng")
	assert.Contains(t, req.Messages[0].Content, `"difficulty":"easy"`)
}

func TestGenerateQuestion_UnknownSubject(t *testing.T) {
	mock := llm.NewMockProvider()
	svc := newTestService(mock, DefaultConfig())

	_, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "music", Prompt: "x"})
	var unknown *ErrUnknownSubject
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Môn học 'music' không hợp lệ. Các môn học hỗ trợ: math, van, english, physics, chemistry, biology, geography, history, civics, informatics", err.Error())
	assert.Zero(t, mock.CallCount())
}

func TestGenerateQuestion_InvalidReply(t *testing.T) {
	mock := llm.NewMockProvider(reply(`{"question": 5, "answer": "4"}`))
	svc := newTestService(mock, DefaultConfig())

	_, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "math", Prompt: "x"})
	var re *ReplyError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, msgInvalidJSON, re.Error())
	assert.Equal(t, shape.TypeMismatch, re.Failure.Code)
	assert.Equal(t, `{"question": 5, "answer": "4"}`, re.Raw())
}

func TestComplete_RetriesInvalidReplies(t *testing.T) {
	mock := llm.NewMockProvider(
		reply("I cannot help with that."),
		reply(`{"question":"Q","answer":"A","difficulty":"hard"}`),
	)
	svc := newTestService(mock, Config{ParseRetries: 2})

	res, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "van", Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hard", res.Result["difficulty"])
	assert.Equal(t, 2, mock.CallCount())
}

func TestComplete_NoRetryByDefault(t *testing.T) {
	mock := llm.NewMockProvider(reply("nope"), reply(`{"question":"Q","answer":"A"}`))
	svc := newTestService(mock, DefaultConfig())

	_, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "van", Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestComplete_ProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("slow down")}})
	svc := newTestService(mock, Config{ParseRetries: 3})

	_, err := svc.GenerateQuestion(t.Context(), QuestionInput{Subject: "math", Prompt: "x"})
	var rl *llm.ErrRateLimit
	assert.True(t, errors.As(err, &rl))
	assert.Equal(t, 1, mock.CallCount())
}

func TestGenerate(t *testing.T) {
	t.Run("extracted", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`Kết quả: {"a": 1}`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.Generate(t.Context(), GenerateInput{Prompt: "p", MaxTokens: 256, Temperature: 0.7, TopP: 0.9})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1)}, toJSON(t, res)["response"])
		assert.Equal(t, literatureAssistant, mock.Calls[0].System)
		assert.Equal(t, 256, mock.Calls[0].MaxTokens)
		assert.False(t, mock.Calls[0].JSONMode)
	})

	t.Run("raw text kept", func(t *testing.T) {
		mock := llm.NewMockProvider(reply("Chỉ là văn bản."))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.Generate(t.Context(), DefaultGenerateInput())
		require.NoError(t, err)
		assert.Equal(t, "Chỉ là văn bản.", res.Response)
	})
}

func TestAutoGrade(t *testing.T) {
	mock := llm.NewMockProvider(
		reply(`{"isCorrect": true, "comments": "Tốt", "score": 9.5}`),
		reply(`{"isCorrect": "yes", "comments": "Tốt"}`),
	)
	svc := newTestService(mock, DefaultConfig())
	in := AutoGradeInput{Subject: "math", ExerciseQuestion: "2x + 5 = 15", StudentAnswer: "x = 5"}

	res, err := svc.AutoGrade(t.Context(), in)
	require.NoError(t, err)
	out := toJSON(t, res)
	assert.Equal(t, 9.5, out["grading_response"].(map[string]any)["score"])
	assert.NotContains(t, out, "parse_error")

	prompt := mock.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, "Tiêu chí chấm điểm (Rubric):\n- Đáp án đúng : 90%\n- Kỹ năng tính toán: 10%\n")
	assert.True(t, strings.HasPrefix(mock.Calls[0].System, "Bạn là giáo viên Toán THCS. Hãy chấm điểm"))

	res, err = svc.AutoGrade(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, `{"isCorrect": "yes", "comments": "Tốt"}`, res.GradingResponse)
	assert.Equal(t, "missing required field: score", res.ParseError)
}

func TestAutoGradeFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("x = 5"))
	}))
	defer srv.Close()

	mock := llm.NewMockProvider(reply("```\n{\"isCorrect\": true, \"comments\": \"Đúng\"}\n```"))
	svc := newTestService(mock, DefaultConfig())

	res, err := svc.AutoGradeFile(t.Context(), FileGradeInput{Subject: "math", ExerciseQuestion: "2x + 5 = 15", FileURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "x = 5", res.StudentAnswer)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "Nội dung bài làm:\nx = 5\n\nHãy kiểm tra xem đúng hay sai so với đề bài: 2x + 5 = 15")
	assert.False(t, mock.Calls[0].JSONMode)
}

func TestAutoGradeFile_FetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	mock := llm.NewMockProvider()
	svc := newTestService(mock, DefaultConfig())

	_, err := svc.AutoGradeFile(t.Context(), FileGradeInput{Subject: "math", ExerciseQuestion: "q", FileURL: srv.URL})
	var se *media.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Zero(t, mock.CallCount())
}

type fakeImageStore struct{ url string }

func (f fakeImageStore) Store(_ context.Context, src string) (media.Image, error) {
	return media.Image{URL: f.url, Data: []byte("png"), MIMEType: "image/png"}, nil
}

func TestAutoGradeImage(t *testing.T) {
	mock := llm.NewMockProvider(reply(`{"isCorrect": false, "comments": "Sai"}`), reply(`{"isCorrect": true, "comments": "Đúng"}`))
	svc := NewService(Deps{Provider: mock, Images: fakeImageStore{url: "https://bucket/x.png"}}, DefaultConfig())

	res, err := svc.AutoGradeImage(t.Context(), FileGradeInput{Subject: "physics", ExerciseQuestion: "q", FileURL: "https://src/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/x.png", res.StudentAnswerImageURL)

	req := mock.Calls[0]
	require.Len(t, req.Images, 1)
	assert.Equal(t, "https://bucket/x.png", req.Images[0].URL)
	assert.Equal(t, "Bạn là giáo viên Vật lý THCS có khả năng đọc và phân tích hình ảnh bài làm của học sinh.", req.System)
	assert.Contains(t, req.Messages[0].Content, "- Vận dụng giải bài tập: 35%")

	_, err = svc.AutoGradeImage(t.Context(), FileGradeInput{Subject: "music", ExerciseQuestion: "q", FileURL: "https://src/x.png"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mock.Calls[1].Messages[0].Content, "Bạn là giáo viên music THCS."))
	assert.NotContains(t, mock.Calls[1].Messages[0].Content, "Rubric")
}

func TestGradeEssay_RawFallback(t *testing.T) {
	mock := llm.NewMockProvider(reply("Bài viết khá tốt, 8 điểm."))
	svc := newTestService(mock, DefaultConfig())

	res, err := svc.GradeEssay(t.Context(), EssayInput{ExerciseQuestion: "q", StudentAnswer: "a"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"raw_response": "Bài viết khá tốt, 8 điểm."}, res.Result)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "- Sáng tạo (10%)")
}

func TestRecentTest(t *testing.T) {
	tests := []map[string]any{{"title": "Phân số"}, {"title": "Tỉ lệ"}}

	t.Run("dangling comma", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`[{"topic":"Phân số","question":"Q1","difficulty":"easy"},{"topic":"Tỉ lệ","question":"Q2"},]`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.RecentTest(t.Context(), RecentTestInput{Subject: "math", RecentTests: tests, QuestionTypes: []string{"tự luận"}})
		require.NoError(t, err)
		require.Len(t, res.Questions, 2)
		assert.Equal(t, "medium", res.Questions[1].(map[string]any)["difficulty"])
		assert.Empty(t, res.RawResponse)
		assert.Equal(t, "Toán", res.SubjectName)

		prompt := mock.Calls[0].Messages[0].Content
		assert.Contains(t, prompt, "Các chủ đề:\n- {\"title\":\"Phân số\"}\n- {\"title\":\"Tỉ lệ\"}\n\nLoại câu hỏi cần tạo:\n- tự luận")
		assert.Contains(t, prompt, "- Trả về ĐÚNG 2 câu hỏi tương ứng với 2 chủ đề")
		assert.Equal(t, 2048, mock.Calls[0].MaxTokens)
	})

	t.Run("unparseable", func(t *testing.T) {
		mock := llm.NewMockProvider(reply("Xin lỗi."))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.RecentTest(t.Context(), RecentTestInput{Subject: "math", RecentTests: tests})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, res.Questions)
		assert.NotNil(t, res.Questions)
		assert.Equal(t, "Xin lỗi.", res.RawResponse)
	})
}

func TestAnalyzeTeacherFeedback(t *testing.T) {
	valid := `{"exercise_question": "Q", "improve_suggestion": "S"}`

	t.Run("vietnamese name and list comment", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(valid))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.AnalyzeTeacherFeedback(t.Context(), FeedbackInput{
			Subject:        "Hóa học",
			Lesson:         "Phản ứng oxi hóa",
			TeacherComment: TeacherComment{Lines: []string{"Chưa cân bằng", "Thiếu điều kiện"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hóa học", res.Subject)
		assert.Equal(t, "S", res.Result["improve_suggestion"])
		assert.Contains(t, mock.Calls[0].Messages[0].Content, "Nhận xét của giáo viên:\n- Chưa cân bằng\n- Thiếu điều kiện\n")
		assert.Contains(t, mock.Calls[0].Messages[0].Content, "Fe + O₂ → Fe₂O₃")
	})

	t.Run("single comment kept as is", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(valid))
		svc := newTestService(mock, DefaultConfig())

		_, err := svc.AnalyzeTeacherFeedback(t.Context(), FeedbackInput{Subject: "MATH", Lesson: "L", TeacherComment: SingleComment("Cẩn thận hơn")})
		require.NoError(t, err)
		assert.Contains(t, mock.Calls[0].Messages[0].Content, "Nhận xét của giáo viên:\nCẩn thận hơn\n")
	})

	t.Run("unknown subject", func(t *testing.T) {
		svc := newTestService(llm.NewMockProvider(), DefaultConfig())

		_, err := svc.AnalyzeTeacherFeedback(t.Context(), FeedbackInput{Subject: "Âm nhạc", Lesson: "L", TeacherComment: SingleComment("ok")})
		require.Error(t, err)
		assert.True(t, strings.HasSuffix(err.Error(), " hoặc tên tiếng Việt"))
	})

	t.Run("comment required", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(valid))
		svc := newTestService(mock, DefaultConfig())

		for _, c := range []TeacherComment{{}, {Lines: []string{}}, SingleComment("  ")} {
			_, err := svc.AnalyzeTeacherFeedback(t.Context(), FeedbackInput{Subject: "MATH", Lesson: "L", TeacherComment: c})
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "teacher_comment", ie.Field)
		}
		assert.Empty(t, mock.Calls)
	})
}

func TestRecentTestGrading(t *testing.T) {
	questions := []TestQuestion{
		{Question: "1+1", StudentAnswer: "2", Topic: "cộng", Difficulty: "easy"},
		{Question: "2*3", StudentAnswer: "5", Topic: "nhân", Difficulty: "easy"},
	}

	t.Run("merged", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`[
			{"question_number": 1, "isCorrect": true, "score": 10, "comments": "Đúng"},
			{"question_number": 2, "isCorrect": false, "score": 3.25, "correct_answer": "6"}
		]`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.RecentTestGrading(t.Context(), TestGradingInput{Subject: "math", Questions: questions})
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalQuestions)
		assert.Equal(t, 1, res.CorrectCount)
		assert.Equal(t, 6.63, res.AverageScore)
		assert.Equal(t, "nhân", res.DetailedResults[1].Topic)
		assert.Equal(t, "6", res.DetailedResults[1].CorrectAnswer)
		assert.Equal(t, "", res.DetailedResults[1].Comments)
		assert.Len(t, res.RubricCriteria, 2)

		prompt := mock.Calls[0].Messages[0].Content
		assert.Contains(t, prompt, "Tiêu chí đánh giá (Rubric):")
		assert.Contains(t, prompt, "\n2. Câu hỏi: 2*3\n   Chủ đề: nhân\n")
		assert.True(t, strings.HasSuffix(prompt, "Lưu ý: Phải trả về ĐÚNG 2 kết quả chấm điểm."))
	})

	t.Run("count mismatch", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`[{"question_number": 1, "isCorrect": true, "score": 10}]`))
		svc := newTestService(mock, DefaultConfig())

		_, err := svc.RecentTestGrading(t.Context(), TestGradingInput{Subject: "math", Questions: questions})
		var re *ReplyError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, msgIncompleteGrading, re.Message)
		assert.Equal(t, 2, re.Expected)
		assert.Equal(t, 1, re.Received)
		assert.Equal(t, "element count mismatch: expected 2, got 1", re.Reason())
	})

	t.Run("not an array", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`{"question_number": 1}`))
		svc := newTestService(mock, DefaultConfig())

		_, err := svc.RecentTestGrading(t.Context(), TestGradingInput{Subject: "math", Questions: questions})
		var re *ReplyError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, 0, re.Received)
	})
}

func TestPerformanceQuestion(t *testing.T) {
	mock := llm.NewMockProvider(reply(`{"question":"Q","answer":"A","ai_score":7,"improvement_suggestions":"S"}`))
	svc := newTestService(mock, DefaultConfig())

	res, err := svc.PerformanceQuestion(t.Context(), PerformanceInput{
		Subject: "math",
		RecentTests: []TestScore{
			{Title: "Bài 1", Score: 9},
			{Title: "", Score: 8.5},
			{Title: "Bài 3", Score: 0},
			{Title: "Bài 4", Score: 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AIScore)
	assert.Equal(t, 8.17, res.AverageScore)

	prompt := mock.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, "1. Bài: Bài 1 - Điểm: 9/10\n2. Bài: N/A - Điểm: 8.5/10\n3. Bài: Bài 3 - Điểm: 0/10\n")
	assert.NotContains(t, prompt, "Bài 4")
	assert.Contains(t, prompt, "Điểm trung bình: 8.2/10")
	assert.Contains(t, prompt, "mức độ NÂNG CAO")
}

func TestPerformanceQuestion_NoTests(t *testing.T) {
	mock := llm.NewMockProvider(reply(`{"question":"Q","answer":"A"}`))
	svc := newTestService(mock, DefaultConfig())

	_, err := svc.PerformanceQuestion(t.Context(), PerformanceInput{Subject: "math"})
	var re *ReplyError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, msgIncompleteJSON, re.Message)

	prompt := mock.Calls[0].Messages[0].Content
	assert.Contains(t, prompt, "Học sinh chưa có kết quả kiểm tra gần đây.")
	assert.Contains(t, prompt, "Điểm trung bình: 0.0/10")
	assert.Contains(t, prompt, "mức độ CƠ BẢN")
}

func TestGradeWithRubric(t *testing.T) {
	in := RubricInput{
		TestTitle: "Kiểm tra 15 phút",
		Subject:   "physics",
		QuestionsAndAnswers: []map[string]any{
			{"question": "Định luật Ôm?", "grade": float64(5), "studentAnswer": "I = U/R"},
		},
		RubricCriteria: []map[string]any{
			{"name": "Kiến thức", "weight": float64(60), "description": "Nắm công thức"},
			{"weight": float64(40)},
		},
	}

	t.Run("total computed", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`{"rubric_scores": [
			{"criteria_name": "Kiến thức", "weighted_score": 5.4},
			{"criteria_name": "Trình bày", "weighted_score": 3.333}
		]}`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.GradeWithRubric(t.Context(), in)
		require.NoError(t, err)
		assert.Equal(t, 8.73, res.GradingResult["total_score"])
		assert.Equal(t, "Học sinh", res.StudentName)

		req := mock.Calls[0]
		assert.Equal(t, "Bạn là giáo viên Vật lí THCS chuyên nghiệp. Chấm điểm công bằng, chi tiết và có tính xây dựng. CHỈ trả về JSON, không có text khác.", req.System)
		assert.Contains(t, req.Messages[0].Content, "1. Kiến thức (Trọng số: 60%) - Nắm công thức\n2. Tiêu chí 2 (Trọng số: 40%)\n")
		assert.Contains(t, req.Messages[0].Content, "- Loại câu hỏi: N/A\n- Điểm tối đa: 5\n- Đáp án mẫu: N/A\n- Bài làm của học sinh: I = U/R\n")
	})

	t.Run("total kept", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`{"total_score": 7, "rubric_scores": []}`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.GradeWithRubric(t.Context(), in)
		require.NoError(t, err)
		assert.Equal(t, json.Number("7"), res.GradingResult["total_score"])
	})

	t.Run("no scores", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`{"overall_comment": "ok"}`))
		svc := newTestService(mock, DefaultConfig())

		res, err := svc.GradeWithRubric(t.Context(), in)
		require.NoError(t, err)
		assert.Equal(t, 0, res.GradingResult["total_score"])
	})

	t.Run("schema violation", func(t *testing.T) {
		mock := llm.NewMockProvider(reply(`{"rubric_scores": [{"criteria_name": "A", "weighted_score": "high"}]}`))
		svc := newTestService(mock, DefaultConfig())

		_, err := svc.GradeWithRubric(t.Context(), in)
		var re *ReplyError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, msgRubricUnparsable, re.Message)
		assert.Equal(t, shape.SchemaViolation, re.Failure.Code)
	})
}
