package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/gradeproxy/internal/subject"
)

const (
	literatureAssistant = "Bạn là trợ lý AI chuyên về văn học Việt Nam."

	rubricHeadingGrading    = "Tiêu chí chấm điểm (Rubric)"
	rubricHeadingEvaluation = "Tiêu chí đánh giá (Rubric)"
)

func questionSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS. CHỈ trả về JSON, không có text khác.", name)
}

func practiceSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS chuyên tạo câu hỏi luyện tập. Hãy luôn tạo đầy đủ số lượng câu hỏi theo yêu cầu.", name)
}

func analysisSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS chuyên phân tích năng lực học sinh. CHỈ trả về JSON, không có text khác.", name)
}

func testGradingSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS chuyên chấm điểm bài tập. CHỈ trả về JSON, không có text khác.", name)
}

func rubricSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS chuyên nghiệp. Chấm điểm công bằng, chi tiết và có tính xây dựng. CHỈ trả về JSON, không có text khác.", name)
}

func imageSystemPrompt(name string) string {
	return fmt.Sprintf("Bạn là giáo viên %s THCS có khả năng đọc và phân tích hình ảnh bài làm của học sinh.", name)
}

// compactJSON renders v on one line without HTML escaping.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func buildQuestionPrompt(s subject.Subject, request string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tạo câu hỏi %s theo yêu cầu: %s\n\n", s.Name, request)
	b.WriteString("Trả về JSON với format SAU (KHÔNG thêm text khác):\n")
	b.WriteString(`{"question": "câu hỏi", "answer": "lời giải chi tiết", "difficulty": "easy"}`)
	b.WriteString("\n\nVí dụ:\n")
	b.WriteString(compactJSON(s.Example))
	return b.String()
}

func buildAutoGradePrompt(s subject.Subject, rubric []subject.Criterion, question, answer string) string {
	var b strings.Builder
	b.WriteString(s.Grading)
	fmt.Fprintf(&b, "\n\nĐề bài: %s\n\nBài làm của học sinh:\n%s", question, answer)
	b.WriteString(subject.RubricText(rubric, rubricHeadingGrading))
	b.WriteString(`

Hãy đưa ra điểm số từ 0-10 và nhận xét chi tiết về bài làm dựa trên các tiêu chí rubric.

Trả về format JSON:
{"isCorrect": <true || false>, "comments": "<nhận xét chi tiết về bài làm theo từng tiêu chí rubric>", "score": <điểm số từ 0-10>}
`)
	return b.String()
}

const fileGradingRules = `

YÊU CẦU CHẤM:
- So sánh kết quả và lập luận của bài làm với đề bài.
- Áp dụng các tiêu chí rubric để đánh giá toàn diện.
- Nếu kết luận cuối cùng đúng về mặt toán học thì coi là ĐÚNG,
  kể cả khi cách trình bày khác, thiếu lời giải chi tiết, hoặc dùng từ khác.
- Chỉ trả về isCorrect = false nếu:
  + Kết quả cuối cùng sai, HOẶC
  + Lập luận mâu thuẫn với định nghĩa/toán học cơ bản.
- Không đánh giá dựa trên hình thức, chính tả, hoặc cách diễn đạt.
- Nếu bài làm đúng bản chất toán học → isCorrect = true.

TRẢ VỀ DUY NHẤT JSON (không giải thích thêm ngoài comments):
{"isCorrect": <true || false>, "comments": "<nhận xét chi tiết về bài làm theo từng tiêu chí rubric>"}
`

func buildFileGradePrompt(s subject.Subject, rubric []subject.Criterion, question, content string) string {
	var b strings.Builder
	b.WriteString(s.Grading)
	fmt.Fprintf(&b, "\nNội dung bài làm:\n%s\n\nHãy kiểm tra xem đúng hay sai so với đề bài: %s", content, question)
	b.WriteString(subject.RubricText(rubric, rubricHeadingGrading))
	b.WriteString(fileGradingRules)
	return b.String()
}

const imageGradingRules = `

YÊU CẦU CHẤM:
- Đọc và phân tích bài làm của học sinh trong hình ảnh
- So sánh kết quả và lập luận của bài làm với đề bài
- Áp dụng các tiêu chí rubric để đánh giá toàn diện
- Nếu kết luận cuối cùng đúng về mặt toán học thì coi là ĐÚNG,
  kể cả khi cách trình bày khác, thiếu lời giải chi tiết, hoặc dùng từ khác
- Chỉ trả về isCorrect = false nếu:
  + Kết quả cuối cùng sai, HOẶC
  + Lập luận mâu thuẫn với định nghĩa/toán học cơ bản
- Không đánh giá dựa trên hình thức, chính tả, hoặc cách diễn đạt
- Nếu bài làm đúng bản chất toán học → isCorrect = true

TRẢ VỀ DUY NHẤT JSON (không giải thích thêm ngoài comments):
{"isCorrect": <true || false>, "comments": "<nhận xét chi tiết về bài làm theo từng tiêu chí rubric>"}
`

func buildImageGradePrompt(name string, rubric []subject.Criterion, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bạn là giáo viên %s THCS. Hãy chấm điểm bài làm dựa trên nội dung trong hình ảnh.\n\nĐề bài: %s", name, question)
	b.WriteString(subject.RubricText(rubric, rubricHeadingGrading))
	b.WriteString(imageGradingRules)
	return b.String()
}

func buildEssayPrompt(question, answer string) string {
	var b strings.Builder
	b.WriteString("Hãy chấm điểm bài làm văn theo thang điểm 10 và đưa ra nhận xét cụ thể về ưu điểm và hạn chế của bài viết.\n\n")
	fmt.Fprintf(&b, "Đề bài: %s\n\nBài làm của học sinh:\n%s\n\n", question, answer)
	b.WriteString(`Hãy đánh giá theo các tiêu chí:
- Nội dung (40%)
- Phân tích & lập luận (30%)
- Diễn đạt & ngôn ngữ (20%)
- Sáng tạo (10%)

Trả về kết quả dưới dạng JSON với format:
{
    "grade": <điểm số từ 0-10>,
    "comments": "<nhận xét chi tiết về bài làm>",
    "criteria_scores": {
        "Nội dung": <điểm từ 0-10>,
        "Phân tích & lập luận": <điểm từ 0-10>,
        "Diễn đạt & ngôn ngữ": <điểm từ 0-10>,
        "Sáng tạo": <điểm từ 0-10>
    },
    "strengths": "<điểm mạnh của bài làm>",
    "weaknesses": "<điểm yếu và hướng cải thiện>"
}`)
	return b.String()
}

func buildRecentTestPrompt(s subject.Subject, tests []map[string]any, questionTypes []string) string {
	qt := s.QuestionType
	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên các chủ đề %s sau đây, hãy tạo ra một câu hỏi %s cho mỗi chủ đề.\n\n", qt, qt)
	fmt.Fprintf(&b, "Môn học: %s\n\nCác chủ đề:\n", s.Name)
	for i, t := range tests {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + compactJSON(t))
	}
	if len(questionTypes) > 0 {
		b.WriteString("\n\nLoại câu hỏi cần tạo:")
		for _, t := range questionTypes {
			b.WriteString("\n- " + t)
		}
	}
	n := len(tests)
	b.WriteString("\n\nQUY TẮC QUAN TRỌNG:\n")
	fmt.Fprintf(&b, "- Trả về ĐÚNG %d câu hỏi tương ứng với %d chủ đề\n", n, n)
	fmt.Fprintf(&b, "- Câu hỏi phải phù hợp với môn %s và chương trình THCS\n", s.Name)
	b.WriteString(`- CHỈ trả về JSON array, KHÔNG có text giải thích thêm
- KHÔNG có dấu phẩy thừa sau phần tử cuối
- Format chính xác như sau:

[
`)
	element := fmt.Sprintf(`    {
        "topic": "<tên chủ đề y nguyên>",
        "question": "<câu hỏi %s liên quan>",
        "difficulty": "<easy|medium|hard>"
    }`, qt)
	b.WriteString(element + ",\n" + element + "\n]\n")
	return b.String()
}

func buildFeedbackPrompt(s subject.Subject, lesson string, comment TeacherComment) string {
	commentText := comment.Text()

	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên nhận xét của giáo viên về bài học \"%s\" môn %s, hãy tạo câu hỏi bài tập và gợi ý cải thiện cho học sinh.\n\n", lesson, s.Name)
	fmt.Fprintf(&b, "Nhận xét của giáo viên:\n%s\n\nBài học: %s\nMôn học: %s\n\n", commentText, lesson, s.Name)
	b.WriteString(`YÊU CẦU:
- Tạo câu hỏi bài tập phù hợp với nội dung bài học và nhận xét của giáo viên
- Đưa ra gợi ý cải thiện cụ thể dựa trên điểm yếu trong nhận xét
- Câu hỏi phải có độ khó vừa phải, phù hợp với trình độ THCS
- Gợi ý phải thiết thực và có thể áp dụng được

Trả về JSON với format SAU (KHÔNG thêm text khác):
`)
	fmt.Fprintf(&b, `{"exercise_question": "<câu hỏi bài tập %s>", "improve_suggestion": "<gợi ý cải thiện cụ thể>"}`, s.Name)
	fmt.Fprintf(&b, "\n\nVí dụ cho môn %s:\n", s.Name)
	fmt.Fprintf(&b, `{"exercise_question": "%s", "improve_suggestion": "%s"}`, s.FeedbackExample.ExerciseQuestion, s.FeedbackExample.ImproveSuggestion)
	return b.String()
}

func buildTestGradingPrompt(s subject.Subject, rubric []subject.Criterion, questions []TestQuestion) string {
	n := len(questions)
	var b strings.Builder
	fmt.Fprintf(&b, "Bạn là giáo viên %s THCS. Hãy chấm điểm %d câu hỏi sau theo rubric đã cho.\n\n", s.Name, n)
	fmt.Fprintf(&b, "Môn học: %s", s.Name)
	b.WriteString(subject.RubricText(rubric, rubricHeadingEvaluation))
	b.WriteString("\n\nDanh sách câu hỏi và câu trả lời của học sinh:")
	for i, q := range questions {
		fmt.Fprintf(&b, "\n%d. Câu hỏi: %s\n", i+1, q.Question)
		fmt.Fprintf(&b, "   Chủ đề: %s\n", q.Topic)
		fmt.Fprintf(&b, "   Độ khó: %s\n", q.Difficulty)
		fmt.Fprintf(&b, "   Câu trả lời của học sinh: %s\n", q.StudentAnswer)
	}
	b.WriteString(`

YÊU CẦU CHẤM:
- Đánh giá MỖI câu hỏi dựa trên độ chính xác, logic và phương pháp giải
- Áp dụng tiêu chí rubric để đánh giá toàn diện
- Với mỗi câu: xác định đúng/sai (isCorrect), cho điểm (0-10), và nhận xét chi tiết
- Điểm phải phản ánh chính xác mức độ đạt được theo từng tiêu chí rubric
- Nếu câu trả lời đúng về bản chất toán học → isCorrect = true
- Chỉ đánh giá isCorrect = false nếu kết quả hoặc logic sai rõ ràng

TRẢ VỀ DUY NHẤT JSON array (KHÔNG có text khác, KHÔNG dùng markdown):
[
  {
    "question_number": 1,
    "isCorrect": <true || false>,
    "score": <điểm từ 0-10>,
    "comments": "Nhận xét chi tiết về bài làm, bao gồm: 1) Đánh giá độ chính xác, 2) Phân tích các tiêu chí rubric, 3) Điểm mạnh/yếu",
    "correct_answer": "Đáp án đúng và lời giải chi tiết"
  },
  ...
]

`)
	fmt.Fprintf(&b, "Lưu ý: Phải trả về ĐÚNG %d kết quả chấm điểm.", n)
	return b.String()
}

const recentTestsShown = 3

// difficultyGuidance picks the question level from the average score.
func difficultyGuidance(avg float64) string {
	switch {
	case avg >= 8:
		return "Tạo câu hỏi ở mức độ NÂNG CAO để thách thức và phát triển năng lực học sinh xuất sắc này."
	case avg >= 6:
		return "Tạo câu hỏi ở mức độ TRUNG BÌNH để củng cố kiến thức và nâng cao dần năng lực."
	default:
		return "Tạo câu hỏi ở mức độ CƠ BẢN để giúp học sinh nắm vững kiến thức nền tảng."
	}
}

func buildPerformancePrompt(s subject.Subject, tests []TestScore, avg string, guidance string) string {
	var info strings.Builder
	if len(tests) > 0 {
		info.WriteString("\n\nThông tin các bài kiểm tra gần đây:\n")
		for i, t := range tests {
			if i == recentTestsShown {
				break
			}
			title := t.Title
			if title == "" {
				title = "N/A"
			}
			fmt.Fprintf(&info, "%d. Bài: %s - Điểm: %s/10\n", i+1, title, formatNumber(t.Score))
		}
	} else {
		info.WriteString("\n\nHọc sinh chưa có kết quả kiểm tra gần đây.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên thông tin hiệu suất học tập của học sinh môn %s, hãy tạo MỘT câu hỏi luyện tập phù hợp.\n\n", s.Name)
	b.WriteString(info.String())
	fmt.Fprintf(&b, "\n\nĐiểm trung bình: %s/10\n\nHướng dẫn: %s\n\n", avg, guidance)
	b.WriteString(`YÊU CẦU:
1. Phân tích điểm yếu/mạnh của học sinh dựa trên điểm số
2. Đề xuất gợi ý cải thiện cụ thể
3. Tạo câu hỏi phù hợp với trình độ hiện tại

Trả về 3 JSON với format SAU (KHÔNG thêm text khác, KHÔNG dùng markdown):
{
  "question": "Nội dung câu hỏi luyện tập chi tiết và rõ ràng",
  "answer": "Câu trả lời mẫu đầy đủ, có hướng dẫn từng bước",
  "ai_score": 0,
  "improvement_suggestions": "Gợi ý cải thiện dựa trên điểm yếu được phát hiện từ các bài test gần đây, bao gồm: 1) Điểm cần cải thiện, 2) Phương pháp học tập đề xuất, 3) Kỹ năng cần rèn luyện"
}

Lưu ý: 
- ai_score luôn là 0 (sẽ được cập nhật sau khi học sinh làm bài)
- improvement_suggestions phải CỤ THỂ và DỰA TRÊN hiệu suất thực tế
- Câu hỏi phải PHÙ HỢP với chương trình THCS`)
	return b.String()
}

func buildRubricPrompt(subjectName, studentName, testTitle string, criteria, answers []map[string]any) string {
	var rubric strings.Builder
	for i, c := range criteria {
		name := formatValue(c["name"], fmt.Sprintf("Tiêu chí %d", i+1))
		fmt.Fprintf(&rubric, "%d. %s (Trọng số: %s%%)", i+1, name, formatValue(c["weight"], "0"))
		if desc := formatValue(c["description"], ""); desc != "" {
			rubric.WriteString(" - " + desc)
		}
		rubric.WriteString("\n")
	}

	var qa strings.Builder
	for i, a := range answers {
		fmt.Fprintf(&qa, "\nCâu %d:\n", i+1)
		fmt.Fprintf(&qa, "- Đề bài: %s\n", formatValue(a["question"], "N/A"))
		fmt.Fprintf(&qa, "- Loại câu hỏi: %s\n", formatValue(a["questionType"], "N/A"))
		fmt.Fprintf(&qa, "- Điểm tối đa: %s\n", formatValue(a["grade"], "0"))
		fmt.Fprintf(&qa, "- Đáp án mẫu: %s\n", formatValue(a["solution"], "N/A"))
		fmt.Fprintf(&qa, "- Bài làm của học sinh: %s\n", formatValue(a["studentAnswer"], "Chưa trả lời"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bạn là giáo viên %s THCS. Hãy chấm điểm bài làm của học sinh \"%s\" dựa trên rubric sau.\n\n", subjectName, studentName)
	fmt.Fprintf(&b, "📋 THÔNG TIN BÀI KIỂM TRA:\n- Tên bài: %s\n- Môn học: %s\n\n", testTitle, subjectName)
	fmt.Fprintf(&b, "📊 RUBRIC ĐÁNH GIÁ:\n%s\n\n", rubric.String())
	fmt.Fprintf(&b, "📝 NỘI DUNG BÀI LÀM:\n%s\n\n", qa.String())
	b.WriteString(`🎯 YÊU CẦU:
1. Chấm điểm từng tiêu chí trong rubric (0-10 điểm cho mỗi tiêu chí)
2. Tính điểm theo trọng số: Điểm tiêu chí × (Trọng số/100)
3. Tổng điểm = Tổng các điểm đã tính trọng số
4. Nhận xét chi tiết cho từng tiêu chí
5. Nhận xét tổng thể và gợi ý cải thiện

Trả về JSON với format sau (KHÔNG thêm text khác):
{
    "rubric_scores": [
        {
            "criteria_name": "Tên tiêu chí",
            "weight": <trọng số>,
            "score": <điểm 0-10>,
            "weighted_score": <điểm đã nhân trọng số>,
            "comment": "Nhận xét cho tiêu chí này"
        }
    ],
    "question_scores": [
        {
            "question_number": <số thứ tự câu>,
            "max_score": <điểm tối đa>,
            "student_score": <điểm học sinh đạt được>,
            "is_correct": <true/false>,
            "feedback": "Nhận xét cho câu này"
        }
    ],
    "total_score": <tổng điểm cuối cùng (0-10)>,
    "overall_comment": "Nhận xét tổng thể về bài làm",
    "strengths": ["Điểm mạnh 1", "Điểm mạnh 2"],
    "weaknesses": ["Điểm yếu 1", "Điểm yếu 2"],
    "improvement_suggestions": "Gợi ý cải thiện chi tiết"
}`)
	return b.String()
}
