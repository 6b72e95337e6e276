package grading

import (
	"fmt"
	"strings"

	"github.com/abhisek/gradeproxy/internal/shape"
)

// ErrUnknownSubject is returned for a subject the catalog does not know.
type ErrUnknownSubject struct {
	Subject   string
	Supported []string

	// AcceptsNames is set when the operation also takes Vietnamese names.
	AcceptsNames bool
}

func (e *ErrUnknownSubject) Error() string {
	msg := fmt.Sprintf("Môn học '%s' không hợp lệ. Các môn học hỗ trợ: %s", e.Subject, strings.Join(e.Supported, ", "))
	if e.AcceptsNames {
		msg += " hoặc tên tiếng Việt"
	}
	return msg
}

// InputError rejects a request field that binding tags cannot express.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Field + " " + e.Message }

// ReplyError reports a model reply that failed its contract on every
// attempt. Message is the client-facing text.
type ReplyError struct {
	Message string
	Failure *shape.Failure

	// Expected and Received are element counts, set for array contracts
	// with a fixed length.
	Expected int
	Received int
}

func (e *ReplyError) Error() string { return e.Message }

// Raw returns the last model reply.
func (e *ReplyError) Raw() string {
	if e.Failure == nil {
		return ""
	}
	return e.Failure.Raw
}

// Reason returns the validation failure reason.
func (e *ReplyError) Reason() string {
	if e.Failure == nil {
		return ""
	}
	return e.Failure.Reason
}

const (
	msgInvalidJSON       = "Model không tạo được JSON hợp lệ. Vui lòng thử lại."
	msgIncompleteJSON    = "Model không tạo được JSON hợp lệ với đầy đủ các trường bắt buộc. Vui lòng thử lại."
	msgIncompleteGrading = "Model không trả về đủ kết quả chấm điểm hoặc format không đúng."
	msgRubricUnparsable  = "Không thể parse kết quả chấm điểm từ AI. Vui lòng thử lại."
)
