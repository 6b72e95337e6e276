package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"

	"github.com/abhisek/gradeproxy/internal/grading"
)

const msgInvalidRequest = "Dữ liệu yêu cầu không hợp lệ"

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validationErrors flattens a binding error into per-field entries. Errors
// that are not validator errors (malformed JSON, wrong types) are reported
// against the body.
func validationErrors(err error) []FieldError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := make([]FieldError, 0, len(ves))
		for _, fe := range ves {
			out = append(out, FieldError{
				Field:   strcase.ToSnake(fe.Field()),
				Code:    fe.Tag(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}

	var ie *grading.InputError
	if errors.As(err, &ie) {
		return []FieldError{{Field: ie.Field, Code: "required", Message: ie.Message}}
	}

	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return []FieldError{{
			Field:   ute.Field,
			Code:    "type",
			Message: fmt.Sprintf("expected %s, got %s", ute.Type, ute.Value),
		}}
	}

	return []FieldError{{Field: "body", Code: "invalid", Message: err.Error()}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// failure renders a service error as the success:false payload. Reply
// errors carry the raw model text so clients can inspect it.
func failure(err error, extra gin.H) gin.H {
	body := gin.H{"success": false, "error": err.Error()}

	var re *grading.ReplyError
	if errors.As(err, &re) {
		body["raw_response"] = re.Raw()
		if reason := re.Reason(); reason != "" {
			body["reason"] = reason
		}
		if re.Expected > 0 {
			body["expected_count"] = re.Expected
			body["received_count"] = re.Received
		}
	}

	var us *grading.ErrUnknownSubject
	if errors.As(err, &us) {
		body["supported_subjects"] = us.Supported
	}

	for k, v := range extra {
		body[k] = v
	}
	return body
}
