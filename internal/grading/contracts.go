package grading

import "github.com/abhisek/gradeproxy/internal/shape"

// Reply contracts, one per operation.
var (
	questionContract = shape.Object("generate-question",
		shape.Str("question"),
		shape.Str("answer"),
	).WithDefaults(map[string]any{"difficulty": "medium"})

	autoGradeContract = shape.Object("auto-grade",
		shape.Bool("isCorrect"),
		shape.Str("comments"),
		shape.Num("score"),
	)

	fileGradeContract = shape.Object("auto-grade-file",
		shape.Bool("isCorrect"),
		shape.Str("comments"),
	)

	imageGradeContract = shape.Object("auto-grade-image",
		shape.Bool("isCorrect"),
		shape.Str("comments"),
	)

	essayContract = shape.Object("grade-essay",
		shape.Num("grade"),
		shape.Str("comments"),
	)

	recentTestContract = shape.ArrayOfAny("recent-test",
		shape.Object("recent-test-question",
			shape.Str("topic"),
			shape.Str("question"),
		).WithDefaults(map[string]any{"difficulty": "medium"}),
	)

	feedbackContract = shape.Object("teacher-feedback",
		shape.Str("exercise_question"),
		shape.Str("improve_suggestion"),
	)

	performanceContract = shape.Object("performance-question",
		shape.Str("question"),
		shape.Str("answer"),
		shape.Str("improvement_suggestions"),
	)

	rubricContract = shape.Object("grade-with-rubric").WithSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rubric_scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"criteria_name"},
					"properties": map[string]any{
						"criteria_name":  map[string]any{"type": "string"},
						"weighted_score": map[string]any{"type": "number"},
					},
				},
			},
			"total_score": map[string]any{"type": "number"},
		},
	})
)

var testGradingElement = shape.Object("recent-test-grade",
	shape.Num("question_number"),
	shape.Bool("isCorrect"),
	shape.Num("score"),
).WithDefaults(map[string]any{"comments": "", "correct_answer": ""})

// testGradingContract expects one graded element per submitted question.
func testGradingContract(n int) shape.Contract {
	return shape.ArrayOf("recent-test-grading", testGradingElement, n)
}

// ContractNames lists the contracts Contract accepts, in endpoint order.
func ContractNames() []string {
	return []string{
		questionContract.Name,
		autoGradeContract.Name,
		fileGradeContract.Name,
		imageGradeContract.Name,
		essayContract.Name,
		recentTestContract.Name,
		feedbackContract.Name,
		"recent-test-grading",
		performanceContract.Name,
		rubricContract.Name,
	}
}

// Contract returns the named reply contract. n is the expected element
// count for recent-test-grading and is ignored otherwise.
func Contract(name string, n int) (shape.Contract, bool) {
	switch name {
	case questionContract.Name:
		return questionContract, true
	case autoGradeContract.Name:
		return autoGradeContract, true
	case fileGradeContract.Name:
		return fileGradeContract, true
	case imageGradeContract.Name:
		return imageGradeContract, true
	case essayContract.Name:
		return essayContract, true
	case recentTestContract.Name:
		return recentTestContract, true
	case feedbackContract.Name:
		return feedbackContract, true
	case "recent-test-grading":
		return testGradingContract(n), true
	case performanceContract.Name:
		return performanceContract, true
	case rubricContract.Name:
		return rubricContract, true
	}
	return shape.Contract{}, false
}
