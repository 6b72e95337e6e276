package grading

// Config holds grading service settings.
type Config struct {
	// ParseRetries is how many extra model calls are made when a reply
	// fails its contract. Zero means a single attempt.
	ParseRetries int

	// Lenient adds the jsonrepair step to the extraction cascade.
	Lenient bool
}

// DefaultConfig returns the single-attempt, strict-extraction defaults.
func DefaultConfig() Config {
	return Config{}
}

// sampling is the per-operation model configuration.
type sampling struct {
	maxTokens   int
	temperature float64
	topP        float64
	jsonMode    bool
}

var (
	questionSampling    = sampling{maxTokens: 1024, temperature: 0.3, topP: 0.8, jsonMode: true}
	autoGradeSampling   = sampling{maxTokens: 512, temperature: 0.3, topP: 0.9, jsonMode: true}
	fileGradeSampling   = sampling{maxTokens: 512, temperature: 0.3, topP: 0.9}
	essaySampling       = sampling{maxTokens: 512, temperature: 0.3, topP: 0.9, jsonMode: true}
	recentTestSampling  = sampling{maxTokens: 2048, temperature: 0.7, topP: 0.9}
	feedbackSampling    = sampling{maxTokens: 512, temperature: 0.3, topP: 0.8, jsonMode: true}
	testGradingSampling = sampling{maxTokens: 2048, temperature: 0.3, topP: 0.9}
	performanceSampling = sampling{maxTokens: 1024, temperature: 0.7, topP: 0.9, jsonMode: true}
	rubricSampling      = sampling{maxTokens: 2048, temperature: 0.3, topP: 0.9, jsonMode: true}
)
