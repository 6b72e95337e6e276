package llm

import "context"

// purposeKey carries the name of the endpoint a model call serves, such
// as "auto-grading". The event log groups usage by it.
type purposeKey struct{}

// WithPurpose tags ctx with the endpoint name recorded for its model calls.
// An empty name leaves ctx untouched.
func WithPurpose(ctx context.Context, endpoint string) context.Context {
	if endpoint == "" {
		return ctx
	}
	return context.WithValue(ctx, purposeKey{}, endpoint)
}

// PurposeFrom returns the endpoint name set by WithPurpose, or "unknown"
// for calls made outside a request, such as from the llm command.
func PurposeFrom(ctx context.Context) string {
	if endpoint, ok := ctx.Value(purposeKey{}).(string); ok {
		return endpoint
	}
	return "unknown"
}
