package llm

import "context"

// Composer writes a social media thread from formatted metric summaries.
type Composer interface {
	WriteThread(ctx context.Context, summaries map[string]string, startDate, endDate string) (string, error)
}
