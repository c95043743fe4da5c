package model

import "time"

// DigestRun is the archived outcome of one pipeline run.
type DigestRun struct {
	ID         string            `json:"id"`
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	SolStart   float64           `json:"sol_start"`
	SolEnd     float64           `json:"sol_end"`
	Summaries  map[string]string `json:"summaries"`
	Thread     string            `json:"thread"`
	ThreadPath string            `json:"thread_path"`
	Charts     []string          `json:"charts"`
	Delivered  bool              `json:"delivered"`
	CreatedAt  time.Time         `json:"created_at"`
}
