package domain

import "time"

// Analysis is one recorded meal analysis. The photo itself is never stored.
type Analysis struct {
	ID           int64
	AnalysisID   string
	Model        string
	Temperature  float64
	Instruction  string
	Outcome      string
	ResultText   string
	ErrorMessage string
	DurationMS   int64
	CreatedAt    time.Time
}
