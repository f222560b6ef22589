package imageloop

// StopReason indicates why a loop run ended.
type StopReason string

const (
	// StopReasonThreshold means a round scored at or above the threshold.
	StopReasonThreshold StopReason = "threshold"
	// StopReasonExhausted means the iteration cap was reached.
	StopReasonExhausted StopReason = "exhausted"
	// StopReasonFatal means the first round produced neither an artifact nor a continuation.
	StopReasonFatal StopReason = "fatal"
	// StopReasonCancelled means the context ended before the next round started.
	StopReasonCancelled StopReason = "cancelled"
)

// NoScore is the final score of a run in which no round produced a usable artifact.
const NoScore float64 = -1

// IterationRecord is the outcome of one round. ResultImage is nil exactly when
// Feedback and Score are nil.
type IterationRecord struct {
	Round       int      `json:"round" yaml:"round"`
	QueryPrompt string   `json:"query_prompt" yaml:"query_prompt"`
	ResultImage *string  `json:"result_image" yaml:"result_image"`
	Feedback    *string  `json:"feedback" yaml:"feedback"`
	Score       *float64 `json:"score" yaml:"score"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Degraded reports whether the round produced no artifact.
func (r IterationRecord) Degraded() bool {
	return r.ResultImage == nil
}

// LoopReport is the final snapshot of a loop run.
type LoopReport struct {
	BestImage  *string           `json:"best_image" yaml:"best_image"`
	FinalScore float64           `json:"final_score" yaml:"final_score"`
	History    []IterationRecord `json:"history" yaml:"history"`
	SessionID  string            `json:"session_id" yaml:"session_id"`
	StopReason StopReason        `json:"stop_reason" yaml:"stop_reason"`
}

// Succeeded reports whether any round produced a scored artifact.
func (r *LoopReport) Succeeded() bool {
	return r != nil && r.BestImage != nil
}

func degradedRecord(round int, prompt string, err error) IterationRecord {
	rec := IterationRecord{Round: round, QueryPrompt: prompt}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func completedRecord(round int, prompt, image string, eval Evaluation) IterationRecord {
	feedback := eval.Feedback
	score := eval.Score
	return IterationRecord{
		Round:       round,
		QueryPrompt: prompt,
		ResultImage: &image,
		Feedback:    &feedback,
		Score:       &score,
	}
}
