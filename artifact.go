package imageloop

// Artifact is a generated image. Ref is where it was saved (path or URL); Data
// holds the bytes when the producer still has them in memory.
type Artifact struct {
	Ref      string
	MIMEType string
	Data     []byte
}

// GenerateRequest is one call to a Generator.
type GenerateRequest struct {
	Prompt string

	// References are image paths or URLs passed through unchanged.
	References []string

	// Continuation resumes a previous generation context when non-empty.
	Continuation string

	Options *GenerateOptions
}

// Generation is the outcome of a Generator call.
type Generation struct {
	Artifact     *Artifact
	Continuation string

	// Text is any accompanying text the model produced.
	Text string
}

// Evaluation is a score in [0,100] and feedback on how to improve.
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// SentinelEvaluation is the placeholder recorded when an evaluation could not be obtained.
func SentinelEvaluation(err error) Evaluation {
	feedback := "evaluation failed"
	if err != nil {
		feedback = err.Error()
	}
	return Evaluation{Score: 0, Feedback: feedback}
}

// Message is one entry in a refinement session.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Session message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall describes a tool invocation reported by a SessionAdvancer.
type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string
}
