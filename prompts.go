package imageloop

import "strings"

// DefaultPrompterName and DefaultPrompterInstructions describe the prompter half
// of the loop when no session config has been saved yet.
const (
	DefaultPrompterName         = "Image-Gen Loop Prompter"
	DefaultPrompterInstructions = "You are the prompter half of a two-agent image-generation loop. " +
		"At each turn you refine the prompt so the generator can better satisfy " +
		"the evaluator's feedback. Preserve subject and style constraints."
)

// TransparentBackgroundHint is appended to prompts for providers that cannot
// produce an alpha channel natively.
const TransparentBackgroundHint = "Render the subject on a plain, solid white background with no scenery, so it can be cut out cleanly."

// BuildEvaluationInstruction returns the instruction given to evaluator models.
// It asks for a single JSON object matching EvaluationSchema.
func BuildEvaluationInstruction() string {
	var b strings.Builder
	b.WriteString("You are an expert image QA reviewer. Given a generated image and the prompt that produced it, ")
	b.WriteString("judge how faithfully the image satisfies the prompt and return ONLY a single valid JSON object:\n\n")
	b.WriteString("{\n  \"score\": number,\n  \"feedback\": string\n}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- score is 0-100; 100 means the image fully satisfies the prompt with no visible artifacts.\n")
	b.WriteString("- feedback lists the concrete changes that would raise the score, most important first.\n")
	b.WriteString("- No markdown code fences and no text outside the JSON object.\n")
	return b.String()
}

// BuildEvaluationPrompt wraps the generation prompt for the evaluator.
func BuildEvaluationPrompt(prompt string) string {
	p := strings.TrimSpace(prompt)
	if p == "" {
		p = "(no prompt provided; judge against the reference intent)"
	}
	return "Prompt that produced this image:\n\n" + p
}

// BuildRefinementPrompt creates the user message for a prompter: the previous
// prompt and the evaluator's feedback on its result.
func BuildRefinementPrompt(previousPrompt, feedback string) string {
	prev := strings.TrimSpace(previousPrompt)
	fb := strings.TrimSpace(feedback)
	var b strings.Builder
	b.WriteString("The previous image was generated with this prompt:\n\n")
	if prev != "" {
		b.WriteString(prev)
	} else {
		b.WriteString("(no prompt provided)")
	}
	b.WriteString("\n\nThe evaluator gave this feedback on the result:\n\n")
	if fb != "" {
		b.WriteString(fb)
	} else {
		b.WriteString("(no feedback provided)")
	}
	b.WriteString("\n\nWrite an improved prompt that keeps the subject and style of the previous prompt and addresses the feedback. Reply with the prompt text only.")
	return b.String()
}

// CleanRefinedPrompt strips wrapping a chat model sometimes adds around a bare prompt.
func CleanRefinedPrompt(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
