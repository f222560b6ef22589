package imageloop

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// EvaluationSchema is the JSON schema an evaluator response must satisfy.
const EvaluationSchema = `{
  "type": "object",
  "required": ["score", "feedback"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "feedback": {"type": "string"}
  }
}`

var (
	evaluationSchemaOnce sync.Once
	evaluationSchema     *gojsonschema.Schema
	evaluationSchemaErr  error
)

func compiledEvaluationSchema() (*gojsonschema.Schema, error) {
	evaluationSchemaOnce.Do(func() {
		evaluationSchema, evaluationSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(EvaluationSchema))
	})
	return evaluationSchema, evaluationSchemaErr
}

// ParseEvaluation extracts an Evaluation from model output. The text does not
// have to be bare JSON: code fences, prose around the object and nested objects
// are tolerated. The first well-formed JSON object that satisfies
// EvaluationSchema wins.
func ParseEvaluation(text string) (Evaluation, error) {
	schema, err := compiledEvaluationSchema()
	if err != nil {
		return Evaluation{}, fmt.Errorf("compile evaluation schema: %w", err)
	}

	var (
		eval       Evaluation
		found      bool
		lastReason string
	)
	eachJSONObject(text, func(raw json.RawMessage) bool {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			lastReason = err.Error()
			return true
		}
		if !result.Valid() {
			reasons := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				reasons = append(reasons, e.String())
			}
			lastReason = strings.Join(reasons, "; ")
			return true
		}
		if err := json.Unmarshal(raw, &eval); err != nil {
			lastReason = err.Error()
			return true
		}
		found = true
		return false
	})
	if found {
		eval.Feedback = strings.TrimSpace(eval.Feedback)
		return eval, nil
	}

	if lastReason == "" {
		lastReason = "no JSON object found"
	}
	return Evaluation{}, fmt.Errorf("%w: %s", ErrMalformedEvaluation, lastReason)
}

// eachJSONObject calls yield with each well-formed JSON object that starts at
// a '{' in text, in order of position, until yield returns false.
func eachJSONObject(text string, yield func(json.RawMessage) bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil && !yield(raw) {
			return
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			return
		}
		i += next + 1
	}
}
