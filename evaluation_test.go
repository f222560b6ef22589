package imageloop

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Evaluation
	}{
		{
			name: "bare object",
			text: `{"score": 82, "feedback": "sharpen the spokes"}`,
			want: Evaluation{Score: 82, Feedback: "sharpen the spokes"},
		},
		{
			name: "json code fence",
			text: "```json\n{\"score\": 70.5, \"feedback\": \"warmer light\"}\n```",
			want: Evaluation{Score: 70.5, Feedback: "warmer light"},
		},
		{
			name: "prose around the object",
			text: "Here is my review:\n{\"score\": 40, \"feedback\": \"  wrong color  \"}\nHope that helps!",
			want: Evaluation{Score: 40, Feedback: "wrong color"},
		},
		{
			name: "nested objects",
			text: `{"score": 91, "feedback": "fine", "details": {"composition": 9}}`,
			want: Evaluation{Score: 91, Feedback: "fine"},
		},
		{
			name: "first valid object wins",
			text: `{"note": "draft"} then {"score": 55, "feedback": "first"} and {"score": 99, "feedback": "second"}`,
			want: Evaluation{Score: 55, Feedback: "first"},
		},
		{
			name: "braces inside strings",
			text: `{"score": 60, "feedback": "remove the {watermark}"}`,
			want: Evaluation{Score: 60, Feedback: "remove the {watermark}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvaluation(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvaluation_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantReason string
	}{
		{name: "empty", text: "", wantReason: "no JSON object found"},
		{name: "plain prose", text: "The image looks great.", wantReason: "no JSON object found"},
		{name: "truncated", text: `{"score": 80, "feedback": "cut o`, wantReason: "no JSON object found"},
		{name: "missing feedback", text: `{"score": 80}`, wantReason: "feedback"},
		{name: "score out of range", text: `{"score": 140, "feedback": "x"}`, wantReason: "score"},
		{name: "score as string", text: `{"score": "80", "feedback": "x"}`, wantReason: "score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvaluation(tt.text)
			require.ErrorIs(t, err, ErrMalformedEvaluation)
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}

func TestParseEvaluation_StopsAtFirstValidObject(t *testing.T) {
	text := `{"score": 88, "feedback": "good"}` + strings.Repeat(`{"x": {"y": {"z": 1}}}`, 5000)

	got, err := ParseEvaluation(text)
	require.NoError(t, err)
	assert.Equal(t, Evaluation{Score: 88, Feedback: "good"}, got)
}

func TestEachJSONObject(t *testing.T) {
	text := "noise {\"a\": {\"b\": 1}} {broken {\"c\": 2}"

	var seen []string
	eachJSONObject(text, func(raw json.RawMessage) bool {
		seen = append(seen, string(raw))
		return true
	})
	assert.Equal(t, []string{`{"a": {"b": 1}}`, `{"b": 1}`, `{"c": 2}`}, seen)

	calls := 0
	eachJSONObject(text, func(json.RawMessage) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)

	eachJSONObject("", func(json.RawMessage) bool {
		t.Fatal("no objects expected")
		return false
	})
}

func TestSentinelEvaluation(t *testing.T) {
	eval := SentinelEvaluation(ErrMalformedEvaluation)
	assert.Equal(t, 0.0, eval.Score)
	assert.Equal(t, ErrMalformedEvaluation.Error(), eval.Feedback)

	assert.Equal(t, "evaluation failed", SentinelEvaluation(nil).Feedback)
}
