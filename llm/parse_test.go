package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	Response string   `json:"response"`
	Items    []string `json:"items"`
}

func requireResponse(r reply) error {
	if r.Response == "" {
		return errors.New("response field is empty")
	}
	return nil
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name string
		text string
		want reply
	}{
		{
			name: "bare object",
			text: `  {"response": "hello", "items": ["a"]}  `,
			want: reply{Response: "hello", Items: []string{"a"}},
		},
		{
			name: "fenced code block",
			text: "Here you go:\n```json\n{\"response\": \"fenced\", \"items\": []}\n```\nThanks",
			want: reply{Response: "fenced", Items: []string{}},
		},
		{
			name: "fence without language",
			text: "```\n{\"response\": \"plain fence\"}\n```",
			want: reply{Response: "plain fence"},
		},
		{
			name: "object surrounded by prose",
			text: `Sure! {"response": "inline {braces} in text", "items": ["x"]} Hope that helps.`,
			want: reply{Response: "inline {braces} in text", Items: []string{"x"}},
		},
		{
			name: "trailing commas",
			text: `{"response": "commas", "items": ["a", "b",],}`,
			want: reply{Response: "commas", Items: []string{"a", "b"}},
		},
		{
			name: "truncated output",
			text: `{"response": "cut off", "items": ["a", "b"`,
			want: reply{Response: "cut off", Items: []string{"a", "b"}},
		},
		{
			name: "unquoted keys",
			text: `{response: "bare keys", items: []}`,
			want: reply{Response: "bare keys", Items: []string{}},
		},
		{
			name: "escaped payload",
			text: `{\"response\": \"escaped\"}`,
			want: reply{Response: "escaped"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructured(tt.text, requireResponse)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStructuredPicksLargestValidObject(t *testing.T) {
	text := `first {"response": ""} then {"response": "second", "items": ["nested {x}"]}`
	got, err := ParseStructured(text, requireResponse)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Response)
}

func TestParseStructuredFailures(t *testing.T) {
	_, err := ParseStructured[reply]("no json here at all", requireResponse)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseStructured(`{"response": ""}`, requireResponse)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractJSON(t *testing.T) {
	got, ok := ExtractJSON("prefix {\"a\": {\"b\": 1}} suffix")
	require.True(t, ok)
	assert.JSONEq(t, `{"a": {"b": 1}}`, got)

	_, ok = ExtractJSON("nothing")
	assert.False(t, ok)
}

func TestBalancedObject(t *testing.T) {
	text := `x{"a": "}", "b": {"c": "\"{"}}y`
	got, ok := balancedObject(text, 1)
	require.True(t, ok)
	assert.Equal(t, `{"a": "}", "b": {"c": "\"{"}}`, got)

	_, ok = balancedObject(`{"open": {`, 0)
	assert.False(t, ok)
}

func TestRepairMalformedJSON(t *testing.T) {
	assert.Equal(t, `{"a": [1, 2]}`, repairMalformedJSON(`{"a": [1, 2,`))
	assert.Equal(t, `{"a": "unterminated"}`, repairMalformedJSON(`{"a": "unterminated`))
	assert.Equal(t, `{"key": 1}`, repairMalformedJSON(`{key: 1}`))
}

func TestExtractStringField(t *testing.T) {
	text := `{"title": "Botox \"Consent\"", "content": "<p>line</p>\n`
	title, ok := extractStringField(text, "title")
	require.True(t, ok)
	assert.Equal(t, `Botox "Consent"`, title)

	_, ok = extractStringField(text, "content")
	assert.False(t, ok)
}
