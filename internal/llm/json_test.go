package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", "Here you go:\n{\"a\": {\"b\": 2}}\nThanks!", `{"a": {"b": 2}}`},
		{"whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeObject(t *testing.T) {
	out, err := DecodeObject("```json\n{\"strategy\": \"diversified\", \"focus\": [\"a\", \"b\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "diversified", out["strategy"])
	assert.Equal(t, []any{"a", "b"}, out["focus"])

	_, err = DecodeObject("")
	assert.Error(t, err)

	_, err = DecodeObject("null")
	assert.Error(t, err)

	_, err = DecodeObject(`{"strategy": }`)
	assert.Error(t, err)
}

func TestFields(t *testing.T) {
	m := map[string]any{
		"name":   "balanced_funds",
		"blank":  "  ",
		"score":  0.8,
		"count":  3,
		"nil":    nil,
		"list":   []any{"x", " ", "y"},
		"mixed":  []any{"x", 2.0},
		"number": "12",
	}

	s, err := StringField(m, "name", true)
	require.NoError(t, err)
	assert.Equal(t, "balanced_funds", s)

	_, err = StringField(m, "blank", true)
	assert.Error(t, err)
	_, err = StringField(m, "missing", true)
	assert.Error(t, err)
	s, err = StringField(m, "missing", false)
	require.NoError(t, err)
	assert.Empty(t, s)
	_, err = StringField(m, "score", false)
	assert.Error(t, err)

	f, err := Float64Field(m, "score", true)
	require.NoError(t, err)
	assert.Equal(t, 0.8, f)
	f, err = Float64Field(m, "count", true)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)
	_, err = Float64Field(m, "number", true)
	assert.Error(t, err)

	opt, err := OptionalFloat64Field(m, "nil")
	require.NoError(t, err)
	assert.Nil(t, opt)
	opt, err = OptionalFloat64Field(m, "score")
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, 0.8, *opt)

	list, err := StringsField(m, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)
	_, err = StringsField(m, "mixed")
	assert.Error(t, err)
	list, err = StringsField(m, "missing")
	require.NoError(t, err)
	assert.Nil(t, list)
}
