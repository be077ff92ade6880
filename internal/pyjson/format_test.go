package pyjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty object", input: `{}`, expected: `{}`},
		{name: "empty array", input: ` [ ] `, expected: `[]`},
		{name: "single key", input: `{"x":1}`, expected: `{"x": 1}`},
		{name: "key order kept", input: `{"b":1,"a":2}`, expected: `{"b": 1, "a": 2}`},
		{
			name:     "nested values",
			input:    `{"obs_mode":"state","sim":{"freq":[100, 20],"gpu":false,"extra":null}}`,
			expected: `{"obs_mode": "state", "sim": {"freq": [100, 20], "gpu": false, "extra": null}}`,
		},
		{name: "number literal kept", input: `{"x":1.50,"y":-2e3}`, expected: `{"x": 1.50, "y": -2e3}`},
		{name: "escapes", input: `"a\"b\\c\nd\te"`, expected: `"a\"b\\c\nd\te"`},
		{name: "non ascii", input: `"café é"`, expected: `"café é"`},
		{name: "astral plane", input: `"😀"`, expected: `"😀"`},
		{name: "html characters not escaped", input: `"<a&b>"`, expected: `"<a&b>"`},
		{name: "control character", input: `"\u0001"`, expected: `"\u0001"`},
		{name: "scalar", input: `42`, expected: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormat_Invalid(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":}`, `{} {}`, `[1,]`} {
		_, err := Format([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestStr(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"pd_joint_delta_pos"`, "pd_joint_delta_pos"},
		{`true`, "True"},
		{`false`, "False"},
		{`null`, "None"},
		{`12`, "12"},
		{`{"a":"b"}`, `{"a": "b"}`},
		{`[1,2]`, `[1, 2]`},
	}

	for _, tt := range tests {
		got, err := Str([]byte(tt.input))
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got, "input %q", tt.input)
	}
}
