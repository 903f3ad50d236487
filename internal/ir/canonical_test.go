package ir

import (
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input IRValue
		want  string
	}{
		{"string", IRString("counter.kt"), `"counter.kt"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array", IRArray{IRInt(1), IRString("a"), IRBool(true)}, `[1,"a",true]`},
		{
			"unit payload",
			IRObject{"source": IRString("package demo\n"), "name": IRString("counter.kt"), "ir": IRString("1")},
			`{"ir":"1","name":"counter.kt","source":"package demo\n"}`,
		},
		{
			"nested keys sorted",
			IRObject{"z": IRObject{"b": IRInt(2), "a": IRInt(1)}, "a": IRArray{IRObject{"y": IRInt(0), "x": IRInt(0)}}},
			`{"a":[{"x":0,"y":0}],"z":{"a":1,"b":2}}`,
		},
		{"utf16 key order", IRObject{"\uFB01": IRInt(1), "\U0001F600": IRInt(2)}, "{\"\U0001F600\":2,\"\uFB01\":1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no html escape", "<get-a> & <set-a>", `"<get-a> & <set-a>"`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"line separators stay literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"literal backslash-u2028 text", `escape \u2028`, `"escape \\u2028"`},
		{"literal and actual", `lit \u2029 act ` + "\u2029", `"lit \\u2029 act ` + "\u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.NotContains(t, string(got), `\u003c`)
			assert.NotContains(t, string(got), `\u0026`)
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	a, err := MarshalCanonical(IRObject{composed: IRString(composed)})
	require.NoError(t, err)
	b, err := MarshalCanonical(IRObject{decomposed: IRString(decomposed)})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "keys and values are NFC normalized")
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	tests := []struct {
		name    string
		input   IRValue
		wantErr string
	}{
		{"nil", nil, "null is forbidden"},
		{"IRNull", IRNull{}, "null is forbidden"},
		{"inside", IRObject{"a": IRArray{IRInt(1), IRNull{}}}, `value for key "a": array[1]: null is forbidden`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// FuzzMarshalCanonicalString checks that every string encodes to valid JSON
// that decodes back to its NFC form.
func FuzzMarshalCanonicalString(f *testing.F) {
	f.Add("hello")
	f.Add("<a & b>")
	f.Add("line sep \u2028")
	f.Add(`literal \u2028`)
	f.Add("cafe\u0301")

	f.Fuzz(func(t *testing.T, s string) {
		if !utf8.ValidString(s) {
			t.Skip()
		}
		out, err := MarshalCanonical(IRString(s))
		require.NoError(t, err)

		var decoded string
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, norm.NFC.String(s), decoded)
	})
}
