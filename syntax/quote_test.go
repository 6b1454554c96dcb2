package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestQuote(t *testing.T) {
	t.Parallel()
	tests := [...]struct {
		str  string
		want any
	}{
		{"", `''`},
		{"foo", `'foo'`},
		{"foo bar", `'foo bar'`},
		{"it's", `'it'\''s'`},
		{"\a", `$'\a'`},
		{"\b", `$'\b'`},
		{"\f", `$'\f'`},
		{"\n", `$'\n'`},
		{"\r", `$'\r'`},
		{"\t", `$'\t'`},
		{"\v", `$'\v'`},
		{"null\x00", &QuoteError{4, quoteErrNull}},
	}

	for _, test := range tests {
		test := test
		t.Run("", func(t *testing.T) {
			t.Parallel()

			got, gotErr := Quote(test.str)
			switch want := test.want.(type) {
			case string:
				qt.Assert(t, got, qt.Equals, want)
				qt.Assert(t, gotErr, qt.IsNil)
			case *QuoteError:
				qt.Assert(t, got, qt.Equals, "")
				qt.Assert(t, gotErr, qt.DeepEquals, want)
			default:
				t.Fatalf("unexpected type: %T", want)
			}
		})
	}
}
