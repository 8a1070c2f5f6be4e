package aggregators

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "three sentences",
			in:   "Hello there. How are you? Great!",
			want: []string{"Hello there.", "How are you?", "Great!"},
		},
		{
			name: "trailing terminator without whitespace",
			in:   "One sentence only.",
			want: []string{"One sentence only."},
		},
		{
			name: "no terminator",
			in:   "no punctuation at all",
			want: []string{"no punctuation at all"},
		},
		{
			name: "terminator mid-word is not a boundary",
			in:   "Version 1.5 is out. Try it!",
			want: []string{"Version 1.5 is out.", "Try it!"},
		},
		{
			name: "newline after terminator",
			in:   "First.\nSecond.",
			want: []string{"First.", "Second."},
		},
		{
			name: "whitespace only",
			in:   "   \n  ",
			want: nil,
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SplitSentences(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitSentencesCollapsesRepeatedWhitespace(t *testing.T) {
	got := SplitSentences("First.   Second?  Third.")
	want := []string{"First.", "Second?", "Third."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
