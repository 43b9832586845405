package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no comments", "a: 1\nb: 2", "a: 1\nb: 2"},
		{"leading comment", "# c\na: 1", "a: 1"},
		{"indented comment", "a: 1\n   # c\nb: 2", "a: 1\nb: 2"},
		{"blank lines kept", "a: 1\n\n# c\n\nb: 2\n", "a: 1\n\n\nb: 2\n"},
		{"hash inside value kept", "url: http://x/#frag", "url: http://x/#frag"},
		{"only comments", "# a\n# b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterComments(tt.input))
		})
	}
}

func TestFilterComments_Idempotent(t *testing.T) {
	docs := []string{
		"",
		"# c",
		"a: 1\n# c\n\n  #d\nb: 2\n",
		"testcase: x\n---\n# y\n---\n",
	}
	for _, doc := range docs {
		once := FilterComments(doc)
		assert.Equal(t, once, FilterComments(once), "doc %q", doc)
	}
}

func TestSplitBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "a: 1\nb: 2", []string{"a: 1\nb: 2"}},
		{"two", "a: 1\n---\nb: 2", []string{"a: 1", "b: 2"}},
		{"outer separators", "---\na: 1\n---\n", []string{"a: 1"}},
		{"empty segments dropped", "a: 1\n---\n\n  \n---\nb: 2", []string{"a: 1", "b: 2"}},
		{"separator with spaces", "a: 1\n  ---  \nb: 2", []string{"a: 1", "b: 2"}},
		{"dashes inside value", "description: a---b", []string{"description: a---b"}},
		{"longer rule is not a separator", "a: 1\n----\nb: 2", []string{"a: 1\n----\nb: 2"}},
		{"segments trimmed", "\n\n  a: 1\n\n---\nb: 2\n\n", []string{"a: 1", "b: 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBlocks(tt.input))
		})
	}
}
