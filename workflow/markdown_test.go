package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownNormalizer(t *testing.T) {
	n := newMarkdownNormalizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown untouched", "## Learning\n\nAct *early*.", "## Learning\n\nAct *early*."},
		{"blank lines collapsed", "## A\n\n\n\n\nText  \n", "## A\n\nText"},
		{"crlf normalised", "line one\r\nline two", "line one\nline two"},
		{"html converted", "<p>Hello <em>there</em></p>", "Hello _there_"},
		{"html list", "<ul><li>one</li><li>two</li></ul>", "- one\n- two"},
		{"angle bracket text kept", "< 5 minutes wait", "< 5 minutes wait"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}
