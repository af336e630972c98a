package workflow

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	htmlStartRe      = regexp.MustCompile(`^<(?:[a-zA-Z][a-zA-Z0-9]*)[\s>/]`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
)

// markdownNormalizer turns model output into clean markdown. Models asked for
// markdown occasionally answer in HTML.
type markdownNormalizer struct {
	converter *md.Converter
}

func newMarkdownNormalizer() *markdownNormalizer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &markdownNormalizer{converter: converter}
}

// Normalize converts HTML documents to markdown and tidies whitespace.
// Content that is already markdown is only tidied.
func (n *markdownNormalizer) Normalize(content string) string {
	content = strings.TrimSpace(content)
	if htmlStartRe.MatchString(content) {
		if converted, err := n.converter.ConvertString(content); err == nil {
			content = converted
		}
	}
	return cleanMarkdown(content)
}

// cleanMarkdown trims trailing spaces and collapses runs of blank lines.
func cleanMarkdown(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
