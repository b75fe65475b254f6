package pipeline

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/nugget/airspace-copilot/internal/prompts"
)

var sectionNames = []string{
	prompts.SectionMetrics,
	prompts.SectionAnomalies,
	prompts.SectionRecommendations,
	prompts.SectionHandoff,
}

// pseudoHeading matches a paragraph line used as a section label, such
// as "**HANDOFF:**", "HANDOFF:" or a bare "Handoff". Prose that merely
// starts with the word (no colon, more text) does not match.
var pseudoHeading = regexp.MustCompile(`(?i)^[*_\s]*(` + strings.Join(sectionNames, "|") + `)[*_\s]*(?::[*_\s]*|$)`)

// paragraphLevel ranks label paragraphs below every real heading.
const paragraphLevel = 7

// ExtractHandoff returns the body of the HANDOFF section of an ops
// report. A section opened by a heading runs to the next heading of the
// same or higher rank. A section opened by a label paragraph such as
// "**HANDOFF:**" runs to the next heading or section label. The
// second return is false, and the full report is returned, when no
// non-empty HANDOFF section exists.
func ExtractHandoff(report string) (string, bool) {
	src := []byte(report)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	start, end, level := -1, len(src), 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		name, lvl, bodyStart, lineStart, ok := sectionMarker(n, src)
		if !ok {
			continue
		}
		if start >= 0 {
			// Labels rank below headings, so a label line inside a
			// heading-opened section is body text.
			if lvl <= level {
				end = lineStart
				break
			}
			continue
		}
		if name == prompts.SectionHandoff {
			start, level = bodyStart, lvl
		}
	}
	if start < 0 || start > end {
		return strings.TrimSpace(report), false
	}

	body := strings.TrimSpace(skipSetextUnderline(string(src[start:end])))
	if body == "" {
		return strings.TrimSpace(report), false
	}
	return body, true
}

// sectionMarker reports whether n opens a section. bodyStart is the
// offset where the section content begins and lineStart the offset of
// the marker's first line.
func sectionMarker(n ast.Node, src []byte) (name string, level, bodyStart, lineStart int, ok bool) {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return "", 0, 0, 0, false
	}
	first := lines.At(0)
	lineStart = startOfLine(src, first.Start)

	switch node := n.(type) {
	case *ast.Heading:
		title := normalizeTitle(string(node.Text(src)))
		last := lines.At(lines.Len() - 1)
		return title, node.Level, endOfLine(src, last.Stop), lineStart, true

	case *ast.Paragraph:
		line := strings.TrimRight(string(src[first.Start:first.Stop]), "\r\n")
		m := pseudoHeading.FindStringSubmatchIndex(line)
		if m == nil {
			return "", 0, 0, 0, false
		}
		title := strings.ToUpper(line[m[2]:m[3]])
		return title, paragraphLevel, first.Start + m[1], lineStart, true
	}
	return "", 0, 0, 0, false
}

var headingNumber = regexp.MustCompile(`^\d+[.)]?\s*`)

// normalizeTitle upper-cases a heading and maps titles such as
// "3. Recommendations" or "Handoff Note" onto their section name.
func normalizeTitle(title string) string {
	t := strings.ToUpper(strings.Trim(title, " \t:*_"))
	t = headingNumber.ReplaceAllString(t, "")
	for _, s := range sectionNames {
		rest, ok := strings.CutPrefix(t, s)
		if ok && (rest == "" || !isLetter(rest[0])) {
			return s
		}
	}
	return t
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

func startOfLine(src []byte, pos int) int {
	if i := bytes.LastIndexByte(src[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func endOfLine(src []byte, pos int) int {
	if pos > 0 && src[pos-1] == '\n' {
		return pos
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

// skipSetextUnderline drops a leading "====" or "----" line left behind
// when the heading used setext style.
func skipSetextUnderline(s string) string {
	line, rest, found := strings.Cut(s, "\n")
	trimmed := strings.TrimSpace(line)
	if trimmed != "" && strings.Trim(trimmed, "=-") == "" {
		if found {
			return rest
		}
		return ""
	}
	return s
}

// RenderHTML converts a markdown report to HTML.
func RenderHTML(report string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(report), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
