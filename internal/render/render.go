// Package render turns translation results and review reports into Markdown,
// HTML or plain text.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/valpere/treatydesk/internal/review"
	"github.com/valpere/treatydesk/internal/translator"
)

// Format is an output format accepted by Document.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatHTML, FormatText:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported format %q (use md, html or text)", s)
}

// Document converts Markdown source into format f. HTML output is a complete
// page titled title.
func Document(md string, title string, f Format) string {
	switch f {
	case FormatHTML:
		return page(title, ToHTML([]byte(md)))
	case FormatText:
		return strings.TrimSpace(ToPlainText([]byte(md))) + "\n"
	}
	return md
}

func ToHTML(md []byte) string {
	opts := mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	}
	renderer := mdhtml.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse(md)
	return string(markdown.Render(doc, renderer))
}

func ToPlainText(md []byte) string {
	return html.UnescapeString(StripHTMLTags(ToHTML(md)))
}

func StripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(ch)
			}
		}
	}

	return result.String()
}

func page(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body)
}

// TranslationMarkdown reports one translation with its attempt log.
func TranslationMarkdown(source string, res translator.Result) string {
	var b strings.Builder

	b.WriteString("# 翻訳結果\n\n")
	b.WriteString("## 原文\n\n")
	fmt.Fprintf(&b, "%s\n\n", quote(source))
	b.WriteString("## 訳文\n\n")
	fmt.Fprintf(&b, "%s\n\n", res.Text)

	status := "閾値未達"
	if res.Accepted {
		status = "合格"
	}
	fmt.Fprintf(&b, "評価スコア: **%.2f**（%s）\n", res.Score, status)

	if len(res.Attempts) > 1 {
		b.WriteString("\n## 試行履歴\n\n")
		b.WriteString("| 試行 | スコア | 訳文 |\n|---|---|---|\n")
		for _, a := range res.Attempts {
			fmt.Fprintf(&b, "| %d | %.2f | %s |\n", a.Index, a.Score, tableCell(a.Text))
		}
	}
	return b.String()
}

// ReviewMarkdown renders the consolidated report followed by every per-rule
// findings report in the order they were applied.
func ReviewMarkdown(rep review.Report) string {
	var b strings.Builder

	b.WriteString("# 平仄確認報告書\n\n")
	b.WriteString(strings.TrimSpace(rep.Final))
	b.WriteString("\n\n---\n\n")

	b.WriteString("# 個別の校閲結果\n\n")
	b.WriteString("## 機械的チェック\n\n")
	b.WriteString(rep.Mechanical.Text())
	b.WriteString("\n")
	for i, f := range rep.Findings {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, f.RuleSet.Name)
		b.WriteString(strings.TrimSpace(f.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
