package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/treatydesk/internal/completion"
)

// NoFindings is the exact reply a reviewer gives when the document has no
// violations. The consolidated report uses it for the same purpose.
const NoFindings = "指摘事項なし"

const reviewerSystemPrompt = "あなたは、条約の日本語訳を審査する厳格な校閲者です。与えられた参照規則のみを根拠として判断し、指示された形式で出力してください。"

// Findings is the opaque report of one review.
type Findings struct {
	RuleSet RuleSet
	Text    string
}

// Clean reports whether the review found nothing.
func (f Findings) Clean() bool {
	return strings.TrimSpace(f.Text) == NoFindings
}

// DocumentLoader returns the full text of a reference document.
type DocumentLoader interface {
	Load(name string) (string, error)
}

// Reviewer checks a document against one rule set at a time.
type Reviewer struct {
	llm  completion.Completer
	docs DocumentLoader
}

func NewReviewer(llm completion.Completer, docs DocumentLoader) *Reviewer {
	return &Reviewer{llm: llm, docs: docs}
}

// Review returns the model's findings verbatim. A rule document that cannot
// be loaded stops the review before the model is called.
func (r *Reviewer) Review(ctx context.Context, document string, rs RuleSet) (Findings, error) {
	rules, err := r.docs.Load(rs.File)
	if err != nil {
		return Findings{}, fmt.Errorf("failed to load rules for %s: %w", rs.Name, err)
	}

	out, err := r.llm.Complete(ctx, completion.Request{
		System:      reviewerSystemPrompt,
		User:        buildReviewPrompt(document, rs, rules),
		Temperature: 0,
	})
	if err != nil {
		return Findings{}, fmt.Errorf("review %s failed: %w", rs.Name, err)
	}
	return Findings{RuleSet: rs, Text: out}, nil
}

func buildReviewPrompt(document string, rs RuleSet, rules string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "あなたは%sです。\n", rs.Role)
	b.WriteString("下記の<rules>に示す参照規則**のみ**を判断の根拠とし、<document>の日本語文書を審査してください。参照規則に書かれていない観点（一般的な文章の好み、他の規則など）で指摘してはいけません。\n\n")

	b.WriteString("## 出力形式\n")
	b.WriteString("違反を見つけた場合は、違反ごとに次の項目を列挙してください。\n")
	b.WriteString("- 位置: 段落・文の位置\n")
	b.WriteString("- 該当箇所: 「」で囲んだ原文のままの引用\n")
	b.WriteString("- 説明: 何が規則に反しているか\n")
	b.WriteString("- 根拠: 参照規則の該当部分\n")
	b.WriteString("- 修正案: 修正後の表記\n\n")
	fmt.Fprintf(&b, "違反が一つもない場合は、`%s` とだけ出力してください。\n\n", NoFindings)

	fmt.Fprintf(&b, "<rules name=\"%s\">\n%s\n</rules>\n\n", rs.Name, strings.TrimSpace(rules))
	fmt.Fprintf(&b, "<document>\n%s\n</document>\n", strings.TrimSpace(document))

	return b.String()
}
