package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/treatydesk/internal/completion"
	"github.com/valpere/treatydesk/internal/kanji"
)

// Section headings of the consolidated report.
const (
	AssessmentHeading = "## 総合評価"
	FindingsHeading   = "## 最終指摘事項"
	MechanicalHeading = "## 機械的チェック"
)

// MechanicalSource is how findings of the kanji check are cited.
const MechanicalSource = "機械的チェック"

const consolidatorSystemPrompt = "あなたは、複数の校閲結果を統合して最終的な校閲報告書を作成する編集責任者です。指示された優先順位の規則に厳密に従ってください。"

// ErrOrderMismatch is returned when the findings are not in the order of the
// rule sets they are consolidated under.
var ErrOrderMismatch = errors.New("findings do not match rule-set order")

// MechanicalReport is the result of the non-model kanji check.
type MechanicalReport struct {
	Chars []rune
}

func (m MechanicalReport) Clean() bool { return len(m.Chars) == 0 }

func (m MechanicalReport) Text() string { return kanji.Report(m.Chars) }

// Consolidator merges per-rule-set findings into one report.
type Consolidator struct {
	llm completion.Completer
}

func NewConsolidator(llm completion.Completer) *Consolidator {
	return &Consolidator{llm: llm}
}

// Consolidate merges findings, which must line up one-to-one with order. A
// conflict about the same passage is resolved in favour of the finding that
// comes later in order; mechanical findings always stand.
//
// When every review is clean and the mechanical check found nothing, the
// no-findings report is returned without calling the model. Any mechanical
// character the model leaves out is appended to its report.
func (c *Consolidator) Consolidate(ctx context.Context, document string, mechanical MechanicalReport, findings []Findings, order []RuleSet) (string, error) {
	if err := checkOrder(findings, order); err != nil {
		return "", err
	}

	if mechanical.Clean() && allClean(findings) {
		return NoFindingsReport(), nil
	}

	out, err := c.llm.Complete(ctx, completion.Request{
		System:      consolidatorSystemPrompt,
		User:        buildConsolidationPrompt(document, mechanical, findings),
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to consolidate findings: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		out = AssessmentHeading + "\n\n" + FindingsHeading
	}
	return ensureMechanical(out, mechanical), nil
}

func checkOrder(findings []Findings, order []RuleSet) error {
	if len(findings) != len(order) {
		return fmt.Errorf("%w: %d findings for %d rule sets", ErrOrderMismatch, len(findings), len(order))
	}
	for i := range order {
		if findings[i].RuleSet.Name != order[i].Name {
			return fmt.Errorf("%w: position %d has %q, want %q", ErrOrderMismatch, i+1, findings[i].RuleSet.Name, order[i].Name)
		}
	}
	return nil
}

func allClean(findings []Findings) bool {
	for _, f := range findings {
		if !f.Clean() {
			return false
		}
	}
	return true
}

// NoFindingsReport is the consolidated report of a document with nothing to fix.
func NoFindingsReport() string {
	return fmt.Sprintf("%s\n%s\n\n%s\n%s", AssessmentHeading, NoFindings, FindingsHeading, NoFindings)
}

// ensureMechanical appends every mechanical character the model dropped. A
// character counts as reported only on a line that quotes it as 「c」 and
// cites MechanicalSource; quoting it under another rule set does not.
func ensureMechanical(report string, mechanical MechanicalReport) string {
	lines := strings.Split(report, "\n")
	var missing []rune
	for _, r := range mechanical.Chars {
		if !citesMechanical(lines, r) {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return report
	}

	var b strings.Builder
	b.WriteString(report)
	b.WriteString("\n\n")
	b.WriteString(MechanicalHeading)
	b.WriteString("\n")
	for _, r := range missing {
		fmt.Fprintf(&b, "- 「%c」は常用漢字表にない漢字です。（根拠: %s）\n", r, MechanicalSource)
	}
	return strings.TrimRight(b.String(), "\n")
}

func citesMechanical(lines []string, r rune) bool {
	quoted := "「" + string(r) + "」"
	for _, l := range lines {
		if strings.Contains(l, quoted) && strings.Contains(l, MechanicalSource) {
			return true
		}
	}
	return false
}

func buildConsolidationPrompt(document string, mechanical MechanicalReport, findings []Findings) string {
	var b strings.Builder

	b.WriteString("下記は、同じ文書に対する機械的チェックの結果と、複数の校閲者による独立した校閲結果です。これらを統合し、最終的な校閲報告書を作成してください。\n\n")

	b.WriteString("## 統合の規則\n")
	b.WriteString("1. **優先順位**: 同じ箇所について校閲結果が矛盾する場合は、下記の並びで**後に**現れる校閲結果を採用してください。position の値が大きいほど優先されます。\n")
	fmt.Fprintf(&b, "2. **機械的チェック**: <mechanical_check>の指摘は、並び順にかかわらず常に有効です。必ず最終指摘事項に含め、根拠は「%s」としてください。\n", MechanicalSource)
	b.WriteString("3. **重複の排除**: 同じ箇所への同じ趣旨の指摘は一つにまとめてください。\n")
	fmt.Fprintf(&b, "4. `%s` と書かれた校閲結果は、指摘がないことを意味します。\n\n", NoFindings)

	b.WriteString("## 出力形式\n")
	b.WriteString("次の二つの節だけをこの順で出力してください。\n")
	fmt.Fprintf(&b, "%s\n文書全体の評価を簡潔に記述します。\n", AssessmentHeading)
	fmt.Fprintf(&b, "%s\n指摘ごとに、該当箇所、修正案、採用した根拠（校閲規則名または「%s」）を記載します。指摘が一つもない場合は `%s` とだけ記載します。\n\n", FindingsHeading, MechanicalSource, NoFindings)

	b.WriteString("---\n")
	fmt.Fprintf(&b, "<document>\n%s\n</document>\n\n", strings.TrimSpace(document))
	fmt.Fprintf(&b, "<mechanical_check>\n%s\n</mechanical_check>\n\n", mechanical.Text())
	for i, f := range findings {
		fmt.Fprintf(&b, "<review position=\"%d\" ruleset=\"%s\">\n%s\n</review>\n\n", i+1, f.RuleSet.Name, strings.TrimSpace(f.Text))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
