package translator

import (
	"fmt"
	"strings"
)

const translatorSystemPrompt = "あなたは、外務省の優秀な翻訳官です。条約のような、法的拘束力を持つ厳格な文書の翻訳を専門としています。与えられた指示に一字一句正確に従ってください。"

const scorerSystemPrompt = "あなたは、翻訳品質を厳格に評価する専門家です。与えられた指示に従い、評価スコアのみを出力してください。"

// answerStop ends generation at the close of the open <answer> element.
const answerStop = "</answer>"

// Worked example 1: nested modifiers and formal-register year numerals.
const (
	syntaxExampleEN = "RECOGNISING the previous activities carried out by the GIF under the Framework Agreement for International Collaboration on Research and Development of Generation IV Nuclear Energy Systems, done at Washington on 28 February 2005, as extended by the Agreement to Extend the Framework Agreement, which entered into force on 26 February 2015 (hereinafter referred to as the ‘2005 GIF Framework Agreement’), which expires on 28 February 2025..."
	syntaxExampleJP = "二千二十五年二月二十八日に期間満了する、二千五年二月二十八日にワシントンで作成された第4世代原子力システムの研究開発に関する国際協力のための枠組み協定であって、二千十五年二月二十六日に発効した同協定を延長する協定により延長されたもの（以下「二千五年GIF枠組み協定」という。）の下でGIFが実施したこれまでの活動...を認識し、"
	syntaxTaskEN    = "RECOGNISING the Framework Agreement, done at Washington on 28 February 2005, which expires on 28 February 2025"
	syntaxAnswerJP  = "二千二十五年二月二十八日に期間満了する、二千五年二月二十八日にワシントンで作成された枠組み協定を認識し、"
)

// Worked example 2: dates and the dual rendering of amounts.
const (
	formatExampleEN = `The total amount of the Debts will be five hundred and thirty-eight million nine hundred and seven thousand one hundred and forty-two yen (\7,933,321,265) on December 8, 2025.`
	formatExampleJP = "債務の総額は、二千二十五年十二月八日に、七十九億三千三百三十二万千二百六十五円（七、九三三、三二一、二六五円）になる。"
	formatTaskEN    = `The total amount will be five hundred and thirty-eight million yen (\538,000,000).`
	formatAnswerJP  = "債務の総額は、五億三千八百万円（五三八、〇〇〇、〇〇〇円）になる。"
)

const translationRules = `1.  下記の各例文を**最優先の模範**とし、その構造と書式を厳密に模倣してください。
2.  **最重要**: 複雑な修飾語句がどの名詞に係るのか（係り受け）を正確に反映してください。
3.  **書式ルール**:
    - **日付**: ` + "`2005年`は`二千〇五年`ではなく`二千五年`のように、公文書として一般的な漢数字で表記してください。`2000年`は`二千年`とします。" + `
    - **金額**: ` + "`七十九億...円（七、九三三、...円）`のように、**位取りを含んだ漢数字**と、括弧書きで**カンマ区切りのアラビア数字**を必ず併記してください。" + `
4.  参照情報（英語原文と現在の日本語訳）の文体や用語を最大限に尊重し、` + "`<translate_this>`" + `内の英文のみを翻訳します。
5.  最終的な翻訳結果の**本文のみ**を出力してください。解説や` + "`<answer>`" + `のようなタグは一切含めないでください。`

func buildGlossaryBlock(g Glossary) string {
	if len(g) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## 用語集（最優先）\n")
	b.WriteString("下記の用語集を**必ず**使用し、指定通りの日本語訳を適用してください。各用語は指定された訳語のとおりに正確に用いなければなりません。\n")
	for _, p := range g.Pairs() {
		fmt.Fprintf(&b, "- `%s` -> `%s`\n", p.Source, p.Target)
	}
	b.WriteString("\n")
	return b.String()
}

func buildCorrectionHint(previous string) string {
	if previous == "" {
		return ""
	}
	return fmt.Sprintf(`以前の翻訳には誤りがありました。
<previous_bad_translation>%s</previous_bad_translation>
この誤りを厳密に修正し、下記の指示と例文に合致する、より正確で自然な翻訳を生成してください。

`, previous)
}

// buildTranslationPrompt assembles the user prompt for one attempt.
func buildTranslationPrompt(req GenerateRequest) string {
	var b strings.Builder

	b.WriteString("あなたは、提供された参照情報に基づき、指定された英文を翻訳する任務を負っています。\n")
	b.WriteString("## 指示\n")
	b.WriteString(buildCorrectionHint(req.Previous))
	b.WriteString(buildGlossaryBlock(req.Glossary))
	b.WriteString(translationRules)
	b.WriteString("\n---\n")

	b.WriteString("## 例文1: 複雑な構文\n")
	writeExample(&b, syntaxExampleEN, syntaxExampleJP, syntaxTaskEN, syntaxAnswerJP)
	b.WriteString("## 例文2: 日付と金額の書式\n")
	writeExample(&b, formatExampleEN, formatExampleJP, formatTaskEN, formatAnswerJP)
	b.WriteString("---\n")

	b.WriteString("## あなたのタスク (Your Task)\n")
	b.WriteString("<task>\n")
	fmt.Fprintf(&b, "    <context_en>%s</context_en>\n", req.ContextEN)
	fmt.Fprintf(&b, "    <context_jp>%s</context_jp>\n", req.ContextJA)
	fmt.Fprintf(&b, "    <translate_this>%s</translate_this>\n", req.Source)
	b.WriteString("    <answer>\n")
	b.WriteString("</task>\n")

	return b.String()
}

func writeExample(b *strings.Builder, contextEN, contextJP, task, answer string) {
	b.WriteString("<example>\n")
	fmt.Fprintf(b, "    <context_en>%s</context_en>\n", contextEN)
	fmt.Fprintf(b, "    <context_jp>%s</context_jp>\n", contextJP)
	fmt.Fprintf(b, "    <translate_this>%s</translate_this>\n", task)
	fmt.Fprintf(b, "    <answer>%s</answer>\n", answer)
	b.WriteString("</example>\n")
}

func buildScorePrompt(source, candidate string) string {
	return fmt.Sprintf(`以下の英語原文と日本語訳を比較し、翻訳の品質を評価してください。

## 評価基準
- **正確性**: 誤訳がなく、原文の意図が正しく伝わっているか。
- **完全性**: 翻訳漏れ（単語、フレーズ、文）がないか。
- **自然さ**: 日本語として不自然な表現がないか。

## 出力形式
評価スコアを `+"`Score: <0.0から1.0までの数値>`"+` の形式で、数値のみを出力してください。
例: `+"`Score: 0.95`"+`

---

## 評価対象
<original_en>%s</original_en>
<translation_jp>%s</translation_jp>

## あなたの評価
<answer>
Score:
`, source, candidate)
}
