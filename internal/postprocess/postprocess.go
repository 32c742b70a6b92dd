// Package postprocess removes common LLM artifacts from generated translations.
//
// The generator asks the model to continue an open <answer> element and stops
// on </answer>; models still echo the tags, prepend labels such as "翻訳:" or
// wrap the whole sentence in quotes. Clean undoes all of that.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text and returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Answer delimiter removal
//  3. Label echo removal
//  4. Quote wrapping removal
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeAnswerDelimiters(text)
	text = removeLabelEchoes(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// RE2 has no backreferences, so each tag pair is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>`,
)

// An opened thinking tag whose closing tag is missing.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: answer delimiters ---

var answerTagRe = regexp.MustCompile(`(?i)</?answer>`)

// taskTagRe matches a leaked task element such as <translate_this>…</translate_this>.
var taskTagRe = regexp.MustCompile(`(?is)<(translate_this|context_en|context_jp)>.*?</(translate_this|context_en|context_jp)>`)

func removeAnswerDelimiters(text string) string {
	text = taskTagRe.ReplaceAllString(text, "")
	text = answerTagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 3: label echoes ---

// Anchored at the start and require a colon so legitimate content is not cut.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:翻訳結果|翻訳文|日本語訳|訳文|翻訳)\s*[:：]`),
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:japanese |translated )?(?:translation|text)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:japanese )?(?:translation|translated text)\s*:`),
}

func removeLabelEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 4: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them. Supported pairs:
//
//	"…"  '…'  `…`  "…"  「…」  『…』
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '`' && last == '`') ||
		(first == '“' && last == '”') ||
		(first == '「' && last == '」' && !strings.ContainsRune(string(runes[1:n-1]), '「')) ||
		(first == '『' && last == '』' && !strings.ContainsRune(string(runes[1:n-1]), '『')) {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
