// Package segment splits treaty paragraphs into sentences for translation.
// List markers such as "(a)" or "(iv)" are masked first so a marker is never
// mistaken for the end of a sentence.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultContextWords is the size of the sliding context window.
const DefaultContextWords = 40

var japaneseRe = regexp.MustCompile(`[\x{3040}-\x{30ff}\x{3400}-\x{9fff}]`)

// IsJapanese reports whether text contains kana or kanji.
func IsJapanese(text string) bool {
	return japaneseRe.MatchString(text)
}

var listMarkers = []struct{ marker, mask string }{
	{"(a)", "__PAREN_A__"}, {"(b)", "__PAREN_B__"}, {"(c)", "__PAREN_C__"},
	{"(d)", "__PAREN_D__"}, {"(e)", "__PAREN_E__"}, {"(f)", "__PAREN_F__"},
	{"(i)", "__PAREN_I__"}, {"(ii)", "__PAREN_II__"}, {"(iii)", "__PAREN_III__"},
	{"(iv)", "__PAREN_IV__"},
}

var markerRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(listMarkers))
	for i, m := range listMarkers {
		res[i] = regexp.MustCompile(`(\s|^)` + regexp.QuoteMeta(m.marker) + `(\s|$|,)`)
	}
	return res
}()

// MaskListMarkers replaces standalone list markers with placeholder tokens.
func MaskListMarkers(text string) string {
	for i, re := range markerRes {
		repl := "${1}" + listMarkers[i].mask + "${2}"
		// Adjacent markers share a delimiter, so run until stable.
		for {
			next := re.ReplaceAllString(text, repl)
			if next == text {
				break
			}
			text = next
		}
	}
	return text
}

// UnmaskListMarkers restores markers hidden by MaskListMarkers.
func UnmaskListMarkers(text string) string {
	for _, m := range listMarkers {
		text = strings.ReplaceAll(text, m.mask, m.marker)
	}
	return text
}

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"no.": true, "nos.": true, "art.": true, "arts.": true, "para.": true,
	"paras.": true, "mr.": true, "mrs.": true, "dr.": true, "st.": true,
	"e.g.": true, "i.e.": true, "etc.": true, "vs.": true, "cf.": true,
	"u.s.": true, "u.k.": true, "u.n.": true, "inc.": true, "ltd.": true,
	"co.": true, "vol.": true, "p.": true, "pp.": true,
}

// Sentences splits text into trimmed sentences. Paragraph breaks always end a
// sentence. Japanese text splits after 。！？; other text after . ! ? followed
// by whitespace, unless the word is a known abbreviation.
func Sentences(text string) []string {
	masked := MaskListMarkers(strings.ReplaceAll(text, "\r\n", "\n"))

	var out []string
	for _, para := range splitParagraphs(masked) {
		var parts []string
		if IsJapanese(para) {
			parts = splitJapanese(para)
		} else {
			parts = splitEnglish(para)
		}
		for _, p := range parts {
			if p = strings.TrimSpace(UnmaskListMarkers(p)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

func splitJapanese(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '。' || r == '！' || r == '？' {
			end := i + utf8.RuneLen(r)
			// Keep a closing bracket with its sentence.
			if next, size := utf8.DecodeRuneInString(text[end:]); next == '」' || next == '）' {
				end += size
			}
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func splitEnglish(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		// Trailing closing quotes and brackets stay with the sentence.
		for end < len(runes) && strings.ContainsRune(`"'”’)`, runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[start:i+1]) {
			continue
		}
		if r == '.' && !startsSentence(runes[end:]) {
			continue
		}
		out = append(out, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// isAbbreviation reports whether the word ending at the final '.' of s is a
// known abbreviation or a single capital initial.
func isAbbreviation(s []rune) bool {
	j := len(s) - 1
	for j > 0 && !unicode.IsSpace(s[j-1]) && s[j-1] != '(' {
		j--
	}
	word := strings.ToLower(string(s[j:]))
	if abbreviations[word] {
		return true
	}
	w := []rune(word)
	return len(w) == 2 && unicode.IsLetter(w[0]) && unicode.IsUpper(s[j])
}

// startsSentence reports whether the text after a full stop opens a new
// sentence: an upper-case letter, a digit, a quote or a masked list marker.
func startsSentence(rest []rune) bool {
	s := strings.TrimLeftFunc(string(rest), unicode.IsSpace)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "__PAREN_") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r) || unicode.IsDigit(r) || strings.ContainsRune(`"'“‘(`, r)
}

// Context returns the last wordCount words of the sentences before index i,
// as a sliding window that keeps the translator aware of what came before.
// If wordCount ≤ 0, DefaultContextWords is used.
func Context(sentences []string, i, wordCount int) string {
	if wordCount <= 0 {
		wordCount = DefaultContextWords
	}
	if i <= 0 || i > len(sentences) {
		return ""
	}
	words := strings.Fields(strings.Join(sentences[:i], " "))
	if len(words) > wordCount {
		words = words[len(words)-wordCount:]
	}
	return strings.Join(words, " ")
}
