// Package kanji implements the mechanical joyo-kanji check: every CJK unified
// ideograph in a document must appear in the official whitelist.
package kanji

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// WhitelistFile is the reference document holding the joyo-kanji list.
const WhitelistFile = "joyo-kanji.txt"

const (
	rangeStart = '一'
	rangeEnd   = '鿿'
)

// Loader returns the full text of a named reference document.
type Loader interface {
	Load(name string) (string, error)
}

// Checker finds ideographs outside the whitelist. The whitelist is read once,
// on first use.
type Checker struct {
	loader Loader

	once      sync.Once
	whitelist map[rune]struct{}
	err       error
}

func NewChecker(loader Loader) *Checker {
	return &Checker{loader: loader}
}

// NewCheckerFromList builds a Checker from an in-memory whitelist.
func NewCheckerFromList(list string) *Checker {
	c := &Checker{}
	c.once.Do(func() { c.whitelist = parseWhitelist(list) })
	return c
}

func (c *Checker) load() error {
	c.once.Do(func() {
		text, err := c.loader.Load(WhitelistFile)
		if err != nil {
			c.err = fmt.Errorf("failed to load kanji whitelist: %w", err)
			return
		}
		c.whitelist = parseWhitelist(text)
	})
	return c.err
}

// parseWhitelist keeps every non-space rune of text.
func parseWhitelist(text string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range norm.NFC.String(text) {
		if unicode.IsSpace(r) {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Size reports the number of whitelisted characters.
func (c *Checker) Size() (int, error) {
	if err := c.load(); err != nil {
		return 0, err
	}
	return len(c.whitelist), nil
}

// FindNonWhitelisted returns the unique ideographs in text (U+4E00..U+9FFF)
// that are not whitelisted, sorted by code point.
func (c *Checker) FindNonWhitelisted(text string) ([]rune, error) {
	if err := c.load(); err != nil {
		return nil, err
	}

	seen := make(map[rune]struct{})
	var out []rune
	for _, r := range norm.NFC.String(text) {
		if r < rangeStart || r > rangeEnd {
			continue
		}
		if _, ok := c.whitelist[r]; ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// CleanReport is the mechanical report for a document with no findings.
const CleanReport = "常用漢字表にない漢字は見つかりませんでした。"

// Report renders chars as the mechanical check report consumed by
// consolidation.
func Report(chars []rune) string {
	if len(chars) == 0 {
		return CleanReport
	}
	var b strings.Builder
	b.WriteString("常用漢字表にない漢字が使用されています。\n")
	for _, r := range chars {
		fmt.Fprintf(&b, "- 「%c」(U+%04X)\n", r, r)
	}
	return strings.TrimRight(b.String(), "\n")
}
