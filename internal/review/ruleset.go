// Package review runs a document through one review per reference rule set
// and consolidates the findings into a single report.
//
// The rule-set catalogue is ordered. Reviews run in that order and, when two
// findings about the same passage disagree, the later one wins.
package review

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rulesets.yaml
var builtinCatalogue []byte

// RuleSet is one review dimension: a reference document and the role the
// reviewer plays when applying it.
type RuleSet struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Role string `yaml:"role"`
}

type catalogue struct {
	RuleSets []RuleSet `yaml:"rulesets"`
}

var ErrEmptyCatalogue = errors.New("rule-set catalogue is empty")

// DefaultRuleSets returns the built-in catalogue in precedence order.
func DefaultRuleSets() []RuleSet {
	rs, err := parseCatalogue(builtinCatalogue)
	if err != nil {
		panic(fmt.Sprintf("review: invalid built-in catalogue: %v", err))
	}
	return rs
}

// LoadRuleSets reads a catalogue file with the same layout as the built-in one.
func LoadRuleSets(path string) ([]RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule-set catalogue: %w", err)
	}
	rs, err := parseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule-set catalogue %s: %w", path, err)
	}
	return rs, nil
}

func parseCatalogue(data []byte) ([]RuleSet, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.RuleSets) == 0 {
		return nil, ErrEmptyCatalogue
	}

	seen := make(map[string]bool, len(c.RuleSets))
	for i, rs := range c.RuleSets {
		rs.Name = strings.TrimSpace(rs.Name)
		rs.File = strings.TrimSpace(rs.File)
		if rs.Name == "" || rs.File == "" {
			return nil, fmt.Errorf("rule set %d: name and file are required", i+1)
		}
		if seen[rs.Name] {
			return nil, fmt.Errorf("rule set %q listed twice", rs.Name)
		}
		seen[rs.Name] = true
		c.RuleSets[i] = rs
	}
	return c.RuleSets, nil
}

// Select returns the named rule sets in catalogue order, whatever order the
// names are given in. An unknown name is an error.
func Select(all []RuleSet, names []string) ([]RuleSet, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}

	var out []RuleSet
	for _, rs := range all {
		if want[rs.Name] {
			out = append(out, rs)
			delete(want, rs.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown rule set %q", n)
	}
	return out, nil
}
