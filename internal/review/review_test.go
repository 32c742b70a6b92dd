package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/treatydesk/internal/completion"
	"github.com/valpere/treatydesk/internal/refdocs"
)

// fakeLLM answers with reply, or with respond when set.
type fakeLLM struct {
	reply    string
	err      error
	respond  func(req completion.Request) string
	requests []completion.Request
}

func (f *fakeLLM) Complete(_ context.Context, req completion.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if f.respond != nil {
		return f.respond(req), nil
	}
	return f.reply, nil
}

func (f *fakeLLM) Model() string { return "fake" }

type mapDocs map[string]string

func (m mapDocs) Load(name string) (string, error) {
	if text, ok := m[name]; ok {
		return text, nil
	}
	return "", &refdocs.MissingError{Name: name}
}

var fixRe = regexp.MustCompile(`FIX<([^>]*)>`)

// lastWriterLLM applies the precedence rule literally: among the proposed
// fixes in the prompt, the one that appears last wins.
func lastWriterLLM() *fakeLLM {
	return &fakeLLM{respond: func(req completion.Request) string {
		fixes := fixRe.FindAllStringSubmatch(req.User, -1)
		final := NoFindings
		if len(fixes) > 0 {
			final = "- 該当箇所: 「締約国」 修正案: " + fixes[len(fixes)-1][1]
		}
		return AssessmentHeading + "\n表記に揺れがあります。\n\n" + FindingsHeading + "\n" + final
	}}
}

var (
	ruleA = RuleSet{Name: "okurigana", File: "okurigana.txt", Role: "送り仮名の審査官"}
	ruleB = RuleSet{Name: "treaty-style", File: "treaty-style.txt", Role: "条約用語の審査官"}
)

func TestDefaultRuleSets(t *testing.T) {
	rs := DefaultRuleSets()
	require.Len(t, rs, 6)
	assert.Equal(t, "kobun", rs[0].Name)
	assert.Equal(t, "treaty-style", rs[len(rs)-1].Name)
	for _, r := range rs {
		assert.NotEmpty(t, r.File, r.Name)
		assert.NotEmpty(t, r.Role, r.Name)
	}
}

func TestLoadRuleSets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rulesets:\n  - name: b\n    file: b.txt\n  - name: a\n    file: a.txt\n"), 0o644))

	rs, err := LoadRuleSets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names(rs))

	require.NoError(t, os.WriteFile(path, []byte("rulesets: []\n"), 0o644))
	_, err = LoadRuleSets(path)
	assert.ErrorIs(t, err, ErrEmptyCatalogue)

	require.NoError(t, os.WriteFile(path, []byte("rulesets:\n  - name: a\n    file: a.txt\n  - name: a\n    file: b.txt\n"), 0o644))
	_, err = LoadRuleSets(path)
	assert.Error(t, err)
}

func TestSelectKeepsCatalogueOrder(t *testing.T) {
	all := DefaultRuleSets()
	rs, err := Select(all, []string{"treaty-style", "kobun"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kobun", "treaty-style"}, names(rs))

	_, err = Select(all, []string{"nope"})
	assert.Error(t, err)

	rs, err = Select(all, nil)
	require.NoError(t, err)
	assert.Len(t, rs, len(all))
}

func TestReviewPrompt(t *testing.T) {
	llm := &fakeLLM{reply: "- 位置: 第一文"}
	r := NewReviewer(llm, mapDocs{"okurigana.txt": "活用語尾を送る。"})

	f, err := r.Review(context.Background(), "締約国は、次のとおり協定した。", ruleA)
	require.NoError(t, err)
	assert.Equal(t, "- 位置: 第一文", f.Text)
	assert.Equal(t, ruleA, f.RuleSet)
	assert.False(t, f.Clean())

	require.Len(t, llm.requests, 1)
	user := llm.requests[0].User
	assert.Contains(t, user, "送り仮名の審査官")
	assert.Contains(t, user, "<rules name=\"okurigana\">\n活用語尾を送る。\n</rules>")
	assert.Contains(t, user, "締約国は、次のとおり協定した。")
	assert.Contains(t, user, NoFindings)
	assert.Contains(t, user, "修正案")
}

func TestReviewMissingRules(t *testing.T) {
	llm := &fakeLLM{reply: "x"}
	_, err := NewReviewer(llm, mapDocs{}).Review(context.Background(), "文書", ruleA)

	var missing *refdocs.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "okurigana.txt", missing.Name)
	assert.Empty(t, llm.requests)
}

func TestReviewGatewayError(t *testing.T) {
	llm := &fakeLLM{err: &completion.Error{Provider: "fake", StatusCode: 429, Message: "slow down"}}
	_, err := NewReviewer(llm, mapDocs{"okurigana.txt": "r"}).Review(context.Background(), "文書", ruleA)
	var ce *completion.Error
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.RateLimited())
}

func TestConsolidatePrecedenceIsPositional(t *testing.T) {
	fa := Findings{RuleSet: ruleA, Text: "- 該当箇所: 「締約国」 FIX<締約各国>"}
	fb := Findings{RuleSet: ruleB, Text: "- 該当箇所: 「締約国」 FIX<両締約国>"}

	c := NewConsolidator(lastWriterLLM())
	got, err := c.Consolidate(context.Background(), "締約国は", MechanicalReport{}, []Findings{fa, fb}, []RuleSet{ruleA, ruleB})
	require.NoError(t, err)
	assert.Contains(t, got, "修正案: 両締約国")
	assert.NotContains(t, got, "修正案: 締約各国")

	got, err = c.Consolidate(context.Background(), "締約国は", MechanicalReport{}, []Findings{fb, fa}, []RuleSet{ruleB, ruleA})
	require.NoError(t, err)
	assert.Contains(t, got, "修正案: 締約各国")
	assert.NotContains(t, got, "修正案: 両締約国")
}

func TestConsolidatePromptOrder(t *testing.T) {
	llm := &fakeLLM{reply: AssessmentHeading + "\nok\n\n" + FindingsHeading + "\n" + NoFindings}
	fa := Findings{RuleSet: ruleA, Text: "指摘A"}
	fb := Findings{RuleSet: ruleB, Text: "指摘B"}

	_, err := NewConsolidator(llm).Consolidate(context.Background(), "文書", MechanicalReport{}, []Findings{fa, fb}, []RuleSet{ruleA, ruleB})
	require.NoError(t, err)

	user := llm.requests[0].User
	mech := strings.Index(user, "<mechanical_check>")
	a := strings.Index(user, `<review position="1" ruleset="okurigana">`)
	b := strings.Index(user, `<review position="2" ruleset="treaty-style">`)
	require.True(t, mech >= 0 && a >= 0 && b >= 0, user)
	assert.Less(t, mech, a)
	assert.Less(t, a, b)
	assert.Contains(t, user, "**後に**")
}

func TestConsolidateMechanicalSurvivesEmptyRuleSets(t *testing.T) {
	// The model forgets the mechanical finding entirely.
	llm := &fakeLLM{reply: AssessmentHeading + "\n概ね良好\n\n" + FindingsHeading + "\n" + NoFindings}
	mech := MechanicalReport{Chars: []rune("遵鬱")}

	got, err := NewConsolidator(llm).Consolidate(context.Background(), "遵守。鬱", mech, nil, nil)
	require.NoError(t, err)
	require.Len(t, llm.requests, 1)
	assert.Contains(t, got, MechanicalHeading)
	assert.Contains(t, got, "「遵」")
	assert.Contains(t, got, "「鬱」")
	assert.Contains(t, llm.requests[0].User, "「遵」(U+9075)")
}

func TestConsolidateKeepsMechanicalWhenModelCitesIt(t *testing.T) {
	llm := &fakeLLM{reply: AssessmentHeading + "\n要修正\n\n" + FindingsHeading + "\n- 「遵」を仮名書きにする（根拠: 機械的チェック）"}
	got, err := NewConsolidator(llm).Consolidate(context.Background(), "遵守", MechanicalReport{Chars: []rune("遵")}, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, got, MechanicalHeading)
}

func TestConsolidateMechanicalNotCoveredByOtherCitation(t *testing.T) {
	llm := &fakeLLM{reply: AssessmentHeading + "\n要修正\n\n" + FindingsHeading +
		"\n- 該当箇所: 「遵守しなければならない」 修正案: 「遵守する」（根拠: kobun）"}
	got, err := NewConsolidator(llm).Consolidate(context.Background(), "遵守しなければならない", MechanicalReport{Chars: []rune("遵")}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "（根拠: kobun）")
	assert.Contains(t, got, MechanicalHeading)
	assert.Contains(t, got, "「遵」は常用漢字表にない漢字です。（根拠: "+MechanicalSource+"）")
}

func TestConsolidateMechanicalCitationMustQuoteChar(t *testing.T) {
	llm := &fakeLLM{reply: FindingsHeading + "\n- 「遵」を仮名書きにする（根拠: 機械的チェック）"}
	got, err := NewConsolidator(llm).Consolidate(context.Background(), "遵守。鬱", MechanicalReport{Chars: []rune("遵鬱")}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, got, MechanicalHeading)
	assert.Contains(t, got, "「鬱」は常用漢字表にない漢字です。")
	assert.NotContains(t, got, "「遵」は常用漢字表にない漢字です。")
}

func TestConsolidateCleanDocument(t *testing.T) {
	llm := &fakeLLM{reply: "should not be used"}
	findings := []Findings{
		{RuleSet: ruleA, Text: NoFindings},
		{RuleSet: ruleB, Text: "  " + NoFindings + "\n"},
	}

	got, err := NewConsolidator(llm).Consolidate(context.Background(), "締約国は", MechanicalReport{}, findings, []RuleSet{ruleA, ruleB})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, NoFindings)
	assert.Contains(t, got, FindingsHeading)
	assert.Empty(t, llm.requests)
}

func TestConsolidateOrderMismatch(t *testing.T) {
	c := NewConsolidator(&fakeLLM{})
	fa := Findings{RuleSet: ruleA, Text: "x"}

	_, err := c.Consolidate(context.Background(), "d", MechanicalReport{}, []Findings{fa}, []RuleSet{ruleB})
	assert.ErrorIs(t, err, ErrOrderMismatch)

	_, err = c.Consolidate(context.Background(), "d", MechanicalReport{}, []Findings{fa}, nil)
	assert.ErrorIs(t, err, ErrOrderMismatch)
}

type fakeChecker struct {
	chars []rune
	err   error
}

func (f fakeChecker) FindNonWhitelisted(string) ([]rune, error) { return f.chars, f.err }

// recordingReviewer returns canned text per rule set and records the order.
type recordingReviewer struct {
	texts  map[string]string
	failOn string
	order  []string
}

func (r *recordingReviewer) Review(_ context.Context, _ string, rs RuleSet) (Findings, error) {
	r.order = append(r.order, rs.Name)
	if rs.Name == r.failOn {
		return Findings{}, fmt.Errorf("review %s failed: %w", rs.Name, errors.New("gateway down"))
	}
	text, ok := r.texts[rs.Name]
	if !ok {
		text = NoFindings
	}
	return Findings{RuleSet: rs, Text: text}, nil
}

func TestPipelineRunsInOrder(t *testing.T) {
	rules := DefaultRuleSets()
	rev := &recordingReviewer{texts: map[string]string{"kobun": "FIX<甲>", "treaty-style": "FIX<乙>"}}
	var events []Event

	p := NewPipeline(fakeChecker{}, rev, NewConsolidator(lastWriterLLM()), PipelineConfig{
		RuleSets: rules,
		Progress: func(e Event) { events = append(events, e) },
	})
	rep, err := p.Run(context.Background(), "締約国は")
	require.NoError(t, err)

	assert.Equal(t, names(rules), rev.order)
	assert.Equal(t, names(rules), names(p.RuleSets()))
	require.Len(t, rep.Findings, len(rules))
	for i := range rules {
		assert.Equal(t, rules[i].Name, rep.Findings[i].RuleSet.Name)
	}
	assert.Contains(t, rep.Final, "修正案: 乙")

	require.Len(t, events, len(rules)+3)
	assert.Equal(t, StageMechanical, events[0].Stage)
	assert.Equal(t, StageReview, events[1].Stage)
	assert.Equal(t, "kobun", events[1].RuleSet)
	assert.Equal(t, StageConsolidate, events[len(events)-2].Stage)
	assert.Equal(t, StageDone, events[len(events)-1].Stage)
	assert.Equal(t, len(rules)+2, events[0].Total)
}

func TestPipelineCleanRoundTrip(t *testing.T) {
	llm := &fakeLLM{reply: "unused"}
	p := NewPipeline(fakeChecker{}, &recordingReviewer{}, NewConsolidator(llm), PipelineConfig{RuleSets: DefaultRuleSets()})

	rep, err := p.Run(context.Background(), "締約国は、次のとおり協定した。")
	require.NoError(t, err)
	assert.Contains(t, rep.Final, NoFindings)
	assert.True(t, rep.Mechanical.Clean())
	assert.Empty(t, llm.requests)
}

func TestPipelineAbortsOnReviewError(t *testing.T) {
	rev := &recordingReviewer{failOn: "okurigana"}
	llm := &fakeLLM{reply: "unused"}
	p := NewPipeline(fakeChecker{}, rev, NewConsolidator(llm), PipelineConfig{RuleSets: DefaultRuleSets()})

	rep, err := p.Run(context.Background(), "文書")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "okurigana")
	assert.Empty(t, rep.Findings)
	assert.Equal(t, []string{"kobun", "gendai-kanazukai", "okurigana"}, rev.order)
	assert.Empty(t, llm.requests)
}

func TestPipelineMechanicalError(t *testing.T) {
	rev := &recordingReviewer{}
	p := NewPipeline(fakeChecker{err: errors.New("no whitelist")}, rev, NewConsolidator(&fakeLLM{}), PipelineConfig{RuleSets: DefaultRuleSets()})
	_, err := p.Run(context.Background(), "文書")
	require.Error(t, err)
	assert.Empty(t, rev.order)
}

func TestPipelineEmptyDocument(t *testing.T) {
	p := NewPipeline(fakeChecker{}, &recordingReviewer{}, NewConsolidator(&fakeLLM{}), PipelineConfig{})
	_, err := p.Run(context.Background(), " \n")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPipelinePacing(t *testing.T) {
	rev := &recordingReviewer{}
	p := NewPipeline(fakeChecker{}, rev, NewConsolidator(&fakeLLM{}), PipelineConfig{
		RuleSets: []RuleSet{ruleA, ruleB},
		Pause:    time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, "文書")
	require.Error(t, err)
	// The first review runs at once; the second would wait an hour.
	assert.Equal(t, []string{"okurigana"}, rev.order)
}

func names(rs []RuleSet) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}
