package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPause separates consecutive review calls.
const DefaultPause = time.Second

var ErrEmptyDocument = errors.New("document is empty")

// Stage names a pipeline step in progress events.
type Stage string

const (
	StageMechanical  Stage = "mechanical"
	StageReview      Stage = "review"
	StageConsolidate Stage = "consolidate"
	StageDone        Stage = "done"
)

// Event is one progress notification. Step counts from 1 over Total steps:
// the mechanical check, each review, then consolidation.
type Event struct {
	Stage   Stage
	Step    int
	Total   int
	RuleSet string
	Message string
}

// ProgressFunc observes pipeline progress. It must not block for long.
type ProgressFunc func(Event)

// MechanicalChecker is the non-model character check.
type MechanicalChecker interface {
	FindNonWhitelisted(text string) ([]rune, error)
}

// DocumentReviewer reviews a document against one rule set.
type DocumentReviewer interface {
	Review(ctx context.Context, document string, rs RuleSet) (Findings, error)
}

// FindingsConsolidator merges ordered findings.
type FindingsConsolidator interface {
	Consolidate(ctx context.Context, document string, mechanical MechanicalReport, findings []Findings, order []RuleSet) (string, error)
}

// Report is the outcome of one pipeline run.
type Report struct {
	Final      string
	Findings   []Findings
	Mechanical MechanicalReport
}

type PipelineConfig struct {
	RuleSets []RuleSet
	// Pause between review calls; zero disables pacing.
	Pause    time.Duration
	Progress ProgressFunc
}

// Pipeline runs the mechanical check, every review in rule-set order, and
// the consolidation, strictly one after another.
type Pipeline struct {
	checker      MechanicalChecker
	reviewer     DocumentReviewer
	consolidator FindingsConsolidator
	rules        []RuleSet
	limiter      *rate.Limiter
	progress     ProgressFunc
}

func NewPipeline(checker MechanicalChecker, reviewer DocumentReviewer, consolidator FindingsConsolidator, cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		checker:      checker,
		reviewer:     reviewer,
		consolidator: consolidator,
		rules:        cfg.RuleSets,
		progress:     cfg.Progress,
	}
	if cfg.Pause > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.Pause), 1)
	}
	return p
}

// RuleSets returns the rule sets in the order they are applied.
func (p *Pipeline) RuleSets() []RuleSet { return p.rules }

// Run reviews document. Any failing step aborts the run and the reports of
// completed steps are discarded.
func (p *Pipeline) Run(ctx context.Context, document string) (Report, error) {
	if strings.TrimSpace(document) == "" {
		return Report{}, ErrEmptyDocument
	}
	total := len(p.rules) + 2

	p.emit(Event{Stage: StageMechanical, Step: 1, Total: total, Message: "常用漢字チェックを実行中..."})
	chars, err := p.checker.FindNonWhitelisted(document)
	if err != nil {
		return Report{}, fmt.Errorf("mechanical check failed: %w", err)
	}
	mechanical := MechanicalReport{Chars: chars}

	findings := make([]Findings, 0, len(p.rules))
	for i, rs := range p.rules {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return Report{}, fmt.Errorf("review %s: %w", rs.Name, err)
			}
		}
		p.emit(Event{
			Stage:   StageReview,
			Step:    i + 2,
			Total:   total,
			RuleSet: rs.Name,
			Message: fmt.Sprintf("「%s」の観点で校閲中...", rs.Name),
		})
		f, err := p.reviewer.Review(ctx, document, rs)
		if err != nil {
			return Report{}, err
		}
		findings = append(findings, f)
	}

	p.emit(Event{Stage: StageConsolidate, Step: total, Total: total, Message: "校閲結果を統合中..."})
	final, err := p.consolidator.Consolidate(ctx, document, mechanical, findings, p.rules)
	if err != nil {
		return Report{}, err
	}

	p.emit(Event{Stage: StageDone, Step: total, Total: total, Message: "校閲が完了しました。"})
	return Report{Final: final, Findings: findings, Mechanical: mechanical}, nil
}

func (p *Pipeline) emit(e Event) {
	if p.progress != nil {
		p.progress(e)
	}
}
