/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal"
	"github.com/valpere/treatydesk/internal/render"
	"github.com/valpere/treatydesk/internal/segment"
	"github.com/valpere/treatydesk/internal/store"
	"github.com/valpere/treatydesk/internal/translator"
	"github.com/valpere/treatydesk/internal/validator"
)

var (
	inputFile  string
	outputFile string
	contextEN  string
	contextJA  string
	termFlags  []string

	noGlossary   bool
	noCache      bool
	segmentInput bool
	maxRetries   int
	threshold    float64
	outFormat    string
	suggest      float64
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate English treaty text into Japanese",
	Long: `Translate English treaty text into Japanese with a draft, score and retry
loop. Each draft is graded from 0 to 1; drafting stops as soon as the best
score reaches the threshold, and the best draft is always kept.

Text comes from --input, the arguments, or stdin. Glossary terms found in
the text are enforced automatically; add one-off terms with --term.

Examples:
  treatydesk translate "The Parties agree as follows."
  treatydesk translate -i article1.txt --segment --format md -o article1.md
  treatydesk translate --term "Party=締約国" --context-ja "前文" "..."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		format := render.Format("")
		if outFormat != "plain" {
			f, err := render.ParseFormat(outFormat)
			if err != nil {
				return err
			}
			format = f
		}

		text, err := readInput(inputFile, args)
		if err != nil {
			return err
		}
		extra, err := parseTerms(termFlags)
		if err != nil {
			return err
		}
		langs := validator.New()
		if err := langs.CheckSource(text); err != nil {
			slog.Warn("input may not be English", "reason", err)
		}

		ctx := context.Background()

		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		llm, err := buildCompleter(appCfg)
		if err != nil {
			return err
		}
		tr := translator.New(llm, translator.Config{
			MaxRetries:     maxRetries,
			ScoreThreshold: threshold,
			OnAttempt: func(a translator.Attempt) {
				fmt.Fprintf(os.Stderr, "  attempt %d: score %.2f\n", a.Index, a.Score)
			},
			Logger: slog.Default(),
		})
		job := &translateJob{
			tr:        tr,
			db:        db,
			model:     llm.Model(),
			extra:     extra,
			threshold: effectiveThreshold(),
			glossary:  !noGlossary,
			cache:     !noCache,
		}

		sentences := []string{text}
		if segmentInput {
			sentences = segment.Sentences(text)
			if len(sentences) == 0 {
				return fmt.Errorf("no sentences found in input")
			}
		}

		results, err := job.run(ctx, sentences, segmentInput, contextEN, contextJA)
		if err != nil {
			return err
		}

		var plain, report []string
		var failed, rejected int
		for i, r := range results {
			switch {
			case r.Err != nil:
				failed++
				slog.Error("translation failed", "sentence", i+1, "error", r.Err)
			case !r.Result.Accepted:
				rejected++
				slog.Warn("best translation is below the threshold", "sentence", i+1, "score", r.Result.Score)
			}
			if r.Err == nil {
				if err := langs.CheckTranslation(r.Result.Text); err != nil {
					slog.Warn("translation may not be Japanese", "sentence", i+1, "reason", err)
				}
			}
			plain = append(plain, r.Result.Text)
			report = append(report, render.TranslationMarkdown(r.Source, r.Result))
		}

		out := strings.Join(plain, "")
		if !segmentInput {
			out = strings.Join(plain, "\n")
		}
		if format != "" {
			out = render.Document(strings.Join(report, "\n---\n\n"), "翻訳結果", format)
		}
		if err := writeOutput(outputFile, out); err != nil {
			return err
		}

		if suggest > 0 && !segmentInput {
			printSuggestions(ctx, db, text)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sentences failed to translate", failed, len(sentences))
		}
		if rejected > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d sentences did not reach the %.2f threshold\n", rejected, len(sentences), effectiveThreshold())
		}
		return nil
	},
}

// translateJob carries what every sentence of one command shares.
type translateJob struct {
	tr        *translator.Translator
	db        *store.Store
	model     string
	extra     map[string]string
	threshold float64
	glossary  bool
	cache     bool
}

// sentenceResult is the outcome of one sentence. Err is a *GenerationError;
// other errors end the whole run.
type sentenceResult struct {
	Source string
	Result translator.Result
	Err    error
}

// run translates sentences in order. In segmented mode a sentence without
// explicit contexts gets the English words before it and the previous
// successful translation.
func (j *translateJob) run(ctx context.Context, sentences []string, segmented bool, ctxEN, ctxJA string) ([]sentenceResult, error) {
	results := make([]sentenceResult, 0, len(sentences))
	var prevJA string
	for i, s := range sentences {
		in := translator.Input{Source: s, ContextEN: ctxEN, ContextJA: ctxJA}
		if segmented {
			if in.ContextEN == "" {
				in.ContextEN = segment.Context(sentences, i, segment.DefaultContextWords)
			}
			if in.ContextJA == "" {
				in.ContextJA = prevJA
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", i+1, len(sentences), truncate(s, 60))
		}

		res, err := j.translate(ctx, in)
		var genErr *translator.GenerationError
		switch {
		case errors.Is(err, translator.ErrModelNotConfigured):
			return nil, fmt.Errorf("%s: %w", res.Text, err)
		case errors.As(err, &genErr):
		case err != nil:
			return nil, err
		default:
			prevJA = res.Text
		}
		results = append(results, sentenceResult{Source: s, Result: res, Err: err})
	}
	return results, nil
}

// translate runs one sentence through the glossary, translation memory,
// translator and run history.
func (j *translateJob) translate(ctx context.Context, in translator.Input) (translator.Result, error) {
	glossary := translator.Glossary{}
	if j.glossary {
		found, err := j.db.FindGlossaryTerms(ctx, in.Source)
		if err != nil {
			return translator.Result{}, err
		}
		for en, ja := range found {
			glossary[en] = ja
		}
	}
	for en, ja := range j.extra {
		glossary[en] = ja
	}
	in.Glossary = glossary

	key := store.CacheKey(j.model, in.Source, in.ContextEN, in.ContextJA, glossary)
	if j.cache && j.model != "" {
		entry, found, err := j.db.GetCachedTranslation(ctx, key)
		switch {
		case err != nil:
			slog.Warn("translation memory lookup failed", "error", err)
		case found && entry.Score < j.threshold:
			slog.Debug("remembered translation is below the threshold", "score", entry.Score, "threshold", j.threshold)
		case found:
			fmt.Fprintf(os.Stderr, "  using remembered translation (score %.2f)\n", entry.Score)
			return translator.Result{
				Text:     entry.FinalText,
				Score:    entry.Score,
				Accepted: true,
				Attempts: []translator.Attempt{{Index: 1, Text: entry.FinalText, Score: entry.Score}},
			}, nil
		}
	}

	res, err := j.tr.Translate(ctx, in)
	if errors.Is(err, translator.ErrModelNotConfigured) || errors.Is(err, translator.ErrEmptySource) {
		return res, err
	}

	run := internal.TranslationRun{
		ID:         uuid.NewString(),
		SourceText: in.Source,
		ContextEN:  in.ContextEN,
		ContextJA:  in.ContextJA,
		Model:      j.model,
		FinalText:  res.Text,
		Score:      res.Score,
		Accepted:   res.Accepted,
		Timestamp:  time.Now(),
	}
	if err != nil {
		run.Error = err.Error()
	}
	for _, a := range res.Attempts {
		run.Attempts = append(run.Attempts, internal.RunAttempt{Index: a.Index, Text: a.Text, Score: a.Score})
	}
	if saveErr := j.db.SaveRun(ctx, run); saveErr != nil {
		slog.Warn("failed to record translation run", "error", saveErr)
	} else {
		slog.Debug("translation run recorded", "id", run.ID)
	}

	if err == nil && res.Accepted && j.cache {
		if saveErr := j.db.SaveToMemory(ctx, key, in.Source, res.Text, res.Score, j.model); saveErr != nil {
			slog.Warn("failed to remember translation", "error", saveErr)
		}
	}
	return res, err
}

func printSuggestions(ctx context.Context, db *store.Store, text string) {
	sugg, err := db.SimilarTranslations(ctx, text, suggest, 5)
	if err != nil {
		slog.Warn("similar translation lookup failed", "error", err)
		return
	}
	if len(sugg) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "\nSimilar remembered translations:")
	for _, s := range sugg {
		fmt.Fprintf(os.Stderr, "  %.0f%%  %s\n        %s\n", s.Similarity*100, truncate(s.SourceText, 70), truncate(s.FinalText, 70))
	}
}

func effectiveThreshold() float64 {
	if threshold > 0 {
		return threshold
	}
	return translator.ScoreThreshold
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file (default: arguments or stdin)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	translateCmd.Flags().StringVar(&contextEN, "context-en", "", "English text surrounding the source")
	translateCmd.Flags().StringVar(&contextJA, "context-ja", "", "Japanese text surrounding the target")
	translateCmd.Flags().StringArrayVar(&termFlags, "term", nil, "Extra glossary term as english=japanese (repeatable)")
	translateCmd.Flags().BoolVar(&noGlossary, "no-glossary", false, "Do not apply the stored glossary")
	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip translation memory lookup and storage")
	translateCmd.Flags().BoolVar(&segmentInput, "segment", false, "Split the input into sentences and translate each one")
	translateCmd.Flags().IntVar(&maxRetries, "max-retries", translator.MaxRetries, "Maximum draft/score rounds per sentence")
	translateCmd.Flags().Float64Var(&threshold, "threshold", translator.ScoreThreshold, "Score at which a draft is accepted (0-1)")
	translateCmd.Flags().StringVar(&outFormat, "format", "plain", "Output format: plain, md, html or text")
	translateCmd.Flags().Float64Var(&suggest, "suggest", 0, "Show remembered translations at least this similar (0-1, 0 disables)")
}
