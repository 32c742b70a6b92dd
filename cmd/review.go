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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal"
	"github.com/valpere/treatydesk/internal/render"
	"github.com/valpere/treatydesk/internal/review"
	"github.com/valpere/treatydesk/internal/validator"
)

var (
	reviewInput  string
	reviewOutput string
	reviewRules  []string
	reviewFormat string
	reviewNoSave bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Review a Japanese treaty text against every rule set",
	Long: `Review a Japanese document in three stages:

  1. a mechanical check for kanji outside the joyo list
  2. one model review per rule set, in catalogue order
  3. a consolidation that merges the findings; when two findings about the
     same passage disagree, the one from the later rule set wins

Any failing review aborts the whole run. Use "treatydesk rules" to see the
catalogue and its order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := render.ParseFormat(reviewFormat)
		if err != nil {
			return err
		}
		path := reviewInput
		if path == "" && len(args) == 1 {
			path = args[0]
		}
		document, err := readInput(path, nil)
		if err != nil {
			return err
		}
		if err := validator.New().CheckTranslation(document); err != nil {
			slog.Warn("document may not be Japanese", "reason", err)
		}

		rules, err := loadRuleSets(appCfg, reviewRules)
		if err != nil {
			return err
		}
		docs, err := openRefDocs(appCfg)
		if err != nil {
			return err
		}
		llm, err := buildCompleter(appCfg)
		if err != nil {
			return err
		}
		if llm.Model() == "" {
			return fmt.Errorf("no model configured for provider %s", appCfg.Provider)
		}

		pipeline := review.NewPipeline(
			newKanjiChecker(docs),
			review.NewReviewer(llm, docs),
			review.NewConsolidator(llm),
			review.PipelineConfig{
				RuleSets: rules,
				Pause:    appCfg.ReviewPause,
				Progress: func(e review.Event) {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", e.Step, e.Total, e.Message)
				},
			},
		)

		ctx := context.Background()
		start := time.Now()
		rep, err := pipeline.Run(ctx, document)
		if err != nil {
			return err
		}
		slog.Debug("review finished", "rule_sets", len(rules), "documents_cached", docs.Cached(), "elapsed", time.Since(start).Round(time.Millisecond))

		if !reviewNoSave {
			saveReview(ctx, document, pipeline.RuleSets(), rep)
		}

		out := render.Document(render.ReviewMarkdown(rep), "平仄確認報告書", format)
		return writeOutput(reviewOutput, out)
	},
}

func saveReview(ctx context.Context, document string, rules []review.RuleSet, rep review.Report) {
	db, err := openStore(appCfg)
	if err != nil {
		slog.Warn("review not recorded", "error", err)
		return
	}
	defer db.Close()

	names := make([]string, len(rules))
	for i, rs := range rules {
		names[i] = rs.Name
	}
	rev := internal.ReviewRun{
		ID:         uuid.NewString(),
		Document:   document,
		RuleSets:   names,
		Mechanical: rep.Mechanical.Text(),
		FinalText:  rep.Final,
		Timestamp:  time.Now(),
	}
	if err := db.SaveReview(ctx, rev); err != nil {
		slog.Warn("review not recorded", "error", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Review saved as %s\n", rev.ID)
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVarP(&reviewInput, "input", "i", "", "Document to review (default: argument or stdin)")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "Report file (default: stdout)")
	reviewCmd.Flags().StringSliceVar(&reviewRules, "rules", nil, "Only apply these rule sets (order stays as in the catalogue)")
	reviewCmd.Flags().StringVar(&reviewFormat, "format", "md", "Report format: md, html or text")
	reviewCmd.Flags().BoolVar(&reviewNoSave, "no-save", false, "Do not record the review in the database")
}
