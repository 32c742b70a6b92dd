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
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded translation and review runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent translation and review runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.RecentRuns(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list translation runs: %w", err)
		}
		revs, err := db.RecentReviews(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list review runs: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TRANSLATIONS")
		fmt.Fprintln(w, "ID\tWHEN\tSCORE\tSTATUS\tSOURCE")
		for _, r := range runs {
			status := "below threshold"
			switch {
			case r.Error != "":
				status = "failed"
			case r.Accepted:
				status = "accepted"
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.Score, status, truncate(r.SourceText, 50))
		}
		fmt.Fprintln(w, "\nREVIEWS")
		fmt.Fprintln(w, "ID\tWHEN\tRULE SETS\tDOCUMENT")
		for _, r := range revs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Timestamp.Format("2006-01-02 15:04"), len(r.RuleSets), truncate(r.Document, 40))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one translation run with its attempts, or one review report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if run, err := db.GetRun(ctx, args[0]); err == nil {
			fmt.Printf("Run:      %s\nWhen:     %s\nModel:    %s\n", run.ID, run.Timestamp.Format("2006-01-02 15:04:05"), run.Model)
			fmt.Printf("Source:   %s\n", run.SourceText)
			if run.ContextEN != "" {
				fmt.Printf("Context:  %s\n", run.ContextEN)
			}
			fmt.Printf("Result:   %s\nScore:    %.2f (accepted: %t)\n", run.FinalText, run.Score, run.Accepted)
			if run.Error != "" {
				fmt.Printf("Error:    %s\n", run.Error)
			}
			for _, a := range run.Attempts {
				fmt.Printf("  #%d  %.2f  %s\n", a.Index, a.Score, a.Text)
			}
			return nil
		}

		rev, err := db.GetReview(ctx, args[0])
		if err != nil {
			return fmt.Errorf("no translation or review run with id %s", args[0])
		}
		fmt.Printf("Review:    %s\nWhen:      %s\nRule sets: %s\n\n", rev.ID, rev.Timestamp.Format("2006-01-02 15:04:05"), strings.Join(rev.RuleSets, " → "))
		fmt.Println(rev.FinalText)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs of each kind to show")
}
