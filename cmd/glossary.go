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
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal/translator"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the English to Japanese terminology glossary",
	Long: `Add, list, find and delete glossary terms.

Every glossary term whose English text occurs in a source sentence (whole
word, any case) is handed to the translator, which must use the Japanese
rendering. Longer terms win over shorter ones they contain.`,
}

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all glossary terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		terms, err := db.ListTerms(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}
		if len(terms) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENGLISH\tJAPANESE")
		for _, t := range terms {
			fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.English, t.Japanese)
		}
		return w.Flush()
	},
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <english> <japanese>",
	Short: "Add a term or replace its Japanese rendering",
	Long: `Add a glossary term. Adding an English term that already exists replaces
its Japanese rendering.

Example:
  treatydesk glossary add "Contracting Party" "締約国"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		existing, err := db.GetTerm(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to look up term: %w", err)
		}
		if err := db.AddTerm(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to add term: %w", err)
		}
		if existing != nil {
			fmt.Printf("Updated: %q → %q (was %q)\n", existing.English, args[1], existing.Japanese)
			return nil
		}
		fmt.Printf("Added: %q → %q\n", args[0], args[1])
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a glossary term by ID",
	Long:  `Delete a glossary term by its ID (shown in "treatydesk glossary list").`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid term ID %q", args[0])
		}
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteTerm(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete term: %w", err)
		}
		fmt.Printf("Deleted term: %d\n", id)
		return nil
	},
}

var glossaryFindCmd = &cobra.Command{
	Use:   "find <text>",
	Short: "Show the glossary terms that apply to a piece of English text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput("", args)
		if err != nil {
			return err
		}
		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		found, err := db.FindGlossaryTerms(context.Background(), text)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No glossary terms found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENGLISH\tJAPANESE")
		for _, p := range translator.Glossary(found).Pairs() {
			fmt.Fprintf(w, "%s\t%s\n", p.Source, p.Target)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
	glossaryCmd.AddCommand(glossaryFindCmd)
}
