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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal/store"
)

var csvHeader = []string{"id", "english", "japanese"}

var glossaryExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the glossary as CSV (id,english,japanese)",
	Long: `Write the glossary as CSV to a file or stdout. Edit the file and load it
back with "treatydesk glossary sync".`,
	Args: cobra.MaximumNArgs(1),
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

		var out io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create output CSV: %w", err)
			}
			defer f.Close()
			out = f
		}
		return writeGlossaryCSV(out, terms)
	},
}

var glossarySyncCmd = &cobra.Command{
	Use:   "sync <file>",
	Short: "Make the glossary match an edited CSV file",
	Long: `Make the glossary match a CSV file in the export layout, in one transaction:

  rows whose id is missing from the file are deleted
  rows with an empty id are inserted
  rows whose terms changed are updated

Rows with an empty english or japanese cell and no id are skipped. Any
error leaves the glossary unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input CSV: %w", err)
		}
		defer f.Close()

		terms, err := readGlossaryCSV(f)
		if err != nil {
			return err
		}

		db, err := openStore(appCfg)
		if err != nil {
			return err
		}
		defer db.Close()

		diff, err := db.ApplyGlossaryEdits(context.Background(), terms)
		if err != nil {
			return fmt.Errorf("failed to sync glossary: %w", err)
		}
		fmt.Printf("Glossary synced: %d inserted, %d updated, %d deleted\n", diff.Inserted, diff.Updated, diff.Deleted)
		return nil
	},
}

func writeGlossaryCSV(w io.Writer, terms []store.Term) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range terms {
		if err := cw.Write([]string{strconv.FormatInt(t.ID, 10), t.English, t.Japanese}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readGlossaryCSV parses the export layout. The header row is optional.
func readGlossaryCSV(r io.Reader) ([]store.Term, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), csvHeader[0]) {
		records = records[1:]
	}

	terms := make([]store.Term, 0, len(records))
	for i, rec := range records {
		var t store.Term
		if idCell := strings.TrimSpace(rec[0]); idCell != "" {
			id, err := strconv.ParseInt(idCell, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid id %q", i+1, idCell)
			}
			t.ID = id
		}
		t.English, t.Japanese = rec[1], rec[2]
		terms = append(terms, t)
	}
	return terms, nil
}

func init() {
	glossaryCmd.AddCommand(glossaryExportCmd)
	glossaryCmd.AddCommand(glossarySyncCmd)
}
