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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal/kanji"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the review rule sets in the order they are applied",
	Long: `List the rule-set catalogue. Rule sets are reviewed top to bottom and a
finding from a lower row overrides a conflicting finding from a higher row.
The FILE column shows whether each reference document is present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRuleSets(appCfg, nil)
		if err != nil {
			return err
		}
		docs, err := openRefDocs(appCfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tFILE\tSTATUS")
		for i, rs := range rules {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, rs.Name, rs.File, docStatus(docs.Load(rs.File)))
		}
		fmt.Fprintf(w, "-\t%s\t%s\t%s\n", "joyo-kanji", kanji.WhitelistFile, whitelistStatus(newKanjiChecker(docs)))
		return w.Flush()
	},
}

func docStatus(_ string, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fs.ErrNotExist):
		return "missing"
	default:
		return err.Error()
	}
}

func whitelistStatus(c *kanji.Checker) string {
	n, err := c.Size()
	if err != nil {
		return docStatus("", err)
	}
	return fmt.Sprintf("ok (%d kanji)", n)
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
