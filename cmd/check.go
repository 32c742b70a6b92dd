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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal/kanji"
)

var (
	checkInput  string
	checkStrict bool
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "List kanji that are not on the joyo list",
	Long: `Run the mechanical character check without calling any model. Every CJK
ideograph in the document that is missing from ` + kanji.WhitelistFile + ` in the
reference directory is listed once, in code point order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := checkInput
		if path == "" && len(args) == 1 {
			path = args[0]
		}
		document, err := readInput(path, nil)
		if err != nil {
			return err
		}
		docs, err := openRefDocs(appCfg)
		if err != nil {
			return err
		}

		checker := newKanjiChecker(docs)
		chars, err := checker.FindNonWhitelisted(document)
		if err != nil {
			return err
		}
		if n, err := checker.Size(); err == nil {
			fmt.Fprintf(os.Stderr, "Checked against %d joyo kanji\n", n)
		}
		fmt.Println(kanji.Report(chars))
		if checkStrict && len(chars) > 0 {
			return fmt.Errorf("%d kanji outside the joyo list", len(chars))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkInput, "input", "i", "", "Document to check (default: argument or stdin)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit with an error when any kanji is reported")
}
