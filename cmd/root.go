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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/treatydesk/internal/config"
)

var version = "0.1.0"

var (
	configFile string
	envFile    string
	verbose    bool

	dbPathFlag   string
	refDocsFlag  string
	providerFlag string
	modelFlag    string
)

// appCfg is loaded once per invocation before any subcommand runs.
var appCfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "treatydesk",
	Short: "Treaty translation and review desk (English → Japanese)",
	Long: `A CLI for translating treaty text from English into Japanese and reviewing
the Japanese text against a fixed, ordered set of drafting rules.

translate  drafts, scores and retries a translation until it passes the
           quality threshold, using the glossary and reference context
review     reviews a Japanese document against every rule set in order and
           consolidates the findings (later rule sets take precedence)
check      runs the mechanical joyo-kanji check only

Use "treatydesk <command> --help" for details.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var envFiles []string
		if envFile != "" {
			envFiles = []string{envFile}
		}
		cfg, err := config.Load(config.Options{ConfigFile: configFile, EnvFiles: envFiles})
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		appCfg = cfg
		slog.Debug("configuration loaded", "provider", cfg.Provider, "model", cfg.Model(), "database", cfg.DatabasePath)
		return nil
	},
}

// applyFlagOverrides lets explicit flags win over file and environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DatabasePath = dbPathFlag
	}
	if flags.Changed("ref-docs") {
		cfg.RefDocsDir = refDocsFlag
	}
	if flags.Changed("provider") {
		cfg.Provider = providerFlag
	}
	if flags.Changed("model") {
		switch cfg.Provider {
		case config.ProviderAzure:
			cfg.Azure.Deployment = modelFlag
		case config.ProviderOpenAI:
			cfg.OpenAI.Model = modelFlag
		case config.ProviderOllama:
			cfg.Ollama.Model = modelFlag
		}
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default ./treatydesk.yaml if present)")
	pf.StringVar(&envFile, "env-file", "", "Dotenv file to load (default ./.env)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&dbPathFlag, "db", "glossary.db", "Database path for glossary and translation memory")
	pf.StringVar(&refDocsFlag, "ref-docs", "ref_docs", "Directory holding the reference rule documents")
	pf.StringVar(&providerFlag, "provider", config.ProviderAzure, "Completion provider: azure, openai or ollama")
	pf.StringVar(&modelFlag, "model", "", "Model or deployment name for the selected provider")
}
