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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/treatydesk/internal/completion"
	"github.com/valpere/treatydesk/internal/config"
	"github.com/valpere/treatydesk/internal/kanji"
	"github.com/valpere/treatydesk/internal/refdocs"
	"github.com/valpere/treatydesk/internal/review"
	"github.com/valpere/treatydesk/internal/store"
)

// buildCompleter constructs the completion backend selected in cfg. A missing
// model is not an error here; the translator reports it.
func buildCompleter(cfg *config.Config) (completion.Completer, error) {
	var llm completion.Completer

	switch cfg.Provider {
	case config.ProviderAzure:
		if cfg.Azure.Endpoint == "" {
			return nil, fmt.Errorf("failed to configure Azure OpenAI: AZURE_AIS_OPENAI_ENDPOINT is not set")
		}
		c, err := completion.NewOpenAI(completion.OpenAIConfig{
			APIKey:     cfg.Azure.APIKey,
			Endpoint:   cfg.Azure.Endpoint,
			APIVersion: cfg.Azure.APIVersion,
			Model:      cfg.Azure.Deployment,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure Azure OpenAI: %w", err)
		}
		llm = c
	case config.ProviderOpenAI:
		c, err := completion.NewOpenAI(completion.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure OpenAI: %w", err)
		}
		llm = c
	case config.ProviderOllama:
		llm = completion.NewOllama(cfg.Ollama.Model, cfg.Ollama.URL)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	slog.Debug("completion backend ready", "provider", cfg.Provider, "model", llm.Model())
	return completion.WithRateLimit(llm, completion.PerMinute(cfg.RequestsPerMinute)), nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func openRefDocs(cfg *config.Config) (*refdocs.Store, error) {
	docs, err := refdocs.New(cfg.RefDocsDir, refdocs.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func newKanjiChecker(docs *refdocs.Store) *kanji.Checker {
	return kanji.NewChecker(docs)
}

// loadRuleSets returns the configured catalogue, narrowed to names when given.
func loadRuleSets(cfg *config.Config, names []string) ([]review.RuleSet, error) {
	all := review.DefaultRuleSets()
	if cfg.RuleSetsFile != "" {
		var err error
		if all, err = review.LoadRuleSets(cfg.RuleSetsFile); err != nil {
			return nil, err
		}
	}
	return review.Select(all, names)
}

// readInput returns the text to process: the file when path is set, the
// joined arguments when given, and stdin otherwise.
func readInput(path string, args []string) (string, error) {
	var text string
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		text = string(data)
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no input text")
	}
	return text, nil
}

// writeOutput writes content to path, or to stdout when path is empty.
func writeOutput(path, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if path == "" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// parseTerms turns repeated --term en=ja flags into a glossary.
func parseTerms(pairs []string) (map[string]string, error) {
	terms := make(map[string]string, len(pairs))
	for _, p := range pairs {
		en, ja, ok := strings.Cut(p, "=")
		en, ja = strings.TrimSpace(en), strings.TrimSpace(ja)
		if !ok || en == "" || ja == "" {
			return nil, fmt.Errorf("invalid --term %q (want english=japanese)", p)
		}
		terms[en] = ja
	}
	return terms, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
