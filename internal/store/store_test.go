package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/treatydesk/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := internal.TranslationRun{
		ID:         "run-1",
		SourceText: "The Parties agree as follows.",
		ContextEN:  "Article 1",
		Model:      "gpt-4o",
		FinalText:  "締約国は、次のとおり協定した。",
		Score:      0.95,
		Accepted:   true,
		Attempts: []internal.RunAttempt{
			{Index: 1, Text: "締約国は次のように合意する。", Score: 0.6},
			{Index: 2, Text: "締約国は、次のとおり協定した。", Score: 0.95},
		},
		Timestamp: time.Now(),
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.FinalText != run.FinalText || got.Score != 0.95 || !got.Accepted {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.ContextEN != "Article 1" || got.ContextJA != "" {
		t.Errorf("unexpected contexts: %q %q", got.ContextEN, got.ContextJA)
	}
	if len(got.Attempts) != 2 || got.Attempts[0].Index != 1 || got.Attempts[1].Score != 0.95 {
		t.Errorf("unexpected attempts: %+v", got.Attempts)
	}

	// Duplicate IDs roll back the whole run.
	if err := s.SaveRun(ctx, run); err == nil {
		t.Error("expected error for duplicate run ID")
	}

	if _, err := s.GetRun(ctx, "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestStore_SaveReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rev := internal.ReviewRun{
		ID:         "rev-1",
		Document:   "締約国は",
		RuleSets:   []string{"kobun", "treaty-style"},
		Mechanical: "常用漢字表にない漢字は見つかりませんでした。",
		FinalText:  "## 総合評価\n指摘事項なし",
	}
	if err := s.SaveReview(ctx, rev); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}
	got, err := s.GetReview(ctx, "rev-1")
	if err != nil {
		t.Fatalf("GetReview failed: %v", err)
	}
	if len(got.RuleSets) != 2 || got.RuleSets[1] != "treaty-style" {
		t.Errorf("unexpected rule sets: %v", got.RuleSets)
	}
	if got.FinalText != rev.FinalText {
		t.Errorf("unexpected final text: %q", got.FinalText)
	}
}

func TestStore_RecentRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		run := internal.TranslationRun{
			ID:         id,
			SourceText: "Article " + id,
			Model:      "gpt-4o",
			FinalText:  "第" + id + "条",
			Score:      0.5,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		if id == "mid" {
			run.Error = "generation failed on attempt 1: boom"
		}
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	runs, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[1].Error == "" {
		t.Error("expected the stored error message")
	}

	if err := s.SaveReview(ctx, internal.ReviewRun{ID: "r1", Document: "本文", RuleSets: []string{"kobun"}, FinalText: "ok"}); err != nil {
		t.Fatalf("SaveReview failed: %v", err)
	}
	revs, err := s.RecentReviews(ctx, 10)
	if err != nil {
		t.Fatalf("RecentReviews failed: %v", err)
	}
	if len(revs) != 1 || revs[0].RuleSets[0] != "kobun" {
		t.Errorf("unexpected reviews: %+v", revs)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hello  ", "Hello"},
		{"e\u0301", "\u00e9"}, // NFC composes
		{"\t\n締約国\t\n", "締約国"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeText(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
