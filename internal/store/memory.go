package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
)

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID          string
	CacheKey    string
	SourceText  string
	FinalText   string
	Score       float64
	Model       string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// CacheKey identifies a translation by everything that shapes its prompt:
// the source sentence, both contexts, the glossary and the model.
func CacheKey(model, source, contextEN, contextJA string, glossary map[string]string) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(normalizeText(s)))
		h.Write([]byte{0})
	}
	write(model)
	write(source)
	write(contextEN)
	write(contextJA)

	terms := make([]string, 0, len(glossary))
	for en := range glossary {
		terms = append(terms, en)
	}
	sort.Strings(terms)
	for _, en := range terms {
		write(en)
		write(glossary[en])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetCachedTranslation returns the remembered translation for key and bumps
// its usage counter. Invalidated entries are misses.
func (s *Store) GetCachedTranslation(ctx context.Context, key string) (*MemoryEntry, bool, error) {
	var e MemoryEntry
	var model sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, cache_key, source_text, final_text, score, model, usage_count, invalidated, last_used FROM translation_memory WHERE cache_key = ?`,
		key).Scan(&e.ID, &e.CacheKey, &e.SourceText, &e.FinalText, &e.Score, &model, &e.UsageCount, &e.Invalidated, &e.LastUsed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if e.Invalidated {
		return nil, false, nil
	}
	e.Model = model.String

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE cache_key = ?`,
		time.Now(), key)
	return &e, true, err
}

// SaveToMemory remembers a translation under key, replacing any earlier one.
func (s *Store) SaveToMemory(ctx context.Context, key, sourceText, finalText string, score float64, model string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, cache_key, source_text, final_text, score, model, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		uuid.NewString(), key, normalizeText(sourceText), finalText, score, model, now, now)
	return err
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cache_key, source_text, final_text, score, model, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var model sql.NullString
		if err := rows.Scan(&e.ID, &e.CacheKey, &e.SourceText, &e.FinalText, &e.Score, &model, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		e.Model = model.String
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}

// Suggestion is a remembered translation of a similar source sentence.
type Suggestion struct {
	SourceText string
	FinalText  string
	Similarity float64
}

// SimilarTranslations returns remembered translations whose source has at
// least threshold similarity (0–1) to sourceText, best first. Sources longer
// than maxFuzzyRunes are not compared.
func (s *Store) SimilarTranslations(ctx context.Context, sourceText string, threshold float64, limit int) ([]Suggestion, error) {
	if threshold <= 0 {
		return nil, nil
	}

	normalized := normalizeText(sourceText)
	const maxFuzzyRunes = 1000
	if len([]rune(normalized)) > maxFuzzyRunes {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, final_text FROM translation_memory WHERE NOT invalidated`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var srcText, finalText string
		if err := rows.Scan(&srcText, &finalText); err != nil {
			return nil, err
		}

		// The length difference alone bounds the best reachable similarity.
		ls, lr := len([]rune(normalized)), len([]rune(srcText))
		maxL := max(ls, lr)
		diff := ls - lr
		if diff < 0 {
			diff = -diff
		}
		if maxL > 0 && 1.0-float64(diff)/float64(maxL) < threshold {
			continue
		}

		if score := stringSimilarity(normalized, srcText); score >= threshold {
			out = append(out, Suggestion{SourceText: srcText, FinalText: finalText, Similarity: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
