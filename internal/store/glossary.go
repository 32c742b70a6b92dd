package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Term is a row of the glossary.
type Term struct {
	ID        int64
	English   string
	Japanese  string
	CreatedAt time.Time
}

// GlossaryDiff counts the changes ApplyGlossaryEdits made.
type GlossaryDiff struct {
	Deleted  int
	Inserted int
	Updated  int
}

// AddTerm inserts a term or replaces the Japanese rendering of an existing one.
func (s *Store) AddTerm(ctx context.Context, english, japanese string) error {
	english, japanese = strings.TrimSpace(english), strings.TrimSpace(japanese)
	if english == "" || japanese == "" {
		return fmt.Errorf("both english and japanese terms are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO terms (english_term, japanese_term) VALUES (?, ?)
		 ON CONFLICT(english_term) DO UPDATE SET japanese_term = excluded.japanese_term`,
		english, japanese)
	return err
}

// ListTerms returns the glossary ordered by English term.
func (s *Store) ListTerms(ctx context.Context) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, english_term, japanese_term, created_at FROM terms ORDER BY english_term`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.English, &t.Japanese, &t.CreatedAt); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// DeleteTerm removes a term by ID.
func (s *Store) DeleteTerm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM terms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("term not found: %d", id)
	}
	return nil
}

// FindGlossaryTerms returns the glossary entries whose English term occurs in
// text as a whole word, ignoring case.
func (s *Store) FindGlossaryTerms(ctx context.Context, text string) (map[string]string, error) {
	terms, err := s.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load glossary: %w", err)
	}
	return MatchTerms(text, terms), nil
}

// MatchTerms finds terms in text. Longer terms are tried first, so
// "political commitment" wins over "commitment" at the same position.
func MatchTerms(text string, terms []Term) map[string]string {
	found := make(map[string]string)
	if len(terms) == 0 || strings.TrimSpace(text) == "" {
		return found
	}

	byLower := make(map[string]Term, len(terms))
	keys := make([]string, 0, len(terms))
	for _, t := range terms {
		if t.English == "" {
			continue
		}
		byLower[strings.ToLower(t.English)] = t
		keys = append(keys, t.English)
	}
	if len(keys) == 0 {
		return found
	}
	sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)

	for _, m := range re.FindAllString(text, -1) {
		if t, ok := byLower[strings.ToLower(m)]; ok {
			found[t.English] = t.Japanese
		}
	}
	return found
}

// ApplyGlossaryEdits makes the glossary equal to edited in one transaction.
// Rows missing from edited are deleted, rows with ID 0 are inserted and rows
// whose terms changed are updated.
func (s *Store) ApplyGlossaryEdits(ctx context.Context, edited []Term) (GlossaryDiff, error) {
	var diff GlossaryDiff

	current, err := s.ListTerms(ctx)
	if err != nil {
		return diff, fmt.Errorf("failed to load glossary: %w", err)
	}
	byID := make(map[int64]Term, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}

	keep := make(map[int64]bool, len(edited))
	for _, t := range edited {
		if t.ID != 0 {
			keep[t.ID] = true
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return diff, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id := range byID {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM terms WHERE id = ?`, id); err != nil {
			return GlossaryDiff{}, fmt.Errorf("failed to delete term %d: %w", id, err)
		}
		diff.Deleted++
	}

	for _, t := range edited {
		en, ja := strings.TrimSpace(t.English), strings.TrimSpace(t.Japanese)
		switch orig, exists := byID[t.ID]; {
		case t.ID == 0:
			if en == "" || ja == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO terms (english_term, japanese_term) VALUES (?, ?)`, en, ja); err != nil {
				return GlossaryDiff{}, fmt.Errorf("failed to insert term %q: %w", en, err)
			}
			diff.Inserted++
		case !exists:
			return GlossaryDiff{}, fmt.Errorf("term not found: %d", t.ID)
		case orig.English != en || orig.Japanese != ja:
			if _, err := tx.ExecContext(ctx, `UPDATE terms SET english_term = ?, japanese_term = ? WHERE id = ?`, en, ja, t.ID); err != nil {
				return GlossaryDiff{}, fmt.Errorf("failed to update term %d: %w", t.ID, err)
			}
			diff.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return GlossaryDiff{}, err
	}
	return diff, nil
}

// GetTerm returns a single term by English text, ignoring case.
func (s *Store) GetTerm(ctx context.Context, english string) (*Term, error) {
	var t Term
	err := s.db.QueryRowContext(ctx,
		`SELECT id, english_term, japanese_term, created_at FROM terms WHERE lower(english_term) = lower(?)`,
		strings.TrimSpace(english)).Scan(&t.ID, &t.English, &t.Japanese, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
