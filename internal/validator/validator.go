// Package validator checks that source and translated text are in the
// expected languages.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/treatydesk/internal/detector"
)

const (
	SourceLang = "EN"
	TargetLang = "JA"
)

// minValidationLength is the minimum rune count required to attempt language
// detection. Shorter texts are accepted without validation.
const minValidationLength = 20

// Validator checks the language of texts. The underlying detector is
// expensive to build; reuse the instance.
type Validator struct {
	det *detector.Detector
}

func New() *Validator {
	return &Validator{det: detector.New()}
}

// IsValid reports whether text appears to be written in lang (ISO 639-1).
//
// Short texts and texts whose language cannot be determined pass. When the
// detected language differs from lang the returned error names both codes.
func (v *Validator) IsValid(text, lang string) (bool, error) {
	if lang == "" {
		return true, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("text is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(detected, lang) {
		return false, fmt.Errorf("expected %s but detected %s", strings.ToUpper(lang), detected)
	}

	return true, nil
}

// CheckSource returns an error when text does not look like English.
func (v *Validator) CheckSource(text string) error {
	_, err := v.IsValid(text, SourceLang)
	return err
}

// CheckTranslation returns an error when text does not look like Japanese.
func (v *Validator) CheckTranslation(text string) error {
	_, err := v.IsValid(text, TargetLang)
	return err
}
