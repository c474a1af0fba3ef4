package wizard

import (
	"regexp"
	"strconv"
	"strings"
)

// Parser interprets one answer. It returns the value to store and whether the answer
// was accepted; an accepted empty value leaves the field unset.
type Parser func(answer string) (string, bool)

// Option is one entry of a closed vocabulary
type Option struct {
	Value    string
	Keywords []string // Lowercase substrings that select this option
}

var optionNumberRe = regexp.MustCompile(`^(\d+)[.)]?$`)

// FreeText accepts any non-empty answer verbatim (surrounding whitespace trimmed)
func FreeText(answer string) (string, bool) {
	text := strings.TrimSpace(answer)
	return text, text != ""
}

// Choice classifies an answer against a closed vocabulary.
// An answer selects an option by its 1-based number or by containing one of its keywords
// (case-insensitive); options are tried in order.
func Choice(options ...Option) Parser {
	return func(answer string) (string, bool) {
		return matchOption(options, answer)
	}
}

// ChoiceOr is Choice with a fallback for unrecognized, non-empty answers
func ChoiceOr(fallback string, options ...Option) Parser {
	return func(answer string) (string, bool) {
		if value, ok := matchOption(options, answer); ok {
			return value, true
		}
		if strings.TrimSpace(answer) == "" {
			return "", false
		}
		return fallback, true
	}
}

// FreeTextUnless accepts free text, but a keyword answer is accepted without storing a value
func FreeTextUnless(keyword string) Parser {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	return func(answer string) (string, bool) {
		text, ok := FreeText(answer)
		if !ok {
			return "", false
		}
		if re.MatchString(text) {
			return "", true
		}
		return text, true
	}
}

func matchOption(options []Option, answer string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(answer))
	if lower == "" {
		return "", false
	}

	if m := optionNumberRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1].Value, true
		}
		return "", false
	}

	// The keyword mentioned first wins; ties go to the earlier option
	best, bestAt := "", -1
	for _, opt := range options {
		for _, kw := range opt.Keywords {
			if at := strings.Index(lower, kw); at >= 0 && (bestAt < 0 || at < bestAt) {
				best, bestAt = opt.Value, at
			}
		}
	}
	return best, bestAt >= 0
}
