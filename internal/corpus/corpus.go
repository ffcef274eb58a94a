// Package corpus loads the FAQ corpus the index is built from.
package corpus

import (
	"errors"
	"strings"

	"supportbot/internal/domain"
)

// ErrNoEntries is returned when a source yields no usable question/answer pair.
var ErrNoEntries = errors.New("corpus has no usable entries")

// clean trims questions and drops entries with a blank question or answer.
// Answers are kept verbatim.
func clean(entries []domain.FAQEntry) ([]domain.FAQEntry, error) {
	out := make([]domain.FAQEntry, 0, len(entries))
	for _, e := range entries {
		q := strings.TrimSpace(e.Question)
		if q == "" || strings.TrimSpace(e.Answer) == "" {
			continue
		}
		out = append(out, domain.FAQEntry{Question: q, Answer: e.Answer})
	}
	if len(out) == 0 {
		return nil, ErrNoEntries
	}
	return out, nil
}
