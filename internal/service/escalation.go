package service

import "strings"

// DefaultEscalationPhrases are hedging or hand-off phrases that suggest the bot could
// not resolve the issue.
var DefaultEscalationPhrases = []string{
	"sorry",
	"apologize",
	"don't know",
	"do not know",
	"cannot help",
	"can't help",
	"not sure",
	"escalate",
	"support team",
	"human agent",
}

// EscalationDetector flags replies for human hand-off by phrase matching.
// It is a coarse heuristic: any apology counts, so false positives are expected.
type EscalationDetector struct {
	phrases []string
}

// NewEscalationDetector returns a detector for phrases, or for
// DefaultEscalationPhrases when phrases is empty.
func NewEscalationDetector(phrases []string) *EscalationDetector {
	if len(phrases) == 0 {
		phrases = DefaultEscalationPhrases
	}
	d := &EscalationDetector{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		p = normalizeReply(p)
		if p != "" {
			d.phrases = append(d.phrases, p)
		}
	}
	return d
}

// ShouldEscalate reports whether reply contains any escalation phrase.
// Only the reply is inspected; lastUserMessage is accepted for callers that pass
// the full exchange.
func (d *EscalationDetector) ShouldEscalate(_, reply string) bool {
	text := normalizeReply(reply)
	for _, p := range d.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

var defaultDetector = NewEscalationDetector(nil)

// DetectEscalation runs the default phrase list over reply.
func DetectEscalation(lastUserMessage, reply string) bool {
	return defaultDetector.ShouldEscalate(lastUserMessage, reply)
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

func normalizeReply(s string) string {
	return apostrophes.Replace(strings.ToLower(strings.TrimSpace(s)))
}
