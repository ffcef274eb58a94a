package corpus

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"supportbot/internal/domain"
)

//go:embed faqs.yaml
var embeddedFAQs []byte

// Embedded serves the FAQ set compiled into the binary.
type Embedded struct{}

func NewEmbedded() *Embedded { return &Embedded{} }

func (Embedded) Name() string { return "embedded" }

func (Embedded) Load(ctx context.Context) ([]domain.FAQEntry, error) {
	var entries []domain.FAQEntry
	if err := yaml.Unmarshal(embeddedFAQs, &entries); err != nil {
		return nil, fmt.Errorf("decode embedded corpus: %w", err)
	}
	return clean(entries)
}
