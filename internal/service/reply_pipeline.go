package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"supportbot/internal/domain"
	"supportbot/internal/metrics"
)

const (
	// Greeting is returned for an empty conversation.
	Greeting = "Hello! How can I help you today?"
	// FallbackReply is returned whenever the remote completion fails.
	FallbackReply = "I'm sorry, I'm having trouble connecting to my brain right now."
	// DefaultSystemPrompt sets the support-agent persona for remote completions.
	DefaultSystemPrompt = "You are a helpful customer support agent for an e-commerce website. Be concise and polite."

	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
	DefaultThreshold   = 0.3
)

var errEmptyCompletion = errors.New("empty completion")

// ReplySource records which branch of the pipeline produced a reply.
type ReplySource string

const (
	SourceGreeting ReplySource = "greeting"
	SourceFAQ      ReplySource = "faq"
	SourceLLM      ReplySource = "llm"
	SourceFallback ReplySource = "fallback"
)

// FAQSearcher is the read-only view of the FAQ index used by the pipeline.
type FAQSearcher interface {
	Search(query string, threshold float64) (domain.FAQMatch, bool, error)
}

// PipelineOptions configures a ReplyPipeline. Zero values take the package defaults;
// a non-nil Threshold or Temperature is used as given, zero included.
type PipelineOptions struct {
	Threshold    *float64
	Model        string
	Temperature  *float64
	Timeout      time.Duration
	SystemPrompt string
}

// Reply is the pipeline's answer for a conversation.
type Reply struct {
	Text   string
	Source ReplySource
	// Match is set when Source is SourceFAQ.
	Match *domain.FAQMatch
}

// ReplyPipeline answers from the FAQ index and falls back to a remote completion.
//
// An FAQ hit short-circuits generation: the matched answer is returned verbatim and
// the model is never called. On a miss the model sees only the persona prompt and the
// conversation, never FAQ context.
type ReplyPipeline struct {
	index     FAQSearcher
	completer domain.Completer
	opts      PipelineOptions
	log       zerolog.Logger
}

// NewReplyPipeline wires the index and completer into a pipeline.
func NewReplyPipeline(index FAQSearcher, completer domain.Completer, opts PipelineOptions, log zerolog.Logger) *ReplyPipeline {
	if opts.Threshold == nil {
		t := DefaultThreshold
		opts.Threshold = &t
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == nil {
		t := DefaultTemperature
		opts.Temperature = &t
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	return &ReplyPipeline{
		index:     index,
		completer: completer,
		opts:      opts,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Reply produces the assistant reply for history. It never fails and never returns
// an empty text.
func (p *ReplyPipeline) Reply(ctx context.Context, history []domain.Turn) Reply {
	if len(history) == 0 {
		return p.record(Reply{Text: Greeting, Source: SourceGreeting})
	}

	query := history[len(history)-1].Content
	match, ok, err := p.index.Search(query, *p.opts.Threshold)
	switch {
	case err != nil:
		p.log.Warn().Err(err).Msg("faq search failed, using completion")
	case ok:
		p.log.Debug().Int("faq_index", match.Index).Float64("score", match.Score).Msg("faq hit")
		return p.record(Reply{Text: match.Entry.Answer, Source: SourceFAQ, Match: &match})
	}

	text, err := p.complete(ctx, p.buildMessages(history))
	if err != nil {
		metrics.CompletionFailures.Inc()
		p.log.Error().Err(err).Str("completer", p.completer.Name()).Msg("completion failed, returning fallback reply")
		return p.record(Reply{Text: FallbackReply, Source: SourceFallback})
	}
	return p.record(Reply{Text: text, Source: SourceLLM})
}

// buildMessages prepends the persona prompt to the full history.
func (p *ReplyPipeline) buildMessages(history []domain.Turn) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+1)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: p.opts.SystemPrompt})
	for _, t := range history {
		msgs = append(msgs, domain.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func (p *ReplyPipeline) complete(ctx context.Context, msgs []domain.Message) (text string, err error) {
	defer func() {
		// Provider panics degrade to the fallback reply like any other failure.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("completer panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	out, err := p.completer.Complete(ctx, domain.CompletionRequest{
		Messages:    msgs,
		Model:       p.opts.Model,
		Temperature: *p.opts.Temperature,
	})
	metrics.CompletionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}

func (p *ReplyPipeline) record(r Reply) Reply {
	metrics.Replies.WithLabelValues(string(r.Source)).Inc()
	return r
}
