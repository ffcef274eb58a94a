package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"supportbot/internal/domain"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestComplete_MapsRoles(t *testing.T) {
	fake := &fakeModels{resp: textResponse("We open at 9.")}
	c := &Client{models: fake}

	got, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:       "gemini-2.0-flash",
		Temperature: 0.5,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are support."},
			{Role: domain.RoleUser, Content: "hello"},
			{Role: domain.RoleAssistant, Content: "Hi!"},
			{Role: domain.RoleUser, Content: "when do you open"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 9.", got)
	assert.Equal(t, "gemini-2.0-flash", fake.model)

	require.Len(t, fake.contents, 3)
	assert.Equal(t, string(genai.RoleUser), fake.contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), fake.contents[1].Role)
	assert.Equal(t, "when do you open", fake.contents[2].Parts[0].Text)

	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "You are support.", fake.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.5, *fake.config.Temperature, 1e-6)
}

func TestComplete_Errors(t *testing.T) {
	c := &Client{models: &fakeModels{err: errors.New("quota exceeded")}}
	req := domain.CompletionRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}}}
	_, err := c.Complete(context.Background(), req)
	assert.ErrorContains(t, err, "quota exceeded")

	c = &Client{models: &fakeModels{resp: &genai.GenerateContentResponse{}}}
	_, err = c.Complete(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleSystem, Content: "only a persona"}},
	})
	assert.Error(t, err)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	_, err := NewClient(context.Background(), Config{APIKeyEnv: "TEST_GEMINI_KEY"})
	assert.ErrorContains(t, err, "TEST_GEMINI_KEY")
}
