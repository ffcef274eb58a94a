package tui

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"supportbot/internal/domain"
)

// Reply is what the chat backend answered.
type Reply struct {
	Text      string
	SessionID string
	Escalate  bool
}

// ChatPort is the TUI-facing subset of the chat backend.
type ChatPort interface {
	Send(ctx context.Context, sessionID, message string) (Reply, error)
}

// requestTimeout bounds a single round trip to the backend.
const requestTimeout = 90 * time.Second

type entry struct {
	role     domain.Role
	text     string
	query    string
	escalate bool
}

type replyMsg struct {
	reply Reply
	err   error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	port      ChatPort
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	entries   []entry
	summary   string
	status    string
	sessionID string
	waiting   bool
	ready     bool
}

// New creates a chat model. sessionID may be empty to start a new session.
func New(port ChatPort, summary, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		port:      port,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		summary:   summary,
		sessionID: sessionID,
		status:    "Connected. Type a message.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// SessionID returns the session the conversation is running in.
func (m Model) SessionID() string { return m.sessionID }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + ih + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.entries = append(m.entries, entry{role: domain.RoleUser, text: q})
			m.input.SetValue("")
			m.waiting = true
			m.status = "Waiting for a reply..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.send(q))
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		var query string
		for i := len(m.entries) - 1; i >= 0; i-- {
			if m.entries[i].role == domain.RoleUser {
				query = m.entries[i].text
				break
			}
		}
		m.entries = append(m.entries, entry{
			role:     domain.RoleAssistant,
			text:     msg.reply.Text,
			query:    query,
			escalate: msg.reply.Escalate,
		})
		m.sessionID = msg.reply.SessionID
		if msg.reply.Escalate {
			m.status = "Flagged for a human agent. Session " + m.sessionID
		} else {
			m.status = "Session " + m.sessionID
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(message string) tea.Cmd {
	port, sessionID := m.port, m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		r, err := port.Send(ctx, sessionID, message)
		return replyMsg{reply: r, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout and transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Customer Support")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := inputBoxStyle.Render(m.input.View())
	statusText := m.status
	if m.waiting {
		statusText = m.spinner.View() + " " + statusText
	}
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(statusText)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(e.text)
		default:
			b.WriteString(botStyle.Render("Support: "))
			b.WriteString(highlightBestSentence(e.text, e.query))
			if e.escalate {
				b.WriteString("\n")
				b.WriteString(escalateStyle.Render(escalationMarker))
			}
		}
	}
	return b.String()
}

const escalationMarker = "[escalated to a human agent]"

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	escalateStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence of a multi-sentence reply that
// shares the most words with the question.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	if len(sentences) < 2 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(text)
	}
	bestIdx := 0
	bestScore := 0
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if bestScore > 0 && i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

// splitSentences splits text after sentence punctuation, keeping any unterminated tail.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
